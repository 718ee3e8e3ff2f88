package logic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blues/bounty/internal/gateway"
	"github.com/blues/bounty/internal/model"
	"github.com/blues/bounty/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBid_CreatesIssueAndCharges(t *testing.T) {
	h := newHarness(t)

	res, err := h.bids.PlaceBid(testCtx, "alice", issueURL, decimal.Zero, dec("10"))
	require.NoError(t, err)
	require.NotNil(t, res.Offer)

	assert.Equal(t, model.PaymentStatusSuccess, res.Offer.Status)
	assertDec(t, "10", res.Offer.Amount)
	assertDec(t, "10.87", res.Offer.ChargeAmount)
	assertDec(t, "10", res.Bid.Offer)
	assert.NotEmpty(t, res.Offer.Confirmation)

	issue, err := h.store.GetIssueByUrl(testCtx, issueURL)
	require.NoError(t, err)
	assert.Equal(t, issue.Id, res.Bid.IssueId)
	assert.Equal(t, model.IssueStateUnknown, issue.State)

	calls := h.gw.ChargeCalls()
	require.Len(t, calls, 1)
	assertDec(t, "10.87", calls[0].Amount)
	assert.Equal(t, res.Offer.TransactionKey, calls[0].Token)

	offer, err := h.store.GetOffer(testCtx, res.Offer.Id)
	require.NoError(t, err)
	require.Len(t, offer.Fees, 2)
}

func TestPlaceBid_InvalidInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.bids.PlaceBid(testCtx, "", issueURL, decimal.Zero, dec("1"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = h.bids.PlaceBid(testCtx, "alice", issueURL, dec("-1"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.bids.PlaceBid(testCtx, "alice", issueURL, decimal.Zero, dec("-5"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.True(t, IsValidation(err))
}

func TestMakeOffer_ChargesOnlyIncrement(t *testing.T) {
	h := newHarness(t)
	bid := h.fund(t, "alice", issueURL, "10")

	offer, err := h.bids.MakeOffer(testCtx, bid.Id, dec("25"))
	require.NoError(t, err)
	assertDec(t, "15", offer.Amount)

	_, err = h.bids.MakeOffer(testCtx, bid.Id, dec("20"))
	assert.ErrorIs(t, err, ErrNothingToCharge)
	_, err = h.bids.MakeOffer(testCtx, bid.Id, dec("25"))
	assert.ErrorIs(t, err, ErrNothingToCharge)

	got, err := h.store.GetBid(testCtx, bid.Id)
	require.NoError(t, err)
	assertDec(t, "25", got.Offer)
	assert.Len(t, h.gw.ChargeCalls(), 2)
}

func TestMakeOffer_FundingIsMonotonic(t *testing.T) {
	h := newHarness(t)
	bid := h.fund(t, "alice", issueURL, "1")

	requested := dec("1")
	previous := dec("1")
	for _, amount := range []string{"3", "2", "7.50", "7.50", "12.01", "5"} {
		a := dec(amount)
		requested = requested.Add(a)
		_, _ = h.bids.MakeOffer(testCtx, bid.Id, a)

		got, err := h.store.GetBid(testCtx, bid.Id)
		require.NoError(t, err)
		assert.True(t, got.Offer.GreaterThanOrEqual(previous), "funded total decreased to %s", got.Offer)
		assert.True(t, got.Offer.LessThanOrEqual(requested))
		previous = got.Offer
	}
	assertDec(t, "12.01", previous)
}

func TestMakeOffer_InvalidAmount(t *testing.T) {
	h := newHarness(t)
	bid := h.ask(t, "alice", issueURL, "5")

	for _, amount := range []string{"0", "-1", "1.001"} {
		_, err := h.bids.MakeOffer(testCtx, bid.Id, dec(amount))
		assert.ErrorIs(t, err, ErrInvalidAmount, amount)
	}
	assert.Empty(t, h.gw.ChargeCalls())

	_, err := h.bids.MakeOffer(testCtx, 999, dec("1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMakeOffer_DeclinedThenRetried(t *testing.T) {
	h := newHarness(t)
	bid := h.ask(t, "alice", issueURL, "0")
	h.gw.Sandbox.Decline("alice")

	offer, err := h.bids.MakeOffer(testCtx, bid.Id, dec("10"))
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "charge", gwErr.Op)
	assert.False(t, IsValidation(err))
	assert.Equal(t, model.PaymentStatusFailed, offer.Status)
	assert.NotEmpty(t, offer.ErrorMessage)

	got, err := h.store.GetBid(testCtx, bid.Id)
	require.NoError(t, err)
	assert.True(t, got.Offer.IsZero())

	h.gw.Sandbox.Allow("alice")
	retried, err := h.bids.RetryOffer(testCtx, offer.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSuccess, retried.Status)

	calls := h.gw.ChargeCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].Token, calls[1].Token)

	got, err = h.store.GetBid(testCtx, bid.Id)
	require.NoError(t, err)
	assertDec(t, "10", got.Offer)

	_, err = h.bids.RetryOffer(testCtx, offer.Id)
	assert.ErrorIs(t, err, ErrAlreadyCharged)
}

func TestRetryOffer_SupersededBySuccess(t *testing.T) {
	h := newHarness(t)
	bid := h.ask(t, "alice", issueURL, "0")
	h.gw.Sandbox.Decline("alice")
	failed, err := h.bids.MakeOffer(testCtx, bid.Id, dec("10"))
	require.Error(t, err)

	h.gw.Sandbox.Allow("alice")
	_, err = h.bids.MakeOffer(testCtx, bid.Id, dec("10"))
	require.NoError(t, err)

	_, err = h.bids.RetryOffer(testCtx, failed.Id)
	assert.ErrorIs(t, err, ErrNothingToCharge)
}

func TestRetryOffer_OnlyLatestOfferRetried(t *testing.T) {
	h := newHarness(t)
	bid := h.ask(t, "alice", issueURL, "0")
	h.gw.Sandbox.Decline("alice")

	older, err := h.bids.MakeOffer(testCtx, bid.Id, dec("10"))
	require.Error(t, err)
	newer, err := h.bids.MakeOffer(testCtx, bid.Id, dec("10"))
	require.Error(t, err)
	assertDec(t, "10", newer.Amount)

	h.gw.Sandbox.Allow("alice")
	_, err = h.bids.RetryOffer(testCtx, older.Id)
	assert.ErrorIs(t, err, ErrNothingToCharge)

	retried, err := h.bids.RetryOffer(testCtx, newer.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSuccess, retried.Status)

	// 较早的扣款在后一笔成功后也不能再扣
	_, err = h.bids.RetryOffer(testCtx, older.Id)
	assert.ErrorIs(t, err, ErrNothingToCharge)

	funded, err := h.store.FundedByBid(testCtx, bid.Id)
	require.NoError(t, err)
	assertDec(t, "10", funded)
	assert.Len(t, h.gw.Sandbox.Charged(), 1)
}

func TestMakeOffer_ConcurrentCallsChargeOnce(t *testing.T) {
	h := newHarness(t)
	bid := h.ask(t, "alice", issueURL, "0")

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		nothing   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.bids.MakeOffer(testCtx, bid.Id, dec("10"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrNothingToCharge):
				nothing++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, nothing)
	assert.Len(t, h.gw.Sandbox.Charged(), 1)

	funded, err := h.store.FundedByBid(testCtx, bid.Id)
	require.NoError(t, err)
	assertDec(t, "10", funded)
}

func TestMakeOffer_BlockedByOthersLockedClaim(t *testing.T) {
	h := newHarness(t)
	h.ask(t, "fixer", issueURL, "30")
	alice := h.ask(t, "alice", issueURL, "0")
	h.fund(t, "bob", issueURL, "10")

	h.gw.Sandbox.Decline("alice")
	declined, err := h.bids.MakeOffer(testCtx, alice.Id, dec("5"))
	require.Error(t, err)
	h.gw.Sandbox.Allow("alice")

	claim := h.submit(t, "fixer", issueURL)
	calls := len(h.gw.ChargeCalls())

	_, err = h.bids.MakeOffer(testCtx, alice.Id, dec("10"))
	assert.ErrorIs(t, err, ErrNotBiddable)
	assert.True(t, IsValidation(err))

	_, err = h.bids.RetryOffer(testCtx, declined.Id)
	assert.ErrorIs(t, err, ErrNotBiddable)

	assert.Len(t, h.gw.ChargeCalls(), calls)
	funded, err := h.store.FundedByBid(testCtx, alice.Id)
	require.NoError(t, err)
	assert.True(t, funded.IsZero())

	// 未能出资的用户不会获得投票权
	needs, err := h.claims.NeedsVoteFrom(testCtx, claim.Id, "alice")
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestMakeOffer_BlockedWhenOwnAskMet(t *testing.T) {
	h := newHarness(t)
	fixer := h.ask(t, "fixer", issueURL, "20")
	h.fund(t, "alice", issueURL, "20")

	_, err := h.bids.MakeOffer(testCtx, fixer.Id, dec("5"))
	assert.ErrorIs(t, err, ErrNotBiddable)
	assert.Len(t, h.gw.Sandbox.Charged(), 1)
}

func TestMakeOffer_GatewayTimeout(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.GatewayTimeout = 50 * time.Millisecond })
	bid := h.ask(t, "alice", issueURL, "0")
	h.gw.SetCharge(func(ctx context.Context, req gateway.ChargeRequest) (gateway.Result, error) {
		<-ctx.Done()
		return gateway.Result{}, ctx.Err()
	})

	offer, err := h.bids.MakeOffer(testCtx, bid.Id, dec("10"))
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Timeout())
	assert.Equal(t, model.PaymentStatusFailed, offer.Status)
}

func TestAskMet(t *testing.T) {
	h := newHarness(t)
	fixer := h.ask(t, "fixer", issueURL, "50")

	met, err := h.bids.AskMet(testCtx, fixer)
	require.NoError(t, err)
	assert.False(t, met)

	h.fund(t, "alice", issueURL, "30")
	met, err = h.bids.AskMet(testCtx, fixer)
	require.NoError(t, err)
	assert.False(t, met)

	h.fund(t, "bob", issueURL, "20")
	met, err = h.bids.AskMet(testCtx, fixer)
	require.NoError(t, err)
	assert.True(t, met)

	noAsk := h.fund(t, "carol", issueURL, "1")
	met, err = h.bids.AskMet(testCtx, noAsk)
	require.NoError(t, err)
	assert.False(t, met)
}

func TestAskMet_IgnoresOwnFunding(t *testing.T) {
	h := newHarness(t)
	res, err := h.bids.PlaceBid(testCtx, "fixer", issueURL, dec("10"), dec("20"))
	require.NoError(t, err)

	met, err := h.bids.AskMet(testCtx, res.Bid)
	require.NoError(t, err)
	assert.False(t, met)
}

func TestAskMatchNotification_SentOnce(t *testing.T) {
	h := newHarness(t)
	fixer := h.ask(t, "fixer", issueURL, "20")

	h.fund(t, "alice", issueURL, "10")
	assert.Empty(t, h.notifier.OfKind(notify.KindAskMet))

	h.fund(t, "bob", issueURL, "10")
	h.fund(t, "carol", issueURL, "5")
	h.fund(t, "bob", issueURL, "15")

	sent := h.notifier.OfKind(notify.KindAskMet)
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"fixer"}, sent[0].Recipients)
	assert.Equal(t, issueURL, sent[0].Payload["url"])

	got, err := h.store.GetBid(testCtx, fixer.Id)
	require.NoError(t, err)
	require.NotNil(t, got.AskMatchSent)
	assert.Equal(t, 0, h.bids.NotifyMatchingAskers(testCtx, ""))

	events, err := h.store.Events(testCtx, 0, model.EventAskMet)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAskMatchNotification_OnAskChange(t *testing.T) {
	h := newHarness(t)
	h.fund(t, "alice", issueURL, "10")
	h.ask(t, "fixer", issueURL, "50")
	assert.Empty(t, h.notifier.OfKind(notify.KindAskMet))

	h.ask(t, "fixer", issueURL, "10")
	assert.Len(t, h.notifier.OfKind(notify.KindAskMet), 1)
}

func TestAskMatchNotification_FailureDoesNotAbortOffer(t *testing.T) {
	h := newHarness(t)
	h.notifier.NotifyFunc = func(context.Context, []string, notify.Kind, map[string]interface{}) error {
		return errors.New("mail server down")
	}
	h.ask(t, "fixer", issueURL, "5")

	res, err := h.bids.PlaceBid(testCtx, "alice", issueURL, decimal.Zero, dec("5"))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSuccess, res.Offer.Status)
	assert.Len(t, h.notifier.OfKind(notify.KindAskMet), 1)
}

func TestIsBiddableBy(t *testing.T) {
	h := newHarness(t)
	fixer := h.ask(t, "fixer", issueURL, "100")
	alice := h.fund(t, "alice", issueURL, "10")
	h.fund(t, "bob", issueURL, "10")

	ok, err := h.bids.IsBiddableBy(testCtx, "alice", alice)
	require.NoError(t, err)
	assert.True(t, ok)

	claim := h.submit(t, "fixer", issueURL)

	ok, err = h.bids.IsBiddableBy(testCtx, "alice", alice)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = h.bids.IsBiddableBy(testCtx, "fixer", fixer)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.bids.PlaceBid(testCtx, "alice", issueURL, decimal.Zero, dec("20"))
	assert.ErrorIs(t, err, ErrNotBiddable)
	_, err = h.bids.PlaceBid(testCtx, "dave", issueURL, decimal.Zero, dec("20"))
	assert.ErrorIs(t, err, ErrNotBiddable)

	// 一半出资人反对即驳回
	h.vote(t, "alice", claim.Id, false)
	require.Equal(t, model.ClaimStatusRejected, h.claimStatus(t, claim.Id))

	ok, err = h.bids.IsBiddableBy(testCtx, "alice", alice)
	require.NoError(t, err)
	assert.True(t, ok)

	// 认领人本人被驳回后可以重新出价
	ok, err = h.bids.IsBiddableBy(testCtx, "fixer", fixer)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = h.bids.PlaceBid(testCtx, "fixer", issueURL, dec("90"), decimal.Zero)
	assert.NoError(t, err)
}

func TestIsBiddableBy_OwnAskMet(t *testing.T) {
	h := newHarness(t)
	fixer := h.ask(t, "fixer", issueURL, "20")
	h.fund(t, "alice", issueURL, "20")

	ok, err := h.bids.IsBiddableBy(testCtx, "fixer", fixer)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.bids.PlaceBid(testCtx, "fixer", issueURL, dec("30"), decimal.Zero)
	assert.ErrorIs(t, err, ErrNotBiddable)
}

func TestActionableClaims(t *testing.T) {
	h := newHarness(t)
	h.ask(t, "fixer", issueURL, "10")
	alice := h.fund(t, "alice", issueURL, "10")
	claim := h.submit(t, "fixer", issueURL)

	mine, err := h.bids.ActionableClaims(testCtx, "fixer", alice.Id)
	require.NoError(t, err)
	require.NotNil(t, mine.OwnClaim)
	assert.Equal(t, claim.Id, mine.OwnClaim.Id)
	assert.Empty(t, mine.OtherClaims)

	theirs, err := h.bids.ActionableClaims(testCtx, "alice", alice.Id)
	require.NoError(t, err)
	assert.Nil(t, theirs.OwnClaim)
	require.Len(t, theirs.OtherClaims, 1)
}

func TestGetBid(t *testing.T) {
	h := newHarness(t)
	fixer := h.ask(t, "fixer", issueURL, "5")
	h.fund(t, "alice", issueURL, "5")

	detail, err := h.bids.GetBid(testCtx, fixer.Id)
	require.NoError(t, err)
	assert.True(t, detail.AskMet)
	assert.Empty(t, detail.Offers)

	_, err = h.bids.GetBid(testCtx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}
