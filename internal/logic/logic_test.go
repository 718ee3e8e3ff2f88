package logic

import (
	"context"
	"testing"

	"github.com/blues/bounty/internal/event"
	"github.com/blues/bounty/internal/fee"
	"github.com/blues/bounty/internal/keylock"
	"github.com/blues/bounty/internal/model"
	"github.com/blues/bounty/internal/repository"
	"github.com/blues/bounty/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issueURL = "https://github.com/acme/widgets/issues/42"

var testCtx = context.TODO()

type harness struct {
	store    *repository.Store
	gw       *testutil.MockGateway
	notifier *testutil.MockNotifier
	bids     *BidLogic
	claims   *ClaimLogic
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()

	store := testutil.NewStore(t)
	gw := testutil.NewMockGateway()
	notifier := &testutil.MockNotifier{}
	bus := event.NewBus(event.NewAuditProcessor(store), event.NewNotifyProcessor(notifier))

	calc, err := fee.NewCalculator(fee.DefaultConfig())
	require.NoError(t, err)

	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	locks := keylock.New()

	return &harness{
		store:    store,
		gw:       gw,
		notifier: notifier,
		bids:     NewBidLogic(store, calc, gw, bus, locks, opts),
		claims:   NewClaimLogic(store, calc, gw, bus, locks, opts),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

// fund 在问题上出资
func (h *harness) fund(t *testing.T, user, url, amount string) *model.BidModel {
	t.Helper()
	res, err := h.bids.PlaceBid(testCtx, user, url, decimal.Zero, dec(amount))
	require.NoError(t, err)
	return res.Bid
}

// ask 在问题上设置要价
func (h *harness) ask(t *testing.T, user, url, ask string) *model.BidModel {
	t.Helper()
	res, err := h.bids.PlaceBid(testCtx, user, url, dec(ask), decimal.Zero)
	require.NoError(t, err)
	return res.Bid
}

func (h *harness) submit(t *testing.T, user, url string) *model.ClaimModel {
	t.Helper()
	claim, err := h.claims.Submit(testCtx, user, url, "https://github.com/acme/widgets/pull/7")
	require.NoError(t, err)
	return claim
}

func (h *harness) vote(t *testing.T, user string, claimId int64, approved bool) *VoteResult {
	t.Helper()
	res, err := h.claims.RecordVote(testCtx, user, claimId, approved)
	require.NoError(t, err)
	return res
}

func (h *harness) claimStatus(t *testing.T, id int64) model.ClaimStatus {
	t.Helper()
	claim, err := h.store.GetClaim(testCtx, id)
	require.NoError(t, err)
	return claim.Status
}

// approvedClaim fixer 要价 30，alice/bob/carol 各出资 10 并全部赞成
func (h *harness) approvedClaim(t *testing.T) *model.ClaimModel {
	t.Helper()
	h.ask(t, "fixer", issueURL, "30")
	for _, u := range []string{"alice", "bob", "carol"} {
		h.fund(t, u, issueURL, "10")
	}
	claim := h.submit(t, "fixer", issueURL)
	for _, u := range []string{"alice", "bob", "carol"} {
		h.vote(t, u, claim.Id, true)
	}
	require.Equal(t, model.ClaimStatusApproved, h.claimStatus(t, claim.Id))
	return claim
}
