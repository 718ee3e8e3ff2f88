package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/bounty/internal/event"
	"github.com/blues/bounty/internal/fee"
	"github.com/blues/bounty/internal/gateway"
	"github.com/blues/bounty/internal/keylock"
	"github.com/blues/bounty/internal/logger"
	"github.com/blues/bounty/internal/model"
	"github.com/blues/bounty/internal/repository"
	"github.com/shopspring/decimal"
)

// ClaimLogic 认领、投票与打款业务逻辑
type ClaimLogic struct {
	store *repository.Store
	calc  *fee.Calculator
	gw    gateway.Gateway
	bus   *event.Bus
	locks *keylock.Locker
	tally *VoteTally
	opts  Options
}

// NewClaimLogic 创建认领业务逻辑
func NewClaimLogic(
	store *repository.Store,
	calc *fee.Calculator,
	gw gateway.Gateway,
	bus *event.Bus,
	locks *keylock.Locker,
	opts Options,
) *ClaimLogic {
	return &ClaimLogic{
		store: store,
		calc:  calc,
		gw:    gw,
		bus:   bus,
		locks: locks,
		tally: NewVoteTally(store),
		opts:  opts.withDefaults(),
	}
}

// ClaimDetail 认领详情
type ClaimDetail struct {
	Claim   *model.ClaimModel  `json:"claim"`
	Votes   []model.VoteModel  `json:"votes"`
	Tally   Tally              `json:"tally"`
	Payout  *model.PayoutModel `json:"payout,omitempty"`
	Expires time.Time          `json:"expires"`
	Stale   bool               `json:"stale"`
}

// VoteResult 投票结果
type VoteResult struct {
	Vote   *model.VoteModel  `json:"vote"`
	Status model.ClaimStatus `json:"status"`
	Tally  Tally             `json:"tally"`
}

// Submit 提交认领，被驳回的旧认领归档后创建新记录
func (l *ClaimLogic) Submit(ctx context.Context, userId, url, evidence string) (*model.ClaimModel, error) {
	if userId == "" || url == "" {
		return nil, fmt.Errorf("用户和问题地址不能为空: %w", ErrInvalidArgument)
	}

	issue, err := l.store.GetIssueByUrl(ctx, url)
	if err != nil {
		return nil, notFound(err, "问题不存在")
	}

	unlock := l.locks.Lock(keylock.IssueKey(issue.Id))
	defer unlock()

	claims, err := l.store.ClaimsByIssue(ctx, issue.Id)
	if err != nil {
		return nil, err
	}
	var rejected *model.ClaimModel
	for i := range claims {
		c := &claims[i]
		if c.UserId == userId {
			if c.Status != model.ClaimStatusRejected {
				return nil, ErrDuplicateClaim
			}
			rejected = c
			continue
		}
		if c.Status.Locked() {
			return nil, ErrIssueLocked
		}
	}

	claim := &model.ClaimModel{
		IssueId:  issue.Id,
		UserId:   userId,
		Evidence: evidence,
		Title:    issue.Title,
		Status:   model.ClaimStatusSubmitted,
	}
	err = l.store.Transaction(ctx, func(tx *repository.Store) error {
		if rejected != nil {
			if err := tx.ArchiveClaim(ctx, rejected.Id); err != nil {
				return fmt.Errorf("归档被驳回的认领失败: %w", err)
			}
		}
		return tx.Create(ctx, claim)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateClaim
		}
		return nil, fmt.Errorf("创建认领失败: %w", err)
	}
	if rejected != nil {
		logger.Info("Archived rejected claim %d, resubmitted as %d", rejected.Id, claim.Id)
	}

	voters, err := l.tally.Voters(ctx, claim)
	if err != nil {
		logger.Error("Failed to load voters for claim %d: %v", claim.Id, err)
	}
	l.bus.Publish(ctx, &event.Event{
		Kind:       model.EventClaimSubmitted,
		IssueId:    issue.Id,
		ClaimId:    claim.Id,
		Actor:      userId,
		Recipients: voters,
		Data:       map[string]interface{}{"url": issue.Url, "evidence": evidence, "claimant": userId},
	})
	return claim, nil
}

// RecordVote 记录投票并按投票结果推进认领状态
func (l *ClaimLogic) RecordVote(ctx context.Context, voterId string, claimId int64, approved bool) (*VoteResult, error) {
	unlock := l.locks.Lock(keylock.ClaimKey(claimId))
	defer unlock()

	claim, err := l.store.GetClaim(ctx, claimId)
	if err != nil {
		return nil, notFound(err, "认领不存在")
	}
	if voterId == claim.UserId {
		return nil, fmt.Errorf("认领人不能投票: %w", ErrNoStanding)
	}
	if claim.Status.Decided() {
		return nil, ErrClaimClosed
	}

	voters, err := l.tally.Voters(ctx, claim)
	if err != nil {
		return nil, err
	}
	if !contains(voters, voterId) {
		return nil, ErrNoStanding
	}

	vote := &model.VoteModel{UserId: voterId, ClaimId: claim.Id, Approved: approved}
	if err := l.store.Create(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyVoted
		}
		return nil, fmt.Errorf("创建投票失败: %w", err)
	}
	l.bus.Publish(ctx, &event.Event{
		Kind:    model.EventVoteRecorded,
		IssueId: claim.IssueId,
		ClaimId: claim.Id,
		Actor:   voterId,
		Data:    map[string]interface{}{"approved": approved},
	})

	tally, voters, err := l.tally.Count(ctx, claim)
	if err != nil {
		return nil, err
	}
	if err := l.transition(ctx, claim, Evaluate(claim.Status, tally), tally, voters); err != nil {
		return nil, err
	}

	return &VoteResult{Vote: vote, Status: claim.Status, Tally: tally}, nil
}

// transition 条件更新状态，只有真正发生状态变化时才发布结果事件
func (l *ClaimLogic) transition(ctx context.Context, claim *model.ClaimModel, next model.ClaimStatus, tally Tally, voters []string) error {
	if next == claim.Status {
		return nil
	}

	changed, err := l.store.TransitionClaim(ctx, claim.Id, claim.Status, next)
	if err != nil {
		return err
	}
	if !changed {
		logger.Warn("Claim %d status changed concurrently, expected %s", claim.Id, claim.Status)
		current, err := l.store.GetClaim(ctx, claim.Id)
		if err != nil {
			return err
		}
		claim.Status = current.Status
		return nil
	}

	logger.Info("Claim %d: %s -> %s (approvals=%d rejections=%d needed=%d)",
		claim.Id, claim.Status, next, tally.Approvals, tally.Rejections, tally.OffersNeeded)
	claim.Status = next

	var kind model.EventKind
	switch next {
	case model.ClaimStatusApproved:
		kind = model.EventClaimApproved
	case model.ClaimStatusRejected:
		kind = model.EventClaimRejected
	default:
		return nil
	}

	recipients := append([]string{claim.UserId}, voters...)
	l.bus.Publish(ctx, &event.Event{
		Kind:       kind,
		IssueId:    claim.IssueId,
		ClaimId:    claim.Id,
		Actor:      claim.UserId,
		Recipients: recipients,
		Data: map[string]interface{}{
			"approvals":     tally.Approvals,
			"rejections":    tally.Rejections,
			"offers_needed": tally.OffersNeeded,
		},
	})
	return nil
}

// RequestPayout 向认领人打款，成功后认领置为已打款；失败可重试并复用同一令牌
func (l *ClaimLogic) RequestPayout(ctx context.Context, claimId int64) (*model.PayoutModel, error) {
	unlock := l.locks.Lock(keylock.ClaimKey(claimId))
	defer unlock()

	claim, err := l.store.GetClaim(ctx, claimId)
	if err != nil {
		return nil, notFound(err, "认领不存在")
	}
	if claim.Status == model.ClaimStatusPaid {
		return nil, ErrAlreadyPaid
	}
	if err := l.checkPayable(ctx, claim); err != nil {
		return nil, err
	}

	issue, err := l.store.GetIssue(ctx, claim.IssueId)
	if err != nil {
		return nil, notFound(err, "问题不存在")
	}

	payout, err := l.preparePayout(ctx, claim)
	if err != nil {
		return nil, err
	}
	if payout.Succeeded() {
		logger.Error("Payout %d for claim %d already succeeded but claim is %s", payout.Id, claim.Id, claim.Status)
		return payout, fmt.Errorf("claim %d has a successful payout: %w", claim.Id, ErrInvariant)
	}

	callCtx, cancel := context.WithTimeout(ctx, l.opts.GatewayTimeout)
	res, err := l.gw.Disburse(callCtx, gateway.DisburseRequest{
		Payee:  claim.UserId,
		Amount: payout.ChargeAmount,
		Token:  payout.TransactionKey,
		Note:   "Payout for fixing " + issue.Url,
	})
	cancel()

	attempts := payout.Attempts + 1
	if err != nil || !res.Success {
		msg := errorMessage(res.ErrorMessage, err)
		logger.Error("Payout %d for claim %d failed (attempt %d): %s", payout.Id, claim.Id, attempts, msg)

		if _, uerr := l.store.UpdateSilently(ctx, &model.PayoutModel{}, payout.Id, map[string]interface{}{
			"status":        model.PaymentStatusFailed,
			"error_message": msg,
			"attempts":      attempts,
		}); uerr != nil {
			logger.Error("Failed to record payout failure for payout %d: %v", payout.Id, uerr)
		}
		payout.Status = model.PaymentStatusFailed
		payout.ErrorMessage = msg
		payout.Attempts = attempts

		l.bus.Publish(ctx, &event.Event{
			Kind:    model.EventPayoutFailed,
			IssueId: claim.IssueId,
			ClaimId: claim.Id,
			Actor:   claim.UserId,
			Data:    map[string]interface{}{"payout_id": payout.Id, "attempts": attempts, "error": msg},
		})
		return payout, &GatewayError{Op: "disburse", Message: msg, Err: err}
	}

	paid := false
	err = l.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Update(ctx, &model.PayoutModel{}, payout.Id, map[string]interface{}{
			"status":        model.PaymentStatusSuccess,
			"confirmation":  res.Confirmation,
			"error_message": "",
			"attempts":      attempts,
		}); err != nil {
			return err
		}
		var err error
		paid, err = tx.MarkClaimPaid(ctx, claim.Id)
		return err
	})
	if err != nil {
		logger.Error("Payout %s for claim %d succeeded but was not recorded: %v", res.Confirmation, claim.Id, err)
		return payout, fmt.Errorf("记录打款结果失败: %w", err)
	}

	payout.Status = model.PaymentStatusSuccess
	payout.Confirmation = res.Confirmation
	payout.ErrorMessage = ""
	payout.Attempts = attempts

	if !paid {
		logger.Error("Payout %d for claim %d succeeded but claim was already Paid", payout.Id, claim.Id)
		return payout, fmt.Errorf("claim %d paid twice: %w", claim.Id, ErrInvariant)
	}
	claim.Status = model.ClaimStatusPaid
	logger.Info("Paid %s to %s for claim %d (%s)", payout.ChargeAmount, claim.UserId, claim.Id, res.Confirmation)

	l.bus.Publish(ctx, &event.Event{
		Kind:       model.EventClaimPaid,
		IssueId:    claim.IssueId,
		ClaimId:    claim.Id,
		Actor:      claim.UserId,
		Recipients: []string{claim.UserId},
		Data: map[string]interface{}{
			"url":          issue.Url,
			"net_payout":   payout.ChargeAmount.StringFixed(2),
			"confirmation": res.Confirmation,
		},
	})
	return payout, nil
}

// checkPayable 已通过，或没有投票人时未决的认领可以直接打款
func (l *ClaimLogic) checkPayable(ctx context.Context, claim *model.ClaimModel) error {
	switch claim.Status {
	case model.ClaimStatusApproved:
		return nil
	case model.ClaimStatusSubmitted, model.ClaimStatusPending:
		voters, err := l.tally.Voters(ctx, claim)
		if err != nil {
			return err
		}
		if len(voters) == 0 {
			return nil
		}
	}
	return ErrClaimNotApproved
}

// preparePayout 获取或创建认领唯一的打款记录，费用明细只在创建时计算
func (l *ClaimLogic) preparePayout(ctx context.Context, claim *model.ClaimModel) (*model.PayoutModel, error) {
	payout, err := l.store.PayoutByClaim(ctx, claim.Id)
	if err == nil {
		return payout, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	bid, err := l.store.FindBidByIssue(ctx, claim.UserId, claim.IssueId)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoAsk
		}
		return nil, err
	}
	if !bid.HasAsk() {
		return nil, ErrNoAsk
	}

	credit, err := l.RefundCredit(ctx, claim)
	if err != nil {
		return nil, err
	}
	breakdown, err := l.calc.Payout(bid.Ask, credit)
	if err != nil {
		return nil, err
	}

	fees := []model.FeeModel{
		{FeeType: model.FeeTypeProcessor, Amount: breakdown.GatewayFee, Description: "Payout fee"},
		{FeeType: model.FeeTypePlatform, Amount: breakdown.PlatformFee, Description: "Platform fee"},
	}
	if credit.IsPositive() {
		fees = append(fees, model.FeeModel{FeeType: model.FeeTypeRefund, Amount: credit, Description: "Your offer"})
	}

	payout = &model.PayoutModel{
		ClaimId:        claim.Id,
		UserId:         claim.UserId,
		Amount:         breakdown.Amount,
		ChargeAmount:   breakdown.NetPayout,
		Status:         model.PaymentStatusPending,
		TransactionKey: gateway.NewToken(),
		Fees:           fees,
	}
	if err := l.store.Create(ctx, payout); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return l.store.PayoutByClaim(ctx, claim.Id)
		}
		return nil, fmt.Errorf("创建打款记录失败: %w", err)
	}
	return payout, nil
}

// RefundCredit 退还认领人自己的成功出资，范围由 RefundScope 决定
func (l *ClaimLogic) RefundCredit(ctx context.Context, claim *model.ClaimModel) (decimal.Decimal, error) {
	var issueId int64
	if l.opts.RefundScope == RefundScopeIssue {
		issueId = claim.IssueId
	}
	return l.store.FundedByUser(ctx, claim.UserId, issueId)
}

// RetryFailedPayouts 重试未成功的打款（含进程中断遗留的待处理记录），返回成功数量
func (l *ClaimLogic) RetryFailedPayouts(ctx context.Context, maxAttempts int) (int, error) {
	payouts, err := l.store.FailedPayouts(ctx, maxAttempts)
	if err != nil {
		return 0, err
	}

	succeeded := 0
	for _, p := range payouts {
		if _, err := l.RequestPayout(ctx, p.ClaimId); err != nil {
			logger.Warn("Retry payout for claim %d failed: %v", p.ClaimId, err)
			continue
		}
		succeeded++
	}
	return succeeded, nil
}

// GetClaim 获取认领详情
func (l *ClaimLogic) GetClaim(ctx context.Context, id int64) (*ClaimDetail, error) {
	claim, err := l.store.GetClaim(ctx, id)
	if err != nil {
		return nil, notFound(err, "认领不存在")
	}
	votes, err := l.store.VotesByClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	tally, _, err := l.tally.Count(ctx, claim)
	if err != nil {
		return nil, err
	}

	detail := &ClaimDetail{
		Claim:   claim,
		Votes:   votes,
		Tally:   tally,
		Expires: l.Expires(claim),
		Stale:   claim.IsStale(l.opts.Now(), l.opts.ClaimExpiry),
	}
	payout, err := l.store.PayoutByClaim(ctx, id)
	switch {
	case err == nil:
		detail.Payout = payout
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	return detail, nil
}

// Expires 认领过期时间
func (l *ClaimLogic) Expires(claim *model.ClaimModel) time.Time {
	return claim.Expires(l.opts.ClaimExpiry)
}

// NeedsVoteFrom 用户是否需要对认领投票
func (l *ClaimLogic) NeedsVoteFrom(ctx context.Context, claimId int64, userId string) (bool, error) {
	claim, err := l.store.GetClaim(ctx, claimId)
	if err != nil {
		return false, notFound(err, "认领不存在")
	}
	return l.tally.NeedsVoteFrom(ctx, claim, userId)
}

// StaleClaims 已过期但仍未决的认领
func (l *ClaimLogic) StaleClaims(ctx context.Context) ([]model.ClaimModel, error) {
	claims, err := l.store.ClaimsByStatus(ctx, model.ClaimStatusSubmitted, model.ClaimStatusPending)
	if err != nil {
		return nil, err
	}

	now := l.opts.Now()
	stale := make([]model.ClaimModel, 0)
	for i := range claims {
		if claims[i].IsStale(now, l.opts.ClaimExpiry) {
			stale = append(stale, claims[i])
		}
	}
	return stale, nil
}
