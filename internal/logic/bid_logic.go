package logic

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/blues/bounty/internal/event"
	"github.com/blues/bounty/internal/fee"
	"github.com/blues/bounty/internal/gateway"
	"github.com/blues/bounty/internal/keylock"
	"github.com/blues/bounty/internal/logger"
	"github.com/blues/bounty/internal/model"
	"github.com/blues/bounty/internal/repository"
	"github.com/shopspring/decimal"
)

// BidLogic 出价与扣款业务逻辑
type BidLogic struct {
	store *repository.Store
	calc  *fee.Calculator
	gw    gateway.Gateway
	bus   *event.Bus
	locks *keylock.Locker
	opts  Options
}

// NewBidLogic 创建出价业务逻辑
func NewBidLogic(
	store *repository.Store,
	calc *fee.Calculator,
	gw gateway.Gateway,
	bus *event.Bus,
	locks *keylock.Locker,
	opts Options,
) *BidLogic {
	return &BidLogic{
		store: store,
		calc:  calc,
		gw:    gw,
		bus:   bus,
		locks: locks,
		opts:  opts.withDefaults(),
	}
}

// BidResult 出价结果，Offer 为空表示本次没有新的扣款
type BidResult struct {
	Bid   *model.BidModel   `json:"bid"`
	Offer *model.OfferModel `json:"offer,omitempty"`
}

// BidDetail 出价详情
type BidDetail struct {
	Bid    *model.BidModel    `json:"bid"`
	Offers []model.OfferModel `json:"offers"`
	AskMet bool               `json:"ask_met"`
}

// ActionableClaims 用户在某出价对应问题上可操作的认领
type ActionableClaims struct {
	OwnClaim    *model.ClaimModel  `json:"own_claim"`    // 可申请打款
	OtherClaims []model.ClaimModel `json:"other_claims"` // 可投票
}

// PlaceBid 创建或更新出价，offer 大于已扣款金额时对差额扣款
func (l *BidLogic) PlaceBid(ctx context.Context, userId, url string, ask, offer decimal.Decimal) (*BidResult, error) {
	if userId == "" || url == "" {
		return nil, fmt.Errorf("用户和问题地址不能为空: %w", ErrInvalidArgument)
	}
	if ask.IsNegative() || !ask.Equal(ask.Round(2)) || offer.IsNegative() {
		return nil, ErrInvalidAmount
	}

	issue, err := l.store.GetOrCreateIssue(ctx, url)
	if err != nil {
		return nil, err
	}

	bid, err := l.upsertBid(ctx, userId, issue, ask)
	if err != nil {
		return nil, err
	}
	result := &BidResult{Bid: bid}

	if offer.IsPositive() {
		o, err := l.MakeOffer(ctx, bid.Id, offer)
		switch {
		case errors.Is(err, ErrNothingToCharge):
			logger.Debug("Bid %d already funded up to %s", bid.Id, offer)
		case err != nil:
			result.Offer = o
			return result, err
		default:
			result.Offer = o
		}
	}
	if result.Offer == nil {
		// 扣款成功时已检查过，仅修改要价时在这里检查
		l.NotifyMatchingAskers(ctx, url)
	}

	if result.Bid, err = l.store.GetBid(ctx, bid.Id); err != nil {
		return result, err
	}
	return result, nil
}

func (l *BidLogic) upsertBid(ctx context.Context, userId string, issue *model.IssueModel, ask decimal.Decimal) (*model.BidModel, error) {
	bid, err := l.store.FindBid(ctx, userId, issue.Url)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if bid == nil {
		candidate := &model.BidModel{UserId: userId, Url: issue.Url, IssueId: issue.Id, Title: issue.Title, Ask: ask}
		ok, err := l.claimsAllowBid(ctx, userId, issue.Id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotBiddable
		}
		if err := l.store.Create(ctx, candidate); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return l.store.FindBid(ctx, userId, issue.Url)
			}
			return nil, fmt.Errorf("创建出价失败: %w", err)
		}
		l.bus.Publish(ctx, &event.Event{
			Kind:    model.EventBidPlaced,
			IssueId: issue.Id,
			BidId:   candidate.Id,
			Actor:   userId,
			Data:    map[string]interface{}{"url": issue.Url, "ask": ask.StringFixed(2)},
		})
		return candidate, nil
	}

	unlock := l.locks.Lock(keylock.BidKey(bid.Id))
	defer unlock()

	ok, err := l.IsBiddableBy(ctx, userId, bid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotBiddable
	}
	if !bid.Ask.Equal(ask) {
		if err := l.store.Update(ctx, &model.BidModel{}, bid.Id, map[string]interface{}{"ask": ask}); err != nil {
			return nil, fmt.Errorf("更新要价失败: %w", err)
		}
		bid.Ask = ask
	}
	return bid, nil
}

// GetBid 获取出价详情
func (l *BidLogic) GetBid(ctx context.Context, id int64) (*BidDetail, error) {
	bid, err := l.store.GetBid(ctx, id)
	if err != nil {
		return nil, notFound(err, "出价不存在")
	}
	offers, err := l.store.OffersByBid(ctx, id)
	if err != nil {
		return nil, err
	}
	met, err := l.AskMet(ctx, bid)
	if err != nil {
		return nil, err
	}
	return &BidDetail{Bid: bid, Offers: offers, AskMet: met}, nil
}

// AskMet 同一问题上其他出资人的成功扣款总额是否达到要价，未设置要价时为 false
func (l *BidLogic) AskMet(ctx context.Context, bid *model.BidModel) (bool, error) {
	if !bid.HasAsk() {
		return false, nil
	}
	others, err := l.store.OthersFunded(ctx, bid.Url, bid.UserId)
	if err != nil {
		return false, err
	}
	return others.GreaterThanOrEqual(bid.Ask), nil
}

// IsBiddableBy 用户当前能否在该出价对应的问题上出价
func (l *BidLogic) IsBiddableBy(ctx context.Context, userId string, bid *model.BidModel) (bool, error) {
	if userId == bid.UserId {
		met, err := l.AskMet(ctx, bid)
		if err != nil {
			return false, err
		}
		if met {
			return false, nil
		}
	}

	return l.claimsAllowBid(ctx, userId, bid.IssueId)
}

// checkBiddable 出价人当前不能出价时返回 ErrNotBiddable，调用方持有出价锁
func (l *BidLogic) checkBiddable(ctx context.Context, bid *model.BidModel) error {
	ok, err := l.IsBiddableBy(ctx, bid.UserId, bid)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotBiddable
	}
	return nil
}

// claimsAllowBid 问题上的认领状态是否允许该用户出价
func (l *BidLogic) claimsAllowBid(ctx context.Context, userId string, issueId int64) (bool, error) {
	claims, err := l.actionableClaims(ctx, userId, issueId)
	if err != nil {
		return false, err
	}
	if own := claims.OwnClaim; own != nil {
		// 被驳回后允许重新出价
		if own.Status == model.ClaimStatusRejected {
			return true, nil
		}
		if own.Status.Locked() {
			return false, nil
		}
	}
	for _, other := range claims.OtherClaims {
		if other.Status.Locked() {
			return false, nil
		}
	}
	return true, nil
}

// ActionableClaims 用户在出价对应问题上可操作的认领
func (l *BidLogic) ActionableClaims(ctx context.Context, userId string, bidId int64) (*ActionableClaims, error) {
	bid, err := l.store.GetBid(ctx, bidId)
	if err != nil {
		return nil, notFound(err, "出价不存在")
	}
	return l.actionableClaims(ctx, userId, bid.IssueId)
}

func (l *BidLogic) actionableClaims(ctx context.Context, userId string, issueId int64) (*ActionableClaims, error) {
	claims, err := l.store.ClaimsByIssue(ctx, issueId)
	if err != nil {
		return nil, err
	}

	result := &ActionableClaims{OtherClaims: []model.ClaimModel{}}
	for i := range claims {
		if claims[i].UserId == userId {
			result.OwnClaim = &claims[i]
			continue
		}
		result.OtherClaims = append(result.OtherClaims, claims[i])
	}
	return result, nil
}

// MakeOffer 对出价扣款，只扣取超出已成功扣款总额的部分
func (l *BidLogic) MakeOffer(ctx context.Context, bidId int64, amount decimal.Decimal) (*model.OfferModel, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return nil, ErrInvalidAmount
	}

	unlock := l.locks.Lock(keylock.BidKey(bidId))
	defer unlock()

	bid, err := l.store.GetBid(ctx, bidId)
	if err != nil {
		return nil, notFound(err, "出价不存在")
	}
	if err := l.checkBiddable(ctx, bid); err != nil {
		return nil, err
	}

	funded, err := l.store.FundedByBid(ctx, bid.Id)
	if err != nil {
		return nil, err
	}
	if amount.LessThanOrEqual(funded) {
		return nil, fmt.Errorf("已扣款 %s，出资 %s: %w", funded.StringFixed(2), amount.StringFixed(2), ErrNothingToCharge)
	}

	increment := amount.Sub(funded)
	breakdown, err := l.calc.Charge(increment)
	if err != nil {
		return nil, err
	}

	offer := &model.OfferModel{
		BidId:          bid.Id,
		UserId:         bid.UserId,
		Amount:         increment,
		ChargeAmount:   breakdown.TotalCharge,
		Status:         model.PaymentStatusPending,
		TransactionKey: gateway.NewToken(),
		Fees: []model.FeeModel{
			{FeeType: model.FeeTypePlatform, Amount: breakdown.PlatformFee, Description: "Platform fee"},
			{FeeType: model.FeeTypeProcessor, Amount: breakdown.ProcessorFee, Description: "Processor fee"},
		},
	}
	if err := l.store.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("创建扣款记录失败: %w", err)
	}

	return l.chargeOffer(ctx, bid, offer)
}

// GetOffer 获取扣款记录
func (l *BidLogic) GetOffer(ctx context.Context, id int64) (*model.OfferModel, error) {
	offer, err := l.store.GetOffer(ctx, id)
	if err != nil {
		return nil, notFound(err, "扣款记录不存在")
	}
	return offer, nil
}

// RetryOffer 使用原令牌重试失败的扣款
func (l *BidLogic) RetryOffer(ctx context.Context, offerId int64) (*model.OfferModel, error) {
	offer, err := l.store.GetOffer(ctx, offerId)
	if err != nil {
		return nil, notFound(err, "扣款记录不存在")
	}

	unlock := l.locks.Lock(keylock.BidKey(offer.BidId))
	defer unlock()

	// 加锁后重新读取
	if offer, err = l.store.GetOffer(ctx, offerId); err != nil {
		return nil, err
	}
	if offer.Succeeded() {
		return offer, ErrAlreadyCharged
	}

	offers, err := l.store.OffersByBid(ctx, offer.BidId)
	if err != nil {
		return nil, err
	}
	// 只允许重试最新一笔扣款
	for _, o := range offers {
		if o.Id > offer.Id {
			return nil, fmt.Errorf("扣款 %d 已被后续扣款 %d 取代: %w", offer.Id, o.Id, ErrNothingToCharge)
		}
	}

	bid, err := l.store.GetBid(ctx, offer.BidId)
	if err != nil {
		return nil, err
	}
	if err := l.checkBiddable(ctx, bid); err != nil {
		return nil, err
	}
	return l.chargeOffer(ctx, bid, offer)
}

// chargeOffer 调用通道扣款并记录结果，调用方持有出价锁
func (l *BidLogic) chargeOffer(ctx context.Context, bid *model.BidModel, offer *model.OfferModel) (*model.OfferModel, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.opts.GatewayTimeout)
	res, err := l.gw.Charge(callCtx, gateway.ChargeRequest{
		Payer:  offer.UserId,
		Amount: offer.ChargeAmount,
		Token:  offer.TransactionKey,
		Metadata: map[string]string{
			"offer_id": strconv.FormatInt(offer.Id, 10),
			"url":      bid.Url,
		},
	})
	cancel()

	if err != nil || !res.Success {
		msg := errorMessage(res.ErrorMessage, err)
		logger.Warn("Charge for offer %d (bid %d) failed: %s", offer.Id, bid.Id, msg)

		if _, uerr := l.store.UpdateSilently(ctx, &model.OfferModel{}, offer.Id, map[string]interface{}{
			"status":        model.PaymentStatusFailed,
			"error_message": msg,
		}); uerr != nil {
			logger.Error("Failed to record charge failure for offer %d: %v", offer.Id, uerr)
		}
		offer.Status = model.PaymentStatusFailed
		offer.ErrorMessage = msg

		l.bus.Publish(ctx, &event.Event{
			Kind:    model.EventOfferFailed,
			IssueId: bid.IssueId,
			BidId:   bid.Id,
			Actor:   offer.UserId,
			Data:    map[string]interface{}{"offer_id": offer.Id, "error": msg},
		})
		return offer, &GatewayError{Op: "charge", Message: msg, Err: err}
	}

	var funded decimal.Decimal
	err = l.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Update(ctx, &model.OfferModel{}, offer.Id, map[string]interface{}{
			"status":        model.PaymentStatusSuccess,
			"confirmation":  res.Confirmation,
			"error_message": "",
		}); err != nil {
			return err
		}

		total, err := tx.FundedByBid(ctx, bid.Id)
		if err != nil {
			return err
		}
		funded = total
		// 出资总额是派生字段，走簿记写入
		_, err = tx.UpdateSilently(ctx, &model.BidModel{}, bid.Id, map[string]interface{}{"offer": total})
		return err
	})
	if err != nil {
		logger.Error("Charge %s succeeded but offer %d was not recorded: %v", res.Confirmation, offer.Id, err)
		return offer, fmt.Errorf("记录扣款结果失败: %w", err)
	}

	offer.Status = model.PaymentStatusSuccess
	offer.Confirmation = res.Confirmation
	offer.ErrorMessage = ""
	bid.Offer = funded
	logger.Info("Charged %s for offer %d on bid %d, funded total %s", offer.ChargeAmount, offer.Id, bid.Id, funded)

	l.bus.Publish(ctx, &event.Event{
		Kind:    model.EventOfferCharged,
		IssueId: bid.IssueId,
		BidId:   bid.Id,
		Actor:   offer.UserId,
		Data: map[string]interface{}{
			"offer_id":      offer.Id,
			"amount":        offer.Amount.StringFixed(2),
			"charge_amount": offer.ChargeAmount.StringFixed(2),
			"confirmation":  res.Confirmation,
		},
	})

	l.NotifyMatchingAskers(ctx, bid.Url)
	return offer, nil
}

// NotifyMatchingAskers 对新达成要价的出价发送一次通知，url 为空时检查全部，返回通知数量
func (l *BidLogic) NotifyMatchingAskers(ctx context.Context, url string) int {
	bids, err := l.store.UnnotifiedAskBids(ctx, url)
	if err != nil {
		logger.Error("Failed to load unnotified asks for %q: %v", url, err)
		return 0
	}

	notified := 0
	for i := range bids {
		bid := &bids[i]
		met, err := l.AskMet(ctx, bid)
		if err != nil {
			logger.Error("Failed to evaluate ask for bid %d: %v", bid.Id, err)
			continue
		}
		if !met {
			continue
		}

		// 条件更新保证每次达成只通知一次
		marked, err := l.store.MarkAskMatchSent(ctx, bid.Id, l.opts.Now())
		if err != nil {
			logger.Error("Failed to mark ask match for bid %d: %v", bid.Id, err)
			continue
		}
		if !marked {
			continue
		}

		l.bus.Publish(ctx, &event.Event{
			Kind:       model.EventAskMet,
			IssueId:    bid.IssueId,
			BidId:      bid.Id,
			Actor:      bid.UserId,
			Recipients: []string{bid.UserId},
			Data:       map[string]interface{}{"url": bid.Url, "ask": bid.Ask.StringFixed(2)},
		})
		notified++
	}
	return notified
}
