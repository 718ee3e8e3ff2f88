package repository

import (
	"context"
	"fmt"

	"github.com/blues/bounty/internal/model"
	"github.com/shopspring/decimal"
)

// GetOffer 获取扣款记录及费用明细
func (s *Store) GetOffer(ctx context.Context, id int64) (*model.OfferModel, error) {
	var offer model.OfferModel
	if err := translate(s.conn(ctx).Preload("Fees").First(&offer, id).Error); err != nil {
		return nil, err
	}
	return &offer, nil
}

// OffersByBid 出价下的全部扣款
func (s *Store) OffersByBid(ctx context.Context, bidId int64) ([]model.OfferModel, error) {
	var offers []model.OfferModel
	if err := s.conn(ctx).Preload("Fees").Where("bid_id = ?", bidId).Order("id ASC").Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("获取扣款记录失败: %w", err)
	}
	return offers, nil
}

// FundedByBid 出价下成功扣款的出资总额
func (s *Store) FundedByBid(ctx context.Context, bidId int64) (decimal.Decimal, error) {
	var offers []model.OfferModel
	if err := s.conn(ctx).
		Select("amount").
		Where("bid_id = ? AND status = ?", bidId, model.PaymentStatusSuccess).
		Find(&offers).Error; err != nil {
		return decimal.Zero, fmt.Errorf("获取出资总额失败: %w", err)
	}
	return sumOffers(offers), nil
}

// FundedByUser 用户成功扣款的出资总额，issueId 为 0 时统计全部问题
func (s *Store) FundedByUser(ctx context.Context, userId string, issueId int64) (decimal.Decimal, error) {
	var offers []model.OfferModel
	query := s.conn(ctx).
		Select("offer.amount").
		Where("offer.user_id = ? AND offer.status = ?", userId, model.PaymentStatusSuccess)
	if issueId > 0 {
		query = query.Joins("JOIN bid ON bid.id = offer.bid_id").Where("bid.issue_id = ?", issueId)
	}
	if err := query.Find(&offers).Error; err != nil {
		return decimal.Zero, fmt.Errorf("获取用户出资总额失败: %w", err)
	}
	return sumOffers(offers), nil
}

func sumOffers(offers []model.OfferModel) decimal.Decimal {
	total := decimal.Zero
	for _, o := range offers {
		total = total.Add(o.Amount)
	}
	return total
}

// GetPayout 获取打款记录及费用明细
func (s *Store) GetPayout(ctx context.Context, id int64) (*model.PayoutModel, error) {
	var payout model.PayoutModel
	if err := translate(s.conn(ctx).Preload("Fees").First(&payout, id).Error); err != nil {
		return nil, err
	}
	return &payout, nil
}

// PayoutByClaim 认领对应的打款记录
func (s *Store) PayoutByClaim(ctx context.Context, claimId int64) (*model.PayoutModel, error) {
	var payout model.PayoutModel
	if err := translate(s.conn(ctx).Preload("Fees").Where("claim_id = ?", claimId).First(&payout).Error); err != nil {
		return nil, err
	}
	return &payout, nil
}

// FailedPayouts 打款失败且重试次数未超过上限的记录
func (s *Store) FailedPayouts(ctx context.Context, maxAttempts int) ([]model.PayoutModel, error) {
	var payouts []model.PayoutModel
	if err := s.conn(ctx).
		Where("status <> ? AND attempts < ?", model.PaymentStatusSuccess, maxAttempts).
		Order("id ASC").
		Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("获取失败打款记录失败: %w", err)
	}
	return payouts, nil
}
