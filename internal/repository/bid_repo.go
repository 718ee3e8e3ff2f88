package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/bounty/internal/model"
	"github.com/shopspring/decimal"
)

// GetOrCreateIssue 按 URL 获取问题，不存在时创建
func (s *Store) GetOrCreateIssue(ctx context.Context, url string) (*model.IssueModel, error) {
	var issue model.IssueModel
	err := s.first(ctx, &issue, "url = ?", url)
	if err == nil {
		return &issue, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	issue = model.IssueModel{Url: url, State: model.IssueStateUnknown}
	if err := s.Create(ctx, &issue); err != nil {
		// 并发创建时读取已存在的记录
		if errors.Is(err, ErrDuplicate) {
			return s.GetIssueByUrl(ctx, url)
		}
		return nil, fmt.Errorf("创建问题失败: %w", err)
	}
	return &issue, nil
}

// GetIssue 按 ID 获取问题
func (s *Store) GetIssue(ctx context.Context, id int64) (*model.IssueModel, error) {
	var issue model.IssueModel
	if err := s.first(ctx, &issue, "id = ?", id); err != nil {
		return nil, err
	}
	return &issue, nil
}

// GetIssueByUrl 按 URL 获取问题
func (s *Store) GetIssueByUrl(ctx context.Context, url string) (*model.IssueModel, error) {
	var issue model.IssueModel
	if err := s.first(ctx, &issue, "url = ?", url); err != nil {
		return nil, err
	}
	return &issue, nil
}

// GetBid 按 ID 获取出价
func (s *Store) GetBid(ctx context.Context, id int64) (*model.BidModel, error) {
	var bid model.BidModel
	if err := s.first(ctx, &bid, "id = ?", id); err != nil {
		return nil, err
	}
	return &bid, nil
}

// FindBid 按用户和 URL 获取出价
func (s *Store) FindBid(ctx context.Context, userId, url string) (*model.BidModel, error) {
	var bid model.BidModel
	if err := s.first(ctx, &bid, "user_id = ? AND url = ?", userId, url); err != nil {
		return nil, err
	}
	return &bid, nil
}

// FindBidByIssue 按用户和问题获取出价
func (s *Store) FindBidByIssue(ctx context.Context, userId string, issueId int64) (*model.BidModel, error) {
	var bid model.BidModel
	if err := s.first(ctx, &bid, "user_id = ? AND issue_id = ?", userId, issueId); err != nil {
		return nil, err
	}
	return &bid, nil
}

// BidsByUrl 同一问题 URL 下的全部出价
func (s *Store) BidsByUrl(ctx context.Context, url string) ([]model.BidModel, error) {
	var bids []model.BidModel
	if err := s.conn(ctx).Where("url = ?", url).Order("id ASC").Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("获取出价列表失败: %w", err)
	}
	return bids, nil
}

// FundedBids 问题下已有成功扣款的出价，排除指定用户
func (s *Store) FundedBids(ctx context.Context, issueId int64, excludeUserId string) ([]model.BidModel, error) {
	var bids []model.BidModel
	if err := s.conn(ctx).
		Where("issue_id = ? AND user_id <> ? AND offer > 0", issueId, excludeUserId).
		Order("id ASC").
		Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("获取已出资列表失败: %w", err)
	}
	return bids, nil
}

// UnnotifiedAskBids 设置了要价但尚未发送达成通知的出价
func (s *Store) UnnotifiedAskBids(ctx context.Context, url string) ([]model.BidModel, error) {
	var bids []model.BidModel
	query := s.conn(ctx).Where("ask_match_sent IS NULL AND ask > 0")
	if url != "" {
		query = query.Where("url = ?", url)
	}
	if err := query.Order("id ASC").Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("获取待通知出价失败: %w", err)
	}
	return bids, nil
}

// OthersFunded 同一 URL 下其他用户的成功扣款总额
func (s *Store) OthersFunded(ctx context.Context, url, excludeUserId string) (decimal.Decimal, error) {
	var bids []model.BidModel
	if err := s.conn(ctx).
		Select("offer").
		Where("url = ? AND user_id <> ?", url, excludeUserId).
		Find(&bids).Error; err != nil {
		return decimal.Zero, fmt.Errorf("获取出资总额失败: %w", err)
	}

	total := decimal.Zero
	for _, b := range bids {
		total = total.Add(b.Offer)
	}
	return total, nil
}

// MarkAskMatchSent 记录要价达成通知时间，已记录过时返回 false
func (s *Store) MarkAskMatchSent(ctx context.Context, bidId int64, at time.Time) (bool, error) {
	result := s.conn(ctx).Model(&model.BidModel{}).
		Where("id = ? AND ask_match_sent IS NULL", bidId).
		UpdateColumn("ask_match_sent", at)
	if result.Error != nil {
		return false, fmt.Errorf("silent update failed: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
