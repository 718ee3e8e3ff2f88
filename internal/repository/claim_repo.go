package repository

import (
	"context"
	"fmt"

	"github.com/blues/bounty/internal/model"
)

// GetClaim 按 ID 获取认领
func (s *Store) GetClaim(ctx context.Context, id int64) (*model.ClaimModel, error) {
	var claim model.ClaimModel
	if err := s.first(ctx, &claim, "id = ?", id); err != nil {
		return nil, err
	}
	return &claim, nil
}

// FindClaim 按认领人和问题获取未归档的认领
func (s *Store) FindClaim(ctx context.Context, userId string, issueId int64) (*model.ClaimModel, error) {
	var claim model.ClaimModel
	if err := s.first(ctx, &claim, "user_id = ? AND issue_id = ?", userId, issueId); err != nil {
		return nil, err
	}
	return &claim, nil
}

// ClaimsByIssue 问题下未归档的认领
func (s *Store) ClaimsByIssue(ctx context.Context, issueId int64) ([]model.ClaimModel, error) {
	var claims []model.ClaimModel
	if err := s.conn(ctx).Where("issue_id = ?", issueId).Order("id ASC").Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("获取认领列表失败: %w", err)
	}
	return claims, nil
}

// ClaimsByStatus 指定状态的认领
func (s *Store) ClaimsByStatus(ctx context.Context, statuses ...model.ClaimStatus) ([]model.ClaimModel, error) {
	var claims []model.ClaimModel
	if err := s.conn(ctx).Where("status IN ?", statuses).Order("id ASC").Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("获取认领列表失败: %w", err)
	}
	return claims, nil
}

// TransitionClaim 条件更新认领状态，只有当前状态等于 from 时生效，返回是否更新
func (s *Store) TransitionClaim(ctx context.Context, id int64, from, to model.ClaimStatus) (bool, error) {
	result := s.conn(ctx).Model(&model.ClaimModel{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("更新认领状态失败: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkClaimPaid 将认领置为已打款，已打款时不更新
func (s *Store) MarkClaimPaid(ctx context.Context, id int64) (bool, error) {
	result := s.conn(ctx).Model(&model.ClaimModel{}).
		Where("id = ? AND status <> ?", id, model.ClaimStatusPaid).
		Update("status", model.ClaimStatusPaid)
	if result.Error != nil {
		return false, fmt.Errorf("更新认领状态失败: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ArchiveClaim 软删除被驳回的认领，为重新提交让出唯一键
func (s *Store) ArchiveClaim(ctx context.Context, id int64) error {
	result := s.conn(ctx).
		Where("id = ? AND status = ?", id, model.ClaimStatusRejected).
		Delete(&model.ClaimModel{})
	if result.Error != nil {
		return fmt.Errorf("归档认领失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// VotesByClaim 认领下的全部投票
func (s *Store) VotesByClaim(ctx context.Context, claimId int64) ([]model.VoteModel, error) {
	var votes []model.VoteModel
	if err := s.conn(ctx).Where("claim_id = ?", claimId).Order("id ASC").Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("获取投票列表失败: %w", err)
	}
	return votes, nil
}

// FindVote 按投票人和认领获取投票
func (s *Store) FindVote(ctx context.Context, userId string, claimId int64) (*model.VoteModel, error) {
	var vote model.VoteModel
	if err := s.first(ctx, &vote, "user_id = ? AND claim_id = ?", userId, claimId); err != nil {
		return nil, err
	}
	return &vote, nil
}
