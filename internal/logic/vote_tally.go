package logic

import (
	"context"
	"errors"

	"github.com/blues/bounty/internal/model"
	"github.com/blues/bounty/internal/repository"
)

// Tally 投票计数
type Tally struct {
	OffersNeeded int `json:"offers_needed"` // 有投票资格的出资人数
	Approvals    int `json:"approvals"`
	Rejections   int `json:"rejections"`
}

// VotesCast 已投票数
func (t Tally) VotesCast() int {
	return t.Approvals + t.Rejections
}

// Evaluate 按 待定 -> 通过 -> 驳回 的顺序计算投票后的状态
//
// 没有投票人时不会自动通过或驳回，只能直接申请打款。
func Evaluate(current model.ClaimStatus, t Tally) model.ClaimStatus {
	if current.Decided() {
		return current
	}

	status := current
	if t.VotesCast() > 0 {
		status = model.ClaimStatusPending
	}
	if t.OffersNeeded > 0 && t.Approvals == t.OffersNeeded {
		status = model.ClaimStatusApproved
	}
	if t.OffersNeeded > 0 && t.Rejections*2 >= t.OffersNeeded {
		status = model.ClaimStatusRejected
	}
	return status
}

// VoteTally 投票资格与计数
type VoteTally struct {
	store *repository.Store
}

// NewVoteTally 创建投票计数
func NewVoteTally(store *repository.Store) *VoteTally {
	return &VoteTally{store: store}
}

// Voters 问题上有成功扣款的出资人，不含认领人；每次重新计算
func (v *VoteTally) Voters(ctx context.Context, claim *model.ClaimModel) ([]string, error) {
	bids, err := v.store.FundedBids(ctx, claim.IssueId, claim.UserId)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(bids))
	voters := make([]string, 0, len(bids))
	for _, b := range bids {
		if seen[b.UserId] {
			continue
		}
		seen[b.UserId] = true
		voters = append(voters, b.UserId)
	}
	return voters, nil
}

// Count 统计当前投票人中的赞成与反对票
func (v *VoteTally) Count(ctx context.Context, claim *model.ClaimModel) (Tally, []string, error) {
	voters, err := v.Voters(ctx, claim)
	if err != nil {
		return Tally{}, nil, err
	}
	votes, err := v.store.VotesByClaim(ctx, claim.Id)
	if err != nil {
		return Tally{}, nil, err
	}

	eligible := make(map[string]bool, len(voters))
	for _, u := range voters {
		eligible[u] = true
	}

	t := Tally{OffersNeeded: len(voters)}
	for _, vote := range votes {
		if vote.UserId == claim.UserId || !eligible[vote.UserId] {
			continue
		}
		if vote.Approved {
			t.Approvals++
		} else {
			t.Rejections++
		}
	}
	return t, voters, nil
}

// NeedsVoteFrom 用户尚未投票且在该问题上有成功扣款
func (v *VoteTally) NeedsVoteFrom(ctx context.Context, claim *model.ClaimModel, userId string) (bool, error) {
	if userId == claim.UserId {
		return false, nil
	}
	_, err := v.store.FindVote(ctx, userId, claim.Id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	bid, err := v.store.FindBidByIssue(ctx, userId, claim.IssueId)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bid.Funded(), nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
