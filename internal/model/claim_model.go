package model

import (
	"time"

	"gorm.io/gorm"
)

// ClaimStatus 认领状态
type ClaimStatus string

const (
	ClaimStatusSubmitted ClaimStatus = "Submitted" // 已提交
	ClaimStatusPending   ClaimStatus = "Pending"   // 投票中
	ClaimStatusApproved  ClaimStatus = "Approved"  // 已通过
	ClaimStatusRejected  ClaimStatus = "Rejected"  // 已驳回
	ClaimStatusPaid      ClaimStatus = "Paid"      // 已打款
)

// Locked 该状态下同一问题不允许新的出价或竞争认领
func (s ClaimStatus) Locked() bool {
	switch s {
	case ClaimStatusSubmitted, ClaimStatusPending, ClaimStatusApproved, ClaimStatusPaid:
		return true
	}
	return false
}

// Decided 投票是否已有结论
func (s ClaimStatus) Decided() bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected || s == ClaimStatusPaid
}

// ClaimModel 修复者对问题的认领
//
// 被驳回的认领在重新提交时软删除归档，唯一索引只约束未删除的记录。
type ClaimModel struct {
	Id        int64          `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	IssueId  int64       `json:"issue_id" gorm:"not null;uniqueIndex:idx_claim_user_issue,where:deleted_at IS NULL"`
	UserId   string      `json:"user_id" gorm:"not null;size:128;uniqueIndex:idx_claim_user_issue"`
	Evidence string      `json:"evidence" gorm:"size:512"`
	Title    string      `json:"title"`
	Status   ClaimStatus `json:"status" gorm:"not null;default:'Submitted';index"`
}

// TableName 自定义表名
func (ClaimModel) TableName() string {
	return "claim"
}

// Expires 认领过期时间
func (c *ClaimModel) Expires(window time.Duration) time.Time {
	return c.CreatedAt.Add(window)
}

// IsStale 未结束的认领是否已过期
func (c *ClaimModel) IsStale(now time.Time, window time.Duration) bool {
	if c.Status.Decided() {
		return false
	}
	return now.After(c.Expires(window))
}

// VoteModel 出资人对认领的投票
type VoteModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserId   string `json:"user_id" gorm:"not null;size:128;uniqueIndex:idx_vote_user_claim"`
	ClaimId  int64  `json:"claim_id" gorm:"not null;uniqueIndex:idx_vote_user_claim;index"`
	Approved bool   `json:"approved" gorm:"not null"`
}

// TableName 自定义表名
func (VoteModel) TableName() string {
	return "vote"
}
