package model

import (
	"time"

	"gorm.io/datatypes"
)

// EventKind 业务事件类型
type EventKind string

const (
	EventAskMet         EventKind = "ask_met"
	EventBidPlaced      EventKind = "bid_placed"
	EventOfferCharged   EventKind = "offer_charged"
	EventOfferFailed    EventKind = "offer_failed"
	EventClaimSubmitted EventKind = "claim_submitted"
	EventVoteRecorded   EventKind = "vote_recorded"
	EventClaimApproved  EventKind = "claim_approved"
	EventClaimRejected  EventKind = "claim_rejected"
	EventPayoutFailed   EventKind = "payout_failed"
	EventClaimPaid      EventKind = "claim_paid"
)

// EventModel 业务事件审计记录
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Kind    EventKind         `json:"kind" gorm:"not null;size:64;index"`
	IssueId int64             `json:"issue_id" gorm:"index"`
	BidId   int64             `json:"bid_id,omitempty"`
	ClaimId int64             `json:"claim_id,omitempty" gorm:"index"`
	Actor   string            `json:"actor" gorm:"size:128"`
	Data    datatypes.JSONMap `json:"data"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}

// All 需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&IssueModel{},
		&BidModel{},
		&OfferModel{},
		&PayoutModel{},
		&FeeModel{},
		&ClaimModel{},
		&VoteModel{},
		&EventModel{},
	}
}
