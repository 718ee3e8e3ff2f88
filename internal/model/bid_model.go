package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidModel 出资人对问题的出价
type BidModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserId  string `json:"user_id" gorm:"not null;size:128;uniqueIndex:idx_bid_user_url"`
	Url     string `json:"url" gorm:"not null;size:512;uniqueIndex:idx_bid_user_url;index"`
	IssueId int64  `json:"issue_id" gorm:"index"`
	Title   string `json:"title"`

	Ask          decimal.Decimal `json:"ask" gorm:"type:numeric(12,2);not null"`   // 要价，0 表示无要价
	Offer        decimal.Decimal `json:"offer" gorm:"type:numeric(12,2);not null"` // 已成功扣款总额
	AskMatchSent *time.Time      `json:"ask_match_sent"`                           // 要价达成通知时间
}

// TableName 自定义表名
func (BidModel) TableName() string {
	return "bid"
}

// HasAsk 是否设置了要价
func (b *BidModel) HasAsk() bool {
	return b.Ask.IsPositive()
}

// Funded 是否有成功扣款
func (b *BidModel) Funded() bool {
	return b.Offer.IsPositive()
}
