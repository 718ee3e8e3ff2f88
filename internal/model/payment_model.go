package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // 待处理
	PaymentStatusSuccess PaymentStatus = "success" // 成功
	PaymentStatusFailed  PaymentStatus = "failed"  // 失败
)

// OfferModel 对出价的一次扣款
type OfferModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	BidId          int64           `json:"bid_id" gorm:"not null;index"`
	UserId         string          `json:"user_id" gorm:"not null;size:128;index"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`        // 出资金额
	ChargeAmount   decimal.Decimal `json:"charge_amount" gorm:"type:numeric(12,2);not null"` // 实际扣款金额（含手续费）
	Status         PaymentStatus   `json:"status" gorm:"not null;default:'pending';index"`
	TransactionKey string          `json:"transaction_key" gorm:"not null;size:32;uniqueIndex"`
	Confirmation   string          `json:"confirmation"`
	ErrorMessage   string          `json:"error_message" gorm:"size:255"`
	Provider       string          `json:"provider" gorm:"default:'Stripe'"`

	Fees []FeeModel `json:"fees,omitempty" gorm:"foreignKey:OfferId"`
}

// TableName 自定义表名
func (OfferModel) TableName() string {
	return "offer"
}

// Succeeded 是否扣款成功
func (o *OfferModel) Succeeded() bool {
	return o.Status == PaymentStatusSuccess
}

// PayoutModel 对认领的一次打款
//
// 每个认领只有一条打款记录，重试时复用 TransactionKey。
type PayoutModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClaimId        int64           `json:"claim_id" gorm:"not null;uniqueIndex"`
	UserId         string          `json:"user_id" gorm:"not null;size:128;index"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`        // 要价
	ChargeAmount   decimal.Decimal `json:"charge_amount" gorm:"type:numeric(12,2);not null"` // 实际打款净额
	Status         PaymentStatus   `json:"status" gorm:"not null;default:'pending';index"`
	TransactionKey string          `json:"transaction_key" gorm:"not null;size:32;uniqueIndex"`
	Confirmation   string          `json:"confirmation"`
	ErrorMessage   string          `json:"error_message" gorm:"size:255"`
	Attempts       int             `json:"attempts" gorm:"not null;default:0"`
	Provider       string          `json:"provider" gorm:"default:'PayPal'"`

	Fees []FeeModel `json:"fees,omitempty" gorm:"foreignKey:PayoutId"`
}

// TableName 自定义表名
func (PayoutModel) TableName() string {
	return "payout"
}

// Succeeded 是否打款成功
func (p *PayoutModel) Succeeded() bool {
	return p.Status == PaymentStatusSuccess
}
