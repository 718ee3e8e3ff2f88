package model

import (
	"time"

	"github.com/blues/bounty/internal/fee"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeeType 费用类型
type FeeType string

const (
	FeeTypeProcessor FeeType = "processor" // 支付通道手续费
	FeeTypePlatform  FeeType = "platform"  // 平台手续费
	FeeTypeRefund    FeeType = "refund"    // 退还认领人自己的出资
)

// FeeModel 扣款或打款的费用/抵扣明细
type FeeModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	OfferId     *int64          `json:"offer_id,omitempty" gorm:"index"`
	PayoutId    *int64          `json:"payout_id,omitempty" gorm:"index"`
	FeeType     FeeType         `json:"fee_type" gorm:"not null;size:32"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Description string          `json:"description"`
}

// TableName 自定义表名
func (FeeModel) TableName() string {
	return "fee"
}

// IsCredit 是否为抵扣项
func (f *FeeModel) IsCredit() bool {
	return f.FeeType == FeeTypeRefund
}

// BeforeSave 金额向上取整到分
func (f *FeeModel) BeforeSave(tx *gorm.DB) error {
	f.Amount = fee.RoundUp(f.Amount)
	return nil
}
