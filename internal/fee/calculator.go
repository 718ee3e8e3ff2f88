package fee

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount 金额必须大于0
var ErrInvalidAmount = errors.New("金额必须大于0")

// ErrBelowFees 打款金额不足以覆盖手续费
var ErrBelowFees = errors.New("打款金额不足以覆盖手续费")

// Cent 最小货币单位
var Cent = decimal.New(1, -2)

// 手续费反算除法保留的小数位数
const divisionPrecision = 32

// Config 手续费配置
type Config struct {
	PlatformPct    decimal.Decimal // 平台抽成比例
	ProcessorPct   decimal.Decimal // 支付通道百分比手续费
	ProcessorFixed decimal.Decimal // 支付通道单笔固定手续费
	PayoutFixed    decimal.Decimal // 打款单笔固定手续费
}

// DefaultConfig 默认费率
func DefaultConfig() Config {
	return Config{
		PlatformPct:    decimal.RequireFromString("0.025"),
		ProcessorPct:   decimal.RequireFromString("0.029"),
		ProcessorFixed: decimal.RequireFromString("0.30"),
		PayoutFixed:    decimal.RequireFromString("0.25"),
	}
}

// ChargeBreakdown 收款明细
type ChargeBreakdown struct {
	Amount       decimal.Decimal `json:"amount"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	ProcessorFee decimal.Decimal `json:"processor_fee"`
	TotalCharge  decimal.Decimal `json:"total_charge"`
}

// PayoutBreakdown 打款明细
type PayoutBreakdown struct {
	Amount      decimal.Decimal `json:"amount"`
	Credit      decimal.Decimal `json:"credit"`
	GrossPayout decimal.Decimal `json:"gross_payout"`
	GatewayFee  decimal.Decimal `json:"gateway_fee"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	NetPayout   decimal.Decimal `json:"net_payout"`
}

// Calculator 手续费计算器
type Calculator struct {
	cfg Config
}

// NewCalculator 创建手续费计算器
func NewCalculator(cfg Config) (*Calculator, error) {
	if cfg.ProcessorPct.IsNegative() || cfg.ProcessorPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("invalid processor pct %s", cfg.ProcessorPct)
	}
	if cfg.PlatformPct.IsNegative() || cfg.ProcessorFixed.IsNegative() || cfg.PayoutFixed.IsNegative() {
		return nil, errors.New("fee config values must not be negative")
	}
	return &Calculator{cfg: cfg}, nil
}

// Config 返回当前费率
func (c *Calculator) Config() Config {
	return c.cfg
}

// RoundUp 向上取整到分
func RoundUp(d decimal.Decimal) decimal.Decimal {
	return d.RoundCeil(2)
}

// Charge 计算向出资人收取的总额
// 通道扣除百分比和固定手续费后，到账金额需覆盖出资金额与平台手续费；
// 最终收取金额等于取整后各明细之和，而不是代数解本身。
func (c *Calculator) Charge(amount decimal.Decimal) (ChargeBreakdown, error) {
	if !validAmount(amount) {
		return ChargeBreakdown{}, ErrInvalidAmount
	}

	platformFee := RoundUp(amount.Mul(c.cfg.PlatformPct))
	base := amount.Add(platformFee)
	need := base.Add(c.cfg.ProcessorFixed)
	keep := decimal.NewFromInt(1).Sub(c.cfg.ProcessorPct)

	gross := need.DivRound(keep, divisionPrecision)
	processorFee := RoundUp(gross.Sub(base))
	// 商只保留有限位数，按通道实际到账金额校验，不足时补一分
	for base.Add(processorFee).Mul(keep).LessThan(need) {
		processorFee = processorFee.Add(Cent)
	}

	return ChargeBreakdown{
		Amount:       amount,
		PlatformFee:  platformFee,
		ProcessorFee: processorFee,
		TotalCharge:  base.Add(processorFee),
	}, nil
}

// Payout 计算向认领人打款的净额
func (c *Calculator) Payout(amount, credit decimal.Decimal) (PayoutBreakdown, error) {
	if !validAmount(amount) || credit.IsNegative() {
		return PayoutBreakdown{}, ErrInvalidAmount
	}

	gross := amount.Add(credit)
	gatewayFee := RoundUp(c.cfg.PayoutFixed)
	platformFee := RoundUp(gross.Mul(c.cfg.PlatformPct))
	net := gross.Sub(gatewayFee).Sub(platformFee)
	if !net.IsPositive() {
		return PayoutBreakdown{}, ErrBelowFees
	}

	return PayoutBreakdown{
		Amount:      amount,
		Credit:      credit,
		GrossPayout: gross,
		GatewayFee:  gatewayFee,
		PlatformFee: platformFee,
		NetPayout:   net,
	}, nil
}

// validAmount 金额为正且精确到分
func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(2))
}
