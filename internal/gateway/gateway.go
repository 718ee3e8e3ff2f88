package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxTokenLength 支付通道允许的自定义单号长度上限
const MaxTokenLength = 30

// ChargeRequest 扣款请求
type ChargeRequest struct {
	Payer    string
	Amount   decimal.Decimal
	Token    string
	Metadata map[string]string
}

// DisburseRequest 打款请求
type DisburseRequest struct {
	Payee  string
	Amount decimal.Decimal
	Token  string
	Note   string
}

// Result 通道返回结果
type Result struct {
	Success      bool   `json:"success"`
	Confirmation string `json:"confirmation"`
	ErrorMessage string `json:"error_message"`
}

// Gateway 支付通道
//
// 同一 Token 重试不得重复扣款或打款。
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Result, error)
	Disburse(ctx context.Context, req DisburseRequest) (Result, error)
}

// NewToken 生成紧凑的幂等令牌（UUID 的 base64 编码，22 位）
func NewToken() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// ValidateToken 校验令牌长度
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("empty idempotency token")
	}
	if len(token) > MaxTokenLength {
		return fmt.Errorf("idempotency token %q exceeds %d chars", token, MaxTokenLength)
	}
	return nil
}

// MinorUnits 转换为最小货币单位（分）
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).RoundCeil(0).IntPart()
}

// Config 通道配置
type Config struct {
	Mode            string
	BaseURL         string
	APIKey          string
	Currency        string
	Timeout         time.Duration
	PayoutRecipient string
}

// New 按模式创建支付通道
func New(cfg Config) (Gateway, error) {
	var gw Gateway
	switch strings.ToLower(cfg.Mode) {
	case "", "sandbox":
		gw = NewSandbox()
	case "live":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("gateway base_url is required in live mode")
		}
		gw = NewHTTPGateway(cfg)
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", cfg.Mode)
	}

	if cfg.PayoutRecipient != "" {
		gw = &recipientOverride{Gateway: gw, recipient: cfg.PayoutRecipient}
	}
	return gw, nil
}

// recipientOverride 将所有打款转给固定收款账户（测试环境使用）
type recipientOverride struct {
	Gateway
	recipient string
}

func (r *recipientOverride) Disburse(ctx context.Context, req DisburseRequest) (Result, error) {
	req.Payee = r.recipient
	return r.Gateway.Disburse(ctx, req)
}
