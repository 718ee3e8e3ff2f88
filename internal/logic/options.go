package logic

import (
	"time"

	"github.com/blues/bounty/internal/config"
)

// RefundScope 打款时退还认领人出资的统计范围
type RefundScope string

const (
	RefundScopeGlobal RefundScope = "global" // 认领人在所有问题上的成功出资
	RefundScopeIssue  RefundScope = "issue"  // 仅本问题
)

// Options 业务参数
type Options struct {
	GatewayTimeout time.Duration // 单次通道调用超时
	ClaimExpiry    time.Duration
	RefundScope    RefundScope
	Now            func() time.Time
}

// DefaultOptions 默认参数
func DefaultOptions() Options {
	return Options{
		GatewayTimeout: 30 * time.Second,
		ClaimExpiry:    30 * 24 * time.Hour,
		RefundScope:    RefundScopeGlobal,
		Now:            time.Now,
	}
}

// OptionsFromConfig 从配置构造业务参数
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg.Gateway.TimeoutSeconds > 0 {
		opts.GatewayTimeout = cfg.Gateway.Timeout()
	}
	if cfg.Claim.ExpiryDays > 0 {
		opts.ClaimExpiry = time.Duration(cfg.Claim.ExpiryDays) * 24 * time.Hour
	}
	if cfg.Claim.RefundScope != "" {
		opts.RefundScope = RefundScope(cfg.Claim.RefundScope)
	}
	return opts
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = def.GatewayTimeout
	}
	if o.ClaimExpiry <= 0 {
		o.ClaimExpiry = def.ClaimExpiry
	}
	if o.RefundScope == "" {
		o.RefundScope = def.RefundScope
	}
	if o.Now == nil {
		o.Now = def.Now
	}
	return o
}
