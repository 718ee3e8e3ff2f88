package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/blues/bounty/internal/fee"
	"github.com/blues/bounty/internal/gateway"
	"github.com/blues/bounty/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Fee      FeeConfig      `mapstructure:"fee"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Claim    ClaimConfig    `mapstructure:"claim"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// FeeConfig 费率配置，使用字符串避免浮点误差
type FeeConfig struct {
	PlatformPct    string `mapstructure:"platform_pct"`    // 平台抽成比例
	ProcessorPct   string `mapstructure:"processor_pct"`   // 收款通道百分比手续费
	ProcessorFixed string `mapstructure:"processor_fixed"` // 收款通道单笔固定手续费
	PayoutFixed    string `mapstructure:"payout_fixed"`    // 打款单笔固定手续费
}

// Calculator 转换为手续费计算器配置
func (f FeeConfig) Calculator() (fee.Config, error) {
	var (
		cfg fee.Config
		err error
	)
	if cfg.PlatformPct, err = decimal.NewFromString(f.PlatformPct); err != nil {
		return cfg, fmt.Errorf("invalid fee.platform_pct: %w", err)
	}
	if cfg.ProcessorPct, err = decimal.NewFromString(f.ProcessorPct); err != nil {
		return cfg, fmt.Errorf("invalid fee.processor_pct: %w", err)
	}
	if cfg.ProcessorFixed, err = decimal.NewFromString(f.ProcessorFixed); err != nil {
		return cfg, fmt.Errorf("invalid fee.processor_fixed: %w", err)
	}
	if cfg.PayoutFixed, err = decimal.NewFromString(f.PayoutFixed); err != nil {
		return cfg, fmt.Errorf("invalid fee.payout_fixed: %w", err)
	}
	return cfg, nil
}

// GatewayConfig 支付通道配置
type GatewayConfig struct {
	Mode            string `mapstructure:"mode"` // sandbox, live
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	Currency        string `mapstructure:"currency"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	PayoutRecipient string `mapstructure:"payout_recipient"` // 非空时所有打款转入该账户
}

// Timeout 单次通道调用超时
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Gateway 转换为通道配置
func (g GatewayConfig) Gateway() gateway.Config {
	return gateway.Config{
		Mode:            g.Mode,
		BaseURL:         g.BaseURL,
		APIKey:          g.APIKey,
		Currency:        g.Currency,
		Timeout:         g.Timeout(),
		PayoutRecipient: g.PayoutRecipient,
	}
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	Mode       string `mapstructure:"mode"` // log, webhook
	WebhookURL string `mapstructure:"webhook_url"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// ClaimConfig 认领配置
type ClaimConfig struct {
	ExpiryDays  int    `mapstructure:"expiry_days"`
	RefundScope string `mapstructure:"refund_scope"` // global, issue
}

type TaskConfig struct {
	Interval         int `mapstructure:"interval"` // 秒
	PayoutRetryLimit int `mapstructure:"payout_retry_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// 设置默认值
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "bounty")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("fee.platform_pct", "0.025")
	v.SetDefault("fee.processor_pct", "0.029")
	v.SetDefault("fee.processor_fixed", "0.30")
	v.SetDefault("fee.payout_fixed", "0.25")
	v.SetDefault("gateway.mode", "sandbox")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.payout_recipient", "")
	v.SetDefault("gateway.currency", "usd")
	v.SetDefault("gateway.timeout_seconds", 30)
	v.SetDefault("notify.mode", "log")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.pool_size", 16)
	v.SetDefault("claim.expiry_days", 30)
	v.SetDefault("claim.refund_scope", "global")
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.payout_retry_limit", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量，如 BOUNTY_GATEWAY_API_KEY
	v.SetEnvPrefix("bounty")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load 从默认路径加载配置
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bounty")

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Could not read config file, using defaults: %v", err)
	}
	return decode(v)
}

// LoadFrom 从指定文件加载配置
func LoadFrom(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if _, err := c.Fee.Calculator(); err != nil {
		return err
	}
	switch c.Claim.RefundScope {
	case "global", "issue":
	default:
		return fmt.Errorf("invalid claim.refund_scope %q (want global or issue)", c.Claim.RefundScope)
	}
	if c.Claim.ExpiryDays <= 0 {
		return fmt.Errorf("claim.expiry_days must be positive")
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		return fmt.Errorf("gateway.timeout_seconds must be positive")
	}
	return nil
}
