package task

import (
	"context"
	"time"

	"github.com/blues/bounty/internal/config"
	"github.com/blues/bounty/internal/logger"
	"github.com/blues/bounty/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

func interval(cfg config.TaskConfig) gocron.JobDefinition {
	seconds := cfg.Interval
	if seconds <= 0 {
		seconds = 60
	}
	return gocron.DurationJob(time.Duration(seconds) * time.Second)
}

// PayoutRetryJob 重试失败的打款，复用原令牌
type PayoutRetryJob struct {
	claims      *logic.ClaimLogic
	cfg         config.TaskConfig
	maxAttempts int
}

// NewPayoutRetryJob 创建打款重试任务
func NewPayoutRetryJob(claims *logic.ClaimLogic, cfg config.TaskConfig) *PayoutRetryJob {
	maxAttempts := cfg.PayoutRetryLimit
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &PayoutRetryJob{claims: claims, cfg: cfg, maxAttempts: maxAttempts}
}

// GetName 获取任务名称
func (j *PayoutRetryJob) GetName() string {
	return "payout_retry"
}

// GetSchedule 获取调度配置
func (j *PayoutRetryJob) GetSchedule() gocron.JobDefinition {
	return interval(j.cfg)
}

// Execute 执行任务
func (j *PayoutRetryJob) Execute() {
	paid, err := j.claims.RetryFailedPayouts(context.Background(), j.maxAttempts)
	if err != nil {
		logger.Error("Payout retry task failed: %v", err)
		return
	}
	if paid > 0 {
		logger.Info("Payout retry task completed. Paid %d claims", paid)
	}
}

// AskMatchJob 补发要价达成通知
type AskMatchJob struct {
	bids *logic.BidLogic
	cfg  config.TaskConfig
}

// NewAskMatchJob 创建要价达成检查任务
func NewAskMatchJob(bids *logic.BidLogic, cfg config.TaskConfig) *AskMatchJob {
	return &AskMatchJob{bids: bids, cfg: cfg}
}

// GetName 获取任务名称
func (j *AskMatchJob) GetName() string {
	return "ask_match_sweep"
}

// GetSchedule 获取调度配置
func (j *AskMatchJob) GetSchedule() gocron.JobDefinition {
	return interval(j.cfg)
}

// Execute 执行任务
func (j *AskMatchJob) Execute() {
	if n := j.bids.NotifyMatchingAskers(context.Background(), ""); n > 0 {
		logger.Info("Ask match sweep notified %d askers", n)
	}
}

// StaleClaimJob 报告过期未决的认领
type StaleClaimJob struct {
	claims *logic.ClaimLogic
	cfg    config.TaskConfig
}

// NewStaleClaimJob 创建过期认领检查任务
func NewStaleClaimJob(claims *logic.ClaimLogic, cfg config.TaskConfig) *StaleClaimJob {
	return &StaleClaimJob{claims: claims, cfg: cfg}
}

// GetName 获取任务名称
func (j *StaleClaimJob) GetName() string {
	return "stale_claim_report"
}

// GetSchedule 获取调度配置
func (j *StaleClaimJob) GetSchedule() gocron.JobDefinition {
	return interval(j.cfg)
}

// Execute 执行任务
func (j *StaleClaimJob) Execute() {
	stale, err := j.claims.StaleClaims(context.Background())
	if err != nil {
		logger.Error("Failed to fetch stale claims: %v", err)
		return
	}
	for i := range stale {
		c := &stale[i]
		logger.Warn("Claim %d by %s on issue %d is %s and expired at %s",
			c.Id, c.UserId, c.IssueId, c.Status, j.claims.Expires(c).Format(time.RFC3339))
	}
}

