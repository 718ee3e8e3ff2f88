package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/blues/bounty/internal/fee"
	"github.com/blues/bounty/internal/repository"
)

var (
	ErrInvalidAmount    = fee.ErrInvalidAmount
	ErrBelowFees        = fee.ErrBelowFees
	ErrInvalidArgument  = errors.New("参数无效")
	ErrNotFound         = errors.New("记录不存在")
	ErrDuplicateClaim   = errors.New("已认领该问题")
	ErrIssueLocked      = errors.New("该问题已有进行中的认领")
	ErrNoStanding       = errors.New("无权对该认领投票")
	ErrAlreadyVoted     = errors.New("已对该认领投票")
	ErrClaimClosed      = errors.New("认领投票已结束")
	ErrClaimNotApproved = errors.New("认领尚未通过")
	ErrAlreadyPaid      = errors.New("认领已打款")
	ErrNotBiddable      = errors.New("当前不允许出价")
	ErrNothingToCharge  = errors.New("出资金额未超过已扣款金额")
	ErrAlreadyCharged   = errors.New("扣款已成功")
	ErrNoAsk            = errors.New("认领人未设置要价")

	// ErrInvariant 不应出现的状态，需要人工介入
	ErrInvariant = errors.New("internal invariant violated")
)

var validationErrors = []error{
	ErrInvalidAmount,
	ErrBelowFees,
	ErrInvalidArgument,
	ErrNotFound,
	ErrDuplicateClaim,
	ErrIssueLocked,
	ErrNoStanding,
	ErrAlreadyVoted,
	ErrClaimClosed,
	ErrClaimNotApproved,
	ErrAlreadyPaid,
	ErrNotBiddable,
	ErrNothingToCharge,
	ErrAlreadyCharged,
	ErrNoAsk,
}

// IsValidation 是否为调用方输入或状态导致的错误，不会自动重试
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// GatewayError 支付通道拒绝或调用失败，记录在扣款/打款记录上，可重试
type GatewayError struct {
	Op      string // charge, disburse
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s declined: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Timeout 是否因超时失败
func (e *GatewayError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsGatewayError 是否为支付通道错误
func IsGatewayError(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}

// notFound 将存储层的不存在错误转换为业务错误
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// errorMessage 截断到记录字段长度
func errorMessage(res string, err error) string {
	msg := res
	if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "unknown gateway error"
	}
	if len(msg) > 255 {
		msg = msg[:255]
	}
	return msg
}
