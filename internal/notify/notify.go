package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blues/bounty/internal/logger"
	"github.com/panjf2000/ants/v2"
)

// Kind 通知类型
type Kind string

const (
	KindAskMet         Kind = "ask_met"
	KindClaimSubmitted Kind = "claim_submitted"
	KindClaimApproved  Kind = "claim_approved"
	KindClaimRejected  Kind = "claim_rejected"
	KindClaimPaid      Kind = "claim_paid"
)

// Message 一条待投递的通知
type Message struct {
	Recipients []string               `json:"recipients"`
	Kind       Kind                   `json:"kind"`
	Payload    map[string]interface{} `json:"payload"`
}

// Notifier 通知出口，调用方不因通知失败而中断
type Notifier interface {
	Notify(ctx context.Context, recipients []string, kind Kind, payload map[string]interface{}) error
}

// Sender 具体投递方式
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher 通过协程池异步投递通知
type Dispatcher struct {
	pool    *ants.Pool
	sender  Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher 创建通知分发器
func NewDispatcher(sender Sender, poolSize int) (*Dispatcher, error) {
	if poolSize <= 0 {
		poolSize = 16
	}
	// 池满时直接丢弃，不阻塞持有业务锁的调用方
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create notify pool: %w", err)
	}

	return &Dispatcher{
		pool:    pool,
		sender:  sender,
		timeout: 10 * time.Second,
	}, nil
}

// Notify 提交通知，投递结果只记录日志
func (d *Dispatcher) Notify(ctx context.Context, recipients []string, kind Kind, payload map[string]interface{}) error {
	if len(recipients) == 0 {
		return nil
	}
	msg := Message{
		Recipients: append([]string(nil), recipients...),
		Kind:       kind,
		Payload:    payload,
	}

	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()
		// 与请求生命周期解耦
		sendCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, msg); err != nil {
			logger.Error("Failed to deliver %s notification to %v: %v", msg.Kind, msg.Recipients, err)
			return
		}
		logger.Debug("Delivered %s notification to %d recipients", msg.Kind, len(msg.Recipients))
	})
	if err != nil {
		d.wg.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			logger.Warn("Notify pool overloaded, dropped %s notification to %v", msg.Kind, msg.Recipients)
			return nil
		}
		return fmt.Errorf("failed to submit notification: %w", err)
	}
	return nil
}

// Wait 等待已提交的通知投递完成
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close 等待投递完成并释放协程池
func (d *Dispatcher) Close() {
	d.wg.Wait()
	d.pool.Release()
}

// LogSender 只写日志的投递方式
type LogSender struct{}

// Send 实现 Sender 接口
func (LogSender) Send(_ context.Context, msg Message) error {
	logger.Info("Notification %s -> %v: %v", msg.Kind, msg.Recipients, msg.Payload)
	return nil
}
