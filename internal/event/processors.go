package event

import (
	"context"

	"github.com/blues/bounty/internal/model"
	"github.com/blues/bounty/internal/notify"
	"gorm.io/datatypes"
)

// EventStore 审计记录存储
type EventStore interface {
	CreateEvent(ctx context.Context, event *model.EventModel) error
}

// AuditProcessor 将事件写入审计表
type AuditProcessor struct {
	store EventStore
}

// NewAuditProcessor 创建审计处理器
func NewAuditProcessor(store EventStore) *AuditProcessor {
	return &AuditProcessor{store: store}
}

// Name 处理器名称
func (p *AuditProcessor) Name() string {
	return "audit"
}

// Process 写入审计记录
func (p *AuditProcessor) Process(ctx context.Context, e *Event) error {
	return p.store.CreateEvent(ctx, &model.EventModel{
		Kind:    e.Kind,
		IssueId: e.IssueId,
		BidId:   e.BidId,
		ClaimId: e.ClaimId,
		Actor:   e.Actor,
		Data:    datatypes.JSONMap(e.Data),
	})
}

// 需要对外通知的事件
var notifyKinds = map[model.EventKind]notify.Kind{
	model.EventAskMet:         notify.KindAskMet,
	model.EventClaimSubmitted: notify.KindClaimSubmitted,
	model.EventClaimApproved:  notify.KindClaimApproved,
	model.EventClaimRejected:  notify.KindClaimRejected,
	model.EventClaimPaid:      notify.KindClaimPaid,
}

// NotifyProcessor 将事件转发给通知出口
type NotifyProcessor struct {
	notifier notify.Notifier
}

// NewNotifyProcessor 创建通知处理器
func NewNotifyProcessor(notifier notify.Notifier) *NotifyProcessor {
	return &NotifyProcessor{notifier: notifier}
}

// Name 处理器名称
func (p *NotifyProcessor) Name() string {
	return "notify"
}

// Process 转发通知
func (p *NotifyProcessor) Process(ctx context.Context, e *Event) error {
	kind, ok := notifyKinds[e.Kind]
	if !ok || len(e.Recipients) == 0 {
		return nil
	}

	payload := make(map[string]interface{}, len(e.Data)+3)
	for k, v := range e.Data {
		payload[k] = v
	}
	if e.IssueId > 0 {
		payload["issue_id"] = e.IssueId
	}
	if e.BidId > 0 {
		payload["bid_id"] = e.BidId
	}
	if e.ClaimId > 0 {
		payload["claim_id"] = e.ClaimId
	}
	return p.notifier.Notify(ctx, e.Recipients, kind, payload)
}
