package event

import (
	"context"

	"github.com/blues/bounty/internal/logger"
	"github.com/blues/bounty/internal/model"
)

// Event 业务流程在主状态写入后发布的事件
type Event struct {
	Kind       model.EventKind
	IssueId    int64
	BidId      int64
	ClaimId    int64
	Actor      string
	Recipients []string // 需要通知的用户，为空时不通知
	Data       map[string]interface{}
}

// Processor 事件处理器
type Processor interface {
	Name() string
	Process(ctx context.Context, e *Event) error
}

// Bus 按注册顺序同步调用处理器
//
// 处理器的失败只记录日志，不影响发布方。
type Bus struct {
	processors []Processor
}

// NewBus 创建事件总线
func NewBus(processors ...Processor) *Bus {
	return &Bus{processors: processors}
}

// Register 追加处理器
func (b *Bus) Register(p Processor) {
	b.processors = append(b.processors, p)
}

// Publish 发布事件
func (b *Bus) Publish(ctx context.Context, e *Event) {
	if b == nil {
		return
	}
	for _, p := range b.processors {
		if err := p.Process(ctx, e); err != nil {
			logger.Error("Event processor %s failed on %s (claim=%d bid=%d): %v", p.Name(), e.Kind, e.ClaimId, e.BidId, err)
		}
	}
}
