// Package testutil 测试用的存储与替身
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/blues/bounty/internal/gateway"
	"github.com/blues/bounty/internal/notify"
	"github.com/blues/bounty/internal/repository"
	"gorm.io/driver/sqlite"
)

// NewStore 基于临时目录中 sqlite 文件的记录存储，测试结束自动清理
func NewStore(t *testing.T) *repository.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "bounty.db") + "?_busy_timeout=5000"
	db, err := repository.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// sqlite 单写者
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return repository.New(db)
}

// Notification 一次通知调用
type Notification struct {
	Recipients []string
	Kind       notify.Kind
	Payload    map[string]interface{}
}

// MockNotifier 同步记录通知调用
type MockNotifier struct {
	NotifyFunc func(ctx context.Context, recipients []string, kind notify.Kind, payload map[string]interface{}) error

	mu    sync.Mutex
	calls []Notification
}

// Notify 实现 notify.Notifier 接口
func (m *MockNotifier) Notify(ctx context.Context, recipients []string, kind notify.Kind, payload map[string]interface{}) error {
	m.mu.Lock()
	m.calls = append(m.calls, Notification{Recipients: recipients, Kind: kind, Payload: payload})
	m.mu.Unlock()

	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, recipients, kind, payload)
	}
	return nil
}

// Calls 全部通知
func (m *MockNotifier) Calls() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.calls...)
}

// OfKind 指定类型的通知
func (m *MockNotifier) OfKind(kind notify.Kind) []Notification {
	var out []Notification
	for _, n := range m.Calls() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// MockGateway 可编程的支付通道，未设置的方法委托给 Sandbox
type MockGateway struct {
	ChargeFunc   func(ctx context.Context, req gateway.ChargeRequest) (gateway.Result, error)
	DisburseFunc func(ctx context.Context, req gateway.DisburseRequest) (gateway.Result, error)

	Sandbox *gateway.Sandbox

	mu            sync.Mutex
	chargeCalls   []gateway.ChargeRequest
	disburseCalls []gateway.DisburseRequest
}

// NewMockGateway 创建通道替身
func NewMockGateway() *MockGateway {
	return &MockGateway{Sandbox: gateway.NewSandbox()}
}

// Charge 实现 gateway.Gateway 接口
func (m *MockGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.Result, error) {
	m.mu.Lock()
	m.chargeCalls = append(m.chargeCalls, req)
	fn := m.ChargeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return m.Sandbox.Charge(ctx, req)
}

// Disburse 实现 gateway.Gateway 接口
func (m *MockGateway) Disburse(ctx context.Context, req gateway.DisburseRequest) (gateway.Result, error) {
	m.mu.Lock()
	m.disburseCalls = append(m.disburseCalls, req)
	fn := m.DisburseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return m.Sandbox.Disburse(ctx, req)
}

// SetDisburse 替换打款行为
func (m *MockGateway) SetDisburse(fn func(ctx context.Context, req gateway.DisburseRequest) (gateway.Result, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DisburseFunc = fn
}

// SetCharge 替换扣款行为
func (m *MockGateway) SetCharge(fn func(ctx context.Context, req gateway.ChargeRequest) (gateway.Result, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChargeFunc = fn
}

// ChargeCalls 扣款调用记录
func (m *MockGateway) ChargeCalls() []gateway.ChargeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.ChargeRequest(nil), m.chargeCalls...)
}

// DisburseCalls 打款调用记录
func (m *MockGateway) DisburseCalls() []gateway.DisburseRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.DisburseRequest(nil), m.disburseCalls...)
}
