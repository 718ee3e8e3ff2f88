package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Sandbox 内存支付通道，按令牌去重
type Sandbox struct {
	mu        sync.Mutex
	charges   map[string]Result
	payouts   map[string]Result
	declined  map[string]bool
	sequence  int
	charged   []ChargeRequest
	disbursed []DisburseRequest
}

// NewSandbox 创建沙箱通道
func NewSandbox() *Sandbox {
	return &Sandbox{
		charges:  make(map[string]Result),
		payouts:  make(map[string]Result),
		declined: make(map[string]bool),
	}
}

// Decline 令指定账户的请求失败
func (s *Sandbox) Decline(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined[account] = true
}

// Allow 恢复指定账户
func (s *Sandbox) Allow(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.declined, account)
}

// Charge 扣款，失败结果不缓存，允许同一令牌重试
func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	if err := ValidateToken(req.Token); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.charges[req.Token]; ok {
		return res, nil
	}

	res := s.result("ch", req.Payer, "card declined")
	if res.Success {
		s.charges[req.Token] = res
		s.charged = append(s.charged, req)
	}
	return res, nil
}

// Disburse 打款
func (s *Sandbox) Disburse(ctx context.Context, req DisburseRequest) (Result, error) {
	if err := ValidateToken(req.Token); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.payouts[req.Token]; ok {
		return res, nil
	}

	res := s.result("po", req.Payee, "receiver unavailable")
	if res.Success {
		s.payouts[req.Token] = res
		s.disbursed = append(s.disbursed, req)
	}
	return res, nil
}

// Charged 成功扣款记录
func (s *Sandbox) Charged() []ChargeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChargeRequest(nil), s.charged...)
}

// Disbursed 成功打款记录
func (s *Sandbox) Disbursed() []DisburseRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DisburseRequest(nil), s.disbursed...)
}

func (s *Sandbox) result(prefix, account, declineMessage string) Result {
	if s.declined[account] {
		return Result{Success: false, ErrorMessage: declineMessage}
	}
	s.sequence++
	return Result{Success: true, Confirmation: fmt.Sprintf("%s_%06d", prefix, s.sequence)}
}
