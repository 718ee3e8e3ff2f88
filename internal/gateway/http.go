package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway REST 支付通道客户端
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	currency   string
	httpClient *http.Client
}

type chargePayload struct {
	Customer    string            `json:"customer"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type payoutPayload struct {
	SenderBatchID string `json:"sender_batch_id"`
	Receiver      string `json:"receiver"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Note          string `json:"note,omitempty"`
	SyncMode      bool   `json:"sync_mode"`
}

type gatewayResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewHTTPGateway 创建 REST 通道客户端
func NewHTTPGateway(cfg Config) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "usd"
	}

	return &HTTPGateway{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		currency: strings.ToLower(currency),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Charge 扣款
func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	if err := ValidateToken(req.Token); err != nil {
		return Result{}, err
	}

	payload := chargePayload{
		Customer: req.Payer,
		Amount:   MinorUnits(req.Amount),
		Currency: g.currency,
		Metadata: req.Metadata,
	}
	if url, ok := req.Metadata["url"]; ok {
		payload.Description = "Offer for: " + url
	}

	return g.post(ctx, "/charges", req.Token, payload)
}

// Disburse 同步打款
func (g *HTTPGateway) Disburse(ctx context.Context, req DisburseRequest) (Result, error) {
	if err := ValidateToken(req.Token); err != nil {
		return Result{}, err
	}

	return g.post(ctx, "/payouts", req.Token, payoutPayload{
		SenderBatchID: req.Token,
		Receiver:      req.Payee,
		Amount:        MinorUnits(req.Amount),
		Currency:      g.currency,
		Note:          req.Note,
		SyncMode:      true,
	})
}

func (g *HTTPGateway) post(ctx context.Context, path, token string, payload interface{}) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", token)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read gateway response: %w", err)
	}

	var out gatewayResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("malformed gateway response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 300 || !strings.EqualFold(out.Status, "success") {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("gateway returned status %d (%s)", resp.StatusCode, out.Status)
		}
		return Result{Success: false, ErrorMessage: msg}, nil
	}
	if out.ID == "" {
		return Result{}, fmt.Errorf("malformed gateway response: missing confirmation id")
	}

	return Result{Success: true, Confirmation: out.ID}, nil
}
