package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSender 以 JSON POST 投递到外部通知服务
type WebhookSender struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSender 创建 webhook 投递
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Send 实现 Sender 接口
func (w *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NewSender 按模式创建投递方式
func NewSender(mode, webhookURL string) (Sender, error) {
	switch mode {
	case "", "log":
		return LogSender{}, nil
	case "webhook":
		if webhookURL == "" {
			return nil, fmt.Errorf("notify.webhook_url is required in webhook mode")
		}
		return NewWebhookSender(webhookURL), nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", mode)
	}
}
