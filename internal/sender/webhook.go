package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

// webhookRequest is the JSON body posted to the webhook endpoint.
type webhookRequest struct {
	TenantID  string `json:"tenant_id"`
	Recipient string `json:"recipient"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Priority  string `json:"priority"`
}

type webhookResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// WebhookSender delivers notifications by POSTing to a configured endpoint.
// The base URL is injected from config so tests can point to a local server.
type WebhookSender struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookSender(baseURL string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts the notification and expects a 2xx response carrying messageId.
func (s *WebhookSender) Send(ctx context.Context, n *domain.Notification) (*SendResult, error) {
	body, err := json.Marshal(webhookRequest{
		TenantID:  n.TenantID,
		Recipient: n.RecipientID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Priority:  string(n.Priority),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSenderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: webhook status %d", domain.ErrSenderFailure, resp.StatusCode)
	}

	var ack webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("decode webhook response: %w", err)
	}
	return &SendResult{Delivered: true, ProviderMsgID: ack.MessageID}, nil
}

var _ Sender = (*WebhookSender)(nil)
