// Package transport provides concrete implementations of the delivery
// contract. The core depends only on domain.Transport; everything wire
// specific lives here.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/models"
)

// Compile-time check: *HTTPTransport must satisfy domain.Transport.
var _ domain.Transport = (*HTTPTransport)(nil)

// HTTPTransport delivers queue items to a remote HTTP endpoint.
// Status mapping: 2xx ack, 409 conflict (body carries the server version),
// 408/429/5xx transient, any other 4xx permanent.
type HTTPTransport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithAPIKey sets the bearer token sent with every delivery.
func WithAPIKey(key string) HTTPOption {
	return func(t *HTTPTransport) { t.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.httpClient = hc }
}

// NewHTTPTransport creates an HTTPTransport for the given base URL. The
// per-delivery timeout comes from the caller's context, so no client
// timeout is set here.
func NewHTTPTransport(baseURL string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(t)
	}

	return t
}

// deliveryBody is the wire form of one queued mutation.
type deliveryBody struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	StoreName string          `json:"store_name"`
	EntityID  string          `json:"entity_id"`
	Action    models.Action   `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Deliver posts one item to the remote sync endpoint.
func (t *HTTPTransport) Deliver(ctx context.Context, item models.SyncQueueItem) error {
	body := deliveryBody{
		ID:        item.ID,
		TenantID:  item.TenantID,
		StoreName: item.StoreName,
		EntityID:  item.EntityID,
		Action:    item.Action,
		Payload:   item.Payload,
		Timestamp: item.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal delivery body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/v1/sync", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // body is diagnostic only.

	return classifyStatus(resp.StatusCode, respBody)
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusConflict:
		return &models.ConflictError{
			ServerVersion: body,
			Reason:        fmt.Sprintf("remote returned %d", status),
		}
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return &models.RejectError{
			Reason:    fmt.Sprintf("remote returned %d: %s", status, truncate(body)),
			Permanent: false,
		}
	default:
		return &models.RejectError{
			Reason:    fmt.Sprintf("remote returned %d: %s", status, truncate(body)),
			Permanent: true,
		}
	}
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "…"
	}
	return string(body)
}
