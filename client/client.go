// Package client provides a typed Go SDK for the opsledger REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// tenantIDHeader carries the tenant scope on every request.
const tenantIDHeader = "X-Tenant-ID"

// Client is the top-level opsledger API client. All tenant-scoped calls
// carry the tenant ID given at construction.
type Client struct {
	baseURL    string
	tenantID   string
	httpClient *http.Client

	Collections *CollectionService
	Audit       *AuditService
	Sync        *SyncService

	Incidents       *DomainClient
	Problems        *DomainClient
	Changes         *DomainClient
	ServiceRequests *DomainClient
	Vendors         *DomainClient
	Risks           *DomainClient
	Assets          *DomainClient
	Customers       *DomainClient
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates an opsledger client for the given base URL (e.g.
// "http://localhost:3040") scoped to one tenant.
func New(baseURL, tenantID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		tenantID:   tenantID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	c.Collections = &CollectionService{c: c}
	c.Audit = &AuditService{c: c}
	c.Sync = &SyncService{c: c}

	c.Incidents = c.Domain("incidents")
	c.Problems = c.Domain("problems")
	c.Changes = c.Domain("changes")
	c.ServiceRequests = c.Domain("service_requests")
	c.Vendors = c.Domain("vendors")
	c.Risks = c.Domain("risks")
	c.Assets = c.Domain("assets")
	c.Customers = c.Domain("customers")
	return c
}

// Domain returns a typed wrapper over one named collection. The predefined
// fields on Client cover the built-in collections; use Domain for custom ones.
func (c *Client) Domain(collection string) *DomainClient {
	return &DomainClient{collection: collection, collections: c.Collections}
}

// Health returns the liveness check response.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/api/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do executes an HTTP request and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	u := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tenantID != "" {
		req.Header.Set(tenantIDHeader, c.tenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// get is a convenience wrapper for GET requests with query parameters.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// post is a convenience wrapper for POST requests.
func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// put is a convenience wrapper for PUT requests.
func (c *Client) put(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

// del is a convenience wrapper for DELETE requests.
func (c *Client) del(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodDelete, path, nil, result)
}
