package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// AuditService handles audit chain operations.
type AuditService struct {
	c *Client
}

// auditQueryResponse wraps the paginated audit query response.
type auditQueryResponse struct {
	Data    []AuditEntry `json:"data"`
	HasMore bool         `json:"has_more"`
}

// Query returns audit entries matching the given options, newest first.
func (s *AuditService) Query(ctx context.Context, opts *AuditQueryOptions) ([]AuditEntry, bool, error) {
	params := url.Values{}
	if opts != nil {
		if opts.EntityType != "" {
			params.Set("entity_type", opts.EntityType)
		}
		if opts.EntityID != "" {
			params.Set("entity_id", opts.EntityID)
		}
		if opts.Action != "" {
			params.Set("action", opts.Action)
		}
		if opts.Since != nil {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp auditQueryResponse
	if err := s.c.get(ctx, "/api/v1/audit", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Data, resp.HasMore, nil
}

// Verify runs a full hash chain verification for the tenant.
func (s *AuditService) Verify(ctx context.Context) (*ChainReport, error) {
	var report ChainReport
	if err := s.c.get(ctx, "/api/v1/audit/verify", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Expire purges entries past their retention window. Returns count purged.
func (s *AuditService) Expire(ctx context.Context) (int, error) {
	var resp struct {
		Purged int `json:"purged"`
	}
	if err := s.c.post(ctx, "/api/v1/audit/expire", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}

// SetLegalHold sets or clears the legal hold flag on one audit entry.
func (s *AuditService) SetLegalHold(ctx context.Context, entryID string, hold bool) error {
	body := struct {
		Hold bool `json:"hold"`
	}{Hold: hold}
	return s.c.put(ctx, "/api/v1/audit/"+url.PathEscape(entryID)+"/hold", body, nil)
}
