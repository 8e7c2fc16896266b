package client

import (
	"context"
	"net/url"
)

// SyncService handles queue inspection and manual sync intervention.
type SyncService struct {
	c *Client
}

// Status returns the tenant's current queue and delivery state.
func (s *SyncService) Status(ctx context.Context) (*SyncStatusReport, error) {
	var report SyncStatusReport
	if err := s.c.get(ctx, "/api/v1/sync/status", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Run schedules a sync pass on the server.
func (s *SyncService) Run(ctx context.Context) error {
	return s.c.post(ctx, "/api/v1/sync/run", nil, nil)
}

// SetOnline flips the server's connectivity flag. Going online schedules a
// debounced sync pass.
func (s *SyncService) SetOnline(ctx context.Context, online bool) error {
	body := struct {
		Online bool `json:"online"`
	}{Online: online}
	return s.c.post(ctx, "/api/v1/sync/online", body, nil)
}

// syncListResponse wraps list responses from the sync endpoints.
type syncListResponse[T any] struct {
	Data []T `json:"data"`
}

// ListFailed returns the tenant's dead-lettered operations.
func (s *SyncService) ListFailed(ctx context.Context) ([]FailedOperation, error) {
	var resp syncListResponse[FailedOperation]
	if err := s.c.get(ctx, "/api/v1/sync/failed", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// RetryFailed re-enqueues a dead-lettered operation with a fresh attempt
// counter and returns the new queue item.
func (s *SyncService) RetryFailed(ctx context.Context, failedID string) (*SyncQueueItem, error) {
	var item SyncQueueItem
	if err := s.c.post(ctx, "/api/v1/sync/failed/"+url.PathEscape(failedID)+"/retry", nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ClearFailed discards a dead-lettered operation.
func (s *SyncService) ClearFailed(ctx context.Context, failedID string) error {
	return s.c.del(ctx, "/api/v1/sync/failed/"+url.PathEscape(failedID), nil, nil)
}

// Conflicts returns queue items held in the conflict state.
func (s *SyncService) Conflicts(ctx context.Context) ([]SyncQueueItem, error) {
	var resp syncListResponse[SyncQueueItem]
	if err := s.c.get(ctx, "/api/v1/sync/conflicts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Resolve settles a conflicted item with ResolutionAcceptLocal or
// ResolutionAcceptRemote.
func (s *SyncService) Resolve(ctx context.Context, itemID, resolution string) error {
	body := struct {
		Resolution string `json:"resolution"`
	}{Resolution: resolution}
	return s.c.post(ctx, "/api/v1/sync/conflicts/"+url.PathEscape(itemID)+"/resolve", body, nil)
}
