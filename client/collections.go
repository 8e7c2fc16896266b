package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// CollectionService handles document reads and writes on named collections.
type CollectionService struct {
	c *Client
}

// collectionListResponse wraps the list response.
type collectionListResponse struct {
	Data []Entity `json:"data"`
}

// List returns all documents in a collection.
func (s *CollectionService) List(ctx context.Context, collection string) ([]Entity, error) {
	var resp collectionListResponse
	if err := s.c.get(ctx, "/api/v1/collections/"+url.PathEscape(collection), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Get returns a single document by ID.
func (s *CollectionService) Get(ctx context.Context, collection, id string) (*Entity, error) {
	var entity Entity
	path := fmt.Sprintf("/api/v1/collections/%s/%s", url.PathEscape(collection), url.PathEscape(id))
	if err := s.c.get(ctx, path, nil, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// Put creates or updates a document. The write is journaled to the audit
// chain and queued for sync on the server.
func (s *CollectionService) Put(ctx context.Context, collection, id string, fields any, opts *MutateOptions) (*MutationResult, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}

	body := struct {
		MutateOptions
		Fields json.RawMessage `json:"fields"`
	}{Fields: raw}
	if opts != nil {
		body.MutateOptions = *opts
	}

	var result MutationResult
	path := fmt.Sprintf("/api/v1/collections/%s/%s", url.PathEscape(collection), url.PathEscape(id))
	if err := s.c.put(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a document. userID and description feed the audit entry and
// may be empty.
func (s *CollectionService) Delete(ctx context.Context, collection, id, userID, description string) (*MutationResult, error) {
	params := url.Values{}
	if userID != "" {
		params.Set("user_id", userID)
	}
	if description != "" {
		params.Set("description", description)
	}

	var result MutationResult
	path := fmt.Sprintf("/api/v1/collections/%s/%s", url.PathEscape(collection), url.PathEscape(id))
	if err := s.c.del(ctx, path, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
