package client

import "context"

// DomainClient is a thin typed wrapper binding the collection CRUD surface
// to one named collection. Sensible for callers that work a single domain
// (incidents, vendors, ...) and don't want to repeat the collection name.
type DomainClient struct {
	collection  string
	collections *CollectionService
}

// Collection returns the bound collection name.
func (d *DomainClient) Collection() string { return d.collection }

// List returns all documents in the bound collection.
func (d *DomainClient) List(ctx context.Context) ([]Entity, error) {
	return d.collections.List(ctx, d.collection)
}

// Get returns one document by ID.
func (d *DomainClient) Get(ctx context.Context, id string) (*Entity, error) {
	return d.collections.Get(ctx, d.collection, id)
}

// Put creates or updates a document.
func (d *DomainClient) Put(ctx context.Context, id string, fields any, opts *MutateOptions) (*MutationResult, error) {
	return d.collections.Put(ctx, d.collection, id, fields, opts)
}

// Delete removes a document.
func (d *DomainClient) Delete(ctx context.Context, id, userID, description string) (*MutationResult, error) {
	return d.collections.Delete(ctx, d.collection, id, userID, description)
}
