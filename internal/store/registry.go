package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/opsledger/opsledger/internal/db"
	"github.com/opsledger/opsledger/internal/db/migrations"
)

// Handle wraps one tenant's SQLite database. The write mutex serializes all
// mutating transactions for the tenant — audit chain appends must never race
// for the same sequence number.
type Handle struct {
	TenantID string

	sqlDB   *sql.DB
	writeMu sync.Mutex
}

// DB exposes the underlying database for read queries.
func (h *Handle) DB() *sql.DB { return h.sqlDB }

// Registry owns one lazily-created database handle per tenant. It replaces
// the ambient global handle cache with an explicit open/close lifecycle.
type Registry struct {
	dir string
	log *logrus.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewRegistry creates a Registry storing tenant databases under dir.
func NewRegistry(dir string, log *logrus.Logger) *Registry {
	return &Registry{
		dir:     dir,
		log:     log,
		handles: make(map[string]*Handle),
	}
}

// Dir returns the directory holding the tenant database files.
func (r *Registry) Dir() string { return r.dir }

// Open returns the handle for a tenant, creating and migrating its database
// on first use. Tenant IDs must be UUIDs; the ID is the only caller input
// that reaches the filesystem path.
func (r *Registry) Open(ctx context.Context, tenantID string) (*Handle, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, fmt.Errorf("invalid tenant ID format: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[tenantID]; ok {
		return h, nil
	}

	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(r.dir, tenantID+".db")

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening tenant database: %w", err)
	}

	// A single connection sidesteps SQLITE_BUSY between writers; per-tenant
	// write throughput is bounded by the single-writer model anyway.
	sqlDB.SetMaxOpenConns(1)

	if err := db.RunMigrations(ctx, sqlDB, r.log, migrations.FS); err != nil {
		sqlDB.Close() //nolint:errcheck // best-effort close on setup failure.

		return nil, fmt.Errorf("migrating tenant database: %w", err)
	}

	h := &Handle{TenantID: tenantID, sqlDB: sqlDB}
	r.handles[tenantID] = h

	r.log.WithField("tenant_id", tenantID).Info("tenant store opened")

	return h, nil
}

// Close closes and forgets a single tenant handle. No-op if not open.
func (r *Registry) Close(tenantID string) error {
	r.mu.Lock()
	h, ok := r.handles[tenantID]
	delete(r.handles, tenantID)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	if err := h.sqlDB.Close(); err != nil {
		return fmt.Errorf("closing tenant database: %w", err)
	}

	return nil
}

// CloseAll closes every open tenant handle. Called on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	for tenantID, h := range handles {
		if err := h.sqlDB.Close(); err != nil {
			r.log.WithError(err).WithField("tenant_id", tenantID).Warn("closing tenant database")
		}
	}
}

// Tenants lists the tenant IDs with a database file on disk, whether or not
// a handle is currently open.
func (r *Registry) Tenants() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading data dir: %w", err)
	}

	var tenants []string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".db" {
			continue
		}
		id := name[:len(name)-3]
		if _, err := uuid.Parse(id); err == nil {
			tenants = append(tenants, id)
		}
	}

	return tenants, nil
}
