// Migration runner using goose (github.com/pressly/goose/v3).
//
// Every tenant handle is backed by its own SQLite file, so migrations run
// once per handle when the registry opens it. goose tracks applied versions
// in its own goose_db_version table inside each tenant file.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

// RunMigrations applies all pending migrations from the provided filesystem
// to the given SQLite database.
func RunMigrations(ctx context.Context, sqlDB *sql.DB, log *logrus.Logger, fsys fs.FS) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}

		log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration,
		}).Debug("migration applied")
	}

	return nil
}
