package pg

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded DDL scripts in lexical order. Scripts are idempotent.
func Migrate(ctx context.Context, cm *ConnectionManager) error {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return errors.WithMessage(err, "list migrations")
	}
	sort.Strings(names)
	return cm.WithTx(ctx, func(tx pgx.Tx) error {
		for _, name := range names {
			body, err := migrationsFS.ReadFile(name)
			if err != nil {
				return errors.WithMessagef(err, "read migration '%s'", name)
			}
			if _, err = tx.Exec(ctx, string(body)); err != nil {
				return errors.WithMessagef(err, "apply migration '%s'", name)
			}
		}
		return nil
	})
}
