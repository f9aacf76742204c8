package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/example/menu-scheduler/internal/db"
)

//go:embed *.sql
var files embed.FS

// Up applies every embedded migration not yet recorded in schema_migrations,
// in file name order.
func Up(ctx context.Context, q db.Querier) error {
	return apply(ctx, q, files)
}

func apply(ctx context.Context, q db.Querier, fsys fs.ReadDirFS) error {
	entries, err := fsys.ReadDir(".")
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if err := q.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY);`); err != nil {
		return err
	}

	for _, name := range names {
		var applied bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, name).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}

		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if err := q.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if err := q.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, name); err != nil {
			return err
		}
	}
	return nil
}
