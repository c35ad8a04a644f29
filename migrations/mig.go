// Package migrations creates and evolves the run-archive schema. The SQL
// files are embedded so the binary can migrate whatever archive file it is
// pointed at before reading or writing runs.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed files/*.sql
var archiveFS embed.FS

// Up brings the archive schema to the latest version. Safe to call on every
// start; applied versions are skipped.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(archiveFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set archive migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "files"); err != nil {
		return fmt.Errorf("migrate run archive: %w", err)
	}
	return nil
}
