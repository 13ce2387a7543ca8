package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/models"
)

// seq keeps insertion order, so listing by seq matches the order a JSON
// array would have. recipe_id is NULL for recipes without an id.
const recipeSchemaSQL = `
CREATE TABLE IF NOT EXISTS recipes (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	recipe_id TEXT,
	body      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recipes_recipe_id ON recipes(recipe_id);
`

// SQLite implements Provider on an embedded SQLite database.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(recipeSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// List returns every recipe in insertion order.
func (s *SQLite) List(ctx context.Context) ([]models.Recipe, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT body FROM recipes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", apperr.ErrStorageRead, err)
	}
	defer rows.Close()

	out := []models.Recipe{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", apperr.ErrStorageRead, err)
		}
		r, err := models.ParseRecipe([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("%w: decode row: %w", apperr.ErrStorageRead, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", apperr.ErrStorageRead, err)
	}
	return out, nil
}

// Upsert replaces the earliest row keyed by r's id, or inserts a new row.
func (s *SQLite) Upsert(ctx context.Context, r models.Recipe) (models.Recipe, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", apperr.ErrStorageWrite, err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %w", apperr.ErrStorageRead, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	id := nullableID(r.ID())
	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT seq FROM recipes WHERE recipe_id = ? ORDER BY seq LIMIT 1`, id).Scan(&seq)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `INSERT INTO recipes (recipe_id, body) VALUES (?, ?)`, id, string(body))
		if err != nil {
			return nil, fmt.Errorf("%w: insert: %w", apperr.ErrStorageWrite, err)
		}
	case err != nil:
		return nil, fmt.Errorf("%w: lookup: %w", apperr.ErrStorageRead, err)
	default:
		_, err = tx.ExecContext(ctx, `UPDATE recipes SET body = ? WHERE seq = ?`, string(body), seq)
		if err != nil {
			return nil, fmt.Errorf("%w: update: %w", apperr.ErrStorageWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", apperr.ErrStorageWrite, err)
	}
	return r, nil
}

// DeleteByID removes every row keyed by id.
func (s *SQLite) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("storage: delete %q: %w", id, apperr.ErrNotFound)
	}
	res, err := s.conn.ExecContext(ctx, `DELETE FROM recipes WHERE recipe_id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete: %w", apperr.ErrStorageWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete: %w", apperr.ErrStorageWrite, err)
	}
	if n == 0 {
		return fmt.Errorf("storage: delete %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// CopyByID inserts a duplicate of the earliest row keyed by id.
func (s *SQLite) CopyByID(ctx context.Context, id, newID string) (models.Recipe, error) {
	if id == "" {
		return nil, fmt.Errorf("storage: copy %q: %w", id, apperr.ErrNotFound)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %w", apperr.ErrStorageRead, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var body string
	err = tx.QueryRowContext(ctx,
		`SELECT body FROM recipes WHERE recipe_id = ? ORDER BY seq LIMIT 1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: copy %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %w", apperr.ErrStorageRead, err)
	}
	src, err := models.ParseRecipe([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("%w: decode row: %w", apperr.ErrStorageRead, err)
	}

	dup := src.Duplicate(newID)
	dupBody, err := json.Marshal(dup)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", apperr.ErrStorageWrite, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recipes (recipe_id, body) VALUES (?, ?)`, newID, string(dupBody)); err != nil {
		return nil, fmt.Errorf("%w: insert: %w", apperr.ErrStorageWrite, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", apperr.ErrStorageWrite, err)
	}
	return dup, nil
}

func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

var _ Provider = (*SQLite)(nil)
