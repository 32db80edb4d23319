package dialogue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Store keeps named scripts in Postgres so several hosts can share one table.
type Store struct {
	conn *pgx.Conn
}

// OpenStore connects and creates the schema if it does not exist.
func OpenStore(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("init script schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS script_lines (
			script   TEXT NOT NULL,
			position INT  NOT NULL,
			speaker  TEXT NOT NULL,
			dialogue TEXT NOT NULL,
			PRIMARY KEY (script, position)
		);
	`)
	return err
}

// Close terminates the connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// Import replaces the named script with the entries of sc.
func (s *Store) Import(ctx context.Context, name string, sc *Script) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM script_lines WHERE script = $1", name); err != nil {
		return err
	}

	rows := make([][]any, 0, sc.Len())
	for _, e := range sc.entries {
		rows = append(rows, []any{name, e.ID, e.Speaker, e.Text})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"script_lines"},
		[]string{"script", "position", "speaker", "dialogue"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Load reads the named script ordered by position. Ids are reassigned from
// row order so gaps in positions do not leave holes.
func (s *Store) Load(ctx context.Context, name string) (*Script, error) {
	rows, err := s.conn.Query(ctx,
		"SELECT speaker, dialogue FROM script_lines WHERE script = $1 ORDER BY position", name)
	if err != nil {
		return nil, err
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.Speaker, &e.Text)
		return e, err
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("script %q: %w", name, pgx.ErrNoRows)
	}
	return NewScript(records), nil
}

// Count returns the number of lines stored for name.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx, "SELECT COUNT(*) FROM script_lines WHERE script = $1", name).Scan(&n)
	return n, err
}
