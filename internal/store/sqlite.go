package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore persists records in a single plans table.
type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			owner TEXT NOT NULL,
			status TEXT,
			payload TEXT,
			updated_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_owner ON plans(owner);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status);`,
	}
	for _, q := range queries {
		if _, err = db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &SQLiteStore{DB: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	query := `INSERT INTO plans (id, owner, status, payload, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at`
	_, err := s.DB.ExecContext(ctx, query, rec.ID, rec.Owner, rec.Status, string(rec.Payload), rec.UpdatedAt.UnixNano())
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id, owner string) (Record, bool, error) {
	query := `SELECT id, owner, status, payload, updated_at FROM plans WHERE id = ? AND owner = ?`
	recs, err := s.query(ctx, query, id, owner)
	if err != nil || len(recs) == 0 {
		return Record{}, false, err
	}
	return recs[0], true, nil
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, owner string) ([]Record, error) {
	query := `SELECT id, owner, status, payload, updated_at FROM plans WHERE owner = ? ORDER BY seq`
	return s.query(ctx, query, owner)
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, status string) ([]Record, error) {
	query := `SELECT id, owner, status, payload, updated_at FROM plans WHERE status = ? ORDER BY seq`
	return s.query(ctx, query, status)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		var rec Record
		var payload string
		var updated int64
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.Status, &payload, &updated); err != nil {
			return nil, err
		}
		rec.Payload = []byte(payload)
		rec.UpdatedAt = time.Unix(0, updated)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}
