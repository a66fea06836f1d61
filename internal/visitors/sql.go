package visitors

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ledgerID addresses the singleton row, mirroring the analytics/visitors document.
const ledgerID = "visitors"

// SQLStore keeps the ledger in a SQLite-compatible database. The visitor set is
// a table keyed by visitor id, so membership checks and inserts are atomic.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the ledger tables if they are missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS visitor_ledger (
			id TEXT PRIMARY KEY,
			total_visitors INTEGER NOT NULL DEFAULT 0,
			total_visits INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_visitors (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL UNIQUE,
			seen_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate visitor ledger: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context) (Ledger, error) {
	var l Ledger
	err := s.db.QueryRowContext(ctx,
		`SELECT total_visitors, total_visits FROM visitor_ledger WHERE id = ?`, ledgerID,
	).Scan(&l.TotalVisitors, &l.TotalVisits)
	if err == sql.ErrNoRows {
		return Ledger{}, ErrLedgerNotFound
	}
	if err != nil {
		return Ledger{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT visitor_id FROM ledger_visitors ORDER BY seq`)
	if err != nil {
		return Ledger{}, err
	}
	defer rows.Close()

	l.Visitors = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return Ledger{}, err
		}
		l.Visitors = append(l.Visitors, id)
	}
	return l, rows.Err()
}

func (s *SQLStore) Create(ctx context.Context, l Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO visitor_ledger (id, total_visitors, total_visits)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ledgerID, l.TotalVisitors, l.TotalVisits)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLedgerExists
	}

	now := time.Now().UnixMilli()
	for _, id := range l.Visitors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_visitors (visitor_id, seen_at) VALUES (?, ?) ON CONFLICT(visitor_id) DO NOTHING`,
			id, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) IncrementVisits(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE visitor_ledger SET total_visits = total_visits + 1 WHERE id = ?`, ledgerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLedgerNotFound
	}
	return nil
}

func (s *SQLStore) AddVisitor(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_visitors (visitor_id, seen_at) VALUES (?, ?) ON CONFLICT(visitor_id) DO NOTHING`,
		id, time.Now().UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE visitor_ledger SET total_visitors = total_visitors + 1 WHERE id = ?`, ledgerID)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, ErrLedgerNotFound
	}
	return true, tx.Commit()
}
