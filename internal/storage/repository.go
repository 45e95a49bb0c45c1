// Package storage persists allocation runs to SQLite so served plans can be
// audited and narration can be backfilled after the fact.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// Narration status values for an allocation record.
const (
	NarrationStatic     = "static"
	NarrationModel      = "model"
	NarrationBackfilled = "backfilled"
	NarrationFailed     = "failed"
)

// ErrNotFound means no allocation record exists for the given id.
var ErrNotFound = errors.New("allocation record not found")

// AllocationRecord is one stored allocation run. Result and Narration hold
// the serialized JSON exactly as served.
type AllocationRecord struct {
	ID                string
	CreatedAt         time.Time
	PaymentAmount     decimal.Decimal
	AccountCount      int
	Strategy          string
	InsufficientFunds bool
	Result            string
	Narration         string
	NarrationStatus   string
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecordAllocation stores a served allocation run.
func (r *SQLiteRepository) RecordAllocation(ctx context.Context, rec AllocationRecord) error {
	insufficient := 0
	if rec.InsufficientFunds {
		insufficient = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO allocations (id, created_at, payment_amount, account_count, strategy, insufficient_funds, result, narration, narration_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.PaymentAmount.String(),
		rec.AccountCount,
		rec.Strategy,
		insufficient,
		rec.Result,
		rec.Narration,
		rec.NarrationStatus,
	)
	if err != nil {
		return fmt.Errorf("insert allocation: %w", err)
	}
	return nil
}

// GetAllocation retrieves a single allocation run by id.
func (r *SQLiteRepository) GetAllocation(ctx context.Context, id string) (*AllocationRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, created_at, payment_amount, account_count, strategy, insufficient_funds, result, narration, narration_status
		FROM allocations WHERE id = ?`, id)

	rec, err := scanAllocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get allocation %s: %w", id, err)
	}
	return rec, nil
}

// ListRecent returns the most recent allocation runs, newest first.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]AllocationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, payment_amount, account_count, strategy, insufficient_funds, result, narration, narration_status
		FROM allocations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent allocations: %w", err)
	}
	defer rows.Close()

	return collectAllocations(rows)
}

// ListStaticNarrations returns runs that were served with the static fallback
// narrator and are still waiting for a model backfill, oldest first.
func (r *SQLiteRepository) ListStaticNarrations(ctx context.Context, limit int) ([]AllocationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, payment_amount, account_count, strategy, insufficient_funds, result, narration, narration_status
		FROM allocations WHERE narration_status = ? ORDER BY created_at ASC LIMIT ?`,
		NarrationStatic, limit)
	if err != nil {
		return nil, fmt.Errorf("list static narrations: %w", err)
	}
	defer rows.Close()

	return collectAllocations(rows)
}

// UpdateNarration replaces the stored narration text and status for a run.
func (r *SQLiteRepository) UpdateNarration(ctx context.Context, id, narration, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE allocations SET narration = ?, narration_status = ? WHERE id = ?`,
		narration, status, id)
	if err != nil {
		return fmt.Errorf("update narration for %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update narration rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAllocation(row rowScanner) (*AllocationRecord, error) {
	var (
		rec          AllocationRecord
		createdAt    string
		amount       string
		insufficient int
	)
	err := row.Scan(&rec.ID, &createdAt, &amount, &rec.AccountCount, &rec.Strategy,
		&insufficient, &rec.Result, &rec.Narration, &rec.NarrationStatus)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	rec.PaymentAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse payment_amount: %w", err)
	}
	rec.InsufficientFunds = insufficient != 0

	return &rec, nil
}

func collectAllocations(rows *sql.Rows) ([]AllocationRecord, error) {
	var records []AllocationRecord
	for rows.Next() {
		rec, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocations: %w", err)
	}
	return records, nil
}
