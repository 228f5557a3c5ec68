package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound marks a date with no stored snapshot.
var ErrNotFound = errors.New("race day not found")

// Backend is the keyed string storage underneath the persistence adapter.
type Backend interface {
	Get(ctx context.Context, date string) (string, error)
	Set(ctx context.Context, date, snapshot string) error
	Remove(ctx context.Context, date string) error
	Dates(ctx context.Context) ([]string, error)
}

// SQLBackend stores snapshots in the race_days table.
type SQLBackend struct {
	db *sql.DB
}

func NewSQLBackend(db *sql.DB) *SQLBackend {
	return &SQLBackend{db: db}
}

func (b *SQLBackend) Get(ctx context.Context, date string) (string, error) {
	var snapshot string
	err := b.db.QueryRowContext(ctx, `SELECT snapshot FROM race_days WHERE date = ?`, date).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("date %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get race day %s: %w", date, err)
	}
	return snapshot, nil
}

func (b *SQLBackend) Set(ctx context.Context, date, snapshot string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO race_days (date, snapshot, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		date, snapshot, time.Now())
	if err != nil {
		return fmt.Errorf("set race day %s: %w", date, err)
	}
	return nil
}

func (b *SQLBackend) Remove(ctx context.Context, date string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM race_days WHERE date = ?`, date); err != nil {
		return fmt.Errorf("remove race day %s: %w", date, err)
	}
	return nil
}

func (b *SQLBackend) Dates(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT date FROM race_days ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("list race days: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan race day date: %w", err)
		}
		dates = append(dates, date)
	}
	return dates, rows.Err()
}

// MemoryBackend is the in-process storage used by tests and available as a
// throwaway alternative to sqlite.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

func (b *MemoryBackend) Get(_ context.Context, date string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snapshot, ok := b.data[date]
	if !ok {
		return "", fmt.Errorf("date %s: %w", date, ErrNotFound)
	}
	return snapshot, nil
}

func (b *MemoryBackend) Set(_ context.Context, date, snapshot string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[date] = snapshot
	return nil
}

func (b *MemoryBackend) Remove(_ context.Context, date string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, date)
	return nil
}

func (b *MemoryBackend) Dates(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dates := make([]string, 0, len(b.data))
	for date := range b.data {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}
