package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/changeling-watch/internal/status"
)

const (
	// DefaultLimit is used when Recent is called with a non-positive limit.
	DefaultLimit = 50

	// MaxLimit caps Recent.
	MaxLimit = 200

	// timeLayout is fixed-width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is a stored transition.
type Entry struct {
	ID int64 `json:"id"`
	status.Transition
}

// Repository stores and retrieves transitions.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record stores t and returns its ID.
	Record(ctx context.Context, t status.Transition) (int64, error)

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Prune deletes entries observed more than olderThan ago.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository implements Repository on the status_transitions table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record implements Repository. A zero ObservedAt is stamped with the
// current time.
func (r *SQLiteRepository) Record(ctx context.Context, t status.Transition) (int64, error) {
	if t.To == "" {
		return 0, fmt.Errorf("transition target state is required")
	}
	if t.From == "" {
		t.From = status.StateUnknown
	}
	if t.ObservedAt.IsZero() {
		t.ObservedAt = r.now()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO status_transitions (from_state, to_state, buffer_seconds, raw, observed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(t.From),
		string(t.To),
		t.BufferSeconds,
		t.Raw,
		t.ObservedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting transition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading transition id: %w", err)
	}
	return id, nil
}

// Recent implements Repository. limit is clamped to [1, MaxLimit]; zero or
// negative means DefaultLimit.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, from_state, to_state, buffer_seconds, raw, observed_at
		 FROM status_transitions
		 ORDER BY observed_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			entry      Entry
			from, to   string
			observedAt string
		)
		if err := rows.Scan(&entry.ID, &from, &to, &entry.BufferSeconds, &entry.Raw, &observedAt); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}

		entry.From = status.RunState(from)
		entry.To = status.RunState(to)
		entry.ObservedAt, err = time.Parse(timeLayout, observedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing observed_at: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}

	return entries, nil
}

// Prune implements Repository.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM status_transitions WHERE observed_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting transitions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
