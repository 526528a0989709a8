// Package audit records the actuator commands the dispatcher applied.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one applied command.
type Entry struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Mirrored  json.RawMessage `json:"mirrored,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Filter selects entries. Zero values mean "any".
type Filter struct {
	Topic  string
	Kind   string
	Limit  int // default 50, max 200
	Offset int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and lists audit entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps entries in the command_audit table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts e, filling in ID and CreatedAt when empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.Topic == "" || e.Kind == "" {
		return fmt.Errorf("inserting audit entry: topic and kind are required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)

	payload := string(e.Payload)
	if payload == "" {
		payload = "{}"
	}

	var mirrored any
	if len(e.Mirrored) > 0 {
		mirrored = string(e.Mirrored)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_audit (id, topic, kind, payload, mirrored, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Topic, e.Kind, payload, mirrored, e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Topic != "" {
		conditions = append(conditions, "topic = ?")
		args = append(args, filter.Topic)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM command_audit " + where //nolint:gosec // conditions are placeholders only
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := "SELECT id, topic, kind, payload, mirrored, created_at FROM command_audit " + //nolint:gosec // as above
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var payload string
		var mirrored sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.Topic, &e.Kind, &payload, &mirrored, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		if mirrored.Valid {
			e.Mirrored = json.RawMessage(mirrored.String)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
