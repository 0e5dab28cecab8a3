// Package audit keeps the command_log table: every command the bridge
// executed, where it came from and how the gateway answered.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
)

// Entry is one executed command.
type Entry struct {
	ID         string           `json:"id"`
	CommandID  string           `json:"command_id"`
	DeviceID   string           `json:"device_id"`
	Address    string           `json:"address,omitempty"`
	Command    string           `json:"command"`
	Parameters map[string]any   `json:"parameters,omitempty"`
	Source     string           `json:"source"`
	UserID     string           `json:"user_id,omitempty"`
	Status     eltako.AckStatus `json:"status"`
	ErrorCode  string           `json:"error_code,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Filter controls which entries to return.
type Filter struct {
	DeviceID string // optional: device id
	Status   string // optional: accepted, failed or timeout
	Source   string // optional: mqtt, api, ...
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Page size limits.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLiteRepository stores command entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordCommand stores a command with its acknowledgement. It implements
// eltako.CommandAuditor.
func (r *SQLiteRepository) RecordCommand(ctx context.Context, cmd eltako.CommandMessage, ack eltako.AckMessage) error {
	return r.Create(ctx, newEntry(cmd, ack))
}

func newEntry(cmd eltako.CommandMessage, ack eltako.AckMessage) *Entry {
	e := &Entry{
		CommandID:  cmd.ID,
		DeviceID:   ack.DeviceID,
		Address:    ack.Address,
		Command:    cmd.Command,
		Parameters: cmd.Parameters,
		Source:     cmd.Source,
		UserID:     cmd.UserID,
		Status:     ack.Status,
		CreatedAt:  ack.Timestamp,
	}
	if e.DeviceID == "" {
		e.DeviceID = cmd.DeviceID
	}
	if e.Source == "" {
		e.Source = "unknown"
	}
	if ack.Error != nil {
		e.ErrorCode = ack.Error.Code
		e.Error = ack.Error.Message
	}
	return e
}

// Create inserts an entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var params *string
	if len(e.Parameters) > 0 {
		b, err := json.Marshal(e.Parameters)
		if err != nil {
			return fmt.Errorf("marshalling command parameters: %w", err)
		}
		s := string(b)
		params = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, command_id, device_id, address, command, parameters,
		                          source, user_id, status, error_code, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CommandID, e.DeviceID, nullableString(e.Address), e.Command, params,
		e.Source, nullableString(e.UserID), string(e.Status),
		nullableString(e.ErrorCode), nullableString(e.Error),
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // WHERE clause assembly from filter fields
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

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, command_id, device_id, address, command, parameters, source, user_id,
		        status, error_code, error, created_at
		 FROM command_log %s ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var address, params, userID, errCode, errMsg sql.NullString
		var status, createdAt string

		if err := rows.Scan(&e.ID, &e.CommandID, &e.DeviceID, &address, &e.Command, &params,
			&e.Source, &userID, &status, &errCode, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}

		e.Address = address.String
		e.UserID = userID.String
		e.ErrorCode = errCode.String
		e.Error = errMsg.String
		e.Status = eltako.AckStatus(status)
		if params.Valid && params.String != "" {
			var p map[string]any
			if json.Unmarshal([]byte(params.String), &p) == nil {
				e.Parameters = p
			}
		}

		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
