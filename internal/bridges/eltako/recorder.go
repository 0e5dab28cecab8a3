package eltako

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
)

// DiscoveredAddress is a sender heard on the bus that no configured device
// claims.
type DiscoveredAddress struct {
	Address      string    `json:"address"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	MessageCount int64     `json:"message_count"`
	LastOrg      string    `json:"last_org"`
	LastPayload  string    `json:"last_payload"`
	LastStatus   byte      `json:"last_status"`
}

// DiscoveryRecorder passively records unknown sender addresses seen on the
// bus. It is called by the Bridge for every unresolved telegram from an
// unconfigured sender, building a list of devices waiting to be configured.
//
// Thread Safety: All methods are safe for concurrent use.
type DiscoveryRecorder struct {
	db     *sql.DB
	logger Logger

	// Prepared upsert (created once, reused)
	upsertStmt *sql.Stmt
	stmtMu     sync.Mutex

	// Shutdown coordination
	closed bool
	mu     sync.RWMutex
}

// NewDiscoveryRecorder creates a recorder. The database must have the
// enocean_addresses table created.
func NewDiscoveryRecorder(db *sql.DB) *DiscoveryRecorder {
	return &DiscoveryRecorder{
		db:     db,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *DiscoveryRecorder) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Start prepares the recorder for use.
// Must be called before RecordTelegram.
func (r *DiscoveryRecorder) Start() error {
	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.upsertStmt != nil {
		return nil // Already started
	}

	stmt, err := r.db.Prepare(`
		INSERT INTO enocean_addresses
			(address, first_seen, last_seen, message_count, last_org, last_payload, last_status)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			last_seen = excluded.last_seen,
			message_count = message_count + 1,
			last_org = excluded.last_org,
			last_payload = excluded.last_payload,
			last_status = excluded.last_status
	`)
	if err != nil {
		return fmt.Errorf("preparing discovery upsert statement: %w", err)
	}

	r.upsertStmt = stmt
	r.logger.Info("discovery recorder started")
	return nil
}

// Stop closes the recorder and releases resources.
func (r *DiscoveryRecorder) Stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.upsertStmt != nil {
		r.upsertStmt.Close()
		r.upsertStmt = nil
	}

	r.logger.Info("discovery recorder stopped")
}

// RecordTelegram records the sender of a telegram.
//
// Parameters:
//   - t: Radio telegram from an unconfigured sender
//   - at: Receive time
func (r *DiscoveryRecorder) RecordTelegram(t esp2.Telegram, at time.Time) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return
	}
	r.mu.RUnlock()

	r.stmtMu.Lock()
	stmt := r.upsertStmt
	r.stmtMu.Unlock()

	if stmt == nil || t.Sender.IsZero() {
		return
	}

	ts := at.Unix()
	_, err := stmt.Exec(t.Sender.String(), ts, ts, t.Org.String(),
		hex.EncodeToString(t.Payload()), int(t.Status))
	if err != nil {
		r.logger.Error("recording discovered address", "address", t.Sender.String(), "error", err)
	}
}

// List returns discovered addresses, most recently seen first.
//
// Parameters:
//   - ctx: Context for cancellation
//   - limit: Maximum rows; zero or less returns all
//
// Returns:
//   - []DiscoveredAddress: Addresses in last_seen order
//   - error: If the query fails
func (r *DiscoveryRecorder) List(ctx context.Context, limit int) ([]DiscoveredAddress, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT address, first_seen, last_seen, message_count, last_org, last_payload, last_status
		FROM enocean_addresses
		ORDER BY last_seen DESC, address ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing discovered addresses: %w", err)
	}
	defer rows.Close()

	out := []DiscoveredAddress{}
	for rows.Next() {
		var (
			d           DiscoveredAddress
			first, last int64
			status      int
		)
		if err := rows.Scan(&d.Address, &first, &last, &d.MessageCount, &d.LastOrg, &d.LastPayload, &status); err != nil {
			return nil, fmt.Errorf("scanning discovered address: %w", err)
		}
		d.FirstSeen = time.Unix(first, 0).UTC()
		d.LastSeen = time.Unix(last, 0).UTC()
		d.LastStatus = byte(status) //nolint:gosec // stored from a byte
		out = append(out, d)
	}
	return out, rows.Err()
}

// Forget removes an address, typically after it has been configured.
func (r *DiscoveryRecorder) Forget(ctx context.Context, addr enocean.Address) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM enocean_addresses WHERE address = ?`, addr.String())
	return err
}

// Count returns the number of discovered addresses.
func (r *DiscoveryRecorder) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enocean_addresses`).Scan(&count)
	return count, err
}
