package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/onnwee/streamcast/dispatch"
)

// AuditLog stores handled commands in command_audit. It implements
// dispatch.AuditSink.
type AuditLog struct {
	db *sql.DB
}

var _ dispatch.AuditSink = (*AuditLog)(nil)

// NewAuditLog wraps an already migrated database.
func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// RecordCommand inserts one entry. caller_id is NUMERIC so the full uint64
// range of platform ids fits.
func (a *AuditLog) RecordCommand(ctx context.Context, e dispatch.AuditEntry) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO command_audit (correlation_id, platform, command, caller_id, outcome, detail, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)`,
		e.CorrelationID, e.Platform, e.Command, strconv.FormatUint(e.CallerID, 10), e.Outcome, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert command_audit: %w", err)
	}
	return nil
}

// Recent returns the newest entries first, at most limit (default 20).
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]dispatch.AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT correlation_id, platform, command, caller_id::text, outcome, detail, created_at
		 FROM command_audit ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query command_audit: %w", err)
	}
	defer rows.Close()

	var out []dispatch.AuditEntry
	for rows.Next() {
		var e dispatch.AuditEntry
		var caller string
		if err := rows.Scan(&e.CorrelationID, &e.Platform, &e.Command, &caller, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.CallerID, err = strconv.ParseUint(caller, 10, 64); err != nil {
			return nil, fmt.Errorf("caller_id %q: %w", caller, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
