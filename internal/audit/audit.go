// Package audit maintains the append-only action trail for credential
// access and scheduling operations.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Entry is a single audit record. Entries are append-only and ordered by
// sequence number; timestamps must be non-decreasing in that order.
type Entry struct {
	Seq       int64
	Timestamp time.Time
	Action    string
	User      string
	Details   string
}

// Log appends and reads audit entries backed by the shared SQLite database.
type Log struct {
	db *sql.DB
}

// NewLog wraps the shared database connection.
func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Append records one action. User and details are optional.
func (l *Log) Append(ctx context.Context, action, user, details string) error {
	if action == "" {
		return errors.New("audit action is required")
	}
	_, err := l.db.ExecContext(
		ctx,
		`INSERT INTO audit_log (ts, action, user, details) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		action,
		nullable(user),
		nullable(details),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Logs returns entries in append order, optionally filtered by user.
func (l *Log) Logs(ctx context.Context, user string) ([]Entry, error) {
	query := `SELECT seq, ts, action, user, details FROM audit_log`
	var args []any
	if user != "" {
		query += ` WHERE user = ?`
		args = append(args, user)
	}
	query += ` ORDER BY seq`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			tsRaw   string
			userCol sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&entry.Seq, &tsRaw, &entry.Action, &userCol, &details); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		entry.Timestamp = ts
		entry.User = userCol.String
		entry.Details = details.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// VerifyIntegrity reports whether entry timestamps are non-decreasing in
// append order. Violations are surfaced, not repaired.
func (l *Log) VerifyIntegrity(ctx context.Context) (bool, error) {
	entries, err := l.Logs(ctx, "")
	if err != nil {
		return false, err
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			return false, nil
		}
	}
	return true, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
