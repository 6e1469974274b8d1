package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shuttle/internal/config"
)

// Store manages queue persistence backed by SQLite. The same database also
// carries the credential and audit tables; those are owned by their own
// packages and only share the connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the shuttle database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database at an explicit location. Pragmas ride the DSN
// so every connection in the database/sql pool gets them, and transactions
// begin as write transactions so concurrent workers queue on the busy
// timeout instead of failing with SQLITE_BUSY.
func OpenPath(dbPath string) (*Store, error) {
	dsn := "file:" + dbPath + "?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the shared connection to sibling stores (credentials, audit).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Add enqueues a new content item. The store assigns a fresh id and the
// pending status; insertion order is the FIFO priority for batch retrieval.
func (s *Store) Add(ctx context.Context, in NewItem) (*Item, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, errors.New("content is required")
	}
	if len(in.Platforms) == 0 {
		return nil, errors.New("at least one target platform is required")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	scheduledAt := in.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now
	}

	platformsJSON, err := json.Marshal(in.Platforms)
	if err != nil {
		return nil, fmt.Errorf("marshal platforms: %w", err)
	}
	hashtagsJSON, err := json.Marshal(in.Hashtags)
	if err != nil {
		return nil, fmt.Errorf("marshal hashtags: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO queue_items (
            id, content, platforms_json, caption, hashtags_json,
            scheduled_at, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		in.Content,
		string(platformsJSON),
		nullableString(in.Caption),
		string(hashtagsJSON),
		scheduledAt.UTC().Format(time.RFC3339Nano),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier. A missing id resolves to nil.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// NextBatch returns up to limit pending items in insertion order. When
// dueOnly is set only items whose scheduled time has elapsed relative to now
// are returned. The read does not mutate state, so repeated calls without
// status updates yield the same result.
func (s *Store) NextBatch(ctx context.Context, limit int, now time.Time, dueOnly bool) ([]*Item, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE status = ?`
	args := []any{StatusPending}
	if dueOnly {
		query += ` AND scheduled_at <= ?`
		args = append(args, now.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY rowid_alias LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("next batch: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateStatus transitions the matching item to a new status. Unknown ids
// surface ErrNotFound; transitions outside the lifecycle DAG surface
// ErrIllegalTransition. The check-and-write runs in one transaction so
// concurrent updates to the same item serialize.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM queue_items WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("read current status: %w", err)
	}

	if !CanTransition(Status(current), status) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, status)
	}

	_, err = tx.ExecContext(
		ctx,
		`UPDATE queue_items SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status: %w", err)
	}
	return nil
}

// Update persists changes to an existing queue item. Status changes should
// go through UpdateStatus; Update writes the item as given.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()

	platformsJSON, err := json.Marshal(item.Platforms)
	if err != nil {
		return fmt.Errorf("marshal platforms: %w", err)
	}
	hashtagsJSON, err := json.Marshal(item.Hashtags)
	if err != nil {
		return fmt.Errorf("marshal hashtags: %w", err)
	}
	var postIDsJSON any
	if len(item.PostIDs) > 0 {
		data, err := json.Marshal(item.PostIDs)
		if err != nil {
			return fmt.Errorf("marshal post ids: %w", err)
		}
		postIDsJSON = string(data)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_items
         SET content = ?, platforms_json = ?, caption = ?, hashtags_json = ?,
             scheduled_at = ?, status = ?, error_message = ?, post_ids_json = ?,
             attempts = ?, updated_at = ?
         WHERE id = ?`,
		item.Content,
		string(platformsJSON),
		nullableString(item.Caption),
		string(hashtagsJSON),
		item.ScheduledAt.UTC().Format(time.RFC3339Nano),
		item.Status,
		nullableString(item.ErrorMessage),
		postIDsJSON,
		item.Attempts,
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, item.ID)
	}
	return nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY rowid_alias`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RetryFailed moves failed items back to pending for reprocessing. With no
// ids every failed item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE queue_items
            SET status = ?, error_message = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, timestamp, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE queue_items
        SET status = ?, error_message = NULL, updated_at = ?
        WHERE status = ? AND id IN (` + placeholders + `)`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusScheduled:
			health.Scheduled += count
		case StatusPosted:
			health.Posted += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// ClearPosted removes only posted items from the queue.
func (s *Store) ClearPosted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusPosted)
	if err != nil {
		return 0, fmt.Errorf("clear posted: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all items from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

const itemColumns = "id, content, platforms_json, caption, hashtags_json, scheduled_at, status, error_message, post_ids_json, attempts, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id            string
		content       string
		platformsJSON string
		caption       sql.NullString
		hashtagsJSON  sql.NullString
		scheduledRaw  string
		statusStr     string
		errorMessage  sql.NullString
		postIDsJSON   sql.NullString
		attempts      int
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&content,
		&platformsJSON,
		&caption,
		&hashtagsJSON,
		&scheduledRaw,
		&statusStr,
		&errorMessage,
		&postIDsJSON,
		&attempts,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		Content:      content,
		Caption:      caption.String,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
		Attempts:     attempts,
	}

	if err := json.Unmarshal([]byte(platformsJSON), &item.Platforms); err != nil {
		return nil, fmt.Errorf("decode platforms: %w", err)
	}
	if hashtagsJSON.Valid && hashtagsJSON.String != "" {
		if err := json.Unmarshal([]byte(hashtagsJSON.String), &item.Hashtags); err != nil {
			return nil, fmt.Errorf("decode hashtags: %w", err)
		}
	}
	if postIDsJSON.Valid && postIDsJSON.String != "" {
		if err := json.Unmarshal([]byte(postIDsJSON.String), &item.PostIDs); err != nil {
			return nil, fmt.Errorf("decode post ids: %w", err)
		}
	}

	if scheduled, err := parseTimeString(scheduledRaw); err == nil {
		item.ScheduledAt = scheduled
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
