// Package recorder persists a redacted log of backend calls to SQLite.
// Records carry request shape, outcome, and token counts only; prompt
// text, tool arguments, and completions are never written.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/anhofmann/aicore-go/internal/domain"
)

// Record is one logged backend call.
type Record struct {
	ID        string
	Backend   domain.Backend
	Operation string
	ModelID   string

	Request Shape

	FinishReason string
	Usage        *domain.Usage

	// ErrorKind is empty for successful calls; otherwise one of
	// "validation", "capability", "api-call", "aborted", "other".
	ErrorKind    string
	ErrorMessage string

	Duration  time.Duration
	CreatedAt time.Time
}

// Shape is the redacted description of what the request contained.
type Shape struct {
	MessageCount      int  `json:"messageCount"`
	ToolCount         int  `json:"toolCount"`
	Stream            bool `json:"stream"`
	HasResponseFormat bool `json:"hasResponseFormat"`
	HasToolChoice     bool `json:"hasToolChoice"`
	ConfigRef         bool `json:"configRef"`
}

// ShapeOf projects a request summary into the persisted shape.
func ShapeOf(summary domain.RequestSummary) Shape {
	return Shape{
		MessageCount:      summary.MessageCount,
		ToolCount:         summary.ToolCount,
		Stream:            summary.Stream,
		HasResponseFormat: summary.HasResponseFormat,
		HasToolChoice:     summary.HasToolChoice,
		ConfigRef:         summary.ConfigRef,
	}
}

// ClassifyError maps an error to the persisted error kind.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsAborted(err):
		return "aborted"
	}
	var valErr *domain.ValidationError
	var capErr *domain.CapabilityError
	var apiErr *domain.APICallError
	switch {
	case errors.As(err, &valErr):
		return "validation"
	case errors.As(err, &capErr):
		return "capability"
	case errors.As(err, &apiErr):
		return "api-call"
	default:
		return "other"
	}
}

// ListOptions filters and pages List results.
type ListOptions struct {
	Backend   domain.Backend
	ErrorKind string
	Limit     int
	Offset    int
}

// Store is the SQLite-backed recorder.
type Store struct {
	db *sql.DB
}

// Open opens or creates the recorder database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize recorder schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS calls (
		id TEXT PRIMARY KEY,
		backend TEXT NOT NULL,
		operation TEXT NOT NULL,
		model_id TEXT NOT NULL,
		request_shape TEXT NOT NULL,
		finish_reason TEXT,
		usage TEXT,
		error_kind TEXT,
		error_message TEXT,
		duration_ns INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_calls_created_at ON calls(created_at)`)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save persists one record. A missing id or timestamp is filled in.
func (s *Store) Save(ctx context.Context, record *Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	shape, err := json.Marshal(record.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request shape: %w", err)
	}

	var finishReason, usage, errorKind, errorMessage sql.NullString
	if record.FinishReason != "" {
		finishReason = sql.NullString{String: record.FinishReason, Valid: true}
	}
	if record.Usage != nil {
		usageJSON, err := json.Marshal(usageRow{
			InputTokens:  record.Usage.Input.Total,
			OutputTokens: record.Usage.Output.Total,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal usage: %w", err)
		}
		usage = sql.NullString{String: string(usageJSON), Valid: true}
	}
	if record.ErrorKind != "" {
		errorKind = sql.NullString{String: record.ErrorKind, Valid: true}
		errorMessage = sql.NullString{String: record.ErrorMessage, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO calls (
			id, backend, operation, model_id, request_shape,
			finish_reason, usage, error_kind, error_message,
			duration_ns, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, string(record.Backend), record.Operation, record.ModelID, string(shape),
		finishReason, usage, errorKind, errorMessage,
		int64(record.Duration), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save call record: %w", err)
	}
	return nil
}

// Get retrieves one record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, backend, operation, model_id, request_shape,
			finish_reason, usage, error_kind, error_message,
			duration_ns, created_at
		FROM calls WHERE id = ?`, id)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("call record %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}
	return record, nil
}

// List returns records newest first, filtered by the options.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	query := `SELECT id, backend, operation, model_id, request_shape,
		finish_reason, usage, error_kind, error_message,
		duration_ns, created_at
	FROM calls WHERE 1=1`

	var args []any
	if opts.Backend != "" {
		query += " AND backend = ?"
		args = append(args, string(opts.Backend))
	}
	if opts.ErrorKind != "" {
		query += " AND error_kind = ?"
		args = append(args, opts.ErrorKind)
	}

	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query call records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type usageRow struct {
	InputTokens  *int `json:"inputTokens,omitempty"`
	OutputTokens *int `json:"outputTokens,omitempty"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var backend, shape string
	var finishReason, usage, errorKind, errorMessage sql.NullString
	var durationNs int64

	err := row.Scan(
		&record.ID, &backend, &record.Operation, &record.ModelID, &shape,
		&finishReason, &usage, &errorKind, &errorMessage,
		&durationNs, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	record.Backend = domain.Backend(backend)
	record.Duration = time.Duration(durationNs)
	if err := json.Unmarshal([]byte(shape), &record.Request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request shape: %w", err)
	}
	if finishReason.Valid {
		record.FinishReason = finishReason.String
	}
	if usage.Valid {
		var stored usageRow
		if err := json.Unmarshal([]byte(usage.String), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal usage: %w", err)
		}
		record.Usage = &domain.Usage{
			Input:  domain.InputTokens{Total: stored.InputTokens},
			Output: domain.OutputTokens{Total: stored.OutputTokens},
		}
	}
	if errorKind.Valid {
		record.ErrorKind = errorKind.String
		record.ErrorMessage = errorMessage.String
	}
	return &record, nil
}
