package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB represents a database connection
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS feedback (
	id BIGSERIAL PRIMARY KEY,
	feedback TEXT NOT NULL,
	result_key TEXT NOT NULL DEFAULT '',
	trace_id CHAR(32) NOT NULL,
	user_name TEXT NOT NULL DEFAULT '',
	payload JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS feedback_kind_created_idx ON feedback (feedback, created_at DESC);
`

// Migrate creates the feedback table when it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Repository interface for feedback storage
type Repository interface {
	CreateFeedback(ctx context.Context, arg CreateFeedbackParams) (Feedback, error)
	ListFeedback(ctx context.Context, arg ListFeedbackParams) ([]Feedback, error)
}

// Feedback represents a stored viewer feedback event
type Feedback struct {
	ID        int64           `json:"id"`
	Feedback  string          `json:"feedback"`
	ResultKey string          `json:"result_key"`
	TraceID   string          `json:"trace_id"`
	UserName  string          `json:"user_name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type CreateFeedbackParams struct {
	Feedback  string
	ResultKey string
	TraceID   string
	UserName  string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// ListFeedbackParams selects feedback of one kind created at or after Since.
// Empty ResultKey and UserName match everything.
type ListFeedbackParams struct {
	Feedback  string
	Since     time.Time
	ResultKey string
	UserName  string
	Limit     int32
}

type repository struct {
	db *DB
}

func NewRepository(db *DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateFeedback(ctx context.Context, arg CreateFeedbackParams) (Feedback, error) {
	if arg.CreatedAt.IsZero() {
		arg.CreatedAt = time.Now().UTC()
	}

	var payload any
	if len(arg.Payload) > 0 {
		payload = string(arg.Payload)
	}

	fb := Feedback{
		Feedback:  arg.Feedback,
		ResultKey: arg.ResultKey,
		TraceID:   arg.TraceID,
		UserName:  arg.UserName,
		Payload:   arg.Payload,
		CreatedAt: arg.CreatedAt,
	}
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO feedback (feedback, result_key, trace_id, user_name, payload, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING id
	`, arg.Feedback, arg.ResultKey, arg.TraceID, arg.UserName, payload, arg.CreatedAt).Scan(&fb.ID)
	if err != nil {
		return Feedback{}, fmt.Errorf("failed to insert feedback: %w", err)
	}
	return fb, nil
}

func (r *repository) ListFeedback(ctx context.Context, arg ListFeedbackParams) ([]Feedback, error) {
	conds := []string{"feedback = $1", "created_at >= $2"}
	args := []any{arg.Feedback, arg.Since}
	if arg.ResultKey != "" {
		args = append(args, arg.ResultKey)
		conds = append(conds, fmt.Sprintf("result_key = $%d", len(args)))
	}
	if arg.UserName != "" {
		args = append(args, arg.UserName)
		conds = append(conds, fmt.Sprintf("user_name = $%d", len(args)))
	}
	args = append(args, arg.Limit)

	query := fmt.Sprintf(`
		SELECT id, feedback, result_key, trace_id, user_name, COALESCE(payload::text, ''), created_at
		FROM feedback
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, strings.Join(conds, " AND "), len(args))

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Feedback, error) {
		var (
			fb      Feedback
			payload string
		)
		if err := row.Scan(&fb.ID, &fb.Feedback, &fb.ResultKey, &fb.TraceID, &fb.UserName, &payload, &fb.CreatedAt); err != nil {
			return Feedback{}, err
		}
		if payload != "" {
			fb.Payload = json.RawMessage(payload)
		}
		return fb, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan feedback: %w", err)
	}
	return results, nil
}
