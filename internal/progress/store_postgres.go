package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed CompletionStore over the user_progress table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a completion store on top of an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) ListCompletions(ctx context.Context, userID string) ([]CompletionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, concept_id::text, completed_at, quiz_score
		 FROM user_progress
		 WHERE user_id = $1
		 ORDER BY completed_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var out []CompletionRecord
	for rows.Next() {
		var rec CompletionRecord
		if err := rows.Scan(&rec.UserID, &rec.TopicID, &rec.CompletedAt, &rec.QuizScore); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return out, nil
}

// RecordCompletion inserts a record. An existing (user, topic) row is left
// untouched and reported as ErrAlreadyCompleted together with the stored row.
func (s *PostgresStore) RecordCompletion(ctx context.Context, rec CompletionRecord) (CompletionRecord, error) {
	if rec.UserID == "" || rec.TopicID == "" {
		return CompletionRecord{}, fmt.Errorf("user_id and concept_id are required")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	out := CompletionRecord{UserID: rec.UserID, TopicID: rec.TopicID}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO user_progress (user_id, concept_id, completed_at, quiz_score)
		 VALUES ($1, $2::uuid, $3, $4)
		 ON CONFLICT (user_id, concept_id) DO NOTHING
		 RETURNING completed_at, quiz_score`,
		rec.UserID,
		rec.TopicID,
		completedAt,
		rec.QuizScore,
	).Scan(&out.CompletedAt, &out.QuizScore)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return CompletionRecord{}, fmt.Errorf("insert completion: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT completed_at, quiz_score
		 FROM user_progress
		 WHERE user_id = $1 AND concept_id = $2::uuid`,
		rec.UserID,
		rec.TopicID,
	).Scan(&out.CompletedAt, &out.QuizScore)
	if err != nil {
		return CompletionRecord{}, fmt.Errorf("load existing completion: %w", err)
	}
	return out, ErrAlreadyCompleted
}
