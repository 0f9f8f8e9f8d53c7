package roadmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed ContentStore implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a content store on top of an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) ListRoadmaps(ctx context.Context) ([]Roadmap, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, title, description, icon, created_at
		 FROM roadmaps
		 ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query roadmaps: %w", err)
	}
	defer rows.Close()

	var out []Roadmap
	for rows.Next() {
		r, err := scanRoadmap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roadmaps: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetRoadmap(ctx context.Context, id string) (*Roadmap, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("roadmap %s: %w", id, ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	r, err := scanRoadmap(s.pool.QueryRow(ctx,
		`SELECT id::text, title, description, icon, created_at
		 FROM roadmaps
		 WHERE id = $1::uuid`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("roadmap %s: %w", id, ErrNotFound)
	}
	return r, err
}

func (s *PostgresStore) ListTopics(ctx context.Context, roadmapID string) ([]Topic, error) {
	if _, err := uuid.Parse(roadmapID); err != nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, roadmap_id::text, title, short_description, article_content, quiz, created_at
		 FROM concepts
		 WHERE roadmap_id = $1::uuid
		 ORDER BY created_at ASC, id ASC`,
		roadmapID,
	)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var out []Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetTopic(ctx context.Context, id string) (*Topic, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	t, err := scanTopic(s.pool.QueryRow(ctx,
		`SELECT id::text, roadmap_id::text, title, short_description, article_content, quiz, created_at
		 FROM concepts
		 WHERE id = $1::uuid`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *PostgresStore) ListEdges(ctx context.Context) ([]Edge, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT concept_id::text, prerequisite_id::text FROM concept_dependencies`,
	)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.TopicID, &e.PrerequisiteID); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateRoadmap(ctx context.Context, r Roadmap) (string, error) {
	if r.Title == "" {
		return "", fmt.Errorf("roadmap title is required")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO roadmaps (id, title, description, icon, created_at)
		 VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5)
		 RETURNING id::text`,
		nullIfEmpty(r.ID),
		r.Title,
		nullIfEmpty(r.Description),
		nullIfEmpty(r.Icon),
		createdAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create roadmap: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) CreateTopic(ctx context.Context, t Topic) (string, error) {
	if t.Title == "" {
		return "", fmt.Errorf("topic title is required")
	}
	var quiz []byte
	if t.Quiz != nil {
		b, err := json.Marshal(t.Quiz)
		if err != nil {
			return "", fmt.Errorf("marshal quiz: %w", err)
		}
		quiz = b
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO concepts (id, roadmap_id, title, short_description, article_content, quiz, created_at)
		 VALUES (COALESCE($1::uuid, gen_random_uuid()), $2::uuid, $3, $4, $5, $6::jsonb, $7)
		 RETURNING id::text`,
		nullIfEmpty(t.ID),
		t.RoadmapID,
		t.Title,
		nullIfEmpty(t.ShortDescription),
		nullIfEmpty(t.ArticleContent),
		quiz,
		createdAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create topic: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) AddEdge(ctx context.Context, e Edge) error {
	if e.TopicID == "" || e.PrerequisiteID == "" {
		return fmt.Errorf("edge endpoints are required")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO concept_dependencies (concept_id, prerequisite_id)
		 VALUES ($1::uuid, $2::uuid)
		 ON CONFLICT DO NOTHING`,
		e.TopicID,
		e.PrerequisiteID,
	)
	if err != nil {
		return fmt.Errorf("add edge: %w", err)
	}
	return nil
}

// DeleteRoadmap removes a roadmap. Topics and the edges touching them are
// removed by ON DELETE CASCADE.
func (s *PostgresStore) DeleteRoadmap(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("roadmap %s: %w", id, ErrNotFound)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM roadmaps WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete roadmap: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("roadmap %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanRoadmap(row pgx.Row) (*Roadmap, error) {
	var r Roadmap
	var description, icon *string
	if err := row.Scan(&r.ID, &r.Title, &description, &icon, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan roadmap: %w", err)
	}
	if description != nil {
		r.Description = *description
	}
	if icon != nil {
		r.Icon = *icon
	}
	return &r, nil
}

func scanTopic(row pgx.Row) (*Topic, error) {
	var t Topic
	var short, article *string
	var quiz []byte
	if err := row.Scan(&t.ID, &t.RoadmapID, &t.Title, &short, &article, &quiz, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan topic: %w", err)
	}
	if short != nil {
		t.ShortDescription = *short
	}
	if article != nil {
		t.ArticleContent = *article
	}
	t.Quiz = decodeStoredQuiz(quiz)
	return &t, nil
}

// decodeStoredQuiz tolerates NULL and empty JSONB objects, which seed data
// uses for topics without a quiz.
func decodeStoredQuiz(raw []byte) *Quiz {
	if len(raw) == 0 {
		return nil
	}
	var q Quiz
	if err := json.Unmarshal(raw, &q); err != nil || len(q.Questions) == 0 {
		return nil
	}
	return &q
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
