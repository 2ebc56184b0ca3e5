package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"policy_compass/pkg/models"
)

// Schema creates the table PostgresRepo reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS policy_analyses (
	id            TEXT PRIMARY KEY,
	topic         TEXT NOT NULL,
	countries     TEXT[] NOT NULL,
	model         TEXT,
	analysis_json JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);`

// PostgresRepo stores records as JSONB rows in policy_analyses.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepo)(nil)

// NewPostgresRepo uses the given pool, or the shared pool from InitDB when nil.
func NewPostgresRepo(p *pgxpool.Pool) *PostgresRepo {
	if p == nil {
		p = GetPool()
	}
	return &PostgresRepo{pool: p}
}

// Migrate creates the table if it does not exist.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate policy_analyses: %w", err)
	}
	return nil
}

// Save upserts the record by id.
func (r *PostgresRepo) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	query := `
		INSERT INTO policy_analyses (id, topic, countries, model, analysis_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			topic = EXCLUDED.topic,
			countries = EXCLUDED.countries,
			model = EXCLUDED.model,
			analysis_json = EXCLUDED.analysis_json;
	`
	_, err = r.pool.Exec(ctx, query, rec.ID, rec.Topic, rec.Countries, rec.Model, jsonData, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Load(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `SELECT id, topic, countries, model, analysis_json, created_at FROM policy_analyses WHERE id = $1`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, topic, countries, model, analysis_json, created_at
		FROM policy_analyses
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []*models.AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*models.AnalysisRecord, error) {
	var (
		rec      models.AnalysisRecord
		model    *string
		jsonData []byte
	)
	if err := row.Scan(&rec.ID, &rec.Topic, &rec.Countries, &model, &jsonData, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if model != nil {
		rec.Model = *model
	}
	rec.Analysis = &models.FullAnalysis{}
	if err := json.Unmarshal(jsonData, rec.Analysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis data: %w", err)
	}
	return &rec, nil
}
