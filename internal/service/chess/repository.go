package chess

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/park285/chess-render/internal/domain"
)

// Repository is the render ledger.
type Repository interface {
	InsertRecord(ctx context.Context, rec *domain.RenderRecord) (int64, error)
	RecordsByRun(ctx context.Context, runID string) ([]*domain.RenderRecord, error)
	RecentRecords(ctx context.Context, limit int) ([]*domain.RenderRecord, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const createRenderRecordsTable = `
	CREATE TABLE IF NOT EXISTS render_records (
		id          BIGSERIAL PRIMARY KEY,
		run_id      TEXT        NOT NULL,
		mode        TEXT        NOT NULL,
		input       TEXT        NOT NULL,
		theme       TEXT        NOT NULL,
		outputs     JSONB       NOT NULL DEFAULT '[]'::jsonb,
		error       TEXT        NOT NULL DEFAULT '',
		duration_ms BIGINT      NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS render_records_run_id_idx ON render_records (run_id);`

// EnsureSchema creates the ledger table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createRenderRecordsTable); err != nil {
		return fmt.Errorf("create render_records: %w", err)
	}
	return nil
}

func (r *repository) InsertRecord(ctx context.Context, rec *domain.RenderRecord) (int64, error) {
	if rec == nil {
		return 0, fmt.Errorf("nil render record")
	}

	outputs, err := json.Marshal(nonNilOutputs(rec.Outputs))
	if err != nil {
		return 0, fmt.Errorf("marshal outputs: %w", err)
	}

	const query = `
		INSERT INTO render_records (
			run_id,
			mode,
			input,
			theme,
			outputs,
			error,
			duration_ms,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		RETURNING id`

	var id int64
	err = r.db.QueryRowContext(
		ctx,
		query,
		rec.RunID,
		rec.Mode,
		rec.Input,
		rec.Theme,
		outputs,
		rec.Error,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert render record: %w", err)
	}
	return id, nil
}

const selectRenderRecords = `
	SELECT
		id,
		run_id,
		mode,
		input,
		theme,
		outputs,
		error,
		duration_ms,
		created_at
	FROM render_records`

func (r *repository) RecordsByRun(ctx context.Context, runID string) ([]*domain.RenderRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectRenderRecords+` WHERE run_id = $1 ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("select render records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *repository) RecentRecords(ctx context.Context, limit int) ([]*domain.RenderRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, selectRenderRecords+` ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select render records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*domain.RenderRecord, error) {
	var records []*domain.RenderRecord
	for rows.Next() {
		var (
			rec         domain.RenderRecord
			outputsJSON []byte
			durationMS  sql.NullInt64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Mode,
			&rec.Input,
			&rec.Theme,
			&outputsJSON,
			&rec.Error,
			&durationMS,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan render record: %w", err)
		}
		if durationMS.Valid {
			rec.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		}
		if err := json.Unmarshal(outputsJSON, &rec.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate render records: %w", err)
	}
	return records, nil
}

func nonNilOutputs(outputs []string) []string {
	if outputs == nil {
		return []string{}
	}
	return outputs
}
