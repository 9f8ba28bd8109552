package core

// history_store.go persists publish history in Postgres.
//
// The table is created on startup when missing. Records are append-only;
// the history page reads the newest entries by created_at.

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createHistoryTable = `CREATE TABLE IF NOT EXISTS publish_history (
	id            UUID PRIMARY KEY,
	session_id    TEXT NOT NULL DEFAULT '',
	file_name     TEXT NOT NULL DEFAULT '',
	workspace_id  TEXT NOT NULL,
	dataset_name  TEXT NOT NULL,
	dataset_id    TEXT NOT NULL DEFAULT '',
	rows_count    INTEGER NOT NULL,
	columns_count INTEGER NOT NULL,
	status        TEXT NOT NULL,
	http_status   INTEGER NOT NULL DEFAULT 0,
	error_detail  TEXT NOT NULL DEFAULT '',
	ip_address    TEXT NOT NULL DEFAULT '',
	user_agent    TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const createHistoryIndex = `CREATE INDEX IF NOT EXISTS publish_history_created_at_idx
	ON publish_history (created_at DESC)`

// PgHistory stores publish records in Postgres.
type PgHistory struct {
	pool *pgxpool.Pool
}

// NewPgHistory ensures the history table exists and returns a store on pool.
func NewPgHistory(ctx context.Context, pool *pgxpool.Pool) (*PgHistory, error) {
	for _, stmt := range []string{createHistoryTable, createHistoryIndex} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create publish history schema: %w", err)
		}
	}
	return &PgHistory{pool: pool}, nil
}

func (h *PgHistory) Record(ctx context.Context, rec PublishRecord) error {
	id, err := toPgUUID(rec.ID)
	if err != nil {
		return fmt.Errorf("record publish %q: %w", rec.ID, err)
	}

	_, err = h.pool.Exec(ctx, `INSERT INTO publish_history (
		id, session_id, file_name, workspace_id, dataset_name, dataset_id,
		rows_count, columns_count, status, http_status, error_detail,
		ip_address, user_agent, duration_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		id, rec.SessionID, rec.FileName, rec.WorkspaceID, rec.DatasetName, rec.DatasetID,
		rec.Rows, rec.Columns, string(rec.Status), rec.HTTPStatus, rec.Error,
		rec.IPAddress, rec.UserAgent, rec.Duration.Milliseconds(),
		pgtype.Timestamptz{Time: rec.CreatedAt, Valid: !rec.CreatedAt.IsZero()},
	)
	if err != nil {
		return fmt.Errorf("record publish %s: %w", rec.ID, err)
	}
	return nil
}

func (h *PgHistory) Recent(ctx context.Context, limit int) ([]PublishRecord, error) {
	limit = historyLimit(limit)

	rows, err := h.pool.Query(ctx, `SELECT id, session_id, file_name, workspace_id,
		dataset_name, dataset_id, rows_count, columns_count, status, http_status,
		error_detail, ip_address, user_agent, duration_ms, created_at
		FROM publish_history ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query publish history: %w", err)
	}
	defer rows.Close()

	var records []PublishRecord
	for rows.Next() {
		rec, err := scanPublishRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan publish history: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read publish history: %w", err)
	}
	return records, nil
}

// scanPublishRow scans one publish_history row.
func scanPublishRow(rows pgx.Rows) (PublishRecord, error) {
	var (
		rec        PublishRecord
		id         pgtype.UUID
		status     string
		durationMs int64
		createdAt  pgtype.Timestamptz
	)

	err := rows.Scan(
		&id, &rec.SessionID, &rec.FileName, &rec.WorkspaceID,
		&rec.DatasetName, &rec.DatasetID, &rec.Rows, &rec.Columns, &status, &rec.HTTPStatus,
		&rec.Error, &rec.IPAddress, &rec.UserAgent, &durationMs, &createdAt,
	)
	if err != nil {
		return PublishRecord{}, err
	}

	if id.Valid {
		rec.ID = uuid.UUID(id.Bytes).String()
	}
	rec.Status = PublishStatus(status)
	rec.Duration = msToDuration(durationMs)
	rec.CreatedAt = createdAt.Time
	return rec, nil
}

// toPgUUID converts a string UUID into the pgx representation.
func toPgUUID(s string) (pgtype.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}
