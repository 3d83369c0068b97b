package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/code-executor/internal/apperror"
	"github.com/sakif/code-executor/internal/model"
	"github.com/sakif/code-executor/internal/repository"
)

var _ repository.ExecutionRepository = (*DB)(nil)

// Create inserts an execution record, filling in ID and CreatedAt.
//
// xid IDs are 20 URL-safe characters that sort by creation time, e.g.
// "cv37rs3pp9olc6atsptg".
func (db *DB) Create(ctx context.Context, exec *model.Execution) error {
	exec.ID = xid.New().String()
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO executions (id, code, timeout_ms, status, output, exit_code, duration_ms, subject, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID,
		exec.Code,
		exec.TimeoutMS,
		exec.Status,
		exec.Output,
		exec.ExitCode,
		exec.DurationMS,
		exec.Subject,
		exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating execution: %w", err)
	}
	return nil
}

// GetByID retrieves a single execution by its ID.
// A missing row is translated to apperror.ErrNotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	var e model.Execution
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, code, timeout_ms, status, output, exit_code, duration_ms, subject, created_at
		 FROM executions
		 WHERE id = ?`,
		id,
	).Scan(
		&e.ID, &e.Code, &e.TimeoutMS, &e.Status, &e.Output,
		&e.ExitCode, &e.DurationMS, &e.Subject, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("execution", id)
		}
		return nil, fmt.Errorf("sqlite: getting execution %s: %w", id, err)
	}
	return &e, nil
}

// List returns executions newest first. Limit is clamped to 1..100.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Execution, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	// id breaks ties between records created within the same instant.
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, code, timeout_ms, status, output, exit_code, duration_ms, subject, created_at
		 FROM executions
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing executions: %w", err)
	}
	defer rows.Close()

	execs := make([]model.Execution, 0, limit)
	for rows.Next() {
		var e model.Execution
		if err := rows.Scan(
			&e.ID, &e.Code, &e.TimeoutMS, &e.Status, &e.Output,
			&e.ExitCode, &e.DurationMS, &e.Subject, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning execution row: %w", err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating executions: %w", err)
	}

	return execs, nil
}
