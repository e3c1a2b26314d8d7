package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/remote-agent-terminal/ptyscreen/internal/model"
)

// CaptureRepository provides data access for the capture history.
type CaptureRepository struct {
	db *sql.DB
}

// NewCaptureRepository creates a new CaptureRepository.
func NewCaptureRepository(db *sql.DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

const captureColumns = `id, command, lines, status, error, device, strategy, cast_path, bytes, started_at, duration_ms`

// Create inserts a finished capture.
func (r *CaptureRepository) Create(ctx context.Context, capture *model.Capture) error {
	linesJSON, err := capture.LinesToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize lines: %w", err)
	}

	query := `
		INSERT INTO captures (` + captureColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		capture.ID,
		capture.Command,
		linesJSON,
		capture.Status,
		nullString(capture.Error),
		nullString(capture.Device),
		nullString(capture.Strategy),
		nullString(capture.CastPath),
		capture.Bytes,
		capture.StartedAt,
		capture.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}

	return nil
}

// GetByID retrieves a capture by its ID.
func (r *CaptureRepository) GetByID(ctx context.Context, id string) (*model.Capture, error) {
	query := `SELECT ` + captureColumns + ` FROM captures WHERE id = ?`

	capture, err := scanCapture(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCaptureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return capture, nil
}

// List retrieves the most recent captures first. A limit of zero or less
// returns every capture.
func (r *CaptureRepository) List(ctx context.Context, limit int) ([]*model.Capture, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + captureColumns + ` FROM captures ORDER BY started_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	captures := []*model.Capture{}
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, capture)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating captures: %w", err)
	}

	return captures, nil
}

// Delete removes a capture from the history.
func (r *CaptureRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM captures WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete capture: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrCaptureNotFound
	}

	return nil
}

// Exists checks if a capture exists.
func (r *CaptureRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT 1 FROM captures WHERE id = ? LIMIT 1`

	var exists int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check capture existence: %w", err)
	}

	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapture(row scanner) (*model.Capture, error) {
	capture := &model.Capture{}
	var linesJSON string
	var errText, device, strategy, castPath sql.NullString
	var durationMs int64

	err := row.Scan(
		&capture.ID,
		&capture.Command,
		&linesJSON,
		&capture.Status,
		&errText,
		&device,
		&strategy,
		&castPath,
		&capture.Bytes,
		&capture.StartedAt,
		&durationMs,
	)
	if err != nil {
		return nil, err
	}

	if err := capture.LinesFromJSON(linesJSON); err != nil {
		return nil, fmt.Errorf("failed to parse lines: %w", err)
	}
	capture.Error = errText.String
	capture.Device = device.String
	capture.Strategy = strategy.String
	capture.CastPath = castPath.String
	capture.Duration = time.Duration(durationMs) * time.Millisecond

	return capture, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
