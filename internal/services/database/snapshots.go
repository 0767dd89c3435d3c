package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"complaint-trends-engine/internal/models"
)

// SnapshotRepository handles analysis snapshot database operations.
type SnapshotRepository struct {
	db        *DB
	retention int
}

// NewSnapshotRepository creates a new snapshot repository. When retention is
// positive only the newest retention snapshots are kept.
func NewSnapshotRepository(db *DB, retention int) *SnapshotRepository {
	return &SnapshotRepository{db: db, retention: retention}
}

// Create inserts a snapshot and prunes rows beyond the retention limit.
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *models.AnalysisSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(snapshot.Result)
	if err != nil {
		return fmt.Errorf("failed to encode analysis result: %w", err)
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO analysis_snapshots (id, total_complaints, is_mock_data, report_key, result, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			snapshot.ID,
			snapshot.TotalComplaints,
			snapshot.IsMockData,
			snapshot.ReportKey,
			payload,
			snapshot.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}

		if r.retention <= 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			DELETE FROM analysis_snapshots
			WHERE id IN (
				SELECT id FROM analysis_snapshots
				ORDER BY created_at DESC
				OFFSET $1
			)`, r.retention)
		if err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a snapshot by its ID.
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*models.AnalysisSnapshot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrSnapshotNotFound
	}

	query := `
		SELECT id::text, total_complaints, is_mock_data, report_key, result, created_at
		FROM analysis_snapshots
		WHERE id = $1`

	snapshot, err := scanSnapshot(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snapshot, nil
}

// ListRecent returns up to limit snapshots, newest first.
func (r *SnapshotRepository) ListRecent(ctx context.Context, limit int) ([]models.AnalysisSnapshot, error) {
	query := `
		SELECT id::text, total_complaints, is_mock_data, report_key, result, created_at
		FROM analysis_snapshots
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []models.AnalysisSnapshot{}
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *snapshot)
	}
	return snapshots, rows.Err()
}

// Count returns the number of stored snapshots.
func (r *SnapshotRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_snapshots`).Scan(&count)
	return count, err
}

func scanSnapshot(row pgx.Row) (*models.AnalysisSnapshot, error) {
	var (
		s       models.AnalysisSnapshot
		payload []byte
	)
	if err := row.Scan(&s.ID, &s.TotalComplaints, &s.IsMockData, &s.ReportKey, &payload, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &s.Result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis result: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}
