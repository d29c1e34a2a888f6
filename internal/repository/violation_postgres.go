package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
)

// PostgresViolationStore persists violations for audit and billing.
type PostgresViolationStore struct {
	pool *pgxpool.Pool
}

// NewPostgresViolationStore creates a PostgresViolationStore.
func NewPostgresViolationStore(pool *pgxpool.Pool) *PostgresViolationStore {
	return &PostgresViolationStore{pool: pool}
}

// InsertViolation writes a freshly opened violation.
func (s *PostgresViolationStore) InsertViolation(ctx context.Context, v domain.Violation) error {
	query := `
		INSERT INTO violations (id, zone_id, violation_type, vehicle_number, severity,
		                        excess_count, fine_amount, status, detected_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		v.ID, v.ZoneID, string(v.Type), nullable(v.VehicleNumber), string(v.Severity),
		v.ExcessCount, v.FineAmount, string(v.Status), v.DetectedAt, nullable(v.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert violation %s: %w", v.ID, err)
	}
	return nil
}

// UpdateViolation writes a status transition.
func (s *PostgresViolationStore) UpdateViolation(ctx context.Context, v domain.Violation) error {
	query := `
		UPDATE violations
		SET status = $2, resolved_at = $3, notes = $4
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, v.ID, string(v.Status), v.ResolvedAt, nullable(v.Notes))
	if err != nil {
		return fmt.Errorf("failed to update violation %s: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrViolationNotFound
	}
	return nil
}

// ListViolations returns violations newest first, optionally filtered.
func (s *PostgresViolationStore) ListViolations(ctx context.Context, zoneID string, status domain.ViolationStatus, limit int) ([]domain.Violation, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, zone_id, violation_type, COALESCE(vehicle_number, ''), severity,
		       excess_count, fine_amount, status, detected_at, resolved_at, COALESCE(notes, '')
		FROM violations
		WHERE ($1 = '' OR zone_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY detected_at DESC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, zoneID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer rows.Close()

	var out []domain.Violation
	for rows.Next() {
		var v domain.Violation
		if err := rows.Scan(
			&v.ID, &v.ZoneID, &v.Type, &v.VehicleNumber, &v.Severity,
			&v.ExcessCount, &v.FineAmount, &v.Status, &v.DetectedAt, &v.ResolvedAt, &v.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan violation row: %w", err)
		}
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read violation rows: %w", err)
	}

	return out, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
