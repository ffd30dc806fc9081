package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edupay/edupay/internal/domain/enrollment"
	"github.com/edupay/edupay/internal/domain/payment"
)

// EnrollmentRepository implements enrollment.Repository using PostgreSQL
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// CreateOrActivate upserts an enrollment keyed by (user, resource). The
// unique constraint plus ON CONFLICT makes repeated calls converge on one
// active row, which is the idempotent contract the completion dispatcher
// relies on as defense-in-depth.
func (r *EnrollmentRepository) CreateOrActivate(ctx context.Context, userID uuid.UUID, resourceType payment.ResourceType, resourceID uuid.UUID) (*enrollment.Enrollment, error) {
	now := time.Now()
	query := `
		INSERT INTO enrollments (
			id, user_id, resource_type, resource_id, active, enrolled_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, true, $5, $5, $5)
		ON CONFLICT (user_id, resource_type, resource_id)
		DO UPDATE SET active = true, updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, resource_type, resource_id, active, enrolled_at, created_at, updated_at
	`

	var e enrollment.Enrollment
	var rt string

	err := r.pool.QueryRow(ctx, query, uuid.New(), userID, string(resourceType), resourceID, now).Scan(
		&e.ID,
		&e.UserID,
		&rt,
		&e.ResourceID,
		&e.Active,
		&e.EnrolledAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create or activate enrollment: %w", err)
	}

	e.ResourceType = payment.ResourceType(rt)
	return &e, nil
}
