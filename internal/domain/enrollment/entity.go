package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/edupay/edupay/internal/domain/payment"
)

// Enrollment grants a learner access to a course, batch or program.
// Uniqueness is keyed by (user, resource type, resource id).
type Enrollment struct {
	ID           uuid.UUID            `json:"id"`
	UserID       uuid.UUID            `json:"user_id"`
	ResourceType payment.ResourceType `json:"resource_type"`
	ResourceID   uuid.UUID            `json:"resource_id"`
	Active       bool                 `json:"active"`
	EnrolledAt   time.Time            `json:"enrolled_at"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Repository defines the enrollment collaborator boundary. CreateOrActivate
// must be idempotent: repeated calls for the same (user, resource) leave
// exactly one active enrollment.
type Repository interface {
	CreateOrActivate(ctx context.Context, userID uuid.UUID, resourceType payment.ResourceType, resourceID uuid.UUID) (*Enrollment, error)
}

// Notifier is the notification collaborator boundary. Delivery and retry are
// the collaborator's responsibility; enqueue failures are best-effort only.
type Notifier interface {
	Enqueue(ctx context.Context, userID uuid.UUID, template string, p *payment.Payment) error
}
