package ports

import (
	"context"
	"time"

	"github.com/zedpay/dpo-payment-service/internal/domain/models"
)

// SubscriptionRepository defines the interface for subscription persistence
type SubscriptionRepository interface {
	// Create creates a new subscription
	Create(ctx context.Context, tx DBTX, subscription *models.Subscription) error

	// GetByReference retrieves a subscription by its merchant reference
	GetByReference(ctx context.Context, db DBTX, reference string) (*models.Subscription, error)

	// Update persists the subscription's mutable fields
	Update(ctx context.Context, tx DBTX, subscription *models.Subscription) error

	// ReferenceExists reports whether a merchant reference is already taken
	ReferenceExists(ctx context.Context, db DBTX, reference string) (bool, error)

	// ListDueForBilling lists active auto-renewing subscriptions whose next
	// billing date is at or before asOf
	ListDueForBilling(ctx context.Context, db DBTX, asOf time.Time, limit int32) ([]*models.Subscription, error)

	// CountByStatus aggregates subscriptions per status
	CountByStatus(ctx context.Context, db DBTX) (map[models.SubscriptionStatus]int64, error)
}
