package ports

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
)

// TransactionStats aggregates transactions per status for reporting.
type TransactionStats struct {
	Status models.TransactionStatus
	Count  int64
	Volume decimal.Decimal
}

// TransactionRepository defines the interface for transaction persistence
type TransactionRepository interface {
	// Create creates a new transaction
	Create(ctx context.Context, tx DBTX, transaction *models.Transaction) error

	// GetByReference retrieves a transaction by its merchant reference
	GetByReference(ctx context.Context, db DBTX, reference string) (*models.Transaction, error)

	// GetByToken retrieves a transaction by its gateway token
	GetByToken(ctx context.Context, db DBTX, token string) (*models.Transaction, error)

	// Update persists the transaction's mutable fields
	Update(ctx context.Context, tx DBTX, transaction *models.Transaction) error

	// ReferenceExists reports whether a merchant reference is already taken
	ReferenceExists(ctx context.Context, db DBTX, reference string) (bool, error)

	// ListBySubscription lists transactions belonging to a subscription
	ListBySubscription(ctx context.Context, db DBTX, subscriptionID string) ([]*models.Transaction, error)

	// StatsByStatus aggregates counts and volume per status
	StatsByStatus(ctx context.Context, db DBTX) ([]TransactionStats, error)
}
