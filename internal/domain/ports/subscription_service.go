package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
)

// CreateSubscriptionRequest carries everything needed to open a subscription.
type CreateSubscriptionRequest struct {
	Amount          decimal.Decimal
	Currency        string
	Country         string
	Frequency       models.BillingFrequency
	StartDate       time.Time
	EndDate         *time.Time
	AutoRenew       bool
	ChargeNow       bool
	CustomerEmail   string
	CustomerName    string
	CustomerPhone   string
	CustomerCountry string
	Metadata        map[string]string
}

// UpdateSubscriptionRequest carries the optional fields of a subscription update.
type UpdateSubscriptionRequest struct {
	Amount    *decimal.Decimal
	Frequency *models.BillingFrequency
	EndDate   *time.Time
	AutoRenew *bool
}

// SubscriptionResponse is the service-level view of a subscription.
type SubscriptionResponse struct {
	Reference             string
	Status                models.SubscriptionStatus
	Amount                decimal.Decimal
	Currency              string
	Frequency             models.BillingFrequency
	NextBillingDate       time.Time
	BillingCycle          int
	RetryAttempts         int
	SuccessfulPayments    int
	FailedPayments        int
	TotalPaid             decimal.Decimal
	AutoRenew             bool
	GatewaySubscriptionID string
	PaymentURL            string
	CancellationReason    string
	CancelledAt           *time.Time
}

// BillingError describes one subscription's failure during batch processing.
type BillingError struct {
	SubscriptionReference string
	Error                 string
}

// BillingBatchResult aggregates one batch due-processing run.
type BillingBatchResult struct {
	Processed  int
	Successful int
	Failed     int
	Errors     []BillingError
}

// SubscriptionService owns the recurring billing lifecycle.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*SubscriptionResponse, error)
	GetSubscription(ctx context.Context, reference string) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, reference string, req UpdateSubscriptionRequest) (*SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, reference, reason string) (*SubscriptionResponse, error)
	PauseSubscription(ctx context.Context, reference string) (*SubscriptionResponse, error)
	ResumeSubscription(ctx context.Context, reference string) (*SubscriptionResponse, error)

	// ProcessSubscriptionPayment runs one billing cycle for a due subscription.
	ProcessSubscriptionPayment(ctx context.Context, reference string) (*models.Transaction, error)

	// ProcessDueSubscriptions runs billing for every due subscription,
	// isolating per-subscription failures.
	ProcessDueSubscriptions(ctx context.Context, asOf time.Time, batchSize int) (*BillingBatchResult, error)
}
