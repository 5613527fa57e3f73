package ports

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
)

// RecurringUpdate carries the optional fields of a remote subscription update.
type RecurringUpdate struct {
	Amount    *decimal.Decimal
	Frequency *models.BillingFrequency
	EndDate   *string
}

// GatewayClient is the wire client for the payment gateway's XML API.
//
// Transport failures (network, timeout, unreadable body) are returned as
// GATEWAY_TRANSPORT domain errors from every method. Non-"000" results are
// raised as GATEWAY_BUSINESS errors on the token/recurring creation paths,
// surfaced as parsed data on the verify/refund paths, and collapsed to a
// false boolean on the cancel/update paths.
type GatewayClient interface {
	// CreateToken registers a charge attempt and returns the issued token
	// plus the hosted payment URL derived from it.
	CreateToken(ctx context.Context, txn *models.Transaction) (*models.TokenResponse, error)

	// VerifyToken queries the current state of a token. The parsed response
	// is returned even for non-success results; callers interpret it.
	VerifyToken(ctx context.Context, token, reference string) (Response, error)

	// CancelToken cancels an unconsumed token. Gateway rejection maps to false.
	CancelToken(ctx context.Context, token, reference string) (bool, error)

	// RefundToken refunds part or all of a charged token.
	RefundToken(ctx context.Context, token string, amount decimal.Decimal, reference, reason string) (Response, error)

	// CreateRecurring registers a recurring billing agreement.
	CreateRecurring(ctx context.Context, sub *models.Subscription) (Response, error)

	// UpdateRecurring updates a remote subscription. Gateway rejection maps to false.
	UpdateRecurring(ctx context.Context, gatewaySubscriptionID string, update RecurringUpdate) (bool, error)

	// CancelRecurring cancels a remote subscription. Gateway rejection maps to false.
	CancelRecurring(ctx context.Context, gatewaySubscriptionID string) (bool, error)

	// GetBalance reports the merchant account balance, optionally scoped to
	// one currency.
	GetBalance(ctx context.Context, currency string) (*models.Balance, error)
}
