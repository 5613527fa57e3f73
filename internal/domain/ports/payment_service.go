package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
)

// PaymentItem is one line item carried into the gateway's Services block.
type PaymentItem struct {
	Description string
	Date        time.Time
}

// CreatePaymentRequest carries everything needed to open a payment.
type CreatePaymentRequest struct {
	Amount          decimal.Decimal
	Currency        string
	Country         string
	Description     string
	CustomerEmail   string
	CustomerName    string
	CustomerPhone   string
	CustomerCountry string
	Items           []PaymentItem
	Type            models.TransactionType
	SubscriptionID  string
	Metadata        map[string]string
}

// RefundPaymentRequest requests a partial or full refund. A nil Amount
// refunds the full remaining refundable amount.
type RefundPaymentRequest struct {
	Reference string
	Amount    *decimal.Decimal
	Reason    string
}

// PaymentResponse is the service-level view of a transaction after an operation.
type PaymentResponse struct {
	Reference         string
	Status            models.TransactionStatus
	Token             string
	PaymentURL        string
	Amount            decimal.Decimal
	RefundedAmount    decimal.Decimal
	Currency          string
	ResultCode        string
	ResultExplanation string
	PaidAt            *time.Time
}

// PaymentService owns the one-time payment lifecycle.
type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentResponse, error)
	VerifyPayment(ctx context.Context, token string) (*PaymentResponse, error)
	RefundPayment(ctx context.Context, req RefundPaymentRequest) (*PaymentResponse, error)
	CancelPayment(ctx context.Context, reference string) (*PaymentResponse, error)
	GetPayment(ctx context.Context, reference string) (*models.Transaction, error)
	GetBalance(ctx context.Context, currency string) (*models.Balance, error)
}
