package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the current state of a transaction
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusSuccess    TransactionStatus = "success"
	StatusFailed     TransactionStatus = "failed"
	StatusCancelled  TransactionStatus = "cancelled"
	StatusRefunded   TransactionStatus = "refunded"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TypeOneTime      TransactionType = "one-time"
	TypeRecurring    TransactionType = "recurring"
	TypeSubscription TransactionType = "subscription"
)

// TransactionItem is one line item carried into the gateway's Services block.
// Items are not persisted; they only shape the token creation request.
type TransactionItem struct {
	Description string
	Date        time.Time
}

// Transaction represents one attempt to move money from a customer to the merchant.
// The gateway-assigned token and TransRef stay empty until token creation succeeds.
type Transaction struct {
	ID                   string
	Reference            string
	SubscriptionID       string
	Amount               decimal.Decimal
	RefundedAmount       decimal.Decimal
	Currency             string
	Country              string
	Type                 TransactionType
	Status               TransactionStatus
	Description          string
	CustomerEmail        string
	CustomerName         string
	CustomerPhone        string
	CustomerCountry      string
	Token                string
	GatewayTransactionID string
	GatewayResultCode    string
	GatewayResultText    string
	GatewayResponse      map[string]string
	PaymentURL           string
	Items                []TransactionItem
	Metadata             map[string]string
	PaidAt               *time.Time
	CancelledAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsTerminal reports whether the transaction reached a state that only
// refunds may move it out of.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// IsRefundable reports whether any amount can still be refunded.
func (t *Transaction) IsRefundable() bool {
	return t.Status == StatusSuccess && t.RefundedAmount.LessThan(t.Amount)
}

// RemainingRefundable returns the amount that can still be refunded.
func (t *Transaction) RemainingRefundable() decimal.Decimal {
	remaining := t.Amount.Sub(t.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// ApplyRefund accumulates a refund onto the transaction. Status flips to
// refunded only once the cumulative refunded amount covers the full amount.
// The caller must have validated the amount against RemainingRefundable.
func (t *Transaction) ApplyRefund(amount decimal.Decimal, now time.Time) {
	t.RefundedAmount = t.RefundedAmount.Add(amount)
	if t.RefundedAmount.GreaterThanOrEqual(t.Amount) {
		t.Status = StatusRefunded
	}
	t.UpdatedAt = now
}

// MarkProcessing records a successfully issued gateway token.
func (t *Transaction) MarkProcessing(token, transRef, paymentURL string, now time.Time) {
	t.Token = token
	t.GatewayTransactionID = transRef
	t.PaymentURL = paymentURL
	t.Status = StatusProcessing
	t.UpdatedAt = now
}

// MarkPaid records a verified successful payment. Already-successful
// transactions are left untouched so repeated verification is idempotent.
func (t *Transaction) MarkPaid(resultCode, resultText string, payload map[string]string, now time.Time) {
	if t.Status == StatusSuccess || t.Status == StatusRefunded {
		return
	}
	t.Status = StatusSuccess
	t.GatewayResultCode = resultCode
	t.GatewayResultText = resultText
	t.GatewayResponse = payload
	paidAt := now
	t.PaidAt = &paidAt
	t.UpdatedAt = now
}

// MarkFailed records a failed payment with the gateway explanation.
func (t *Transaction) MarkFailed(resultCode, explanation string, payload map[string]string, now time.Time) {
	t.Status = StatusFailed
	t.GatewayResultCode = resultCode
	t.GatewayResultText = explanation
	if payload != nil {
		t.GatewayResponse = payload
	}
	t.UpdatedAt = now
}

// MarkCancelled records a gateway-confirmed cancellation.
func (t *Transaction) MarkCancelled(now time.Time) {
	t.Status = StatusCancelled
	cancelledAt := now
	t.CancelledAt = &cancelledAt
	t.UpdatedAt = now
}
