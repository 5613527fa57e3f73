package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingFrequency represents how often a subscription is billed
type BillingFrequency string

const (
	FrequencyWeekly    BillingFrequency = "weekly"
	FrequencyMonthly   BillingFrequency = "monthly"
	FrequencyQuarterly BillingFrequency = "quarterly"
	FrequencyYearly    BillingFrequency = "yearly"
)

// Advance moves a reference date forward by exactly one frequency unit.
// Unrecognized frequencies advance monthly.
func (f BillingFrequency) Advance(from time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	case FrequencyYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// SubscriptionStatus represents the current state of a subscription
type SubscriptionStatus string

const (
	SubStatusPending   SubscriptionStatus = "pending"
	SubStatusActive    SubscriptionStatus = "active"
	SubStatusPaused    SubscriptionStatus = "paused"
	SubStatusCancelled SubscriptionStatus = "cancelled"
	SubStatusExpired   SubscriptionStatus = "expired"
	SubStatusFailed    SubscriptionStatus = "failed"
)

// CancelReasonMaxRetries is recorded when retry exhaustion auto-cancels a subscription.
const CancelReasonMaxRetries = "Maximum retry attempts reached"

// Subscription represents a recurring billing agreement.
type Subscription struct {
	ID                    string
	Reference             string
	Amount                decimal.Decimal
	Currency              string
	Country               string
	Frequency             BillingFrequency
	Status                SubscriptionStatus
	StartDate             time.Time
	EndDate               *time.Time
	NextBillingDate       time.Time
	BillingCycle          int
	AutoRenew             bool
	RetryAttempts         int
	MaxRetryAttempts      int
	SuccessfulPayments    int
	FailedPayments        int
	TotalPaid             decimal.Decimal
	PaymentToken          string
	GatewaySubscriptionID string
	CustomerEmail         string
	CustomerName          string
	CustomerPhone         string
	CustomerCountry       string
	CancellationReason    string
	Metadata              map[string]string
	CancelledAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsDueForBilling reports whether the subscription is eligible for its next
// charge attempt as of the given time.
func (s *Subscription) IsDueForBilling(now time.Time) bool {
	return s.Status == SubStatusActive && s.AutoRenew && !s.NextBillingDate.After(now)
}

// IsCancelled reports whether the subscription is in the terminal cancelled state.
func (s *Subscription) IsCancelled() bool {
	return s.Status == SubStatusCancelled
}

// RecordSuccessfulPayment applies the bookkeeping for one successful billing
// cycle: the next billing date advances one frequency unit from the PRIOR
// next billing date (or the start date before the first cycle), never from
// "now", and the retry counter resets.
func (s *Subscription) RecordSuccessfulPayment(amount decimal.Decimal, now time.Time) {
	base := s.NextBillingDate
	if base.IsZero() {
		base = s.StartDate
	}
	s.SuccessfulPayments++
	s.TotalPaid = s.TotalPaid.Add(amount)
	s.NextBillingDate = s.Frequency.Advance(base)
	s.BillingCycle++
	s.RetryAttempts = 0
	s.UpdatedAt = now
}

// RecordFailedPayment applies the bookkeeping for one failed billing cycle
// and auto-cancels once the retry budget is exhausted. Returns true when the
// failure cancelled the subscription.
func (s *Subscription) RecordFailedPayment(now time.Time) bool {
	s.FailedPayments++
	s.RetryAttempts++
	s.UpdatedAt = now

	if s.MaxRetryAttempts > 0 && s.RetryAttempts >= s.MaxRetryAttempts {
		s.Cancel(CancelReasonMaxRetries, now)
		return true
	}
	return false
}

// Cancel moves the subscription to the terminal cancelled state. AutoRenew
// is always forced off, even when the remote gateway-side cancel failed.
func (s *Subscription) Cancel(reason string, now time.Time) {
	s.Status = SubStatusCancelled
	s.AutoRenew = false
	s.CancellationReason = reason
	cancelledAt := now
	s.CancelledAt = &cancelledAt
	s.UpdatedAt = now
}

// Pause suspends billing. AutoRenew is forced off so the subscription never
// counts as due while paused.
func (s *Subscription) Pause(now time.Time) {
	s.Status = SubStatusPaused
	s.AutoRenew = false
	s.UpdatedAt = now
}

// Resume restores a paused subscription to active billing.
func (s *Subscription) Resume(now time.Time) {
	s.Status = SubStatusActive
	s.AutoRenew = true
	s.UpdatedAt = now
}
