package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingFrequencyAdvance(t *testing.T) {
	from := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		frequency BillingFrequency
		want      time.Time
	}{
		{FrequencyWeekly, time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)},
		{FrequencyMonthly, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyQuarterly, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyYearly, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{BillingFrequency("bogus"), time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.frequency.Advance(from))
		})
	}
}

func TestRecordSuccessfulPaymentAdvancesFromPriorDate(t *testing.T) {
	// The charge lands three days late; the schedule must still advance from
	// the original billing date, not from when the charge went through
	sub := &Subscription{
		Frequency:       FrequencyMonthly,
		NextBillingDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		BillingCycle:    4,
		RetryAttempts:   2,
		TotalPaid:       decimal.NewFromInt(600),
	}
	chargedAt := time.Date(2025, 1, 18, 11, 0, 0, 0, time.UTC)

	sub.RecordSuccessfulPayment(decimal.NewFromInt(200), chargedAt)

	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), sub.NextBillingDate)
	assert.Equal(t, 5, sub.BillingCycle)
	assert.Equal(t, 0, sub.RetryAttempts)
	assert.Equal(t, 1, sub.SuccessfulPayments)
	assert.True(t, sub.TotalPaid.Equal(decimal.NewFromInt(800)))
}

func TestRecordFailedPaymentCancelsAfterMaxRetries(t *testing.T) {
	sub := &Subscription{
		Status:           SubStatusActive,
		AutoRenew:        true,
		MaxRetryAttempts: 3,
	}
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	assert.False(t, sub.RecordFailedPayment(now))
	assert.False(t, sub.RecordFailedPayment(now.AddDate(0, 0, 1)))
	assert.Equal(t, SubStatusActive, sub.Status)

	cancelled := sub.RecordFailedPayment(now.AddDate(0, 0, 2))
	assert.True(t, cancelled)
	assert.Equal(t, SubStatusCancelled, sub.Status)
	assert.Equal(t, CancelReasonMaxRetries, sub.CancellationReason)
	assert.False(t, sub.AutoRenew)
	assert.Equal(t, 3, sub.FailedPayments)
	require.NotNil(t, sub.CancelledAt)
}

func TestIsDueForBilling(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	due := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"active and due", Subscription{Status: SubStatusActive, AutoRenew: true, NextBillingDate: due}, true},
		{"not yet due", Subscription{Status: SubStatusActive, AutoRenew: true, NextBillingDate: now.AddDate(0, 0, 1)}, false},
		{"paused", Subscription{Status: SubStatusPaused, AutoRenew: true, NextBillingDate: due}, false},
		{"auto renew off", Subscription{Status: SubStatusActive, AutoRenew: false, NextBillingDate: due}, false},
		{"cancelled", Subscription{Status: SubStatusCancelled, AutoRenew: true, NextBillingDate: due}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.IsDueForBilling(now))
		})
	}
}
