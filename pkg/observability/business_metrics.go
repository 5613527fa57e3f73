package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Payment transaction metrics
	paymentTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpo_payment_transactions_total",
		Help: "Total number of payment transactions",
	}, []string{
		"operation", // create, verify, refund, cancel
		"status",    // success, failed, cancelled, refunded
		"currency",
		"result_code", // DPO result code, 000=success
	})

	paymentAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpo_payment_amount_total",
		Help: "Total payment volume in major currency units",
	}, []string{
		"operation",
		"status",
		"currency",
	})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "dpo_gateway_request_duration_seconds",
		Help: "Duration of gateway round-trips",
		// 100ms to 30s covers the gateway's fixed timeout window
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"operation",
	})

	// Subscription billing metrics
	subscriptionBillingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpo_subscription_billings_total",
		Help: "Total subscription billing attempts",
	}, []string{
		"status", // success, failed, cancelled
		"currency",
	})

	subscriptionRevenueTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpo_subscription_revenue_total",
		Help: "Total subscription revenue in major currency units",
	}, []string{
		"currency",
	})

	subscriptionsAutoCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dpo_subscriptions_auto_cancelled_total",
		Help: "Subscriptions cancelled after exhausting billing retries",
	})

	billingBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dpo_billing_batch_duration_seconds",
		Help:    "Duration of one due-subscription batch run",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
	})

	// Callback metrics
	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpo_callbacks_total",
		Help: "Gateway webhook callbacks received",
	}, []string{
		"outcome", // verified, failed, rejected
	})
)

// RecordPaymentTransaction records one payment orchestrator operation.
// Amounts only accumulate for successful operations so the volume series
// tracks realized money movement.
func RecordPaymentTransaction(operation, status, currency, resultCode string, amount float64) {
	paymentTransactionsTotal.WithLabelValues(operation, status, currency, resultCode).Inc()
	if status == "success" || status == "refunded" {
		paymentAmountTotal.WithLabelValues(operation, status, currency).Add(amount)
	}
}

// RecordGatewayDuration records one gateway round-trip
func RecordGatewayDuration(operation string, seconds float64) {
	gatewayRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordSubscriptionBilling records one billing cycle attempt
func RecordSubscriptionBilling(status, currency string, amount float64) {
	subscriptionBillingsTotal.WithLabelValues(status, currency).Inc()
	if status == "success" {
		subscriptionRevenueTotal.WithLabelValues(currency).Add(amount)
	}
}

// RecordSubscriptionAutoCancelled records a retry-exhaustion cancellation
func RecordSubscriptionAutoCancelled() {
	subscriptionsAutoCancelled.Inc()
}

// RecordBillingBatch records one batch sweep's duration
func RecordBillingBatch(seconds float64) {
	billingBatchDuration.Observe(seconds)
}

// RecordCallback records one webhook callback outcome
func RecordCallback(outcome string) {
	callbacksTotal.WithLabelValues(outcome).Inc()
}
