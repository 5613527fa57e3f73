package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

const subscriptionColumns = `id, reference, amount, currency, country, frequency, status,
	start_date, end_date, next_billing_date, billing_cycle, auto_renew,
	retry_attempts, max_retry_attempts, successful_payments, failed_payments, total_paid,
	payment_token, gateway_subscription_id, customer_email, customer_name, customer_phone,
	customer_country, cancellation_reason, metadata, cancelled_at, created_at, updated_at`

// SubscriptionRepository implements ports.SubscriptionRepository over pgx
type SubscriptionRepository struct {
	db ports.DBPort
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db ports.DBPort) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Create creates a new subscription
func (r *SubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	amount, err := decimalToNumeric(sub.Amount)
	if err != nil {
		return err
	}
	totalPaid, err := decimalToNumeric(sub.TotalPaid)
	if err != nil {
		return err
	}
	metadata, err := marshalJSONMap(sub.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO dpo_subscriptions (
			id, reference, amount, currency, country, frequency, status,
			start_date, end_date, next_billing_date, billing_cycle, auto_renew,
			retry_attempts, max_retry_attempts, successful_payments, failed_payments, total_paid,
			payment_token, gateway_subscription_id, customer_email, customer_name, customer_phone,
			customer_country, cancellation_reason, metadata, cancelled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)`,
		sub.ID,
		sub.Reference,
		amount,
		sub.Currency,
		sub.Country,
		string(sub.Frequency),
		string(sub.Status),
		sub.StartDate,
		nullTimestamptz(sub.EndDate),
		sub.NextBillingDate,
		sub.BillingCycle,
		sub.AutoRenew,
		sub.RetryAttempts,
		sub.MaxRetryAttempts,
		sub.SuccessfulPayments,
		sub.FailedPayments,
		totalPaid,
		nullText(sub.PaymentToken),
		nullText(sub.GatewaySubscriptionID),
		nullText(sub.CustomerEmail),
		nullText(sub.CustomerName),
		nullText(sub.CustomerPhone),
		nullText(sub.CustomerCountry),
		nullText(sub.CancellationReason),
		metadata,
		nullTimestamptz(sub.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// GetByReference retrieves a subscription by its merchant reference
func (r *SubscriptionRepository) GetByReference(ctx context.Context, db ports.DBTX, reference string) (*models.Subscription, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM dpo_subscriptions WHERE reference = $1`, reference)
	return r.scanSubscription(row)
}

// Update persists the subscription's mutable fields
func (r *SubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	amount, err := decimalToNumeric(sub.Amount)
	if err != nil {
		return err
	}
	totalPaid, err := decimalToNumeric(sub.TotalPaid)
	if err != nil {
		return err
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE dpo_subscriptions SET
			amount = $2,
			frequency = $3,
			status = $4,
			end_date = $5,
			next_billing_date = $6,
			billing_cycle = $7,
			auto_renew = $8,
			retry_attempts = $9,
			successful_payments = $10,
			failed_payments = $11,
			total_paid = $12,
			payment_token = $13,
			gateway_subscription_id = $14,
			cancellation_reason = $15,
			cancelled_at = $16,
			updated_at = now()
		WHERE reference = $1`,
		sub.Reference,
		amount,
		string(sub.Frequency),
		string(sub.Status),
		nullTimestamptz(sub.EndDate),
		sub.NextBillingDate,
		sub.BillingCycle,
		sub.AutoRenew,
		sub.RetryAttempts,
		sub.SuccessfulPayments,
		sub.FailedPayments,
		totalPaid,
		nullText(sub.PaymentToken),
		nullText(sub.GatewaySubscriptionID),
		nullText(sub.CancellationReason),
		nullTimestamptz(sub.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// ReferenceExists reports whether a merchant reference is already taken
func (r *SubscriptionRepository) ReferenceExists(ctx context.Context, db ports.DBTX, reference string) (bool, error) {
	var exists bool
	err := r.executor(db).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM dpo_subscriptions WHERE reference = $1)`, reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reference exists: %w", err)
	}
	return exists, nil
}

// ListDueForBilling lists active auto-renewing subscriptions due at or before asOf.
// Oldest due first so a bounded batch never starves a subscription.
func (r *SubscriptionRepository) ListDueForBilling(ctx context.Context, db ports.DBTX, asOf time.Time, limit int32) ([]*models.Subscription, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+subscriptionColumns+` FROM dpo_subscriptions
		 WHERE status = $1 AND auto_renew = true AND next_billing_date <= $2
		 ORDER BY next_billing_date ASC
		 LIMIT $3`,
		string(models.SubStatusActive), asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := r.scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	return subs, nil
}

// CountByStatus aggregates subscriptions per status
func (r *SubscriptionRepository) CountByStatus(ctx context.Context, db ports.DBTX) (map[models.SubscriptionStatus]int64, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT status, COUNT(*) FROM dpo_subscriptions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SubscriptionStatus]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan subscription counts: %w", err)
		}
		counts[models.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}
	return counts, nil
}

// scanSubscription maps one row onto the domain model
func (r *SubscriptionRepository) scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var (
		sub             models.Subscription
		amount          pgtype.Numeric
		frequency       string
		status          string
		endDate         pgtype.Timestamptz
		totalPaid       pgtype.Numeric
		paymentToken    pgtype.Text
		gatewaySubID    pgtype.Text
		customerEmail   pgtype.Text
		customerName    pgtype.Text
		customerPhone   pgtype.Text
		customerCountry pgtype.Text
		cancelReason    pgtype.Text
		metadata        []byte
		cancelledAt     pgtype.Timestamptz
	)

	err := row.Scan(
		&sub.ID, &sub.Reference, &amount, &sub.Currency, &sub.Country, &frequency, &status,
		&sub.StartDate, &endDate, &sub.NextBillingDate, &sub.BillingCycle, &sub.AutoRenew,
		&sub.RetryAttempts, &sub.MaxRetryAttempts, &sub.SuccessfulPayments, &sub.FailedPayments, &totalPaid,
		&paymentToken, &gatewaySubID, &customerEmail, &customerName, &customerPhone,
		&customerCountry, &cancelReason, &metadata, &cancelledAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	if sub.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	if sub.TotalPaid, err = pgNumericToDecimal(totalPaid); err != nil {
		return nil, err
	}
	if sub.Metadata, err = unmarshalJSONMap(metadata); err != nil {
		return nil, err
	}

	sub.Frequency = models.BillingFrequency(frequency)
	sub.Status = models.SubscriptionStatus(status)
	sub.EndDate = timePtr(endDate)
	sub.PaymentToken = paymentToken.String
	sub.GatewaySubscriptionID = gatewaySubID.String
	sub.CustomerEmail = customerEmail.String
	sub.CustomerName = customerName.String
	sub.CustomerPhone = customerPhone.String
	sub.CustomerCountry = customerCountry.String
	sub.CancellationReason = cancelReason.String
	sub.CancelledAt = timePtr(cancelledAt)

	return &sub, nil
}
