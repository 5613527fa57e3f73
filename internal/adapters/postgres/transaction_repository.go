package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

const transactionColumns = `id, reference, subscription_id, amount, refunded_amount, currency, country,
	type, status, description, customer_email, customer_name, customer_phone, customer_country,
	token, gateway_transaction_id, gateway_result_code, gateway_result_text, gateway_response,
	payment_url, metadata, paid_at, cancelled_at, created_at, updated_at`

// TransactionRepository implements ports.TransactionRepository over pgx
type TransactionRepository struct {
	db ports.DBPort
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db ports.DBPort) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// executor picks the explicit transaction when one is passed, otherwise the pool
func (r *TransactionRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Create creates a new transaction
func (r *TransactionRepository) Create(ctx context.Context, tx ports.DBTX, transaction *models.Transaction) error {
	amount, err := decimalToNumeric(transaction.Amount)
	if err != nil {
		return err
	}
	refunded, err := decimalToNumeric(transaction.RefundedAmount)
	if err != nil {
		return err
	}
	response, err := marshalJSONMap(transaction.GatewayResponse)
	if err != nil {
		return fmt.Errorf("marshal gateway response: %w", err)
	}
	metadata, err := marshalJSONMap(transaction.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO dpo_transactions (
			id, reference, subscription_id, amount, refunded_amount, currency, country,
			type, status, description, customer_email, customer_name, customer_phone, customer_country,
			token, gateway_transaction_id, gateway_result_code, gateway_result_text, gateway_response,
			payment_url, metadata, paid_at, cancelled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23
		)`,
		transaction.ID,
		transaction.Reference,
		nullText(transaction.SubscriptionID),
		amount,
		refunded,
		transaction.Currency,
		transaction.Country,
		string(transaction.Type),
		string(transaction.Status),
		nullText(transaction.Description),
		nullText(transaction.CustomerEmail),
		nullText(transaction.CustomerName),
		nullText(transaction.CustomerPhone),
		nullText(transaction.CustomerCountry),
		nullText(transaction.Token),
		nullText(transaction.GatewayTransactionID),
		nullText(transaction.GatewayResultCode),
		nullText(transaction.GatewayResultText),
		response,
		nullText(transaction.PaymentURL),
		metadata,
		nullTimestamptz(transaction.PaidAt),
		nullTimestamptz(transaction.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// GetByReference retrieves a transaction by its merchant reference
func (r *TransactionRepository) GetByReference(ctx context.Context, db ports.DBTX, reference string) (*models.Transaction, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM dpo_transactions WHERE reference = $1`, reference)
	return r.scanTransaction(row)
}

// GetByToken retrieves a transaction by its gateway token. Recurring charges
// reuse the subscription's stored token across billing cycles, so the token
// is not unique; the newest transaction is the one a verification concerns.
func (r *TransactionRepository) GetByToken(ctx context.Context, db ports.DBTX, token string) (*models.Transaction, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM dpo_transactions
		 WHERE token = $1 ORDER BY created_at DESC LIMIT 1`, token)
	return r.scanTransaction(row)
}

// Update persists the transaction's mutable fields
func (r *TransactionRepository) Update(ctx context.Context, tx ports.DBTX, transaction *models.Transaction) error {
	amount, err := decimalToNumeric(transaction.Amount)
	if err != nil {
		return err
	}
	refunded, err := decimalToNumeric(transaction.RefundedAmount)
	if err != nil {
		return err
	}
	response, err := marshalJSONMap(transaction.GatewayResponse)
	if err != nil {
		return fmt.Errorf("marshal gateway response: %w", err)
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE dpo_transactions SET
			amount = $2,
			refunded_amount = $3,
			status = $4,
			token = $5,
			gateway_transaction_id = $6,
			gateway_result_code = $7,
			gateway_result_text = $8,
			gateway_response = $9,
			payment_url = $10,
			paid_at = $11,
			cancelled_at = $12,
			updated_at = now()
		WHERE reference = $1`,
		transaction.Reference,
		amount,
		refunded,
		string(transaction.Status),
		nullText(transaction.Token),
		nullText(transaction.GatewayTransactionID),
		nullText(transaction.GatewayResultCode),
		nullText(transaction.GatewayResultText),
		response,
		nullText(transaction.PaymentURL),
		nullTimestamptz(transaction.PaidAt),
		nullTimestamptz(transaction.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTxnNotFound
	}
	return nil
}

// ReferenceExists reports whether a merchant reference is already taken
func (r *TransactionRepository) ReferenceExists(ctx context.Context, db ports.DBTX, reference string) (bool, error) {
	var exists bool
	err := r.executor(db).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM dpo_transactions WHERE reference = $1)`, reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reference exists: %w", err)
	}
	return exists, nil
}

// ListBySubscription lists transactions belonging to a subscription, newest first
func (r *TransactionRepository) ListBySubscription(ctx context.Context, db ports.DBTX, subscriptionID string) ([]*models.Transaction, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+transactionColumns+` FROM dpo_transactions
		 WHERE subscription_id = $1 ORDER BY created_at DESC`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list transactions by subscription: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		txn, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions by subscription: %w", err)
	}
	return transactions, nil
}

// StatsByStatus aggregates counts and volume per status
func (r *TransactionRepository) StatsByStatus(ctx context.Context, db ports.DBTX) ([]ports.TransactionStats, error) {
	rows, err := r.executor(db).Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM dpo_transactions
		GROUP BY status
		ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	defer rows.Close()

	var stats []ports.TransactionStats
	for rows.Next() {
		var (
			status string
			count  int64
			volume pgtype.Numeric
		)
		if err := rows.Scan(&status, &count, &volume); err != nil {
			return nil, fmt.Errorf("scan transaction stats: %w", err)
		}
		vol, err := pgNumericToDecimal(volume)
		if err != nil {
			return nil, err
		}
		stats = append(stats, ports.TransactionStats{
			Status: models.TransactionStatus(status),
			Count:  count,
			Volume: vol,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	return stats, nil
}

// scanTransaction maps one row onto the domain model
func (r *TransactionRepository) scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		txn             models.Transaction
		subscriptionID  pgtype.Text
		amount          pgtype.Numeric
		refundedAmount  pgtype.Numeric
		txnType         string
		status          string
		description     pgtype.Text
		customerEmail   pgtype.Text
		customerName    pgtype.Text
		customerPhone   pgtype.Text
		customerCountry pgtype.Text
		token           pgtype.Text
		gatewayTxnID    pgtype.Text
		resultCode      pgtype.Text
		resultText      pgtype.Text
		response        []byte
		paymentURL      pgtype.Text
		metadata        []byte
		paidAt          pgtype.Timestamptz
		cancelledAt     pgtype.Timestamptz
	)

	err := row.Scan(
		&txn.ID, &txn.Reference, &subscriptionID, &amount, &refundedAmount, &txn.Currency, &txn.Country,
		&txnType, &status, &description, &customerEmail, &customerName, &customerPhone, &customerCountry,
		&token, &gatewayTxnID, &resultCode, &resultText, &response,
		&paymentURL, &metadata, &paidAt, &cancelledAt, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTxnNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	if txn.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	if txn.RefundedAmount, err = pgNumericToDecimal(refundedAmount); err != nil {
		return nil, err
	}
	if txn.GatewayResponse, err = unmarshalJSONMap(response); err != nil {
		return nil, err
	}
	if txn.Metadata, err = unmarshalJSONMap(metadata); err != nil {
		return nil, err
	}

	txn.SubscriptionID = subscriptionID.String
	txn.Type = models.TransactionType(txnType)
	txn.Status = models.TransactionStatus(status)
	txn.Description = description.String
	txn.CustomerEmail = customerEmail.String
	txn.CustomerName = customerName.String
	txn.CustomerPhone = customerPhone.String
	txn.CustomerCountry = customerCountry.String
	txn.Token = token.String
	txn.GatewayTransactionID = gatewayTxnID.String
	txn.GatewayResultCode = resultCode.String
	txn.GatewayResultText = resultText.String
	txn.PaymentURL = paymentURL.String
	txn.PaidAt = timePtr(paidAt)
	txn.CancelledAt = timePtr(cancelledAt)

	return &txn, nil
}
