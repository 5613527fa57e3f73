package postgres

import (
	"context"
	"fmt"

	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

// PaymentLogRepository implements ports.PaymentLogRepository over pgx.
// The table is append-only; there are no update or delete paths.
type PaymentLogRepository struct {
	db ports.DBPort
}

// NewPaymentLogRepository creates a new payment log repository
func NewPaymentLogRepository(db ports.DBPort) *PaymentLogRepository {
	return &PaymentLogRepository{db: db}
}

func (r *PaymentLogRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Create appends one audit entry
func (r *PaymentLogRepository) Create(ctx context.Context, db ports.DBTX, entry *models.PaymentLog) error {
	payload, err := marshalJSONMap(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	response, err := marshalJSONMap(entry.Response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	_, err = r.executor(db).Exec(ctx, `
		INSERT INTO dpo_payment_logs (
			id, reference, token, action, direction, payload, response,
			status_code, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID,
		entry.Reference,
		nullText(entry.Token),
		entry.Action,
		string(entry.Direction),
		payload,
		response,
		nullText(entry.StatusCode),
		nullText(entry.IPAddress),
		nullText(entry.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("create payment log: %w", err)
	}
	return nil
}
