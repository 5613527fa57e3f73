package ports

import (
	"context"

	"github.com/zedpay/dpo-payment-service/internal/domain/models"
)

// PaymentLogRepository persists the append-only gateway audit trail.
// Writes are best-effort from the orchestrators' perspective.
type PaymentLogRepository interface {
	Create(ctx context.Context, db DBTX, entry *models.PaymentLog) error
}
