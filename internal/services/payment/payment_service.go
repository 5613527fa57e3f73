package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
	"github.com/zedpay/dpo-payment-service/internal/services/country"
	"github.com/zedpay/dpo-payment-service/pkg/observability"
)

// Service implements ports.PaymentService. It owns the one-time payment
// lifecycle; subscriptions create transactions through it but never mutate
// their terminal state directly.
type Service struct {
	db        ports.DBPort
	txnRepo   ports.TransactionRepository
	logRepo   ports.PaymentLogRepository
	gateway   ports.GatewayClient
	countries *country.Service
	logger    ports.Logger
	clock     ports.Clock
}

// NewService creates a new payment service
func NewService(
	db ports.DBPort,
	txnRepo ports.TransactionRepository,
	logRepo ports.PaymentLogRepository,
	gateway ports.GatewayClient,
	countries *country.Service,
	logger ports.Logger,
	clock ports.Clock,
) *Service {
	return &Service{
		db:        db,
		txnRepo:   txnRepo,
		logRepo:   logRepo,
		gateway:   gateway,
		countries: countries,
		logger:    logger,
		clock:     clock,
	}
}

// CreatePayment allocates a reference, persists a pending transaction, and
// requests a gateway token. Record creation, the gateway call, and the status
// update commit as one unit of work so a reference is never duplicated.
// Gateway rejections commit the failed transaction and return the rejection.
func (s *Service) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*ports.PaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid
	}

	countryCode := req.Country
	if countryCode == "" {
		countryCode = country.DefaultCountry
	}
	currency := req.Currency
	if currency == "" {
		currency = s.countries.CurrencyFor(countryCode)
	}

	txnType := req.Type
	if txnType == "" {
		txnType = models.TypeOneTime
	}

	now := s.clock.Now()
	reference, err := GenerateReference(ctx, "PAY", now, s.txnRepo.ReferenceExists)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "allocate reference", err)
	}

	items := make([]models.TransactionItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = models.TransactionItem{Description: item.Description, Date: item.Date}
	}

	txn := &models.Transaction{
		ID:              uuid.New().String(),
		Reference:       reference,
		SubscriptionID:  req.SubscriptionID,
		Amount:          req.Amount,
		RefundedAmount:  decimal.Zero,
		Currency:        currency,
		Country:         countryCode,
		Type:            txnType,
		Status:          models.StatusPending,
		Description:     req.Description,
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerCountry: req.CustomerCountry,
		Items:           items,
		Metadata:        req.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var gatewayErr error
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		s.audit(ctx, tx, txn.Reference, "", "createToken", models.DirectionRequest, map[string]string{
			"amount":   txn.Amount.StringFixed(2),
			"currency": txn.Currency,
			"country":  txn.Country,
			"type":     string(txn.Type),
		}, nil, "")

		tokenResp, err := s.gateway.CreateToken(ctx, txn)
		if err != nil {
			// Gateway rejection is a business outcome: the failed
			// transaction commits and the rejection propagates.
			txn.MarkFailed(gatewayResultCode(err), err.Error(), nil, s.clock.Now())
			if updErr := s.txnRepo.Update(ctx, tx, txn); updErr != nil {
				return fmt.Errorf("persist failed transaction: %w", updErr)
			}
			s.audit(ctx, tx, txn.Reference, "", "createToken", models.DirectionResponse, nil,
				map[string]string{"error": err.Error()}, gatewayResultCode(err))
			gatewayErr = err
			return nil
		}

		txn.MarkProcessing(tokenResp.Token, tokenResp.TransRef, tokenResp.PaymentURL, s.clock.Now())
		txn.GatewayResultCode = tokenResp.ResultCode
		txn.GatewayResultText = tokenResp.Explanation
		if err := s.txnRepo.Update(ctx, tx, txn); err != nil {
			return fmt.Errorf("persist processing transaction: %w", err)
		}

		s.audit(ctx, tx, txn.Reference, tokenResp.Token, "createToken", models.DirectionResponse, nil, map[string]string{
			"token":     tokenResp.Token,
			"trans_ref": tokenResp.TransRef,
			"result":    tokenResp.ResultCode,
		}, tokenResp.ResultCode)

		return nil
	})
	if err != nil {
		s.logger.Error("create payment failed",
			ports.String("reference", reference),
			ports.Err(err))
		return nil, err
	}

	observability.RecordPaymentTransaction("create", string(txn.Status), txn.Currency,
		txn.GatewayResultCode, amountFloat(txn.Amount))

	if gatewayErr != nil {
		s.logger.Warn("gateway rejected token creation",
			ports.String("reference", reference),
			ports.String("error", gatewayErr.Error()))
		return nil, gatewayErr
	}

	s.logger.Info("payment created",
		ports.String("reference", reference),
		ports.String("currency", txn.Currency),
		ports.String("amount", txn.Amount.StringFixed(2)))

	return s.toResponse(txn), nil
}

// VerifyPayment resolves a token to its transaction and applies the gateway's
// verdict. Success requires both a "000" result and an approval flag.
// Verification of an already-terminal transaction is idempotent: the stored
// terminal state wins over any later gateway verdict.
func (s *Service) VerifyPayment(ctx context.Context, token string) (*ports.PaymentResponse, error) {
	txn, err := s.txnRepo.GetByToken(ctx, nil, token)
	if err != nil {
		return nil, err
	}

	if txn.IsTerminal() {
		return s.toResponse(txn), nil
	}

	resp, err := s.gateway.VerifyToken(ctx, token, txn.Reference)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Re-read under the transaction so concurrent verifies cannot
		// apply conflicting terminal states.
		current, err := s.txnRepo.GetByToken(ctx, tx, token)
		if err != nil {
			return err
		}

		if current.IsTerminal() {
			txn = current
			return nil
		}

		if resp.IsSuccess() && resp.IsApproved() {
			current.MarkPaid(resp.ResultCode(), resp.ResultExplanation(), resp, s.clock.Now())
		} else {
			current.MarkFailed(resp.ResultCode(), resp.ResultExplanation(), resp, s.clock.Now())
		}

		if err := s.txnRepo.Update(ctx, tx, current); err != nil {
			return fmt.Errorf("persist verification: %w", err)
		}

		s.audit(ctx, tx, current.Reference, token, "verifyToken", models.DirectionCallback,
			nil, resp, resp.ResultCode())

		txn = current
		return nil
	})
	if err != nil {
		s.logger.Error("verify payment failed",
			ports.String("token", token),
			ports.Err(err))
		return nil, err
	}

	observability.RecordPaymentTransaction("verify", string(txn.Status), txn.Currency,
		txn.GatewayResultCode, amountFloat(txn.Amount))

	s.logger.Info("payment verified",
		ports.String("reference", txn.Reference),
		ports.String("status", string(txn.Status)),
		ports.String("result", txn.GatewayResultCode))

	return s.toResponse(txn), nil
}

// RefundPayment refunds part or all of a successful transaction. A nil amount
// refunds the full remaining refundable amount. Status flips to refunded only
// once the cumulative refunds cover the original amount.
func (s *Service) RefundPayment(ctx context.Context, req ports.RefundPaymentRequest) (*ports.PaymentResponse, error) {
	txn, err := s.txnRepo.GetByReference(ctx, nil, req.Reference)
	if err != nil {
		return nil, err
	}

	if !txn.IsRefundable() {
		return nil, domain.ErrTxnNotRefundable
	}

	remaining := txn.RemainingRefundable()
	amount := remaining
	if req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid
	}
	if amount.GreaterThan(remaining) {
		return nil, domain.ErrRefundExceedsRemaining
	}

	resp, err := s.gateway.RefundToken(ctx, txn.Token, amount, txn.Reference, req.Reason)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, domain.BusinessFailure(resp.ResultExplanation(), resp.ResultCode())
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.txnRepo.GetByReference(ctx, tx, req.Reference)
		if err != nil {
			return err
		}

		current.ApplyRefund(amount, s.clock.Now())
		if err := s.txnRepo.Update(ctx, tx, current); err != nil {
			return fmt.Errorf("persist refund: %w", err)
		}

		s.audit(ctx, tx, current.Reference, current.Token, "refundToken", models.DirectionResponse,
			map[string]string{"amount": amount.StringFixed(2), "reason": req.Reason},
			resp, resp.ResultCode())

		txn = current
		return nil
	})
	if err != nil {
		s.logger.Error("refund payment failed",
			ports.String("reference", req.Reference),
			ports.Err(err))
		return nil, err
	}

	observability.RecordPaymentTransaction("refund", string(txn.Status), txn.Currency,
		txn.GatewayResultCode, amountFloat(amount))

	s.logger.Info("payment refunded",
		ports.String("reference", txn.Reference),
		ports.String("amount", amount.StringFixed(2)),
		ports.String("status", string(txn.Status)))

	return s.toResponse(txn), nil
}

// CancelPayment cancels a pending transaction's unconsumed token. A gateway
// rejection leaves the transaction unchanged.
func (s *Service) CancelPayment(ctx context.Context, reference string) (*ports.PaymentResponse, error) {
	txn, err := s.txnRepo.GetByReference(ctx, nil, reference)
	if err != nil {
		return nil, err
	}

	if txn.Status != models.StatusPending && txn.Status != models.StatusProcessing {
		return nil, domain.ErrTxnNotCancellable
	}

	ok, err := s.gateway.CancelToken(ctx, txn.Token, txn.Reference)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.BusinessFailure("gateway rejected token cancellation", "")
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.txnRepo.GetByReference(ctx, tx, reference)
		if err != nil {
			return err
		}

		current.MarkCancelled(s.clock.Now())
		if err := s.txnRepo.Update(ctx, tx, current); err != nil {
			return fmt.Errorf("persist cancellation: %w", err)
		}

		s.audit(ctx, tx, current.Reference, current.Token, "cancelToken", models.DirectionResponse,
			nil, map[string]string{"result": "cancelled"}, "")

		txn = current
		return nil
	})
	if err != nil {
		s.logger.Error("cancel payment failed",
			ports.String("reference", reference),
			ports.Err(err))
		return nil, err
	}

	observability.RecordPaymentTransaction("cancel", string(txn.Status), txn.Currency, "",
		amountFloat(txn.Amount))

	s.logger.Info("payment cancelled", ports.String("reference", reference))

	return s.toResponse(txn), nil
}

// GetPayment returns a transaction by merchant reference
func (s *Service) GetPayment(ctx context.Context, reference string) (*models.Transaction, error) {
	return s.txnRepo.GetByReference(ctx, nil, reference)
}

// GetBalance reports the merchant account balance
func (s *Service) GetBalance(ctx context.Context, currency string) (*models.Balance, error) {
	return s.gateway.GetBalance(ctx, currency)
}

// audit appends one gateway exchange record. Audit failures are logged and
// swallowed so they never abort a money movement.
func (s *Service) audit(ctx context.Context, tx ports.DBTX, reference, token, action string,
	direction models.LogDirection, payload, response map[string]string, statusCode string) {
	entry := &models.PaymentLog{
		ID:         uuid.New().String(),
		Reference:  reference,
		Token:      token,
		Action:     action,
		Direction:  direction,
		Payload:    payload,
		Response:   response,
		StatusCode: statusCode,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.logRepo.Create(ctx, tx, entry); err != nil {
		s.logger.Warn("audit log write failed",
			ports.String("reference", reference),
			ports.String("action", action),
			ports.Err(err))
	}
}

func (s *Service) toResponse(txn *models.Transaction) *ports.PaymentResponse {
	return &ports.PaymentResponse{
		Reference:         txn.Reference,
		Status:            txn.Status,
		Token:             txn.Token,
		PaymentURL:        txn.PaymentURL,
		Amount:            txn.Amount,
		RefundedAmount:    txn.RefundedAmount,
		Currency:          txn.Currency,
		ResultCode:        txn.GatewayResultCode,
		ResultExplanation: txn.GatewayResultText,
		PaidAt:            txn.PaidAt,
	}
}

// gatewayResultCode pulls the result code out of a business failure's details
func gatewayResultCode(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		if code, ok := domainErr.Details["result_code"].(string); ok {
			return code
		}
	}
	return ""
}

func amountFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
