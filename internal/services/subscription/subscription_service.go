package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
	"github.com/zedpay/dpo-payment-service/internal/services/country"
	"github.com/zedpay/dpo-payment-service/internal/services/payment"
	"github.com/zedpay/dpo-payment-service/pkg/observability"
)

// Config holds recurring billing policy
type Config struct {
	// MaxRetryAttempts bounds consecutive failed billing cycles before a
	// subscription auto-cancels
	MaxRetryAttempts int

	// DefaultBatchSize bounds one due-processing sweep when the caller
	// does not specify a size
	DefaultBatchSize int
}

// Service implements ports.SubscriptionService. Charges run through the
// payment service; this service never mutates a transaction's terminal state
// on its own.
type Service struct {
	db             ports.DBPort
	subRepo        ports.SubscriptionRepository
	txnRepo        ports.TransactionRepository
	paymentService ports.PaymentService
	gateway        ports.GatewayClient
	countries      *country.Service
	config         Config
	logger         ports.Logger
	clock          ports.Clock
}

// NewService creates a new subscription service
func NewService(
	db ports.DBPort,
	subRepo ports.SubscriptionRepository,
	txnRepo ports.TransactionRepository,
	paymentService ports.PaymentService,
	gateway ports.GatewayClient,
	countries *country.Service,
	config Config,
	logger ports.Logger,
	clock ports.Clock,
) *Service {
	if config.MaxRetryAttempts <= 0 {
		config.MaxRetryAttempts = 3
	}
	if config.DefaultBatchSize <= 0 {
		config.DefaultBatchSize = 100
	}
	return &Service{
		db:             db,
		subRepo:        subRepo,
		txnRepo:        txnRepo,
		paymentService: paymentService,
		gateway:        gateway,
		countries:      countries,
		config:         config,
		logger:         logger,
		clock:          clock,
	}
}

// CreateSubscription validates the market, persists a pending subscription,
// and registers the recurring agreement with the gateway. Gateway rejection
// commits the subscription in the failed state and propagates the rejection.
func (s *Service) CreateSubscription(ctx context.Context, req ports.CreateSubscriptionRequest) (*ports.SubscriptionResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid
	}

	countryCode := req.Country
	if countryCode == "" {
		countryCode = country.DefaultCountry
	}
	market, err := s.countries.Get(countryCode)
	if err != nil {
		return nil, err
	}
	if !market.SupportsRecurring {
		return nil, domain.ErrRecurringNotSupported
	}

	currency := req.Currency
	if currency == "" {
		currency = market.Currency
	}
	frequency := req.Frequency
	if frequency == "" {
		frequency = models.FrequencyMonthly
	}

	now := s.clock.Now()
	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = now
	}

	reference, err := payment.GenerateReference(ctx, "SUB", now, s.subRepo.ReferenceExists)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "allocate reference", err)
	}

	sub := &models.Subscription{
		ID:               uuid.New().String(),
		Reference:        reference,
		Amount:           req.Amount,
		Currency:         currency,
		Country:          countryCode,
		Frequency:        frequency,
		Status:           models.SubStatusPending,
		StartDate:        startDate,
		EndDate:          req.EndDate,
		NextBillingDate:  startDate,
		BillingCycle:     1,
		AutoRenew:        req.AutoRenew,
		MaxRetryAttempts: s.config.MaxRetryAttempts,
		CustomerEmail:    req.CustomerEmail,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerCountry:  req.CustomerCountry,
		Metadata:         req.Metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var gatewayErr error
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.subRepo.Create(ctx, tx, sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}

		resp, err := s.gateway.CreateRecurring(ctx, sub)
		if err != nil {
			sub.Status = models.SubStatusFailed
			sub.UpdatedAt = s.clock.Now()
			if updErr := s.subRepo.Update(ctx, tx, sub); updErr != nil {
				return fmt.Errorf("persist failed subscription: %w", updErr)
			}
			gatewayErr = err
			return nil
		}
		if !resp.IsSuccess() {
			sub.Status = models.SubStatusFailed
			sub.UpdatedAt = s.clock.Now()
			if updErr := s.subRepo.Update(ctx, tx, sub); updErr != nil {
				return fmt.Errorf("persist failed subscription: %w", updErr)
			}
			gatewayErr = domain.BusinessFailure(resp.ResultExplanation(), resp.ResultCode())
			return nil
		}

		sub.GatewaySubscriptionID = resp["SubscriptionID"]
		sub.Status = models.SubStatusActive
		sub.UpdatedAt = s.clock.Now()
		if err := s.subRepo.Update(ctx, tx, sub); err != nil {
			return fmt.Errorf("activate subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("create subscription failed",
			ports.String("reference", reference),
			ports.Err(err))
		return nil, err
	}
	if gatewayErr != nil {
		s.logger.Warn("gateway rejected subscription creation",
			ports.String("reference", reference),
			ports.String("error", gatewayErr.Error()))
		return nil, gatewayErr
	}

	response := s.toResponse(sub)

	// Optional immediate first charge, outside the creation unit of work so
	// a charge failure never unwinds the active subscription.
	if req.ChargeNow {
		payResp, err := s.paymentService.CreatePayment(ctx, ports.CreatePaymentRequest{
			Amount:          sub.Amount,
			Currency:        sub.Currency,
			Country:         sub.Country,
			Description:     "Initial subscription charge " + sub.Reference,
			CustomerEmail:   sub.CustomerEmail,
			CustomerName:    sub.CustomerName,
			CustomerPhone:   sub.CustomerPhone,
			CustomerCountry: sub.CustomerCountry,
			Type:            models.TypeSubscription,
			SubscriptionID:  sub.Reference,
		})
		if err != nil {
			s.logger.Warn("initial subscription charge failed",
				ports.String("reference", sub.Reference),
				ports.String("error", err.Error()))
		} else {
			response.PaymentURL = payResp.PaymentURL

			// The first charge's token is reused for every later billing
			// cycle, so losing it here would force a second hosted checkout.
			if payResp.Token != "" {
				sub.PaymentToken = payResp.Token
				sub.UpdatedAt = s.clock.Now()
				persistErr := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
					return s.subRepo.Update(ctx, tx, sub)
				})
				if persistErr != nil {
					s.logger.Error("failed to store initial payment token",
						ports.String("reference", sub.Reference),
						ports.Err(persistErr))
				}
			}
		}
	}

	s.logger.Info("subscription created",
		ports.String("reference", sub.Reference),
		ports.String("frequency", string(sub.Frequency)),
		ports.String("next_billing", sub.NextBillingDate.Format(time.RFC3339)))

	return response, nil
}

// GetSubscription returns a subscription by merchant reference
func (s *Service) GetSubscription(ctx context.Context, reference string) (*models.Subscription, error) {
	return s.subRepo.GetByReference(ctx, nil, reference)
}

// UpdateSubscription applies partial updates. Cancelled subscriptions are
// immutable. The remote agreement is updated best-effort; a gateway rejection
// is logged, never propagated.
func (s *Service) UpdateSubscription(ctx context.Context, reference string, req ports.UpdateSubscriptionRequest) (*ports.SubscriptionResponse, error) {
	sub, err := s.subRepo.GetByReference(ctx, nil, reference)
	if err != nil {
		return nil, err
	}
	if sub.IsCancelled() {
		return nil, domain.ErrSubscriptionCancelled
	}

	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, domain.ErrValidationAmountInvalid
		}
		sub.Amount = *req.Amount
	}
	if req.Frequency != nil {
		sub.Frequency = *req.Frequency
	}
	if req.EndDate != nil {
		sub.EndDate = req.EndDate
	}
	if req.AutoRenew != nil {
		sub.AutoRenew = *req.AutoRenew
	}
	sub.UpdatedAt = s.clock.Now()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.subRepo.Update(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	if sub.GatewaySubscriptionID != "" {
		update := ports.RecurringUpdate{Amount: req.Amount, Frequency: req.Frequency}
		if req.EndDate != nil {
			endDate := req.EndDate.Format("2006/01/02")
			update.EndDate = &endDate
		}
		if ok, err := s.gateway.UpdateRecurring(ctx, sub.GatewaySubscriptionID, update); err != nil || !ok {
			s.logger.Warn("remote subscription update failed",
				ports.String("reference", reference),
				ports.String("gateway_subscription_id", sub.GatewaySubscriptionID))
		}
	}

	s.logger.Info("subscription updated", ports.String("reference", reference))
	return s.toResponse(sub), nil
}

// CancelSubscription cancels a subscription. Cancelling an already-cancelled
// subscription is a no-op returning current state. The remote cancellation is
// best-effort: local state cancels regardless.
func (s *Service) CancelSubscription(ctx context.Context, reference, reason string) (*ports.SubscriptionResponse, error) {
	sub, err := s.subRepo.GetByReference(ctx, nil, reference)
	if err != nil {
		return nil, err
	}
	if sub.IsCancelled() {
		return s.toResponse(sub), nil
	}

	if sub.GatewaySubscriptionID != "" {
		if ok, err := s.gateway.CancelRecurring(ctx, sub.GatewaySubscriptionID); err != nil || !ok {
			s.logger.Warn("remote subscription cancellation failed",
				ports.String("reference", reference),
				ports.String("gateway_subscription_id", sub.GatewaySubscriptionID))
		}
	}

	sub.Cancel(reason, s.clock.Now())
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.subRepo.Update(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription cancelled",
		ports.String("reference", reference),
		ports.String("reason", reason))
	return s.toResponse(sub), nil
}

// PauseSubscription suspends billing for an active subscription
func (s *Service) PauseSubscription(ctx context.Context, reference string) (*ports.SubscriptionResponse, error) {
	sub, err := s.subRepo.GetByReference(ctx, nil, reference)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubStatusActive {
		return nil, domain.ErrSubscriptionNotActive
	}

	sub.Pause(s.clock.Now())
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.subRepo.Update(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription paused", ports.String("reference", reference))
	return s.toResponse(sub), nil
}

// ResumeSubscription restores billing for a paused subscription
func (s *Service) ResumeSubscription(ctx context.Context, reference string) (*ports.SubscriptionResponse, error) {
	sub, err := s.subRepo.GetByReference(ctx, nil, reference)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubStatusPaused {
		return nil, domain.ErrSubscriptionNotPaused
	}

	sub.Resume(s.clock.Now())
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.subRepo.Update(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription resumed", ports.String("reference", reference))
	return s.toResponse(sub), nil
}

// ProcessSubscriptionPayment runs one billing cycle for a due subscription.
//
// With a stored payment token the charge executes synchronously through the
// token. Without one, a fresh token is created via the payment service and
// stored for subsequent cycles; that cycle's transaction stays in processing
// until the customer completes checkout.
//
// A failed charge is persisted (transaction failed, retry counter advanced,
// auto-cancel on exhaustion) and then returned as an error alongside the
// transaction.
func (s *Service) ProcessSubscriptionPayment(ctx context.Context, reference string) (*models.Transaction, error) {
	sub, err := s.subRepo.GetByReference(ctx, nil, reference)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !sub.IsDueForBilling(now) {
		return nil, domain.ErrSubscriptionNotDue
	}

	if sub.PaymentToken == "" {
		return s.establishPaymentToken(ctx, sub)
	}
	return s.chargeStoredToken(ctx, sub)
}

// chargeStoredToken executes one billing cycle through the stored token
func (s *Service) chargeStoredToken(ctx context.Context, sub *models.Subscription) (*models.Transaction, error) {
	now := s.clock.Now()
	txn := &models.Transaction{
		ID:             uuid.New().String(),
		Reference:      fmt.Sprintf("%s-C%d-%d", sub.Reference, sub.BillingCycle, now.Unix()),
		SubscriptionID: sub.Reference,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		Country:        sub.Country,
		Type:           models.TypeSubscription,
		Status:         models.StatusPending,
		Description:    fmt.Sprintf("Subscription charge cycle %d", sub.BillingCycle),
		CustomerEmail:  sub.CustomerEmail,
		CustomerName:   sub.CustomerName,
		Token:          sub.PaymentToken,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	resp, verifyErr := s.gateway.VerifyToken(ctx, sub.PaymentToken, txn.Reference)
	charged := verifyErr == nil && resp.IsSuccess() && resp.IsApproved()

	var chargeErr error
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("create billing transaction: %w", err)
		}

		if charged {
			txn.MarkPaid(resp.ResultCode(), resp.ResultExplanation(), resp, s.clock.Now())
			sub.RecordSuccessfulPayment(sub.Amount, s.clock.Now())
		} else {
			explanation := "charge failed"
			code := ""
			if verifyErr != nil {
				explanation = verifyErr.Error()
			} else {
				explanation = resp.ResultExplanation()
				code = resp.ResultCode()
			}
			txn.MarkFailed(code, explanation, resp, s.clock.Now())
			if cancelled := sub.RecordFailedPayment(s.clock.Now()); cancelled {
				observability.RecordSubscriptionAutoCancelled()
				s.logger.Warn("subscription auto-cancelled after retry exhaustion",
					ports.String("reference", sub.Reference),
					ports.Int("retry_attempts", sub.RetryAttempts))
			}
			chargeErr = domain.BusinessFailure(explanation, code)
		}

		if err := s.txnRepo.Update(ctx, tx, txn); err != nil {
			return fmt.Errorf("persist billing transaction: %w", err)
		}
		if err := s.subRepo.Update(ctx, tx, sub); err != nil {
			return fmt.Errorf("persist subscription bookkeeping: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	status := "success"
	if chargeErr != nil {
		status = "failed"
	}
	observability.RecordSubscriptionBilling(status, sub.Currency, amountFloat(sub.Amount))

	// Retry exhaustion also tears down the remote agreement, best-effort
	if sub.IsCancelled() && sub.GatewaySubscriptionID != "" {
		if ok, err := s.gateway.CancelRecurring(ctx, sub.GatewaySubscriptionID); err != nil || !ok {
			s.logger.Warn("remote cancellation after retry exhaustion failed",
				ports.String("reference", sub.Reference))
		}
	}

	s.logger.Info("billing cycle processed",
		ports.String("reference", sub.Reference),
		ports.String("transaction", txn.Reference),
		ports.String("status", string(txn.Status)))

	return txn, chargeErr
}

// establishPaymentToken creates and stores a token for future cycles. The
// created transaction stays in processing; it completes through the normal
// verification path once the customer pays.
func (s *Service) establishPaymentToken(ctx context.Context, sub *models.Subscription) (*models.Transaction, error) {
	payResp, err := s.paymentService.CreatePayment(ctx, ports.CreatePaymentRequest{
		Amount:          sub.Amount,
		Currency:        sub.Currency,
		Country:         sub.Country,
		Description:     fmt.Sprintf("Subscription charge cycle %d", sub.BillingCycle),
		CustomerEmail:   sub.CustomerEmail,
		CustomerName:    sub.CustomerName,
		CustomerPhone:   sub.CustomerPhone,
		CustomerCountry: sub.CustomerCountry,
		Type:            models.TypeRecurring,
		SubscriptionID:  sub.Reference,
	})
	if err != nil {
		observability.RecordSubscriptionBilling("failed", sub.Currency, amountFloat(sub.Amount))
		return nil, err
	}

	sub.PaymentToken = payResp.Token
	sub.UpdatedAt = s.clock.Now()
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.subRepo.Update(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment token established for subscription",
		ports.String("reference", sub.Reference),
		ports.String("transaction", payResp.Reference))

	return s.txnRepo.GetByReference(ctx, nil, payResp.Reference)
}

// ProcessDueSubscriptions sweeps every due subscription once. Failures are
// isolated per subscription; one bad record never aborts the batch.
func (s *Service) ProcessDueSubscriptions(ctx context.Context, asOf time.Time, batchSize int) (*ports.BillingBatchResult, error) {
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	if batchSize <= 0 {
		batchSize = s.config.DefaultBatchSize
	}

	start := s.clock.Now()
	due, err := s.subRepo.ListDueForBilling(ctx, nil, asOf, int32(batchSize))
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}

	result := &ports.BillingBatchResult{}
	for _, sub := range due {
		result.Processed++
		if _, err := s.ProcessSubscriptionPayment(ctx, sub.Reference); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ports.BillingError{
				SubscriptionReference: sub.Reference,
				Error:                 err.Error(),
			})
			continue
		}
		result.Successful++
	}

	observability.RecordBillingBatch(time.Since(start).Seconds())

	s.logger.Info("due subscription sweep finished",
		ports.Int("processed", result.Processed),
		ports.Int("successful", result.Successful),
		ports.Int("failed", result.Failed))

	return result, nil
}

func (s *Service) toResponse(sub *models.Subscription) *ports.SubscriptionResponse {
	return &ports.SubscriptionResponse{
		Reference:             sub.Reference,
		Status:                sub.Status,
		Amount:                sub.Amount,
		Currency:              sub.Currency,
		Frequency:             sub.Frequency,
		NextBillingDate:       sub.NextBillingDate,
		BillingCycle:          sub.BillingCycle,
		RetryAttempts:         sub.RetryAttempts,
		SuccessfulPayments:    sub.SuccessfulPayments,
		FailedPayments:        sub.FailedPayments,
		TotalPaid:             sub.TotalPaid,
		AutoRenew:             sub.AutoRenew,
		GatewaySubscriptionID: sub.GatewaySubscriptionID,
		CancellationReason:    sub.CancellationReason,
		CancelledAt:           sub.CancelledAt,
	}
}

func amountFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
