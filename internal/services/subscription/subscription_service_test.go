package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
	"github.com/zedpay/dpo-payment-service/internal/services/country"
)

// MockDBPort mocks the database port
type MockDBPort struct {
	mock.Mock
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	// Execute the function with nil transaction for testing
	return fn(ctx, nil)
}

func (m *MockDBPort) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// MockSubscriptionRepository mocks the subscription repository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByReference(ctx context.Context, db ports.DBTX, reference string) (*models.Subscription, error) {
	args := m.Called(ctx, db, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) ReferenceExists(ctx context.Context, db ports.DBTX, reference string) (bool, error) {
	args := m.Called(ctx, db, reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionRepository) ListDueForBilling(ctx context.Context, db ports.DBTX, asOf time.Time, limit int32) ([]*models.Subscription, error) {
	args := m.Called(ctx, db, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) CountByStatus(ctx context.Context, db ports.DBTX) (map[models.SubscriptionStatus]int64, error) {
	args := m.Called(ctx, db)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.SubscriptionStatus]int64), args.Error(1)
}

// MockTransactionRepository mocks the transaction repository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *models.Transaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, db ports.DBTX, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, db, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByToken(ctx context.Context, db ports.DBTX, token string) (*models.Transaction, error) {
	args := m.Called(ctx, db, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx ports.DBTX, txn *models.Transaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) ReferenceExists(ctx context.Context, db ports.DBTX, reference string) (bool, error) {
	args := m.Called(ctx, db, reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) ListBySubscription(ctx context.Context, db ports.DBTX, subscriptionID string) ([]*models.Transaction, error) {
	args := m.Called(ctx, db, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) StatsByStatus(ctx context.Context, db ports.DBTX) ([]ports.TransactionStats, error) {
	args := m.Called(ctx, db)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.TransactionStats), args.Error(1)
}

// MockPaymentService mocks the payment orchestrator
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*ports.PaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) VerifyPayment(ctx context.Context, token string) (*ports.PaymentResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) RefundPayment(ctx context.Context, req ports.RefundPaymentRequest) (*ports.PaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) CancelPayment(ctx context.Context, reference string) (*ports.PaymentResponse, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockPaymentService) GetBalance(ctx context.Context, currency string) (*models.Balance, error) {
	args := m.Called(ctx, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Balance), args.Error(1)
}

// MockGatewayClient mocks the gateway wire client
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) CreateToken(ctx context.Context, txn *models.Transaction) (*models.TokenResponse, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

func (m *MockGatewayClient) VerifyToken(ctx context.Context, token, reference string) (ports.Response, error) {
	args := m.Called(ctx, token, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Response), args.Error(1)
}

func (m *MockGatewayClient) CancelToken(ctx context.Context, token, reference string) (bool, error) {
	args := m.Called(ctx, token, reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockGatewayClient) RefundToken(ctx context.Context, token string, amount decimal.Decimal, reference, reason string) (ports.Response, error) {
	args := m.Called(ctx, token, amount, reference, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Response), args.Error(1)
}

func (m *MockGatewayClient) CreateRecurring(ctx context.Context, sub *models.Subscription) (ports.Response, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Response), args.Error(1)
}

func (m *MockGatewayClient) UpdateRecurring(ctx context.Context, gatewaySubscriptionID string, update ports.RecurringUpdate) (bool, error) {
	args := m.Called(ctx, gatewaySubscriptionID, update)
	return args.Bool(0), args.Error(1)
}

func (m *MockGatewayClient) CancelRecurring(ctx context.Context, gatewaySubscriptionID string) (bool, error) {
	args := m.Called(ctx, gatewaySubscriptionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGatewayClient) GetBalance(ctx context.Context, currency string) (*models.Balance, error) {
	args := m.Called(ctx, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Balance), args.Error(1)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...ports.Field)  {}
func (nopLogger) Error(string, ...ports.Field) {}
func (nopLogger) Warn(string, ...ports.Field)  {}
func (nopLogger) Debug(string, ...ports.Field) {}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db       *MockDBPort
	subRepo  *MockSubscriptionRepository
	txnRepo  *MockTransactionRepository
	payments *MockPaymentService
	gateway  *MockGatewayClient
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		db:       &MockDBPort{},
		subRepo:  &MockSubscriptionRepository{},
		txnRepo:  &MockTransactionRepository{},
		payments: &MockPaymentService{},
		gateway:  &MockGatewayClient{},
	}
	f.svc = NewService(f.db, f.subRepo, f.txnRepo, f.payments, f.gateway,
		country.NewService(), Config{MaxRetryAttempts: 3}, nopLogger{}, fixedClock{now: testNow})
	return f
}

func activeSubscription() *models.Subscription {
	return &models.Subscription{
		ID:                    "11111111-1111-1111-1111-111111111111",
		Reference:             "SUB-AAAA111111-1736931600",
		Amount:                decimal.NewFromInt(200),
		Currency:              "ZMW",
		Country:               "ZM",
		Frequency:             models.FrequencyMonthly,
		Status:                models.SubStatusActive,
		StartDate:             time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC),
		NextBillingDate:       time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		BillingCycle:          2,
		AutoRenew:             true,
		MaxRetryAttempts:      3,
		PaymentToken:          "TOK-STORED",
		GatewaySubscriptionID: "GWSUB-1",
		CustomerEmail:         "sub@example.com",
		CustomerName:          "Mwila Phiri",
	}
}

func TestCreateSubscription(t *testing.T) {
	f := newFixture()

	f.subRepo.On("ReferenceExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.subRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.gateway.On("CreateRecurring", mock.Anything, mock.MatchedBy(func(sub *models.Subscription) bool {
		return sub.Currency == "KES" &&
			sub.Frequency == models.FrequencyMonthly &&
			sub.BillingCycle == 1
	})).Return(ports.Response{
		"Result":         "000",
		"SubscriptionID": "GWSUB-9",
	}, nil)

	resp, err := f.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		Amount:    decimal.NewFromInt(500),
		Country:   "KE",
		AutoRenew: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SubStatusActive, resp.Status)
	assert.Equal(t, "GWSUB-9", resp.GatewaySubscriptionID)
	// Start date defaulted to now, so the first cycle is due immediately
	assert.Equal(t, testNow, resp.NextBillingDate)
	assert.Equal(t, 1, resp.BillingCycle)
}

func TestCreateSubscriptionRejectsUnsupportedMarket(t *testing.T) {
	f := newFixture()

	// Ethiopia has no recurring support; nothing may touch the gateway or store
	_, err := f.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		Amount:  decimal.NewFromInt(100),
		Country: "ET",
	})
	assert.ErrorIs(t, err, domain.ErrRecurringNotSupported)
	f.gateway.AssertNotCalled(t, "CreateRecurring", mock.Anything, mock.Anything)
	f.subRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateSubscriptionGatewayRejectionPersistsFailure(t *testing.T) {
	f := newFixture()

	f.subRepo.On("ReferenceExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.subRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var persisted *models.Subscription
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted = args.Get(2).(*models.Subscription)
		}).Return(nil)

	f.gateway.On("CreateRecurring", mock.Anything, mock.Anything).Return(ports.Response{
		"Result":            "801",
		"ResultExplanation": "Request missing company token",
	}, nil)

	_, err := f.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		Amount:  decimal.NewFromInt(100),
		Country: "ZM",
	})
	require.Error(t, err)
	assert.True(t, domain.IsBusinessError(err))

	require.NotNil(t, persisted)
	assert.Equal(t, models.SubStatusFailed, persisted.Status)
}

func TestCreateSubscriptionChargeNowStoresPaymentToken(t *testing.T) {
	f := newFixture()

	f.subRepo.On("ReferenceExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.subRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var persisted *models.Subscription
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted = args.Get(2).(*models.Subscription)
		}).Return(nil)

	f.gateway.On("CreateRecurring", mock.Anything, mock.Anything).Return(ports.Response{
		"Result":         "000",
		"SubscriptionID": "GWSUB-9",
	}, nil)
	f.payments.On("CreatePayment", mock.Anything, mock.Anything).Return(&ports.PaymentResponse{
		Reference:  "PAY-INIT-1",
		Status:     models.StatusProcessing,
		Token:      "TOK-INITIAL",
		PaymentURL: "https://secure.3gdirectpay.com/payv2.php?ID=TOK-INITIAL",
	}, nil)

	resp, err := f.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		Amount:    decimal.NewFromInt(100),
		Country:   "ZM",
		ChargeNow: true,
	})
	require.NoError(t, err)

	// The first charge's token must survive onto the subscription so later
	// billing cycles charge it instead of opening a second hosted checkout
	require.NotNil(t, persisted)
	assert.Equal(t, "TOK-INITIAL", persisted.PaymentToken)
	assert.Contains(t, resp.PaymentURL, "TOK-INITIAL")
}

func TestCreateSubscriptionChargeNowFailureKeepsSubscriptionActive(t *testing.T) {
	f := newFixture()

	f.subRepo.On("ReferenceExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.subRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CreateRecurring", mock.Anything, mock.Anything).Return(ports.Response{
		"Result":         "000",
		"SubscriptionID": "GWSUB-9",
	}, nil)
	f.payments.On("CreatePayment", mock.Anything, mock.Anything).
		Return(nil, domain.TransportFailure("gateway unreachable", nil))

	resp, err := f.svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		Amount:    decimal.NewFromInt(100),
		Country:   "ZM",
		ChargeNow: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubStatusActive, resp.Status)
	assert.Empty(t, resp.PaymentURL)
}

func TestProcessSubscriptionPaymentSuccess(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()
	sub.RetryAttempts = 2

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txnRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txnRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.gateway.On("VerifyToken", mock.Anything, "TOK-STORED", mock.Anything).Return(ports.Response{
		"Result":              "000",
		"ResultExplanation":   "Transaction Paid",
		"TransactionApproval": "1",
	}, nil)

	txn, err := f.svc.ProcessSubscriptionPayment(context.Background(), sub.Reference)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, txn.Status)
	assert.Equal(t, sub.Reference, txn.SubscriptionID)

	// Retry counter reset, cycle advanced one month from the prior billing
	// date rather than from now
	assert.Equal(t, 0, sub.RetryAttempts)
	assert.Equal(t, 3, sub.BillingCycle)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), sub.NextBillingDate)
	assert.Equal(t, 1, sub.SuccessfulPayments)
	assert.True(t, sub.TotalPaid.Equal(decimal.NewFromInt(200)))
}

func TestProcessSubscriptionPaymentFailureAdvancesRetry(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txnRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txnRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.gateway.On("VerifyToken", mock.Anything, "TOK-STORED", mock.Anything).Return(ports.Response{
		"Result":            "901",
		"ResultExplanation": "Transaction declined",
	}, nil)

	txn, err := f.svc.ProcessSubscriptionPayment(context.Background(), sub.Reference)
	require.Error(t, err)
	assert.True(t, domain.IsBusinessError(err))

	require.NotNil(t, txn)
	assert.Equal(t, models.StatusFailed, txn.Status)
	assert.Equal(t, 1, sub.RetryAttempts)
	assert.Equal(t, models.SubStatusActive, sub.Status)
	// A failed cycle never advances the schedule
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), sub.NextBillingDate)
	assert.Equal(t, 2, sub.BillingCycle)
}

func TestProcessSubscriptionPaymentAutoCancelsAfterRetryExhaustion(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()
	sub.RetryAttempts = 2
	sub.FailedPayments = 2

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txnRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txnRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.gateway.On("VerifyToken", mock.Anything, "TOK-STORED", mock.Anything).Return(ports.Response{
		"Result":            "901",
		"ResultExplanation": "Transaction declined",
	}, nil)
	f.gateway.On("CancelRecurring", mock.Anything, "GWSUB-1").Return(true, nil)

	_, err := f.svc.ProcessSubscriptionPayment(context.Background(), sub.Reference)
	require.Error(t, err)

	assert.Equal(t, models.SubStatusCancelled, sub.Status)
	assert.Equal(t, models.CancelReasonMaxRetries, sub.CancellationReason)
	assert.False(t, sub.AutoRenew)
	assert.Equal(t, 3, sub.RetryAttempts)
	require.NotNil(t, sub.CancelledAt)
	f.gateway.AssertCalled(t, "CancelRecurring", mock.Anything, "GWSUB-1")
}

func TestProcessSubscriptionPaymentNotDue(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()
	sub.NextBillingDate = testNow.AddDate(0, 0, 10)

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)

	_, err := f.svc.ProcessSubscriptionPayment(context.Background(), sub.Reference)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotDue)
	f.gateway.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessSubscriptionPaymentWithoutStoredToken(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()
	sub.PaymentToken = ""

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.payments.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req ports.CreatePaymentRequest) bool {
		return req.Type == models.TypeRecurring && req.SubscriptionID == sub.Reference
	})).Return(&ports.PaymentResponse{
		Reference:  "PAY-NEW-1",
		Token:      "TOK-NEW",
		Status:     models.StatusProcessing,
		PaymentURL: "https://secure.3gdirectpay.com/payv2.php?ID=TOK-NEW",
	}, nil)

	pending := &models.Transaction{
		Reference: "PAY-NEW-1",
		Token:     "TOK-NEW",
		Status:    models.StatusProcessing,
	}
	f.txnRepo.On("GetByReference", mock.Anything, mock.Anything, "PAY-NEW-1").Return(pending, nil)

	txn, err := f.svc.ProcessSubscriptionPayment(context.Background(), sub.Reference)
	require.NoError(t, err)

	// The cycle's transaction completes through verification later
	assert.Equal(t, models.StatusProcessing, txn.Status)
	assert.Equal(t, "TOK-NEW", sub.PaymentToken)
	f.gateway.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateSubscription(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("UpdateRecurring", mock.Anything, "GWSUB-1", mock.Anything).Return(true, nil)

	amount := decimal.NewFromInt(250)
	resp, err := f.svc.UpdateSubscription(context.Background(), sub.Reference, ports.UpdateSubscriptionRequest{
		Amount: &amount,
	})
	require.NoError(t, err)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, models.FrequencyMonthly, resp.Frequency)
}

func TestUpdateSubscriptionRemoteRejectionIsBestEffort(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("UpdateRecurring", mock.Anything, "GWSUB-1", mock.Anything).Return(false, nil)

	amount := decimal.NewFromInt(300)
	resp, err := f.svc.UpdateSubscription(context.Background(), sub.Reference, ports.UpdateSubscriptionRequest{
		Amount: &amount,
	})
	require.NoError(t, err)
	assert.True(t, resp.Amount.Equal(decimal.NewFromInt(300)))
}

func TestUpdateSubscriptionRejectsCancelled(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()
	sub.Cancel("customer request", testNow)

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)

	amount := decimal.NewFromInt(300)
	_, err := f.svc.UpdateSubscription(context.Background(), sub.Reference, ports.UpdateSubscriptionRequest{
		Amount: &amount,
	})
	assert.ErrorIs(t, err, domain.ErrSubscriptionCancelled)
}

func TestCancelSubscription(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CancelRecurring", mock.Anything, "GWSUB-1").Return(true, nil)

	resp, err := f.svc.CancelSubscription(context.Background(), sub.Reference, "customer request")
	require.NoError(t, err)

	assert.Equal(t, models.SubStatusCancelled, resp.Status)
	assert.Equal(t, "customer request", resp.CancellationReason)
	assert.False(t, resp.AutoRenew)
	require.NotNil(t, resp.CancelledAt)
}

func TestCancelSubscriptionLocalCancelSurvivesRemoteFailure(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CancelRecurring", mock.Anything, "GWSUB-1").
		Return(false, domain.TransportFailure("gateway unreachable", nil))

	resp, err := f.svc.CancelSubscription(context.Background(), sub.Reference, "fraud review")
	require.NoError(t, err)
	assert.Equal(t, models.SubStatusCancelled, resp.Status)
	assert.False(t, resp.AutoRenew)
}

func TestCancelSubscriptionIdempotent(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()
	sub.Cancel("customer request", testNow.Add(-time.Hour))

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)

	resp, err := f.svc.CancelSubscription(context.Background(), sub.Reference, "another reason")
	require.NoError(t, err)

	// Original cancellation is preserved untouched
	assert.Equal(t, "customer request", resp.CancellationReason)
	f.gateway.AssertNotCalled(t, "CancelRecurring", mock.Anything, mock.Anything)
	f.subRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestPauseAndResumeSubscription(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	paused, err := f.svc.PauseSubscription(context.Background(), sub.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.SubStatusPaused, paused.Status)
	assert.False(t, paused.AutoRenew)

	// Paused subscriptions never count as due
	assert.False(t, sub.IsDueForBilling(testNow.AddDate(0, 2, 0)))

	resumed, err := f.svc.ResumeSubscription(context.Background(), sub.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.SubStatusActive, resumed.Status)
	assert.True(t, resumed.AutoRenew)
}

func TestPauseSubscriptionRequiresActive(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()
	sub.Status = models.SubStatusPending

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)

	_, err := f.svc.PauseSubscription(context.Background(), sub.Reference)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotActive)
}

func TestResumeSubscriptionRequiresPaused(t *testing.T) {
	f := newFixture()
	sub := activeSubscription()

	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, sub.Reference).Return(sub, nil)

	_, err := f.svc.ResumeSubscription(context.Background(), sub.Reference)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotPaused)
}

func TestProcessDueSubscriptionsIsolatesFailures(t *testing.T) {
	f := newFixture()

	good := activeSubscription()
	bad := activeSubscription()
	bad.Reference = "SUB-BBBB222222-1736931600"
	bad.PaymentToken = "TOK-BAD"

	f.subRepo.On("ListDueForBilling", mock.Anything, mock.Anything, testNow, int32(100)).
		Return([]*models.Subscription{good, bad}, nil)
	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, good.Reference).Return(good, nil)
	f.subRepo.On("GetByReference", mock.Anything, mock.Anything, bad.Reference).Return(bad, nil)
	f.subRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txnRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.txnRepo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.gateway.On("VerifyToken", mock.Anything, "TOK-STORED", mock.Anything).Return(ports.Response{
		"Result":              "000",
		"TransactionApproval": "1",
	}, nil)
	f.gateway.On("VerifyToken", mock.Anything, "TOK-BAD", mock.Anything).Return(ports.Response{
		"Result":            "901",
		"ResultExplanation": "Transaction declined",
	}, nil)

	result, err := f.svc.ProcessDueSubscriptions(context.Background(), time.Time{}, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, bad.Reference, result.Errors[0].SubscriptionReference)
}
