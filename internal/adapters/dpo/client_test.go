package dpo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...ports.Field)  {}
func (nopLogger) Error(string, ...ports.Field) {}
func (nopLogger) Warn(string, ...ports.Field)  {}
func (nopLogger) Debug(string, ...ports.Field) {}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeCache struct {
	entries map[string]string
	sets    int
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.entries[key]; ok {
		return v, nil
	}
	return "", ports.ErrCacheMiss
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	if f.entries == nil {
		f.entries = make(map[string]string)
	}
	f.entries[key] = value
	f.sets++
	return nil
}

// newTestClient wires a client against an httptest server and captures each
// request body for assertion.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]string) {
	t.Helper()

	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(buf))
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	config := DefaultConfig("TEST-COMPANY-TOKEN", "5525", true)
	config.TestAPIURL = server.URL
	config.RedirectURL = "https://merchant.example/dpo/callback"
	config.BackURL = "https://merchant.example/dpo/cancelled"

	clock := fixedClock{now: time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)}
	client := NewClient(config, nopLogger{}, clock, nil)
	return client, &bodies
}

func xmlResponse(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?>` + body))
	}
}

func testTransaction() *models.Transaction {
	return &models.Transaction{
		Reference:       "PAY-ABC1234567-1742034600",
		Amount:          decimal.NewFromFloat(150.5),
		Currency:        "KES",
		Country:         "KE",
		Type:            models.TypeOneTime,
		Status:          models.StatusPending,
		Description:     "Order 88",
		CustomerEmail:   "amina@example.com",
		CustomerName:    "Amina Wanjiru Otieno",
		CustomerPhone:   "+254700000001",
		CustomerCountry: "KE",
	}
}

func TestCreateTokenSuccess(t *testing.T) {
	client, bodies := newTestClient(t, xmlResponse(
		`<API3G><Result>000</Result><ResultExplanation>Transaction created</ResultExplanation>`+
			`<TransToken>A1B2C3D4-E5F6</TransToken><TransRef>REF-001</TransRef></API3G>`))

	resp, err := client.CreateToken(context.Background(), testTransaction())
	require.NoError(t, err)

	assert.Equal(t, "A1B2C3D4-E5F6", resp.Token)
	assert.Equal(t, "REF-001", resp.TransRef)
	assert.Equal(t, "000", resp.ResultCode)
	assert.True(t, strings.HasSuffix(resp.PaymentURL, "/payv2.php?ID=A1B2C3D4-E5F6"))

	require.Len(t, *bodies, 1)
	body := (*bodies)[0]
	assert.Contains(t, body, "<CompanyToken>TEST-COMPANY-TOKEN</CompanyToken>")
	assert.Contains(t, body, "<Request>createToken</Request>")
	assert.Contains(t, body, "<PaymentAmount>150.50</PaymentAmount>")
	assert.Contains(t, body, "<PaymentCurrency>KES</PaymentCurrency>")
	assert.Contains(t, body, "<CompanyRef>PAY-ABC1234567-1742034600</CompanyRef>")
	assert.Contains(t, body, "<CompanyRefUnique>1</CompanyRefUnique>")
	assert.Contains(t, body, "<customerFirstName>Amina</customerFirstName>")
	assert.Contains(t, body, "<customerLastName>Wanjiru Otieno</customerLastName>")
	assert.Contains(t, body, "<ServiceDate>2025/03/15 10:30</ServiceDate>")
	// One-time payments never carry the recurring block
	assert.NotContains(t, body, "<Additional>")
}

func TestCreateTokenRecurringAddsAdditionalBlock(t *testing.T) {
	client, bodies := newTestClient(t, xmlResponse(
		`<API3G><Result>000</Result><TransToken>TOK-1</TransToken></API3G>`))

	txn := testTransaction()
	txn.Type = models.TypeRecurring
	_, err := client.CreateToken(context.Background(), txn)
	require.NoError(t, err)

	body := (*bodies)[0]
	assert.Contains(t, body, "<BlockPayment>N</BlockPayment>")
	assert.Contains(t, body, "<RecurringPayment>Y</RecurringPayment>")
}

func TestCreateTokenBusinessFailure(t *testing.T) {
	client, _ := newTestClient(t, xmlResponse(
		`<API3G><Result>904</Result><ResultExplanation>Currency not supported</ResultExplanation></API3G>`))

	resp, err := client.CreateToken(context.Background(), testTransaction())
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, domain.IsBusinessError(err))
	assert.Contains(t, err.Error(), "Currency not supported")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "904", domainErr.Details["result_code"])
}

func TestCreateTokenTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // force connection refused

	config := DefaultConfig("TOKEN", "5525", true)
	config.TestAPIURL = server.URL
	client := NewClient(config, nopLogger{}, fixedClock{now: time.Now()}, nil)

	_, err := client.CreateToken(context.Background(), testTransaction())
	require.Error(t, err)
	assert.True(t, domain.IsTransportError(err))
}

func TestCreateTokenMalformedResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>Bad Gateway</body></html>`))
	})

	_, err := client.CreateToken(context.Background(), testTransaction())
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayMalformed, domain.GetErrorCode(err))
}

func TestVerifyTokenReturnsParsedResponse(t *testing.T) {
	client, bodies := newTestClient(t, xmlResponse(
		`<API3G><Result>000</Result><ResultExplanation>Transaction Paid</ResultExplanation>`+
			`<TransactionApproval>1</TransactionApproval><TransactionCurrency>KES</TransactionCurrency></API3G>`))

	resp, err := client.VerifyToken(context.Background(), "TOK-9", "PAY-REF")
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.True(t, resp.IsApproved())
	assert.Equal(t, "KES", resp["TransactionCurrency"])

	body := (*bodies)[0]
	assert.Contains(t, body, "<Request>verifyToken</Request>")
	assert.Contains(t, body, "<TransactionToken>TOK-9</TransactionToken>")
	assert.Contains(t, body, "<CompanyRef>PAY-REF</CompanyRef>")
}

func TestVerifyTokenDeclinedIsNotAnError(t *testing.T) {
	client, _ := newTestClient(t, xmlResponse(
		`<API3G><Result>901</Result><ResultExplanation>Transaction declined</ResultExplanation></API3G>`))

	resp, err := client.VerifyToken(context.Background(), "TOK-9", "")
	require.NoError(t, err)
	assert.False(t, resp.IsSuccess())
	assert.False(t, resp.IsApproved())
	assert.Equal(t, "901", resp.ResultCode())
}

func TestCancelToken(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "gateway accepts", body: `<API3G><Result>000</Result></API3G>`, want: true},
		{name: "gateway rejects", body: `<API3G><Result>804</Result><ResultExplanation>Token already consumed</ResultExplanation></API3G>`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, xmlResponse(tt.body))

			ok, err := client.CancelToken(context.Background(), "TOK-1", "PAY-REF")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestRefundTokenRequestShape(t *testing.T) {
	client, bodies := newTestClient(t, xmlResponse(
		`<API3G><Result>000</Result><ResultExplanation>Refund successful</ResultExplanation></API3G>`))

	resp, err := client.RefundToken(context.Background(), "TOK-5", decimal.NewFromFloat(42.1), "PAY-REF", "customer request")
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	body := (*bodies)[0]
	assert.Contains(t, body, "<Request>refundToken</Request>")
	assert.Contains(t, body, "<refundAmount>42.10</refundAmount>")
	assert.Contains(t, body, "<refundDetails>customer request</refundDetails>")
}

func TestCreateRecurringRequestShape(t *testing.T) {
	client, bodies := newTestClient(t, xmlResponse(
		`<API3G><Result>000</Result><SubscriptionID>SUB-GW-77</SubscriptionID></API3G>`))

	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := &models.Subscription{
		Reference:     "SUB-XYZ9876543-1742034600",
		Amount:        decimal.NewFromInt(25),
		Currency:      "USD",
		Frequency:     models.FrequencyMonthly,
		StartDate:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       &end,
		CustomerEmail: "joseph@example.com",
		CustomerName:  "Joseph Banda",
	}

	resp, err := client.CreateRecurring(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "SUB-GW-77", resp["SubscriptionID"])

	body := (*bodies)[0]
	assert.Contains(t, body, "<Request>createRecurring</Request>")
	assert.Contains(t, body, "<SubscriptionAmount>25.00</SubscriptionAmount>")
	assert.Contains(t, body, "<SubscriptionFrequency>MONTHLY</SubscriptionFrequency>")
	assert.Contains(t, body, "<SubscriptionStartDate>2025/04/01</SubscriptionStartDate>")
	assert.Contains(t, body, "<SubscriptionEndDate>2026/03/01</SubscriptionEndDate>")
	assert.Contains(t, body, "<customerFirstName>Joseph</customerFirstName>")
	assert.Contains(t, body, "<customerLastName>Banda</customerLastName>")
}

func TestUpdateRecurringPartialFields(t *testing.T) {
	client, bodies := newTestClient(t, xmlResponse(`<API3G><Result>000</Result></API3G>`))

	amount := decimal.NewFromInt(30)
	ok, err := client.UpdateRecurring(context.Background(), "SUB-GW-77", ports.RecurringUpdate{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, ok)

	body := (*bodies)[0]
	assert.Contains(t, body, "<Request>updateRecurring</Request>")
	assert.Contains(t, body, "<SubscriptionID>SUB-GW-77</SubscriptionID>")
	assert.Contains(t, body, "<SubscriptionAmount>30.00</SubscriptionAmount>")
	// Untouched fields stay off the wire
	assert.NotContains(t, body, "SubscriptionFrequency")
	assert.NotContains(t, body, "SubscriptionEndDate")
}

func TestCancelRecurring(t *testing.T) {
	client, bodies := newTestClient(t, xmlResponse(`<API3G><Result>000</Result></API3G>`))

	ok, err := client.CancelRecurring(context.Background(), "SUB-GW-77")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, (*bodies)[0], "<Request>cancelRecurring</Request>")
}

func TestGetBalanceParsesAndCaches(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`<API3G><Result>000</Result><Currency>KES</Currency>` +
			`<Balance>10500.75</Balance><Available>9000.25</Available><Reserved>1500.50</Reserved></API3G>`))
	}))
	t.Cleanup(server.Close)

	config := DefaultConfig("TOKEN", "5525", true)
	config.TestAPIURL = server.URL
	cache := &fakeCache{}
	client := NewClient(config, nopLogger{}, fixedClock{now: time.Now()}, cache)

	balance, err := client.GetBalance(context.Background(), "KES")
	require.NoError(t, err)
	assert.Equal(t, "KES", balance.Currency)
	assert.InDelta(t, 10500.75, balance.Balance, 0.001)
	assert.InDelta(t, 9000.25, balance.Available, 0.001)
	assert.InDelta(t, 1500.50, balance.Reserved, 0.001)
	assert.Equal(t, 1, cache.sets)

	// Second lookup served from cache
	_, err = client.GetBalance(context.Background(), "KES")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestParseResponseFlattensNestedElements(t *testing.T) {
	resp, err := parseResponse([]byte(
		`<?xml version="1.0"?><API3G><Result>000</Result>` +
			`<Transaction><TransactionAmount>99.00</TransactionAmount></Transaction></API3G>`))
	require.NoError(t, err)
	assert.Equal(t, "000", resp.ResultCode())
	assert.Equal(t, "99.00", resp["TransactionAmount"])
}

func TestParseResponseMissingResult(t *testing.T) {
	_, err := parseResponse([]byte(`<API3G><TransToken>TOK</TransToken></API3G>`))
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayMalformed, domain.GetErrorCode(err))
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in    string
		first string
		last  string
	}{
		{"Amina Otieno", "Amina", "Otieno"},
		{"Amina Wanjiru Otieno", "Amina", "Wanjiru Otieno"},
		{"Cher", "Cher", ""},
		{"  Amina  ", "Amina", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		assert.Equal(t, tt.first, first)
		assert.Equal(t, tt.last, last)
	}
}
