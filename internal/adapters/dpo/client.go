package dpo

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
	"github.com/zedpay/dpo-payment-service/pkg/httpclient"
)

const (
	apiPath        = "/API/v6/"
	paymentURLPath = "/payv2.php?ID="

	// ServiceDate wire format
	serviceDateLayout = "2006/01/02 15:04"
	// Subscription start/end date wire format
	subscriptionDateLayout = "2006/01/02"
)

// Config contains configuration for the gateway wire client
type Config struct {
	// CompanyToken is the shared merchant credential sent on every request
	CompanyToken string

	// ServiceType is the merchant's gateway-assigned service type code
	ServiceType string

	// Live and sandbox base URLs; a single endpoint under either serves
	// every operation
	APIURL     string
	TestAPIURL string

	// TestMode routes to the sandbox URL and disables TLS verification,
	// which the sandbox requires
	TestMode bool

	// Per-call timeout
	Timeout time.Duration

	// Hosted checkout return URLs
	RedirectURL string
	BackURL     string

	// PTL is the token time-to-live in hours
	PTL int

	// ChargeImmediately asks the gateway to charge recurring tokens on
	// creation instead of on the first billing date
	ChargeImmediately bool

	// BalanceCacheTTL bounds how long a balance lookup may be served from
	// cache
	BalanceCacheTTL time.Duration
}

// DefaultConfig returns the standard gateway endpoints and timings.
func DefaultConfig(companyToken, serviceType string, testMode bool) *Config {
	return &Config{
		CompanyToken:    companyToken,
		ServiceType:     serviceType,
		APIURL:          "https://secure.3gdirectpay.com",
		TestAPIURL:      "https://secure1.sandbox.directpay.online",
		TestMode:        testMode,
		Timeout:         30 * time.Second,
		RedirectURL:     "/dpo/callback",
		BackURL:         "/dpo/cancelled",
		PTL:             24,
		BalanceCacheTTL: 5 * time.Minute,
	}
}

// BaseURL returns the live or sandbox base URL per TestMode.
func (c *Config) BaseURL() string {
	if c.TestMode {
		return c.TestAPIURL
	}
	return c.APIURL
}

// Client implements ports.GatewayClient over the gateway's XML API.
type Client struct {
	config     *Config
	httpClient ports.HTTPClient
	logger     ports.Logger
	clock      ports.Clock
	cache      ports.Cache
}

// NewClient creates a new gateway wire client. cache may be nil, which
// disables balance caching.
func NewClient(config *Config, logger ports.Logger, clock ports.Clock, cache ports.Cache) *Client {
	return &Client{
		config:     config,
		httpClient: httpclient.New(httpclient.GatewayConfig(config.TestMode), config.Timeout),
		logger:     logger,
		clock:      clock,
		cache:      cache,
	}
}

// NewClientWithHTTP creates a client over a caller-supplied HTTP client.
func NewClientWithHTTP(config *Config, httpClient ports.HTTPClient, logger ports.Logger, clock ports.Clock, cache ports.Cache) *Client {
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		clock:      clock,
		cache:      cache,
	}
}

// CreateToken registers a charge attempt with the gateway. Non-"000" results
// are raised as business failures; the explanation travels verbatim.
func (c *Client) CreateToken(ctx context.Context, txn *models.Transaction) (*models.TokenResponse, error) {
	req := createTokenRequest{
		CompanyToken: c.config.CompanyToken,
		Request:      requestCreateToken,
		Transaction:  c.buildTransactionBlock(txn),
		Services:     c.buildServicesBlock(txn),
	}

	if txn.Type != models.TypeOneTime {
		additional := &additionalBlock{
			BlockPayment:     "N",
			RecurringPayment: "Y",
		}
		if c.config.ChargeImmediately {
			additional.ChargeImmediately = "Y"
		}
		req.Additional = additional
	}

	resp, err := c.post(ctx, requestCreateToken, req)
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		explanation := resp.ResultExplanation()
		if explanation == "" {
			explanation = "token creation failed"
		}
		return nil, domain.BusinessFailure(explanation, resp.ResultCode())
	}

	return &models.TokenResponse{
		Token:       resp.Token(),
		TransRef:    resp.TransRef(),
		ResultCode:  resp.ResultCode(),
		Explanation: resp.ResultExplanation(),
		PaymentURL:  c.PaymentURL(resp.Token()),
	}, nil
}

// VerifyToken queries a token's state. The parsed response is returned even
// for non-success results; callers interpret the result and approval fields.
func (c *Client) VerifyToken(ctx context.Context, token, reference string) (ports.Response, error) {
	req := verifyTokenRequest{
		CompanyToken:     c.config.CompanyToken,
		Request:          requestVerifyToken,
		TransactionToken: token,
		CompanyRef:       reference,
	}
	return c.post(ctx, requestVerifyToken, req)
}

// CancelToken cancels an unconsumed token. Gateway rejection maps to false.
func (c *Client) CancelToken(ctx context.Context, token, reference string) (bool, error) {
	req := cancelTokenRequest{
		CompanyToken:     c.config.CompanyToken,
		Request:          requestCancelToken,
		TransactionToken: token,
		CompanyRef:       reference,
	}

	resp, err := c.post(ctx, requestCancelToken, req)
	if err != nil {
		return false, err
	}
	return resp.IsSuccess(), nil
}

// RefundToken refunds part or all of a charged token.
func (c *Client) RefundToken(ctx context.Context, token string, amount decimal.Decimal, reference, reason string) (ports.Response, error) {
	req := refundTokenRequest{
		CompanyToken:     c.config.CompanyToken,
		Request:          requestRefundToken,
		TransactionToken: token,
		RefundAmount:     amount.StringFixed(2),
		CompanyRef:       reference,
		RefundDetails:    reason,
	}
	return c.post(ctx, requestRefundToken, req)
}

// CreateRecurring registers a recurring billing agreement.
func (c *Client) CreateRecurring(ctx context.Context, sub *models.Subscription) (ports.Response, error) {
	firstName, lastName := splitName(sub.CustomerName)

	block := subscriptionBlock{
		SubscriptionAmount:    sub.Amount.StringFixed(2),
		SubscriptionCurrency:  sub.Currency,
		SubscriptionFrequency: gatewayFrequency(sub.Frequency),
		SubscriptionStartDate: sub.StartDate.Format(subscriptionDateLayout),
		CustomerEmail:         sub.CustomerEmail,
		CustomerFirstName:     firstName,
		CustomerLastName:      lastName,
	}
	if sub.EndDate != nil {
		block.SubscriptionEndDate = sub.EndDate.Format(subscriptionDateLayout)
	}

	req := createRecurringRequest{
		CompanyToken: c.config.CompanyToken,
		Request:      requestCreateRecurring,
		Subscription: block,
	}
	return c.post(ctx, requestCreateRecurring, req)
}

// UpdateRecurring updates a remote subscription. Gateway rejection maps to false.
func (c *Client) UpdateRecurring(ctx context.Context, gatewaySubscriptionID string, update ports.RecurringUpdate) (bool, error) {
	req := updateRecurringRequest{
		CompanyToken:   c.config.CompanyToken,
		Request:        requestUpdateRecurring,
		SubscriptionID: gatewaySubscriptionID,
	}
	if update.Amount != nil {
		req.SubscriptionAmount = update.Amount.StringFixed(2)
	}
	if update.Frequency != nil {
		req.SubscriptionFrequency = gatewayFrequency(*update.Frequency)
	}
	if update.EndDate != nil {
		req.SubscriptionEndDate = *update.EndDate
	}

	resp, err := c.post(ctx, requestUpdateRecurring, req)
	if err != nil {
		return false, err
	}
	return resp.IsSuccess(), nil
}

// CancelRecurring cancels a remote subscription. Gateway rejection maps to false.
func (c *Client) CancelRecurring(ctx context.Context, gatewaySubscriptionID string) (bool, error) {
	req := cancelRecurringRequest{
		CompanyToken:   c.config.CompanyToken,
		Request:        requestCancelRecurring,
		SubscriptionID: gatewaySubscriptionID,
	}

	resp, err := c.post(ctx, requestCancelRecurring, req)
	if err != nil {
		return false, err
	}
	return resp.IsSuccess(), nil
}

// GetBalance reports the merchant account balance, served from cache when a
// fresh entry exists.
func (c *Client) GetBalance(ctx context.Context, currency string) (*models.Balance, error) {
	cacheKey := "dpo_balance_all"
	if currency != "" {
		cacheKey = "dpo_balance_" + currency
	}

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
			var balance models.Balance
			if err := json.Unmarshal([]byte(cached), &balance); err == nil {
				return &balance, nil
			}
		}
	}

	req := getBalanceRequest{
		CompanyToken: c.config.CompanyToken,
		Request:      requestGetBalance,
		Currency:     currency,
	}

	resp, err := c.post(ctx, requestGetBalance, req)
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		explanation := resp.ResultExplanation()
		if explanation == "" {
			explanation = "failed to get balance"
		}
		return nil, domain.BusinessFailure(explanation, resp.ResultCode())
	}

	balance := &models.Balance{
		Currency:  resp["Currency"],
		Balance:   parseFloat(resp["Balance"]),
		Available: parseFloat(resp["Available"]),
		Reserved:  parseFloat(resp["Reserved"]),
	}
	if balance.Currency == "" {
		balance.Currency = currency
	}

	if c.cache != nil {
		if encoded, err := json.Marshal(balance); err == nil {
			if err := c.cache.Set(ctx, cacheKey, string(encoded), c.config.BalanceCacheTTL); err != nil {
				c.logger.Warn("balance cache write failed", ports.Err(err))
			}
		}
	}

	return balance, nil
}

// PaymentURL derives the hosted checkout URL for a token.
func (c *Client) PaymentURL(token string) string {
	return c.config.BaseURL() + paymentURLPath + token
}

func (c *Client) buildTransactionBlock(txn *models.Transaction) transactionBlock {
	firstName, lastName := splitName(txn.CustomerName)

	return transactionBlock{
		PaymentAmount:     txn.Amount.StringFixed(2),
		PaymentCurrency:   txn.Currency,
		CompanyRef:        txn.Reference,
		RedirectURL:       c.config.RedirectURL,
		BackURL:           c.config.BackURL,
		CompanyRefUnique:  "1",
		PTL:               strconv.Itoa(c.config.PTL),
		CustomerEmail:     txn.CustomerEmail,
		CustomerPhone:     txn.CustomerPhone,
		CustomerFirstName: firstName,
		CustomerLastName:  lastName,
		CustomerCountry:   txn.CustomerCountry,
	}
}

func (c *Client) buildServicesBlock(txn *models.Transaction) servicesBlock {
	if len(txn.Items) > 0 {
		services := make([]serviceBlock, len(txn.Items))
		for i, item := range txn.Items {
			date := item.Date
			if date.IsZero() {
				date = c.clock.Now()
			}
			services[i] = serviceBlock{
				ServiceType:        c.config.ServiceType,
				ServiceDescription: item.Description,
				ServiceDate:        date.Format(serviceDateLayout),
			}
		}
		return servicesBlock{Services: services}
	}

	description := txn.Description
	if description == "" {
		description = "Payment " + txn.Reference
	}
	return servicesBlock{Services: []serviceBlock{{
		ServiceType:        c.config.ServiceType,
		ServiceDescription: description,
		ServiceDate:        c.clock.Now().Format(serviceDateLayout),
	}}}
}

// post marshals a request document, sends it to the single API endpoint, and
// parses the XML response into a flat result map.
func (c *Client) post(ctx context.Context, action string, request interface{}) (ports.Response, error) {
	body, err := xml.Marshal(request)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "marshal gateway request", err)
	}
	payload := append([]byte(xml.Header), body...)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL()+apiPath, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "build gateway request", err)
	}
	httpReq.Header.Set("Content-Type", "application/xml")
	httpReq.Header.Set("Accept", "application/xml")

	c.logger.Info("gateway request",
		ports.String("action", action),
		ports.Int("body_bytes", len(payload)))

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("gateway request failed",
			ports.String("action", action),
			ports.Err(err))
		return nil, domain.TransportFailure(fmt.Sprintf("gateway %s request failed", action), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, domain.TransportFailure("read gateway response", err)
	}

	resp, err := parseResponse(respBody)
	if err != nil {
		c.logger.Error("gateway response unparseable",
			ports.String("action", action),
			ports.Int("status_code", httpResp.StatusCode),
			ports.Err(err))
		return nil, err
	}

	c.logger.Info("gateway response",
		ports.String("action", action),
		ports.String("result", resp.ResultCode()),
		ports.Int("status_code", httpResp.StatusCode),
		ports.String("elapsed", time.Since(start).String()))

	return resp, nil
}

// parseResponse decodes a gateway XML document into a flat map. Nested
// elements collapse onto their leaf names; repeated leaves keep the last
// value, which matches the gateway's flat response documents.
func parseResponse(data []byte) (ports.Response, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	fields := make(ports.Response)

	var current string
	var depth int
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeGatewayMalformed, "decode gateway response", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			current = t.Name.Local
		case xml.CharData:
			if depth > 1 && current != "" {
				if value := strings.TrimSpace(string(t)); value != "" {
					fields[current] = value
				}
			}
		case xml.EndElement:
			depth--
			current = ""
		}
	}

	if _, ok := fields["Result"]; !ok {
		return nil, domain.ErrInvalidGatewayResponse
	}
	return fields, nil
}

// splitName splits a full customer name into first/last on the first
// whitespace.
func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

// gatewayFrequency maps local billing frequencies onto the gateway's codes.
func gatewayFrequency(f models.BillingFrequency) string {
	switch f {
	case models.FrequencyWeekly:
		return "WEEKLY"
	case models.FrequencyQuarterly:
		return "QUARTERLY"
	case models.FrequencyYearly:
		return "ANNUALLY"
	default:
		return "MONTHLY"
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
