package subscription

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

const dateLayout = "2006-01-02"

// Handler exposes the subscription lifecycle over HTTP
type Handler struct {
	service ports.SubscriptionService
	logger  ports.Logger
}

// NewHandler creates a new subscription handler
func NewHandler(service ports.SubscriptionService, logger ports.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// CreateSubscriptionRequest is the JSON body for POST /api/v1/subscriptions
type CreateSubscriptionRequest struct {
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency,omitempty"`
	Country         string            `json:"country,omitempty"`
	Frequency       string            `json:"frequency,omitempty"`
	StartDate       string            `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate         string            `json:"end_date,omitempty"`   // YYYY-MM-DD
	AutoRenew       *bool             `json:"auto_renew,omitempty"` // defaults to true
	ChargeNow       bool              `json:"charge_now,omitempty"`
	CustomerEmail   string            `json:"customer_email,omitempty"`
	CustomerName    string            `json:"customer_name,omitempty"`
	CustomerPhone   string            `json:"customer_phone,omitempty"`
	CustomerCountry string            `json:"customer_country,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// UpdateSubscriptionRequest is the JSON body for PUT /api/v1/subscriptions/{reference}
type UpdateSubscriptionRequest struct {
	Amount    *string `json:"amount,omitempty"`
	Frequency *string `json:"frequency,omitempty"`
	EndDate   *string `json:"end_date,omitempty"` // YYYY-MM-DD
	AutoRenew *bool   `json:"auto_renew,omitempty"`
}

// CancelSubscriptionRequest is the JSON body for POST /api/v1/subscriptions/{reference}/cancel
type CancelSubscriptionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SubscriptionView is the JSON shape of a subscription in responses
type SubscriptionView struct {
	Reference             string     `json:"reference"`
	Status                string     `json:"status"`
	Amount                string     `json:"amount"`
	Currency              string     `json:"currency"`
	Frequency             string     `json:"frequency"`
	NextBillingDate       time.Time  `json:"next_billing_date"`
	BillingCycle          int        `json:"billing_cycle"`
	RetryAttempts         int        `json:"retry_attempts"`
	SuccessfulPayments    int        `json:"successful_payments"`
	FailedPayments        int        `json:"failed_payments"`
	TotalPaid             string     `json:"total_paid"`
	AutoRenew             bool       `json:"auto_renew"`
	GatewaySubscriptionID string     `json:"gateway_subscription_id,omitempty"`
	PaymentURL            string     `json:"payment_url,omitempty"`
	CancellationReason    string     `json:"cancellation_reason,omitempty"`
	CancelledAt           *time.Time `json:"cancelled_at,omitempty"`
}

// Create handles POST /api/v1/subscriptions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid request body", err))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, h.logger, domain.ErrValidationAmountInvalid)
		return
	}

	serviceReq := ports.CreateSubscriptionRequest{
		Amount:          amount,
		Currency:        req.Currency,
		Country:         req.Country,
		Frequency:       models.BillingFrequency(req.Frequency),
		AutoRenew:       true,
		ChargeNow:       req.ChargeNow,
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerCountry: req.CustomerCountry,
		Metadata:        req.Metadata,
	}
	if req.AutoRenew != nil {
		serviceReq.AutoRenew = *req.AutoRenew
	}
	if req.StartDate != "" {
		startDate, err := time.Parse(dateLayout, req.StartDate)
		if err != nil {
			writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed,
				"start_date must be formatted YYYY-MM-DD"))
			return
		}
		serviceReq.StartDate = startDate
	}
	if req.EndDate != "" {
		endDate, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed,
				"end_date must be formatted YYYY-MM-DD"))
			return
		}
		serviceReq.EndDate = &endDate
	}

	resp, err := h.service.CreateSubscription(r.Context(), serviceReq)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toView(resp))
}

// Get handles GET /api/v1/subscriptions/{reference}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.GetSubscription(r.Context(), r.PathValue("reference"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	view := SubscriptionView{
		Reference:             sub.Reference,
		Status:                string(sub.Status),
		Amount:                sub.Amount.StringFixed(2),
		Currency:              sub.Currency,
		Frequency:             string(sub.Frequency),
		NextBillingDate:       sub.NextBillingDate,
		BillingCycle:          sub.BillingCycle,
		RetryAttempts:         sub.RetryAttempts,
		SuccessfulPayments:    sub.SuccessfulPayments,
		FailedPayments:        sub.FailedPayments,
		TotalPaid:             sub.TotalPaid.StringFixed(2),
		AutoRenew:             sub.AutoRenew,
		GatewaySubscriptionID: sub.GatewaySubscriptionID,
		CancellationReason:    sub.CancellationReason,
		CancelledAt:           sub.CancelledAt,
	}
	writeJSON(w, http.StatusOK, view)
}

// Update handles PUT /api/v1/subscriptions/{reference}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid request body", err))
		return
	}

	serviceReq := ports.UpdateSubscriptionRequest{AutoRenew: req.AutoRenew}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, h.logger, domain.ErrValidationAmountInvalid)
			return
		}
		serviceReq.Amount = &amount
	}
	if req.Frequency != nil {
		frequency := models.BillingFrequency(*req.Frequency)
		serviceReq.Frequency = &frequency
	}
	if req.EndDate != nil {
		endDate, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed,
				"end_date must be formatted YYYY-MM-DD"))
			return
		}
		serviceReq.EndDate = &endDate
	}

	resp, err := h.service.UpdateSubscription(r.Context(), r.PathValue("reference"), serviceReq)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(resp))
}

// Cancel handles POST /api/v1/subscriptions/{reference}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelSubscriptionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid request body", err))
			return
		}
	}

	resp, err := h.service.CancelSubscription(r.Context(), r.PathValue("reference"), req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(resp))
}

// Pause handles POST /api/v1/subscriptions/{reference}/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.PauseSubscription(r.Context(), r.PathValue("reference"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(resp))
}

// Resume handles POST /api/v1/subscriptions/{reference}/resume
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ResumeSubscription(r.Context(), r.PathValue("reference"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(resp))
}

func toView(resp *ports.SubscriptionResponse) SubscriptionView {
	return SubscriptionView{
		Reference:             resp.Reference,
		Status:                string(resp.Status),
		Amount:                resp.Amount.StringFixed(2),
		Currency:              resp.Currency,
		Frequency:             string(resp.Frequency),
		NextBillingDate:       resp.NextBillingDate,
		BillingCycle:          resp.BillingCycle,
		RetryAttempts:         resp.RetryAttempts,
		SuccessfulPayments:    resp.SuccessfulPayments,
		FailedPayments:        resp.FailedPayments,
		TotalPaid:             resp.TotalPaid.StringFixed(2),
		AutoRenew:             resp.AutoRenew,
		GatewaySubscriptionID: resp.GatewaySubscriptionID,
		PaymentURL:            resp.PaymentURL,
		CancellationReason:    resp.CancellationReason,
		CancelledAt:           resp.CancelledAt,
	}
}
