package payment

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/models"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
	"github.com/zedpay/dpo-payment-service/internal/services/country"
	"github.com/zedpay/dpo-payment-service/pkg/observability"
)

// Handler exposes the payment lifecycle over HTTP
type Handler struct {
	service   ports.PaymentService
	countries *country.Service
	logger    ports.Logger

	// Merchant pages for the browser return from hosted checkout. Empty
	// URLs make Callback respond with JSON instead of redirecting.
	successURL string
	failureURL string
}

// NewHandler creates a new payment handler
func NewHandler(service ports.PaymentService, countries *country.Service, successURL, failureURL string, logger ports.Logger) *Handler {
	return &Handler{
		service:    service,
		countries:  countries,
		logger:     logger,
		successURL: successURL,
		failureURL: failureURL,
	}
}

// CreatePaymentRequest is the JSON body for POST /api/v1/payments
type CreatePaymentRequest struct {
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency,omitempty"`
	Country         string            `json:"country,omitempty"`
	Description     string            `json:"description,omitempty"`
	CustomerEmail   string            `json:"customer_email,omitempty"`
	CustomerName    string            `json:"customer_name,omitempty"`
	CustomerPhone   string            `json:"customer_phone,omitempty"`
	CustomerCountry string            `json:"customer_country,omitempty"`
	Items           []PaymentItem     `json:"items,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// PaymentItem is one line item on the hosted payment page
type PaymentItem struct {
	Description string `json:"description"`
	Date        string `json:"date,omitempty"` // ISO date, optional
}

// RefundRequest is the JSON body for POST /api/v1/payments/{reference}/refund
type RefundRequest struct {
	Amount string `json:"amount,omitempty"` // empty refunds the full remaining amount
	Reason string `json:"reason,omitempty"`
}

// PaymentView is the JSON shape of a payment in responses
type PaymentView struct {
	Reference         string     `json:"reference"`
	Status            string     `json:"status"`
	Token             string     `json:"token,omitempty"`
	PaymentURL        string     `json:"payment_url,omitempty"`
	Amount            string     `json:"amount"`
	DisplayAmount     string     `json:"display_amount,omitempty"`
	RefundedAmount    string     `json:"refunded_amount"`
	Currency          string     `json:"currency"`
	ResultCode        string     `json:"result_code,omitempty"`
	ResultExplanation string     `json:"result_explanation,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

// Create handles POST /api/v1/payments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid request body", err))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, h.logger, domain.ErrValidationAmountInvalid)
		return
	}

	serviceReq := ports.CreatePaymentRequest{
		Amount:          amount,
		Currency:        req.Currency,
		Country:         req.Country,
		Description:     req.Description,
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerCountry: req.CustomerCountry,
		Metadata:        req.Metadata,
	}
	for _, item := range req.Items {
		converted := ports.PaymentItem{Description: item.Description}
		if item.Date != "" {
			date, err := time.Parse("2006-01-02", item.Date)
			if err != nil {
				writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationFailed,
					"item date must be formatted YYYY-MM-DD"))
				return
			}
			converted.Date = date
		}
		serviceReq.Items = append(serviceReq.Items, converted)
	}

	resp, err := h.service.CreatePayment(r.Context(), serviceReq)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.responseView(resp))
}

// Status handles GET /api/v1/payments/{reference}/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")

	txn, err := h.service.GetPayment(r.Context(), reference)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	view := PaymentView{
		Reference:         txn.Reference,
		Status:            string(txn.Status),
		Token:             txn.Token,
		PaymentURL:        txn.PaymentURL,
		Amount:            txn.Amount.StringFixed(2),
		DisplayAmount:     h.countries.FormatAmount(txn.Amount, txn.Currency),
		RefundedAmount:    txn.RefundedAmount.StringFixed(2),
		Currency:          txn.Currency,
		ResultCode:        txn.GatewayResultCode,
		ResultExplanation: txn.GatewayResultText,
		PaidAt:            txn.PaidAt,
	}
	writeJSON(w, http.StatusOK, view)
}

// Refund handles POST /api/v1/payments/{reference}/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")

	var req RefundRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, domain.WrapError(domain.ErrorCodeValidationFailed, "invalid request body", err))
			return
		}
	}

	serviceReq := ports.RefundPaymentRequest{
		Reference: reference,
		Reason:    req.Reason,
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			writeError(w, h.logger, domain.ErrValidationAmountInvalid)
			return
		}
		serviceReq.Amount = &amount
	}

	resp, err := h.service.RefundPayment(r.Context(), serviceReq)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.responseView(resp))
}

// Cancel handles POST /api/v1/payments/{reference}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")

	resp, err := h.service.CancelPayment(r.Context(), reference)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.responseView(resp))
}

// Notify handles POST /api/v1/payments/notify, the gateway's server-to-server
// push. The pushed payload is advisory only; the transaction state comes from
// a fresh verification round trip. The gateway retries until it reads "OK".
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	token := callbackToken(r)
	if token == "" {
		observability.RecordCallback("rejected")
		writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationMissingField,
			"transaction token missing from callback"))
		return
	}

	resp, err := h.service.VerifyPayment(r.Context(), token)
	if err != nil {
		observability.RecordCallback("error")
		h.logger.Error("callback verification failed",
			ports.String("token", token),
			ports.Err(err))
		writeError(w, h.logger, err)
		return
	}

	observability.RecordCallback("verified")
	h.logger.Info("callback processed",
		ports.String("reference", resp.Reference),
		ports.String("status", string(resp.Status)))

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Callback handles GET /api/v1/payments/callback, the customer's browser
// returning from the hosted payment page. When merchant result pages are
// configured the browser is redirected there; otherwise the verified state
// is returned as JSON.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	token := callbackToken(r)
	if token == "" {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrorCodeValidationMissingField,
			"transaction token missing from callback"))
		return
	}

	resp, err := h.service.VerifyPayment(r.Context(), token)
	if err != nil {
		if h.failureURL != "" {
			http.Redirect(w, r, h.failureURL, http.StatusFound)
			return
		}
		writeError(w, h.logger, err)
		return
	}

	if resp.Status == models.StatusSuccess && h.successURL != "" {
		http.Redirect(w, r, resultPageURL(h.successURL, resp.Reference), http.StatusFound)
		return
	}
	if resp.Status != models.StatusSuccess && h.failureURL != "" {
		http.Redirect(w, r, resultPageURL(h.failureURL, resp.Reference), http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, h.responseView(resp))
}

func resultPageURL(base, reference string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("reference", reference)
	u.RawQuery = q.Encode()
	return u.String()
}

// Balance handles GET /api/v1/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.GetBalance(r.Context(), r.URL.Query().Get("currency"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// callbackToken pulls the transaction token out of a gateway callback. The
// gateway sends TransactionToken on pushes and TransID on browser redirects.
func callbackToken(r *http.Request) string {
	if token := r.URL.Query().Get("TransactionToken"); token != "" {
		return token
	}
	if token := r.URL.Query().Get("TransID"); token != "" {
		return token
	}
	if err := r.ParseForm(); err == nil {
		if token := r.PostForm.Get("TransactionToken"); token != "" {
			return token
		}
		if token := r.PostForm.Get("TransID"); token != "" {
			return token
		}
	}
	return ""
}

func (h *Handler) responseView(resp *ports.PaymentResponse) PaymentView {
	return PaymentView{
		Reference:         resp.Reference,
		Status:            string(resp.Status),
		Token:             resp.Token,
		PaymentURL:        resp.PaymentURL,
		Amount:            resp.Amount.StringFixed(2),
		DisplayAmount:     h.countries.FormatAmount(resp.Amount, resp.Currency),
		RefundedAmount:    resp.RefundedAmount.StringFixed(2),
		Currency:          resp.Currency,
		ResultCode:        resp.ResultCode,
		ResultExplanation: resp.ResultExplanation,
		PaidAt:            resp.PaidAt,
	}
}
