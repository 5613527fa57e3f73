package country

import (
	"encoding/json"
	"net/http"

	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
	"github.com/zedpay/dpo-payment-service/internal/services/country"
)

// Handler serves the supported-market catalog
type Handler struct {
	service *country.Service
	logger  ports.Logger
}

// NewHandler creates a new country handler
func NewHandler(service *country.Service, logger ports.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// CountryView is the JSON shape of one supported market
type CountryView struct {
	Code              string   `json:"code"`
	Name              string   `json:"name"`
	Currency          string   `json:"currency"`
	CurrencySymbol    string   `json:"currency_symbol"`
	MobileProviders   []string `json:"mobile_providers,omitempty"`
	SupportsRecurring bool     `json:"supports_recurring"`
	VATRate           float64  `json:"vat_rate"`
}

// List handles GET /api/v1/countries
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	countries := h.service.All()
	views := make([]CountryView, 0, len(countries))
	for _, c := range countries {
		views = append(views, h.view(c.Code))
	}
	writeJSON(w, http.StatusOK, views)
}

// Get handles GET /api/v1/countries/{code}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !h.service.IsValid(code) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": domain.ErrCountryNotFound.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, h.view(code))
}

func (h *Handler) view(code string) CountryView {
	c, _ := h.service.Get(code)
	symbol := ""
	if currency, err := h.service.Currency(c.Currency); err == nil {
		symbol = currency.Symbol
	}
	return CountryView{
		Code:              c.Code,
		Name:              c.Name,
		Currency:          c.Currency,
		CurrencySymbol:    symbol,
		MobileProviders:   c.MobileProviders,
		SupportsRecurring: c.SupportsRecurring,
		VATRate:           c.VATRate,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
