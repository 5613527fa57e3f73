package cron

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

// BillingHandler handles cron job endpoints for subscription billing
type BillingHandler struct {
	subscriptionService ports.SubscriptionService
	subRepo             ports.SubscriptionRepository
	txnRepo             ports.TransactionRepository
	logger              ports.Logger
	cronSecret          string
	clock               ports.Clock
}

// NewBillingHandler creates a new billing cron handler
func NewBillingHandler(
	subscriptionService ports.SubscriptionService,
	subRepo ports.SubscriptionRepository,
	txnRepo ports.TransactionRepository,
	logger ports.Logger,
	cronSecret string,
	clock ports.Clock,
) *BillingHandler {
	return &BillingHandler{
		subscriptionService: subscriptionService,
		subRepo:             subRepo,
		txnRepo:             txnRepo,
		logger:              logger,
		cronSecret:          cronSecret,
		clock:               clock,
	}
}

// ProcessBillingRequest is the optional JSON body for POST /cron/process-billing
type ProcessBillingRequest struct {
	AsOfDate  *string `json:"as_of_date"`  // Optional ISO date, defaults to now
	BatchSize *int    `json:"batch_size"`  // Optional, defaults to the configured batch size
}

// ProcessBillingResponse reports one billing sweep
type ProcessBillingResponse struct {
	Success      bool         `json:"success"`
	Processed    int          `json:"processed"`
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	Errors       []BatchError `json:"errors,omitempty"`
	ProcessedAt  string       `json:"processed_at"`
}

// BatchError identifies one failed subscription within a sweep
type BatchError struct {
	Subscription string `json:"subscription"`
	Error        string `json:"error"`
}

// ProcessBilling handles POST /cron/process-billing, the scheduler's entry
// point for the recurring billing sweep
func (h *BillingHandler) ProcessBilling(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("billing cron triggered",
		ports.String("remote_addr", r.RemoteAddr),
		ports.String("user_agent", r.UserAgent()))

	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}
	if !h.authenticateRequest(r) {
		h.logger.Warn("unauthorized cron request",
			ports.String("remote_addr", r.RemoteAddr))
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ProcessBillingRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Continue with defaults if parsing fails
			h.logger.Warn("failed to parse billing request body", ports.Err(err))
		}
	}

	var asOf time.Time
	if req.AsOfDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.AsOfDate)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid as_of_date format, expected YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	batchSize := 0
	if req.BatchSize != nil {
		if *req.BatchSize < 1 || *req.BatchSize > 1000 {
			h.respondError(w, http.StatusBadRequest, "batch_size must be between 1 and 1000")
			return
		}
		batchSize = *req.BatchSize
	}

	result, err := h.subscriptionService.ProcessDueSubscriptions(r.Context(), asOf, batchSize)
	if err != nil {
		h.logger.Error("billing sweep failed", ports.Err(err))
		h.respondError(w, http.StatusInternalServerError, "billing sweep failed")
		return
	}

	resp := ProcessBillingResponse{
		Success:      result.Failed == 0,
		Processed:    result.Processed,
		SuccessCount: result.Successful,
		FailureCount: result.Failed,
		ProcessedAt:  h.clock.Now().Format(time.RFC3339),
	}
	for _, batchErr := range result.Errors {
		resp.Errors = append(resp.Errors, BatchError{
			Subscription: batchErr.SubscriptionReference,
			Error:        batchErr.Error,
		})
	}

	h.logger.Info("billing sweep completed",
		ports.Int("processed", result.Processed),
		ports.Int("successful", result.Successful),
		ports.Int("failed", result.Failed))

	w.Header().Set("Content-Type", "application/json")
	if resp.Success {
		w.WriteHeader(http.StatusOK)
	} else {
		// 206 indicates partial success
		w.WriteHeader(http.StatusPartialContent)
	}
	json.NewEncoder(w).Encode(resp)
}

// HealthCheck handles GET /cron/health for monitoring
func (h *BillingHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   h.clock.Now().Format(time.RFC3339),
	})
}

// Stats handles GET /cron/stats for monitoring billing volumes
func (h *BillingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	subCounts, err := h.subRepo.CountByStatus(r.Context(), nil)
	if err != nil {
		h.logger.Error("failed to count subscriptions", ports.Err(err))
		h.respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	txnStats, err := h.txnRepo.StatsByStatus(r.Context(), nil)
	if err != nil {
		h.logger.Error("failed to aggregate transactions", ports.Err(err))
		h.respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	subscriptions := make(map[string]int64, len(subCounts))
	for status, count := range subCounts {
		subscriptions[string(status)] = count
	}
	transactions := make([]map[string]interface{}, 0, len(txnStats))
	for _, stat := range txnStats {
		transactions = append(transactions, map[string]interface{}{
			"status": string(stat.Status),
			"count":  stat.Count,
			"volume": stat.Volume.StringFixed(2),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"subscriptions": subscriptions,
		"transactions":  transactions,
		"due_now":       h.countDue(r),
		"timestamp":     h.clock.Now().Format(time.RFC3339),
	})
}

// countDue reports how many subscriptions are currently due, bounded by the
// optional limit query parameter
func (h *BillingHandler) countDue(r *http.Request) int {
	limit := int32(1000)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 10000 {
			limit = int32(parsed)
		}
	}
	due, err := h.subRepo.ListDueForBilling(r.Context(), nil, h.clock.Now(), limit)
	if err != nil {
		h.logger.Warn("failed to list due subscriptions for stats", ports.Err(err))
		return -1
	}
	return len(due)
}

// authenticateRequest verifies the cron request is authorized
func (h *BillingHandler) authenticateRequest(r *http.Request) bool {
	if h.cronSecret == "" {
		return false
	}
	if r.Header.Get("X-Cron-Secret") == h.cronSecret {
		return true
	}
	if r.Header.Get("Authorization") == "Bearer "+h.cronSecret {
		return true
	}
	return false
}

func (h *BillingHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
