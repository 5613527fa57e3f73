package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zedpay/dpo-payment-service/internal/domain"
	"github.com/zedpay/dpo-payment-service/internal/domain/ports"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger ports.Logger, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", ports.Err(err))
	}

	body := errorBody{Error: errorDetail{
		Code:    string(domain.GetErrorCode(err)),
		Message: err.Error(),
	}}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		body.Error.Message = domainErr.Message
		if len(domainErr.Details) > 0 {
			body.Error.Details = domainErr.Details
		}
	}
	if body.Error.Code == "" {
		body.Error.Code = string(domain.ErrorCodeInternalError)
	}
	writeJSON(w, status, body)
}

func statusForError(err error) int {
	switch {
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case domain.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case domain.IsBusinessError(err):
		return http.StatusUnprocessableEntity
	case domain.IsTransportError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
