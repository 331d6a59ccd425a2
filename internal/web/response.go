package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	dberrors "github.com/matzehuels/dbdev/pkg/errors"
	"github.com/matzehuels/dbdev/pkg/httputil"
)

// Response is the JSON envelope of every API response.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
}

// APIError is the error body of a failed API call.
type APIError struct {
	Code    dberrors.Code `json:"code"`
	Field   string        `json:"field,omitempty"`
	Message string        `json:"message"`
}

func respondOK(w http.ResponseWriter, r *http.Request, data any) {
	respondJSON(w, r, http.StatusOK, data, nil)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := dberrors.UserMessage(err)
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	respondJSON(w, r, status, nil, &APIError{Code: code, Field: dberrors.FieldOf(err), Message: msg})
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any, apiErr *APIError) {
	resp := Response{
		Status:    "ok",
		RequestID: RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// classify maps an error to an HTTP status and error code.
func classify(err error) (int, dberrors.Code) {
	switch code := dberrors.GetCode(err); code {
	case dberrors.ErrCodeValidation:
		return http.StatusBadRequest, code
	case dberrors.ErrCodeNotFound:
		return http.StatusNotFound, code
	case dberrors.ErrCodeNotImplemented:
		return http.StatusNotImplemented, code
	case dberrors.ErrCodeNetwork:
		return http.StatusBadGateway, code
	case dberrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized, code
	case dberrors.ErrCodeForbidden:
		return http.StatusForbidden, code
	case dberrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests, code
	}

	var rl *dberrors.RateLimitedError
	switch {
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, dberrors.ErrCodeRateLimited
	case errors.Is(err, httputil.ErrNotFound):
		return http.StatusNotFound, dberrors.ErrCodeNotFound
	case errors.Is(err, httputil.ErrUnauthorized):
		return http.StatusUnauthorized, dberrors.ErrCodeUnauthorized
	case errors.Is(err, httputil.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, dberrors.ErrCodeNetwork
	}
	return http.StatusInternalServerError, dberrors.ErrCodeUnknown
}
