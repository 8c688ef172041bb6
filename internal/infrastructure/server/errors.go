package server

import (
	"context"
	"errors"
	"net/http"

	"yield_sim/internal/auth"
	apperrors "yield_sim/pkg/errors"
)

var errBadRequest = errors.New("malformed request")

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, apperrors.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrRatesUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	requestID := auth.RequestID(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "request_id", requestID, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: requestID})
}
