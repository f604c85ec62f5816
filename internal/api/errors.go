package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"stock_dash/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// statusFor maps an error to an HTTP status and a short kind label.
func statusFor(err error) (int, string) {
	var (
		ve *domain.ValidationError
		ue *domain.UnknownSymbolError
		te *domain.FetchTransportError
		de *domain.FetchDataError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation"
	case errors.As(err, &ue):
		return http.StatusNotFound, "unknown_symbol"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNotYetAvailable):
		return http.StatusServiceUnavailable, "not_yet_available"
	case errors.As(err, &te):
		return http.StatusBadGateway, "transport"
	case errors.As(err, &de):
		return http.StatusBadGateway, "data"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	resp := errorResponse{Error: err.Error(), Kind: kind}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	if status >= 500 && status != http.StatusServiceUnavailable {
		slog.Warn("API request failed", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSONStatus(w, status, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}
