package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"tokenmart/internal/exchange"
	"tokenmart/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEngineError maps engine and store failures onto HTTP statuses.
// Anything unrecognized is a 500, logged server-side and masked on the
// wire.
func writeEngineError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, exchange.ErrOrderNotFound),
		errors.Is(err, store.ErrTokenNotFound),
		errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, exchange.ErrNotOrderOwner):
		return http.StatusForbidden
	case errors.Is(err, store.ErrTokenExists),
		errors.Is(err, store.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, exchange.ErrMissingField),
		errors.Is(err, exchange.ErrInvalidOrderType),
		errors.Is(err, exchange.ErrInvalidAmount),
		errors.Is(err, exchange.ErrInvalidPrice),
		errors.Is(err, exchange.ErrInvalidPair),
		errors.Is(err, exchange.ErrInvalidSymbol),
		errors.Is(err, exchange.ErrSelfTrade),
		errors.Is(err, exchange.ErrOrderNotOpen),
		errors.Is(err, exchange.ErrInsufficientBalance),
		errors.Is(err, store.ErrSameUser):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
