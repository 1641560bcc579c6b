package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithDomainError maps the domain error taxonomy to HTTP status codes.
func (h *Handler) respondWithDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTransferNotAllowed):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransferNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientBalanceForReversal),
		errors.Is(err, domain.ErrAlreadyReversed):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrTransientStorage):
		respondWithError(w, http.StatusServiceUnavailable, "temporary failure, please retry")
	default:
		h.Logger.Error("unexpected error", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
