package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"enablehub/internal/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeDomainError транслирует ошибки домена в HTTP-ответы административного API
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "INVALID_TRANSITION", err.Error())
	default:
		log.Printf("[HTTP] Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// writePublicError транслирует ошибки разбора публичной ссылки.
// Все причины недоступности отвечают 404 с кодом NOT_FOUND: наружу не
// раскрывается, существует ли токен. Сообщение различает причину для
// владельца контента, смотрящего в ответ.
func writePublicError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, domain.ErrNoPublishedVersion):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no published version available")
	case errors.Is(err, domain.ErrRevoked):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "link revoked")
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "link expired")
	case errors.Is(err, domain.ErrExpiredWithAsset):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "link expired with asset")
	case errors.Is(err, domain.ErrNotAvailable):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "content not available")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	default:
		log.Printf("[HTTP] Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
