package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFault маппит таксономию ошибок ядра в HTTP.
// Fault структурно отличим от отказа: в теле нет поля allowed.
func writeFault(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsStoreUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "policy store unavailable")
	case domain.IsAuditWrite(err):
		// Решение без аудита не выдается — наружу уходит fault, не вердикт
		writeError(w, http.StatusInternalServerError, "audit log unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal")
	}
}
