package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

// AuditLog — контракт чтения журнала для транспорта.
type AuditLog interface {
	Query(ctx context.Context, filter domain.AuditFilter, page, limit int) ([]domain.AuditEntry, error)
}

type AuditHandler struct {
	log AuditLog
}

func NewAuditHandler(log AuditLog) *AuditHandler {
	return &AuditHandler{log: log}
}

// Query возвращает страницу журнала решений.
// GET /a2a/audit?from=&to=&action=&startDate=&endDate=&page=&limit=
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.AuditFilter{
		From:   q.Get("from"),
		To:     q.Get("to"),
		Action: q.Get("action"),
	}

	startDate, ok := parseDate(q.Get("startDate"))
	if !ok {
		writeError(w, http.StatusBadRequest, "startDate must be an RFC3339 timestamp")
		return
	}
	endDate, ok := parseDate(q.Get("endDate"))
	if !ok {
		writeError(w, http.StatusBadRequest, "endDate must be an RFC3339 timestamp")
		return
	}
	filter.StartDate = startDate
	filter.EndDate = endDate

	page, okPage := parsePositive(q.Get("page"), 1)
	limit, okLimit := parsePositive(q.Get("limit"), 100)
	if !okPage || !okLimit {
		writeError(w, http.StatusBadRequest, "page and limit must be positive integers")
		return
	}

	entries, err := h.log.Query(r.Context(), filter, page, limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func parseDate(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
