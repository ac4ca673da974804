package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

// DelegationChecker — контракт движка решений для транспорта.
type DelegationChecker interface {
	CheckDelegation(ctx context.Context, fromAgent, toAgent, action string, attrs map[string]string) (*domain.Decision, error)
}

type CheckHandler struct {
	engine DelegationChecker
}

func NewCheckHandler(engine DelegationChecker) *CheckHandler {
	return &CheckHandler{engine: engine}
}

// Check запускает проверку делегирования.
// GET /a2a/check?from=...&to=...&action=...
// Остальные query-параметры уходят оценщику как атрибуты контекста
// (например, severity=high для условия minimumSeverity).
func (h *CheckHandler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from := q.Get("from")
	to := q.Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to parameters required")
		return
	}
	action := q.Get("action")

	attrs := map[string]string{}
	for key, vals := range q {
		if key == "from" || key == "to" || key == "action" {
			continue
		}
		if len(vals) > 0 {
			attrs[key] = vals[0]
		}
	}

	decision, err := h.engine.CheckDelegation(r.Context(), from, to, action, attrs)
	if err != nil {
		writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}
