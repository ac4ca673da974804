package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/a2a-registry/internal/domain"
	"github.com/xela07ax/a2a-registry/internal/registry"
)

// PolicyRegistry — контракт реестра политик для транспорта.
type PolicyRegistry interface {
	Register(ctx context.Context, p *domain.Policy) (string, error)
	Revoke(ctx context.Context, policyID string, reason *string) (string, error)
	List(ctx context.Context, page, limit int) (*registry.PolicyPage, error)
	PoliciesFrom(ctx context.Context, agent string) ([]domain.Policy, error)
	PoliciesTo(ctx context.Context, agent string) ([]domain.Policy, error)
}

type PolicyHandler struct {
	service PolicyRegistry
}

func NewPolicyHandler(s PolicyRegistry) *PolicyHandler {
	return &PolicyHandler{service: s}
}

// List возвращает страницу политик.
// GET /a2a/policies?page=1&limit=50
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	page, okPage := parsePositive(r.URL.Query().Get("page"), 1)
	limit, okLimit := parsePositive(r.URL.Query().Get("limit"), 50)
	if !okPage || !okLimit {
		writeError(w, http.StatusBadRequest, "page and limit must be positive integers")
		return
	}

	data, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// From — политики, где агент является источником делегирования.
// GET /a2a/policies/from/{did}
func (h *PolicyHandler) From(w http.ResponseWriter, r *http.Request) {
	h.byAgent(w, r, h.service.PoliciesFrom)
}

// To — политики, где агент является целью делегирования.
// GET /a2a/policies/to/{did}
func (h *PolicyHandler) To(w http.ResponseWriter, r *http.Request) {
	h.byAgent(w, r, h.service.PoliciesTo)
}

func (h *PolicyHandler) byAgent(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) ([]domain.Policy, error)) {
	did := chi.URLParam(r, "did")
	// DID в пути приходит URL-encoded (did%3Aweb%3A...)
	if decoded, err := url.PathUnescape(did); err == nil {
		did = decoded
	}

	policies, err := fetch(r.Context(), did)
	if err != nil {
		writeFault(w, err)
		return
	}
	if policies == nil {
		policies = []domain.Policy{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"policies": policies})
}

// Register регистрирует (create-or-update) делегирующую политику.
// POST /a2a/policies
func (h *PolicyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var p domain.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.service.Register(r.Context(), &p)
	if err != nil {
		writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "policyId": id})
}

// Revoke отзывает политику по id.
// POST /a2a/revoke
// Несуществующий id — клиентский результат {"status":"error"}, не fault
// (совместимость с исходным контрактом реестра).
func (h *PolicyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PolicyID string  `json:"policyId"`
		Reason   *string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PolicyID == "" {
		writeError(w, http.StatusBadRequest, "policyId required")
		return
	}

	id, err := h.service.Revoke(r.Context(), req.PolicyID, req.Reason)
	if err != nil {
		if domain.IsNotFound(err) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": "Policy not found"})
			return
		}
		writeFault(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "policyId": id})
}

// parsePositive разбирает положительное целое; пустая строка — дефолт.
func parsePositive(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
