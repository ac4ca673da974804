package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/a2a-registry/internal/domain"
	"github.com/xela07ax/a2a-registry/internal/registry"
)

type stubRegistry struct {
	registerID  string
	registerErr error

	revokeID  string
	revokeErr error

	page    *registry.PolicyPage
	listErr error

	byAgent []domain.Policy

	gotPolicy *domain.Policy
	gotID     string
	gotReason *string
	gotAgent  string
}

func (s *stubRegistry) Register(_ context.Context, p *domain.Policy) (string, error) {
	s.gotPolicy = p
	return s.registerID, s.registerErr
}

func (s *stubRegistry) Revoke(_ context.Context, id string, reason *string) (string, error) {
	s.gotID, s.gotReason = id, reason
	return s.revokeID, s.revokeErr
}

func (s *stubRegistry) List(_ context.Context, page, limit int) (*registry.PolicyPage, error) {
	return s.page, s.listErr
}

func (s *stubRegistry) PoliciesFrom(_ context.Context, agent string) ([]domain.Policy, error) {
	s.gotAgent = agent
	return s.byAgent, nil
}

func (s *stubRegistry) PoliciesTo(_ context.Context, agent string) ([]domain.Policy, error) {
	s.gotAgent = agent
	return s.byAgent, nil
}

// policyRouter собирает роуты так же, как их монтирует сервер.
func policyRouter(svc *stubRegistry) *chi.Mux {
	h := NewPolicyHandler(svc)
	r := chi.NewRouter()
	r.Get("/a2a/policies", h.List)
	r.Post("/a2a/policies", h.Register)
	r.Get("/a2a/policies/from/{did}", h.From)
	r.Get("/a2a/policies/to/{did}", h.To)
	r.Post("/a2a/revoke", h.Revoke)
	return r
}

func TestRegisterOK(t *testing.T) {
	svc := &stubRegistry{registerID: "policy-1"}
	body := `{
		"fromAgent": "did:web:a",
		"toAgent": "did:web:b",
		"allowedActions": ["analyze"],
		"issuedBy": "did:web:issuer",
		"constraints": {"maxDuration": 3600, "conditions": {"minimumSeverity": "medium"}}
	}`

	rec := httptest.NewRecorder()
	policyRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/a2a/policies", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "policy-1", resp["policyId"])

	// Ограничения дошли до сервиса типизированными
	require.NotNil(t, svc.gotPolicy)
	require.NotNil(t, svc.gotPolicy.Constraints.MaxDuration)
	assert.Equal(t, int64(3600), *svc.gotPolicy.Constraints.MaxDuration)
	assert.Equal(t, "medium", svc.gotPolicy.Constraints.Conditions["minimumSeverity"])
}

func TestRegisterBadBody(t *testing.T) {
	rec := httptest.NewRecorder()
	policyRouter(&stubRegistry{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/a2a/policies", strings.NewReader("{not json")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid request body", resp["error"])
}

func TestRegisterValidationFault(t *testing.T) {
	svc := &stubRegistry{registerErr: domain.NewValidationError("Missing required fields: issuedBy")}
	rec := httptest.NewRecorder()
	policyRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/a2a/policies", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Missing required fields: issuedBy", resp["error"])
}

func TestListDefaultsAndValidation(t *testing.T) {
	svc := &stubRegistry{page: &registry.PolicyPage{Page: 1, Limit: 50, Total: 0, Items: []domain.Policy{}}}
	r := policyRouter(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a2a/policies", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page registry.PolicyPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Limit)
	assert.NotNil(t, page.Items)

	for _, target := range []string{
		"/a2a/policies?page=0",
		"/a2a/policies?limit=-5",
		"/a2a/policies?page=abc",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestPoliciesByAgentUnescapesDID(t *testing.T) {
	svc := &stubRegistry{byAgent: []domain.Policy{{ID: "p-1"}}}
	rec := httptest.NewRecorder()
	policyRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a2a/policies/from/did%3Aweb%3Aalpha.example", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "did:web:alpha.example", svc.gotAgent)

	var resp map[string][]domain.Policy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp["policies"], 1)
	assert.Equal(t, "p-1", resp["policies"][0].ID)
}

func TestPoliciesByAgentEmptyResult(t *testing.T) {
	rec := httptest.NewRecorder()
	policyRouter(&stubRegistry{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a2a/policies/to/did:web:nobody", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	// nil превращается в пустой массив, не в null
	assert.JSONEq(t, `{"policies": []}`, rec.Body.String())
}

func TestRevokeOK(t *testing.T) {
	svc := &stubRegistry{revokeID: "policy-1"}
	rec := httptest.NewRecorder()
	policyRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/a2a/revoke",
		strings.NewReader(`{"policyId": "policy-1", "reason": "rotation"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "policy-1", svc.gotID)
	require.NotNil(t, svc.gotReason)
	assert.Equal(t, "rotation", *svc.gotReason)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRevokeMissingID(t *testing.T) {
	rec := httptest.NewRecorder()
	policyRouter(&stubRegistry{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/a2a/revoke", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "policyId required", resp["error"])
}

func TestRevokeNotFound(t *testing.T) {
	// Несуществующий id — клиентский результат со статусом 200, не fault
	svc := &stubRegistry{revokeErr: &domain.NotFoundError{Resource: "policy", ID: "ghost"}}
	rec := httptest.NewRecorder()
	policyRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/a2a/revoke",
		strings.NewReader(`{"policyId": "ghost"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "error", "error": "Policy not found"}`, rec.Body.String())
}
