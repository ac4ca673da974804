package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

// stubProvider отдает заранее заданную политику или ошибку.
type stubProvider struct {
	policy *domain.Policy
	err    error
}

func (s *stubProvider) ActivePolicy(_ context.Context, _, _ string, _ time.Time) (*domain.Policy, error) {
	return s.policy, s.err
}

// stubAuditor накапливает записи, может имитировать отказ журнала.
type stubAuditor struct {
	entries []*domain.AuditEntry
	err     error
}

func (s *stubAuditor) Record(_ context.Context, entry *domain.AuditEntry) error {
	if s.err != nil {
		return &domain.AuditWriteError{Err: s.err}
	}
	s.entries = append(s.entries, entry)
	return nil
}

func newTestEngine(p *stubProvider, a *stubAuditor) *Engine {
	e := New(p, a, NewMetrics(nil), zap.NewNop())
	e.now = func() time.Time { return monday(12) }
	return e
}

func activePolicy() *domain.Policy {
	return &domain.Policy{
		ID:             "11111111-2222-3333-4444-555555555555",
		FromAgent:      "did:web:alpha.example",
		ToAgent:        "did:web:beta.example",
		AllowedActions: []string{"analyze", "report"},
		Status:         domain.StatusActive,
		IssuedBy:       "did:web:issuer.example",
	}
}

func TestCheckDelegationNoPolicy(t *testing.T) {
	auditor := &stubAuditor{}
	e := newTestEngine(&stubProvider{}, auditor)

	d, err := e.CheckDelegation(context.Background(), "did:web:alpha.example", "did:web:beta.example", "analyze", nil)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "No active delegation policy found", d.Reason)
	assert.Nil(t, d.Policy)

	// Ровно одна запись аудита, policyId отсутствует
	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	assert.Equal(t, domain.ResultDenied, entry.Result)
	assert.Nil(t, entry.PolicyID)
	assert.Equal(t, "analyze", entry.Action)
	assert.Equal(t, d.Reason, entry.Metadata["reason"])
}

func TestCheckDelegationActionNotAllowed(t *testing.T) {
	auditor := &stubAuditor{}
	e := newTestEngine(&stubProvider{policy: activePolicy()}, auditor)

	d, err := e.CheckDelegation(context.Background(), "did:web:alpha.example", "did:web:beta.example", "delete", nil)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Action 'delete' not in allowed actions", d.Reason)
	require.NotNil(t, d.Policy)

	require.Len(t, auditor.entries, 1)
	require.NotNil(t, auditor.entries[0].PolicyID)
	assert.Equal(t, d.Policy.ID, *auditor.entries[0].PolicyID)
}

func TestCheckDelegationAllowed(t *testing.T) {
	auditor := &stubAuditor{}
	e := newTestEngine(&stubProvider{policy: activePolicy()}, auditor)

	d, err := e.CheckDelegation(context.Background(), "did:web:alpha.example", "did:web:beta.example", "analyze", nil)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
	require.NotNil(t, d.Policy)

	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	assert.Equal(t, domain.ResultAllowed, entry.Result)
	assert.NotContains(t, entry.Metadata, "reason")
}

func TestCheckDelegationConstraintDenied(t *testing.T) {
	p := activePolicy()
	p.Constraints = domain.Constraints{AllowedDays: []string{"Sun"}}
	auditor := &stubAuditor{}
	e := newTestEngine(&stubProvider{policy: p}, auditor)

	// e.now — понедельник
	d, err := e.CheckDelegation(context.Background(), p.FromAgent, p.ToAgent, "analyze", nil)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Outside allowed days", d.Reason)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, domain.ResultDenied, auditor.entries[0].Result)
}

func TestCheckDelegationExistenceCheck(t *testing.T) {
	// Пустой action — проверка самого существования гранта,
	// allow-list при этом не применяется
	p := activePolicy()
	p.AllowedActions = []string{}
	auditor := &stubAuditor{}
	e := newTestEngine(&stubProvider{policy: p}, auditor)

	d, err := e.CheckDelegation(context.Background(), p.FromAgent, p.ToAgent, "", nil)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// В журнале действие фиксируется как "check"
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, domain.ActionCheck, auditor.entries[0].Action)
}

func TestCheckDelegationAttributesReachEvaluator(t *testing.T) {
	p := activePolicy()
	p.Constraints = domain.Constraints{Conditions: map[string]string{"minimumSeverity": "medium"}}
	e := newTestEngine(&stubProvider{policy: p}, &stubAuditor{})

	d, err := e.CheckDelegation(context.Background(), p.FromAgent, p.ToAgent, "analyze",
		map[string]string{"severity": "high"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = e.CheckDelegation(context.Background(), p.FromAgent, p.ToAgent, "analyze",
		map[string]string{"severity": "low"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCheckDelegationStoreFailure(t *testing.T) {
	storeErr := &domain.StoreUnavailableError{Op: "policy lookup", Err: errors.New("connection refused")}
	auditor := &stubAuditor{}
	e := newTestEngine(&stubProvider{err: storeErr}, auditor)

	d, err := e.CheckDelegation(context.Background(), "a", "b", "analyze", nil)
	assert.Nil(t, d)
	require.Error(t, err)
	assert.True(t, domain.IsStoreUnavailable(err))

	// При fault'е хранилища решения нет и журналировать нечего
	assert.Empty(t, auditor.entries)
}

func TestCheckDelegationFailClosedOnAuditFailure(t *testing.T) {
	// Политика разрешила бы, но журнал недоступен: решение не выдается
	auditor := &stubAuditor{err: errors.New("disk full")}
	e := newTestEngine(&stubProvider{policy: activePolicy()}, auditor)

	d, err := e.CheckDelegation(context.Background(), "did:web:alpha.example", "did:web:beta.example", "analyze", nil)
	assert.Nil(t, d)
	require.Error(t, err)
	assert.True(t, domain.IsAuditWrite(err))
}
