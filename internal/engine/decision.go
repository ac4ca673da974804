package engine

/*
Файл decision.go — ядро реестра: решение "может ли fromAgent действовать
в отношении toAgent". Оркестрация фиксирована:

  1. lookup активной политики пары (статус + окно валидности на момент решения);
  2. нет политики          -> denied, policyId = null;
  3. action вне allow-list -> denied с именем действия;
  4. оценка ограничений    -> denied с причиной оценщика;
  5. иначе allowed.

Каждая ветка пишет ровно одну запись аудита ДО возврата ответа.
Аудит не best-effort: если запись не удалась, решение не выдается
(fail closed) — наружу уходит AuditWriteError, а не неаудированный allow.
*/

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

// PolicyProvider отдает политику, управляющую парой на момент now:
// статус active и now внутри окна валидности. nil без ошибки — политики нет.
type PolicyProvider interface {
	ActivePolicy(ctx context.Context, fromAgent, toAgent string, now time.Time) (*domain.Policy, error)
}

// AuditRecorder синхронно дописывает запись решения в журнал.
type AuditRecorder interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}

type Engine struct {
	policies PolicyProvider
	auditor  AuditRecorder
	metrics  *Metrics
	logger   *zap.Logger

	// now подменяется в тестах; контракт — "оцениваем текущий момент".
	now func() time.Time
}

func New(policies PolicyProvider, auditor AuditRecorder, metrics *Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		policies: policies,
		auditor:  auditor,
		metrics:  metrics,
		logger:   logger.Named("engine"),
		now:      time.Now,
	}
}

// CheckDelegation отвечает "разрешено ли" и журналирует ответ.
// action == "" означает existence-check пары без конкретного действия.
// Ошибка возвращается только при fault'е (store/audit); отказ — это
// валидный Decision с Allowed=false.
func (e *Engine) CheckDelegation(ctx context.Context, fromAgent, toAgent, action string, attrs map[string]string) (*domain.Decision, error) {
	now := e.now().UTC()
	start := now

	policy, err := e.policies.ActivePolicy(ctx, fromAgent, toAgent, now)
	if err != nil {
		e.metrics.FaultsTotal.WithLabelValues("store_unavailable").Inc()
		return nil, err
	}

	decision := e.decide(policy, now, action, attrs)

	// Аудит до ответа. PolicyID остается nil, когда политики не было вовсе.
	entry := &domain.AuditEntry{
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		Action:    auditAction(action),
		Result:    domain.ResultDenied,
		Metadata:  map[string]string{},
	}
	if decision.Allowed {
		entry.Result = domain.ResultAllowed
	} else {
		entry.Metadata["reason"] = decision.Reason
	}
	if policy != nil {
		id := policy.ID
		entry.PolicyID = &id
	}

	if err := e.auditor.Record(ctx, entry); err != nil {
		e.metrics.FaultsTotal.WithLabelValues("audit_write").Inc()
		e.logger.Error("decision dropped: audit write failed",
			zap.String("from", fromAgent),
			zap.String("to", toAgent),
			zap.Error(err),
		)
		return nil, err
	}

	result := string(entry.Result)
	e.metrics.DecisionsTotal.WithLabelValues(result).Inc()
	e.metrics.DecisionDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	return decision, nil
}

// decide — чистая часть решения, без side effects.
func (e *Engine) decide(policy *domain.Policy, now time.Time, action string, attrs map[string]string) *domain.Decision {
	if policy == nil {
		return &domain.Decision{
			Allowed: false,
			Reason:  "No active delegation policy found",
		}
	}

	if action != "" && !policy.AllowsAction(action) {
		return &domain.Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("Action '%s' not in allowed actions", action),
			Policy:  policy,
		}
	}

	if res := Evaluate(policy.Constraints, EvalContext{Now: now, Action: action, Attributes: attrs}); !res.Valid {
		return &domain.Decision{
			Allowed: false,
			Reason:  res.Reason,
			Policy:  policy,
		}
	}

	return &domain.Decision{Allowed: true, Policy: policy}
}

func auditAction(action string) string {
	if action == "" {
		return domain.ActionCheck
	}
	return action
}
