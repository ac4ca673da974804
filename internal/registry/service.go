package registry

/*
Файл service.go — реестр политик: регистрация, отзыв, выборки.
Валидация ввода выполняется до любого похода в хранилище; сами мутации
атомарны на стороне Postgres (upsert по паре). Каждая мутация:
  1. пишется в журнал аудита (лучшая попытка, см. ниже);
  2. синхронно инвалидирует локальный кэш инстанса — отзыв обязан быть
     виден следующему решению этого же процесса без всякой шины;
  3. рассылает сигнал остальным инстансам через Redis Pub/Sub.
В отличие от решений, отказ аудита мутации не откатывает уже
зафиксированную мутацию — он логируется как ошибка.
*/

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/a2a-registry/internal/domain"
	"github.com/xela07ax/a2a-registry/internal/infra"
)

// PolicyStore описывает требования реестра к хранилищу.
type PolicyStore interface {
	Upsert(ctx context.Context, p *domain.Policy) (string, error)
	Revoke(ctx context.Context, id string, reason *string) (*domain.Policy, error)
	List(ctx context.Context, page, limit int) ([]domain.Policy, int64, error)
	ByFromAgent(ctx context.Context, agent string) ([]domain.Policy, error)
	ByToAgent(ctx context.Context, agent string) ([]domain.Policy, error)
}

// Auditor — журнал для записей о мутациях реестра.
type Auditor interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}

// Invalidator — локальный кэш политик этого инстанса.
type Invalidator interface {
	Invalidate(fromAgent, toAgent string)
}

// PolicyPage — страница листинга с общим счетчиком.
type PolicyPage struct {
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int64           `json:"total"`
	Items []domain.Policy `json:"items"`
}

type Service struct {
	store   PolicyStore
	auditor Auditor
	cache   Invalidator   // nil — у процесса нет кэша решений (например, сидер)
	rdb     *redis.Client // nil — инстанс работает без шины инвалидаций
	logger  *zap.Logger
}

func NewService(store PolicyStore, auditor Auditor, cache Invalidator, rdb *redis.Client, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		auditor: auditor,
		cache:   cache,
		rdb:     rdb,
		logger:  logger.Named("registry"),
	}
}

// Register валидирует обязательные поля и атомарно upsert'ит политику
// по паре (fromAgent, toAgent). Возвращает id строки.
func (s *Service) Register(ctx context.Context, p *domain.Policy) (string, error) {
	missing := []string{}
	if p.FromAgent == "" {
		missing = append(missing, "fromAgent")
	}
	if p.ToAgent == "" {
		missing = append(missing, "toAgent")
	}
	if p.AllowedActions == nil {
		// Пустой список легален, отсутствующий — нет
		missing = append(missing, "allowedActions")
	}
	if p.IssuedBy == "" {
		missing = append(missing, "issuedBy")
	}
	if len(missing) > 0 {
		return "", domain.NewValidationError("Missing required fields: %s", strings.Join(missing, ", "))
	}

	id, err := s.store.Upsert(ctx, p)
	if err != nil {
		// Хранилище различает плохой ввод (некодируемые constraints)
		// и собственную недоступность
		if domain.IsValidation(err) {
			return "", err
		}
		return "", &domain.StoreUnavailableError{Op: "policy upsert", Err: err}
	}

	s.auditMutation(ctx, p.FromAgent, p.ToAgent, "register", id, map[string]string{
		"issuedBy": p.IssuedBy,
	})
	s.notifyUpdate(ctx, p.FromAgent, p.ToAgent)

	s.logger.Info("policy registered",
		zap.String("policy_id", id),
		zap.String("from", p.FromAgent),
		zap.String("to", p.ToAgent),
	)
	return id, nil
}

// Revoke переводит политику в revoked. Повторный отзыв идемпотентен
// (revoked_at и причина перештамповываются).
func (s *Service) Revoke(ctx context.Context, policyID string, reason *string) (string, error) {
	if policyID == "" {
		return "", domain.NewValidationError("policyId required")
	}

	p, err := s.store.Revoke(ctx, policyID, reason)
	if err != nil {
		if domain.IsNotFound(err) {
			return "", err
		}
		return "", &domain.StoreUnavailableError{Op: "policy revoke", Err: err}
	}

	metadata := map[string]string{}
	if reason != nil {
		metadata["reason"] = *reason
	}
	s.auditMutation(ctx, p.FromAgent, p.ToAgent, "revoke", p.ID, metadata)
	s.notifyUpdate(ctx, p.FromAgent, p.ToAgent)

	s.logger.Info("policy revoked", zap.String("policy_id", p.ID))
	return p.ID, nil
}

// List — страница политик по created_at DESC.
// page/limit обязаны быть положительными: молчаливых дефолтов здесь нет.
func (s *Service) List(ctx context.Context, page, limit int) (*PolicyPage, error) {
	if page < 1 || limit < 1 {
		return nil, domain.NewValidationError("page and limit must be positive integers")
	}

	items, total, err := s.store.List(ctx, page, limit)
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "policy list", Err: err}
	}
	if items == nil {
		items = []domain.Policy{}
	}

	return &PolicyPage{Page: page, Limit: limit, Total: total, Items: items}, nil
}

// PoliciesFrom — все политики (любой статус), где агент — источник.
func (s *Service) PoliciesFrom(ctx context.Context, agent string) ([]domain.Policy, error) {
	policies, err := s.store.ByFromAgent(ctx, agent)
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "policies by from-agent", Err: err}
	}
	return policies, nil
}

// PoliciesTo — все политики (любой статус), где агент — цель.
func (s *Service) PoliciesTo(ctx context.Context, agent string) ([]domain.Policy, error) {
	policies, err := s.store.ByToAgent(ctx, agent)
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "policies by to-agent", Err: err}
	}
	return policies, nil
}

func (s *Service) auditMutation(ctx context.Context, from, to, action, policyID string, metadata map[string]string) {
	entry := &domain.AuditEntry{
		FromAgent: from,
		ToAgent:   to,
		Action:    action,
		Result:    domain.ResultAllowed,
		PolicyID:  &policyID,
		Metadata:  metadata,
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.logger.Error("mutation audit failed",
			zap.String("action", action),
			zap.String("policy_id", policyID),
			zap.Error(err),
		)
	}
}

// notifyUpdate делает мутацию видимой решениям: свой кэш инвалидируется
// синхронно (Redis может отсутствовать вовсе), остальные инстансы
// получают широковещательный сигнал и выбросят пару сами.
func (s *Service) notifyUpdate(ctx context.Context, from, to string) {
	if s.cache != nil {
		s.cache.Invalidate(from, to)
	}

	if s.rdb == nil {
		return
	}
	if err := s.rdb.Publish(ctx, infra.RedisChanPolicyUpdate, domain.PairKey(from, to)).Err(); err != nil {
		// Не фатально: кэши догонят состояние при переподключении слушателя
		s.logger.Warn("cache invalidation publish failed", zap.Error(err))
	}
}
