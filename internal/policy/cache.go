package policy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

// Store — read-сторона хранилища политик, нужная кэшу.
type Store interface {
	// CurrentByPair возвращает текущую строку пары в любом статусе, nil — строки нет.
	CurrentByPair(ctx context.Context, fromAgent, toAgent string) (*domain.Policy, error)
	// All отдает весь набор строк для холодной загрузки.
	All(ctx context.Context) ([]domain.Policy, error)
}

// PairCache — потокобезопасный in-memory кэш политик, ключ — пара (from|to).
// Hot path решений ходит в память; Postgres нужен на промахах и при Refresh.
// Фильтры статуса и окна валидности применяются в момент чтения (ActiveAt),
// поэтому в кэше лежит текущая строка пары независимо от статуса — отзыв
// не требует немедленной инвалидации, чтобы решение стало корректным.
type PairCache struct {
	mu       sync.RWMutex
	policies map[string]domain.Policy

	store  Store
	logger *zap.Logger

	// onResize уведомляет о новом размере кэша (метрика Saturation).
	onResize func(n int)
}

func NewPairCache(store Store, logger *zap.Logger) *PairCache {
	return &PairCache{
		policies: make(map[string]domain.Policy),
		store:    store,
		logger:   logger.Named("policy-cache"),
		onResize: func(int) {},
	}
}

// OnResize регистрирует колбэк для метрики размера кэша.
func (c *PairCache) OnResize(fn func(n int)) {
	if fn != nil {
		c.onResize = fn
	}
}

// ActivePolicy реализует контракт PolicyProvider движка решений:
// вернуть политику, управляющую парой в момент now, или nil.
// Промах кэша читается сквозь в хранилище (read-through).
func (c *PairCache) ActivePolicy(ctx context.Context, fromAgent, toAgent string, now time.Time) (*domain.Policy, error) {
	key := domain.PairKey(fromAgent, toAgent)

	c.mu.RLock()
	p, ok := c.policies[key]
	c.mu.RUnlock()

	if !ok {
		fresh, err := c.store.CurrentByPair(ctx, fromAgent, toAgent)
		if err != nil {
			return nil, err
		}
		if fresh == nil {
			return nil, nil
		}

		c.mu.Lock()
		c.policies[key] = *fresh
		size := len(c.policies)
		c.mu.Unlock()
		c.onResize(size)

		p = *fresh
	}

	if !p.ActiveAt(now) {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

// Refresh — холодная загрузка всего набора политик из хранилища.
// Вызывается при старте и при каждом переподключении слушателя инвалидаций.
func (c *PairCache) Refresh(ctx context.Context) error {
	rows, err := c.store.All(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]domain.Policy, len(rows))
	for _, p := range rows {
		next[domain.PairKey(p.FromAgent, p.ToAgent)] = p
	}

	c.mu.Lock()
	c.policies = next
	c.mu.Unlock()
	c.onResize(len(next))

	c.logger.Info("policy cache refreshed", zap.Int("count", len(next)))
	return nil
}

// Invalidate выбрасывает пару из кэша; следующий lookup перечитает ее из БД.
func (c *PairCache) Invalidate(fromAgent, toAgent string) {
	key := domain.PairKey(fromAgent, toAgent)

	c.mu.Lock()
	delete(c.policies, key)
	size := len(c.policies)
	c.mu.Unlock()
	c.onResize(size)
}

// Size — текущее число пар в кэше.
func (c *PairCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.policies)
}
