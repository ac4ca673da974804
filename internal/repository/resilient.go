package repository

/*
Файл resilient.go — надежностная обертка над read-путем хранилища политик.
Ретраи и предохранитель живут здесь, на стороне store-клиента: ядро решений
не ретраит и не декорирует — оно получает либо политику, либо уже
классифицированный StoreUnavailableError.
*/

import (
	"context"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

// PolicyReader — read-сторона хранилища, которую защищает обертка.
type PolicyReader interface {
	ActivePolicy(ctx context.Context, fromAgent, toAgent string, now time.Time) (*domain.Policy, error)
	CurrentByPair(ctx context.Context, fromAgent, toAgent string) (*domain.Policy, error)
	All(ctx context.Context) ([]domain.Policy, error)
}

type ResilientPolicyReader struct {
	next PolicyReader
	cb   *gobreaker.CircuitBreaker
}

func NewResilientPolicyReader(next PolicyReader) *ResilientPolicyReader {
	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "a2a-policy-store",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &ResilientPolicyReader{next: next, cb: cb}
}

func (w *ResilientPolicyReader) ActivePolicy(ctx context.Context, fromAgent, toAgent string, now time.Time) (*domain.Policy, error) {
	var result *domain.Policy
	err := w.execute(ctx, "active policy lookup", func(callCtx context.Context) error {
		var callErr error
		result, callErr = w.next.ActivePolicy(callCtx, fromAgent, toAgent, now)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (w *ResilientPolicyReader) CurrentByPair(ctx context.Context, fromAgent, toAgent string) (*domain.Policy, error) {
	var result *domain.Policy
	err := w.execute(ctx, "pair lookup", func(callCtx context.Context) error {
		var callErr error
		result, callErr = w.next.CurrentByPair(callCtx, fromAgent, toAgent)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (w *ResilientPolicyReader) All(ctx context.Context) ([]domain.Policy, error) {
	var result []domain.Policy
	err := w.execute(ctx, "policy cold load", func(callCtx context.Context) error {
		var callErr error
		result, callErr = w.next.All(callCtx)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// execute — общий каркас: Circuit Breaker снаружи, ретраи с бэкоффом внутри.
// Исчерпанные ретраи и открытый предохранитель одинаково классифицируются
// как недоступность хранилища.
func (w *ResilientPolicyReader) execute(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			retry.LastErrorOnly(true),
		)

		retryErr := r.Do(func() error {
			callCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			return fn(callCtx)
		})

		return nil, retryErr
	})

	if err != nil {
		return &domain.StoreUnavailableError{Op: op, Err: err}
	}
	return nil
}
