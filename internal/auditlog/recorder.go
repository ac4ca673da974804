package auditlog

/*
Файл recorder.go — рекордер журнала аудита.

Запись синхронная, в отличие от привычного асинхронного буфера:
решение не считается принятым, пока его запись не легла в журнал
(fail closed). Таймстемп проставляет рекордер, а не вызывающий —
клиентское время в append-only журнале доверия не имеет.
*/

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

// Store определяет, куда физически пишется журнал.
type Store interface {
	Insert(ctx context.Context, entry *domain.AuditEntry) (int64, error)
	Query(ctx context.Context, filter domain.AuditFilter, page, limit int) ([]domain.AuditEntry, error)
}

type Recorder struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.Named("auditlog"),
		now:    time.Now,
	}
}

// Record дописывает неизменяемую строку журнала и проставляет ID/Timestamp.
// Ошибка хранилища классифицируется как AuditWriteError: вызывающий обязан
// трактовать ее как отказ всего решения, а не как деградацию.
func (r *Recorder) Record(ctx context.Context, entry *domain.AuditEntry) error {
	entry.Timestamp = r.now().UTC()
	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}

	id, err := r.store.Insert(ctx, entry)
	if err != nil {
		return &domain.AuditWriteError{Err: err}
	}
	entry.ID = id
	return nil
}

// Query отдает страницу журнала: фильтры конъюнктивные, сортировка
// по timestamp по убыванию, границы дат включительные.
func (r *Recorder) Query(ctx context.Context, filter domain.AuditFilter, page, limit int) ([]domain.AuditEntry, error) {
	if page < 1 || limit < 1 {
		return nil, domain.NewValidationError("page and limit must be positive integers")
	}

	entries, err := r.store.Query(ctx, filter, page, limit)
	if err != nil {
		return nil, &domain.StoreUnavailableError{Op: "audit query", Err: err}
	}
	return entries, nil
}
