package domain

import (
	"errors"
	"fmt"
)

// Таксономия ошибок ядра:
//   - ValidationError  — некорректный ввод вызывающего (400 на транспорте);
//   - NotFoundError    — ссылка на несуществующую политику (клиентский "not found", не fault);
//   - StoreUnavailableError — durable store недоступен (fault сервера, ядро не ретраит);
//   - AuditWriteError  — не записался аудит: решение не выдается без записи (fail closed).
// Отказы (Decision.Allowed=false) ошибками не являются и сюда не попадают.

// ValidationError — плохой или отсутствующий ввод вызывающего.
// Детектируется до любого обращения к хранилищу.
// Message уходит клиенту как есть, поэтому без технических префиксов.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError форматирует ошибку валидации.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError — запрошенной политики не существует.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// StoreUnavailableError — хранилище недоступно или вернуло ошибку.
// Классификация без декорирования: исходная ошибка доступна через Unwrap.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// AuditWriteError — не удалось записать аудит. Единственное место,
// где отказ обработки не "log and continue": решение без аудита не выдается.
type AuditWriteError struct {
	Err error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write failed: %v", e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }

// IsValidation сообщает, лежит ли в цепочке ошибка валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound сообщает, лежит ли в цепочке "not found".
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsStoreUnavailable сообщает, классифицирована ли ошибка как отказ хранилища.
func IsStoreUnavailable(err error) bool {
	var su *StoreUnavailableError
	return errors.As(err, &su)
}

// IsAuditWrite сообщает, что упала именно запись аудита.
func IsAuditWrite(err error) bool {
	var aw *AuditWriteError
	return errors.As(err, &aw)
}
