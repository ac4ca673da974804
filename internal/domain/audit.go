package domain

import "time"

// AuditResult — исход решения в журнале аудита.
type AuditResult string

const (
	ResultAllowed AuditResult = "allowed"
	ResultDenied  AuditResult = "denied"
)

// ActionCheck — сентинел для записей, где вызывающий не указал действие
// (existence-check пары без конкретного action).
const ActionCheck = "check"

// AuditEntry — неизменяемая запись одного решения.
// Создается один раз в момент решения; система никогда не обновляет
// и не удаляет строки аудита.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"` // Проставляет рекордер, не вызывающий
	FromAgent string    `json:"fromAgent"`
	ToAgent   string    `json:"toAgent"`
	Action    string    `json:"action"`
	Result    AuditResult `json:"result"`

	// PolicyID — слабая ссылка: nil, когда политики для пары не существовало.
	PolicyID *string `json:"policyId"`

	Metadata map[string]string `json:"metadata"`
}

// AuditFilter — конъюнктивные фильтры выборки журнала (AND).
// Пустое поле не накладывает ограничения; границы дат включительные.
type AuditFilter struct {
	From      string
	To        string
	Action    string
	StartDate *time.Time
	EndDate   *time.Time
}
