package domain

import (
	"encoding/json"
	"time"
)

// PolicyStatus — жизненный цикл делегирующей политики.
type PolicyStatus string

const (
	StatusActive  PolicyStatus = "active"
	StatusRevoked PolicyStatus = "revoked" // Терминальный статус: назад в active строка не возвращается
)

// HourWindow задает суточное окно [Start, End) в часах UTC.
// End < Start означает окно через полночь (например, 22 -> 6).
type HourWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Constraints — структурированный набор ограничений политики.
// Известные ключи типизированы, неизвестные сохраняются в Extra
// и игнорируются при оценке (forward-compatible).
type Constraints struct {
	// MaxDuration ограничивает длительность сессии (секунды). Валидируется,
	// но не enforce'ится: для этого нужен session-tracking вне ядра.
	MaxDuration *int64 `json:"maxDuration,omitempty"`

	// Scope — декларативные границы данных, к которым применим грант.
	Scope []string `json:"scope,omitempty"`

	// RequiresApproval — флаг HITL-подтверждения для внешнего коллаборатора.
	RequiresApproval *bool `json:"requiresApproval,omitempty"`

	// MaxConcurrent — потолок одновременных сессий. Как и MaxDuration,
	// только валидация well-formedness.
	MaxConcurrent *int `json:"maxConcurrent,omitempty"`

	// AllowedDays — дни недели (UTC), в которые грант действует.
	// Принимаются полные и трехбуквенные английские имена ("Mon".."Sun").
	AllowedDays []string `json:"allowedDays,omitempty"`

	// AllowedHours — суточное окно действия (UTC).
	AllowedHours *HourWindow `json:"allowedHours,omitempty"`

	// Conditions — кастомные предикаты ключ -> значение,
	// например {"minimumSeverity": "medium"}.
	Conditions map[string]string `json:"conditions,omitempty"`

	// Extra — нераспознанные ключи, сохраняем как есть.
	Extra map[string]json.RawMessage `json:"-"`
}

// constraintKeys — распознаваемые ключи; все остальное уходит в Extra.
var constraintKeys = []string{
	"maxDuration", "scope", "requiresApproval",
	"maxConcurrent", "allowedDays", "allowedHours", "conditions",
}

// UnmarshalJSON разбирает известные поля и откладывает остальные в Extra,
// чтобы раунд-трип через БД не терял кастомные ключи.
func (c *Constraints) UnmarshalJSON(data []byte) error {
	type knownFields struct {
		MaxDuration      *int64            `json:"maxDuration"`
		Scope            []string          `json:"scope"`
		RequiresApproval *bool             `json:"requiresApproval"`
		MaxConcurrent    *int              `json:"maxConcurrent"`
		AllowedDays      []string          `json:"allowedDays"`
		AllowedHours     *HourWindow       `json:"allowedHours"`
		Conditions       map[string]string `json:"conditions"`
	}

	var k knownFields
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range constraintKeys {
		delete(raw, key)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*c = Constraints{
		MaxDuration:      k.MaxDuration,
		Scope:            k.Scope,
		RequiresApproval: k.RequiresApproval,
		MaxConcurrent:    k.MaxConcurrent,
		AllowedDays:      k.AllowedDays,
		AllowedHours:     k.AllowedHours,
		Conditions:       k.Conditions,
		Extra:            raw,
	}
	return nil
}

func (c Constraints) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.Extra)+7)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.MaxDuration != nil {
		out["maxDuration"] = *c.MaxDuration
	}
	if c.Scope != nil {
		out["scope"] = c.Scope
	}
	if c.RequiresApproval != nil {
		out["requiresApproval"] = *c.RequiresApproval
	}
	if c.MaxConcurrent != nil {
		out["maxConcurrent"] = *c.MaxConcurrent
	}
	if c.AllowedDays != nil {
		out["allowedDays"] = c.AllowedDays
	}
	if c.AllowedHours != nil {
		out["allowedHours"] = c.AllowedHours
	}
	if c.Conditions != nil {
		out["conditions"] = c.Conditions
	}
	return json.Marshal(out)
}

// Policy — делегирующий грант: кто (FromAgent) может действовать
// в отношении кого (ToAgent), с какими действиями и ограничениями.
// Инвариант хранилища: ровно одна строка на упорядоченную пару
// (FromAgent, ToAgent); повторная регистрация перезаписывает ее через upsert.
type Policy struct {
	ID             string       `json:"id"`
	FromAgent      string       `json:"fromAgent"`
	ToAgent        string       `json:"toAgent"`
	AllowedActions []string     `json:"allowedActions"`
	Constraints    Constraints  `json:"constraints"`
	Status         PolicyStatus `json:"status"`
	IssuedBy       string       `json:"issuedBy"`

	// Окно валидности; nil означает открытую границу.
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Проставляются при отзыве. Повторный revoke перештамповывает их
	// (совместимость с исходным поведением реестра).
	RevokedAt        *time.Time `json:"revokedAt,omitempty"`
	RevocationReason *string    `json:"revocationReason,omitempty"`
}

// ActiveAt проверяет, управляет ли политика запросом в момент now:
// статус active и now внутри [ValidFrom, ValidUntil].
func (p *Policy) ActiveAt(now time.Time) bool {
	if p == nil || p.Status != StatusActive {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	return true
}

// AllowsAction проверяет членство действия в allow-list.
// Пустой список легален: ни одно именованное действие не пройдет,
// но existence-check (action не указан) решается выше по стеку.
func (p *Policy) AllowsAction(action string) bool {
	for _, a := range p.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// PairKey — канонический ключ пары для кэша и каналов инвалидации.
// Разделитель '|' выбран потому, что ':' встречается внутри DID.
func PairKey(fromAgent, toAgent string) string {
	return fromAgent + "|" + toAgent
}

// Decision — итог проверки делегирования.
// Отказ (Allowed=false + Reason) — валидный ответ, не fault:
// fault'ы ходят отдельным каналом ошибок и не несут поля allowed.
type Decision struct {
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason,omitempty"`
	Policy  *Policy `json:"policy,omitempty"`
}
