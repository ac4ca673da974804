package engine

/*
Файл evaluator.go — чистый оценщик ограничений политики.
Никакого I/O и скрытого состояния: один и тот же вход всегда дает
один и тот же вердикт, поэтому оценщик безопасно зовется конкурентно
из любого количества решений.

Порядок правил фиксирован, первый отказ замыкает оценку:
allowedDays -> allowedHours -> maxDuration -> maxConcurrent -> conditions.
Все календарные проверки считаются в UTC.
*/

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

// EvalContext — контекст запроса для оценки ограничений.
// Контракт оценщика принимает запрос целиком, включая Action:
// членство действия в allow-list решается до оценщика, но само
// действие остается частью контекста.
type EvalContext struct {
	Now    time.Time
	Action string

	// Attributes — кастомные атрибуты запроса (например, severity),
	// против которых матчатся policy.Constraints.Conditions.
	Attributes map[string]string
}

// EvalResult — вердикт оценщика. Reason заполняется только при отказе.
type EvalResult struct {
	Valid  bool
	Reason string
}

// severityRank — фиксированная таблица рангов для ordinal-сравнения
// уровней severity в условии minimumSeverity.
var severityRank = map[string]int{
	"low":      0,
	"medium":   1,
	"high":     2,
	"critical": 3,
}

// weekdayAliases принимает полные и трехбуквенные английские имена дней
// (сид исходного реестра использует короткие: "Mon".."Fri").
var weekdayAliases = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// Evaluate прогоняет набор ограничений против контекста запроса.
// Пустой набор ограничений валиден.
func Evaluate(c domain.Constraints, ctx EvalContext) EvalResult {
	now := ctx.Now.UTC()

	// 1. Дни недели
	if len(c.AllowedDays) > 0 && !dayAllowed(c.AllowedDays, now.Weekday()) {
		return deny("Outside allowed days")
	}

	// 2. Часовое окно [start, end), end < start — окно через полночь
	if c.AllowedHours != nil && !hourAllowed(*c.AllowedHours, now.Hour()) {
		return deny("Outside allowed hours")
	}

	// 3. maxDuration ограничивает сессию, а не единичную проверку;
	// без session-tracking здесь только контроль well-formedness.
	if c.MaxDuration != nil && *c.MaxDuration < 0 {
		return deny("Invalid maxDuration constraint")
	}

	// 4. maxConcurrent аналогично: enforcement требует живого учета сессий
	// у внешнего коллаборатора, ядро проверяет только корректность значения.
	if c.MaxConcurrent != nil && *c.MaxConcurrent < 0 {
		return deny("Invalid maxConcurrent constraint")
	}

	// 5. Кастомные условия. Ключи сортируем: у map нет порядка,
	// а вердикт обязан быть детерминированным.
	keys := make([]string, 0, len(c.Conditions))
	for k := range c.Conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if res := evalCondition(key, c.Conditions[key], ctx.Attributes); !res.Valid {
			return res
		}
	}

	return EvalResult{Valid: true}
}

func deny(reason string) EvalResult {
	return EvalResult{Valid: false, Reason: reason}
}

func dayAllowed(days []string, weekday time.Weekday) bool {
	for _, d := range days {
		if wd, ok := weekdayAliases[strings.ToLower(d)]; ok && wd == weekday {
			return true
		}
	}
	return false
}

func hourAllowed(w domain.HourWindow, hour int) bool {
	if w.Start == w.End {
		// Пустое окно: считаем его всегда закрытым, а не "весь день".
		return false
	}
	if w.Start < w.End {
		return hour >= w.Start && hour < w.End
	}
	// Wraparound: 22 -> 6 покрывает [22..23] и [0..5]
	return hour >= w.Start || hour < w.End
}

// evalCondition матчит одно условие против атрибутов запроса.
// minimumSeverity сравнивается ordinal'но по таблице рангов,
// остальные ключи — точное строковое совпадение одноименного атрибута.
func evalCondition(key, want string, attrs map[string]string) EvalResult {
	if key == "minimumSeverity" {
		minRank, ok := severityRank[strings.ToLower(want)]
		if !ok {
			return deny("Invalid minimumSeverity constraint")
		}

		got, ok := attrs["severity"]
		if !ok {
			return deny("Missing required attribute 'severity' for condition 'minimumSeverity'")
		}

		gotRank, ok := severityRank[strings.ToLower(got)]
		if !ok {
			return deny(fmt.Sprintf("Unknown severity level '%s'", got))
		}

		if gotRank < minRank {
			return deny(fmt.Sprintf("Severity '%s' below required minimum '%s'", got, want))
		}
		return EvalResult{Valid: true}
	}

	got, ok := attrs[key]
	if !ok {
		return deny(fmt.Sprintf("Missing required attribute '%s'", key))
	}
	if got != want {
		return deny(fmt.Sprintf("Condition '%s' not satisfied", key))
	}
	return EvalResult{Valid: true}
}
