package postgres

/*
Файл policy_repo.go отвечает за долговременное хранение делегирующих политик.
Ключевой примитив — атомарный upsert по паре (from_agent, to_agent):
инвариант "одна строка на пару" держится UNIQUE-констрейнтом и
ON CONFLICT ... DO UPDATE, а не чтением-с-проверкой, поэтому гонка
конкурентных регистраций не плодит дубликаты.
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

const policyColumns = `
	id, from_agent, to_agent, allowed_actions, constraints, status,
	issued_by, valid_from, valid_until, created_at, updated_at,
	revoked_at, revocation_reason`

type PolicyRepo struct {
	pool *pgxpool.Pool
}

func NewPolicyRepo(pool *pgxpool.Pool) *PolicyRepo {
	return &PolicyRepo{pool: pool}
}

// ActivePolicy отдает политику, управляющую парой на момент now:
// статус active и now внутри окна валидности. nil — активной политики нет.
func (r *PolicyRepo) ActivePolicy(ctx context.Context, fromAgent, toAgent string, now time.Time) (*domain.Policy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM a2a_policies
		WHERE from_agent = $1
		  AND to_agent = $2
		  AND status = 'active'
		  AND (valid_from IS NULL OR valid_from <= $3)
		  AND (valid_until IS NULL OR valid_until >= $3)
		LIMIT 1`

	p, err := scanPolicy(r.pool.QueryRow(ctx, query, fromAgent, toAgent, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: active policy lookup failed: %w", err)
	}
	return p, nil
}

// CurrentByPair отдает текущую строку пары в любом статусе (для кэша).
func (r *PolicyRepo) CurrentByPair(ctx context.Context, fromAgent, toAgent string) (*domain.Policy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM a2a_policies
		WHERE from_agent = $1 AND to_agent = $2
		LIMIT 1`

	p, err := scanPolicy(r.pool.QueryRow(ctx, query, fromAgent, toAgent))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: pair lookup failed: %w", err)
	}
	return p, nil
}

// All выполняет холодную загрузку всего набора строк (для кэша при старте).
func (r *PolicyRepo) All(ctx context.Context) ([]domain.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM a2a_policies`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load policies: %w", err)
	}
	defer rows.Close()

	return collectPolicies(rows)
}

// Upsert — атомарная регистрация create-or-update по паре.
// Повторная регистрация перезаписывает грант и возвращает строку в active;
// прежнее состояние отзыва не сохраняется (revoked_at/reason очищаются).
func (r *PolicyRepo) Upsert(ctx context.Context, p *domain.Policy) (string, error) {
	// Ошибки кодирования — проблема входных данных вызывающего
	// (например, битый raw-фрагмент в constraints), не отказ хранилища
	actions, err := json.Marshal(p.AllowedActions)
	if err != nil {
		return "", domain.NewValidationError("Invalid allowedActions: %v", err)
	}
	constraints, err := json.Marshal(p.Constraints)
	if err != nil {
		return "", domain.NewValidationError("Invalid constraints: %v", err)
	}

	query := `
		INSERT INTO a2a_policies (
			from_agent, to_agent, allowed_actions, constraints,
			issued_by, valid_from, valid_until
		) VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6, $7)
		ON CONFLICT (from_agent, to_agent) DO UPDATE SET
			allowed_actions   = EXCLUDED.allowed_actions,
			constraints       = EXCLUDED.constraints,
			issued_by         = EXCLUDED.issued_by,
			valid_from        = EXCLUDED.valid_from,
			valid_until       = EXCLUDED.valid_until,
			status            = 'active',
			revoked_at        = NULL,
			revocation_reason = NULL,
			updated_at        = now()
		RETURNING id`

	var id string
	err = r.pool.QueryRow(ctx, query,
		p.FromAgent, p.ToAgent, actions, constraints,
		p.IssuedBy, p.ValidFrom, p.ValidUntil,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("postgres: failed to upsert policy: %w", err)
	}
	return id, nil
}

// Revoke переводит политику в терминальный revoked и штампует причину.
// Повторный отзыв идемпотентен: revoked_at/reason перештамповываются.
func (r *PolicyRepo) Revoke(ctx context.Context, id string, reason *string) (*domain.Policy, error) {
	query := `
		UPDATE a2a_policies
		SET status = 'revoked',
		    revoked_at = now(),
		    revocation_reason = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + policyColumns

	p, err := scanPolicy(r.pool.QueryRow(ctx, query, id, reason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "policy", ID: id}
		}
		return nil, fmt.Errorf("postgres: failed to revoke policy: %w", err)
	}
	return p, nil
}

// List — страница политик по created_at DESC плюс общий счетчик.
func (r *PolicyRepo) List(ctx context.Context, page, limit int) ([]domain.Policy, int64, error) {
	offset := (page - 1) * limit

	query := `
		SELECT ` + policyColumns + `
		FROM a2a_policies
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: failed to list policies: %w", err)
	}
	defer rows.Close()

	items, err := collectPolicies(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM a2a_policies`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: failed to count policies: %w", err)
	}

	return items, total, nil
}

// ByFromAgent — все политики (любой статус), где агент — источник.
func (r *PolicyRepo) ByFromAgent(ctx context.Context, agent string) ([]domain.Policy, error) {
	return r.byAgent(ctx, "from_agent", agent)
}

// ByToAgent — все политики (любой статус), где агент — цель.
func (r *PolicyRepo) ByToAgent(ctx context.Context, agent string) ([]domain.Policy, error) {
	return r.byAgent(ctx, "to_agent", agent)
}

func (r *PolicyRepo) byAgent(ctx context.Context, column, agent string) ([]domain.Policy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM a2a_policies
		WHERE ` + column + ` = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, agent)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query policies by %s: %w", column, err)
	}
	defer rows.Close()

	return collectPolicies(rows)
}

// Ping проверяет доступность базы при старте.
func (r *PolicyRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanPolicy(row pgx.Row) (*domain.Policy, error) {
	var (
		p           domain.Policy
		actions     []byte
		constraints []byte
	)
	err := row.Scan(
		&p.ID, &p.FromAgent, &p.ToAgent, &actions, &constraints, &p.Status,
		&p.IssuedBy, &p.ValidFrom, &p.ValidUntil, &p.CreatedAt, &p.UpdatedAt,
		&p.RevokedAt, &p.RevocationReason,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(actions, &p.AllowedActions); err != nil {
		return nil, fmt.Errorf("postgres: corrupt allowed_actions for policy %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(constraints, &p.Constraints); err != nil {
		return nil, fmt.Errorf("postgres: corrupt constraints for policy %s: %w", p.ID, err)
	}
	return &p, nil
}

func collectPolicies(rows pgx.Rows) ([]domain.Policy, error) {
	var results []domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: policy scan failed: %w", err)
	}
	return results, nil
}
