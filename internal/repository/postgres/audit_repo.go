package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/a2a-registry/internal/domain"
)

// AuditRepo — append-only хранилище журнала решений.
// UPDATE/DELETE по a2a_audit_log в этом коде не существует by contract.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Insert дописывает одну строку и возвращает ее последовательный id.
func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) (int64, error) {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to encode audit metadata: %w", err)
	}

	query := `
		INSERT INTO a2a_audit_log (
			timestamp, from_agent, to_agent, action, result, policy_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		RETURNING id`

	var id int64
	err = r.pool.QueryRow(ctx, query,
		e.Timestamp, e.FromAgent, e.ToAgent, e.Action, e.Result, e.PolicyID, metadata,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to append audit entry: %w", err)
	}
	return id, nil
}

// Query — выборка журнала: фильтры конъюнктивные (AND), отсутствующий фильтр
// не ограничивает, даты — включительные границы. Сортировка timestamp DESC.
// WHERE собирается динамически, по образцу пакетной вставки с нумерованными
// плейсхолдерами.
func (r *AuditRepo) Query(ctx context.Context, f domain.AuditFilter, page, limit int) ([]domain.AuditEntry, error) {
	where := ""
	params := []interface{}{}

	appendCond := func(cond string, val interface{}) {
		params = append(params, val)
		if where == "" {
			where = "WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(cond, len(params))
	}

	if f.From != "" {
		appendCond("from_agent = $%d", f.From)
	}
	if f.To != "" {
		appendCond("to_agent = $%d", f.To)
	}
	if f.Action != "" {
		appendCond("action = $%d", f.Action)
	}
	if f.StartDate != nil {
		appendCond("timestamp >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		appendCond("timestamp <= $%d", *f.EndDate)
	}

	params = append(params, limit, (page-1)*limit)
	query := fmt.Sprintf(`
		SELECT id, timestamp, from_agent, to_agent, action, result, policy_id, metadata
		FROM a2a_audit_log %s
		ORDER BY timestamp DESC
		LIMIT $%d OFFSET $%d`,
		where, len(params)-1, len(params),
	)

	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e        domain.AuditEntry
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.FromAgent, &e.ToAgent,
			&e.Action, &e.Result, &e.PolicyID, &metadata); err != nil {
			return nil, fmt.Errorf("postgres: audit scan failed: %w", err)
		}
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: corrupt audit metadata for entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: audit scan failed: %w", err)
	}
	return entries, nil
}
