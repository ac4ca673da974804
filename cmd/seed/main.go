package main

// Сидер демонстрационных политик: банковский фрод-детектор, медицинская
// диагностика и эскалация клиентской поддержки. Идемпотентен — повторный
// запуск перезапишет те же пары через upsert.

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/a2a-registry/internal/auditlog"
	"github.com/xela07ax/a2a-registry/internal/domain"
	"github.com/xela07ax/a2a-registry/internal/infra"
	"github.com/xela07ax/a2a-registry/internal/registry"
	"github.com/xela07ax/a2a-registry/internal/repository/postgres"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("database pool init failed: %v", err)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	recorder := auditlog.NewRecorder(postgres.NewAuditRepo(pool), logger)
	svc := registry.NewService(postgres.NewPolicyRepo(pool), recorder, nil, nil, logger)

	log.Println("Seeding A2A Registry with example policies...")

	for _, p := range demoPolicies() {
		id, err := svc.Register(ctx, p)
		if err != nil {
			log.Fatalf("seed failed for %s -> %s: %v", p.FromAgent, p.ToAgent, err)
		}
		log.Printf("policy registered: %s (%s -> %s)", id, p.FromAgent, p.ToAgent)
	}

	log.Println("Seeding complete")
}

func demoPolicies() []*domain.Policy {
	return []*domain.Policy{
		// Банкинг: фрод-детектор -> риск-анализатор
		{
			FromAgent:      "did:web:fraud-detector.bank.example",
			ToAgent:        "did:web:risk-analyzer.bank.example",
			AllowedActions: []string{"analyze", "query", "report"},
			Constraints: domain.Constraints{
				MaxDuration:      int64Ptr(3600),
				Scope:            []string{"transaction-data"},
				RequiresApproval: boolPtr(false),
				MaxConcurrent:    intPtr(5),
			},
			IssuedBy:   "did:web:bank.example",
			ValidFrom:  timePtr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
			ValidUntil: timePtr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
		// Медицина: первичная диагностика -> радиолог
		{
			FromAgent:      "did:web:primary-diagnostics.hospital.example",
			ToAgent:        "did:web:radiology-specialist.hospital.example",
			AllowedActions: []string{"analyze-xray", "analyze-ct", "generate-report"},
			Constraints: domain.Constraints{
				MaxDuration:      int64Ptr(1800),
				Scope:            []string{"radiology-images"},
				RequiresApproval: boolPtr(true),
				AllowedDays:      []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
			},
			IssuedBy:   "did:web:hospital.example",
			ValidFrom:  timePtr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
			ValidUntil: timePtr(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)),
		},
		// Поддержка: чат-бот L1 -> супервизор
		{
			FromAgent:      "did:web:chatbot-l1.company.example",
			ToAgent:        "did:web:supervisor-ai.company.example",
			AllowedActions: []string{"escalate", "review", "approve"},
			Constraints: domain.Constraints{
				MaxDuration:      int64Ptr(600),
				Scope:            []string{"customer-support"},
				RequiresApproval: boolPtr(false),
				Conditions:       map[string]string{"minimumSeverity": "medium"},
			},
			IssuedBy:  "did:web:company.example",
			ValidFrom: timePtr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
}

func int64Ptr(v int64) *int64          { return &v }
func intPtr(v int) *int                { return &v }
func boolPtr(v bool) *bool             { return &v }
func timePtr(t time.Time) *time.Time   { return &t }
