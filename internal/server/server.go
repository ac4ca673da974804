package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/a2a-registry/internal/infra"
	"github.com/xela07ax/a2a-registry/internal/server/handler"
)

type Server struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Обработчики бизнес-доменов
	checkHandler  *handler.CheckHandler  // /a2a/check
	policyHandler *handler.PolicyHandler // /a2a/policies, /a2a/revoke
	auditHandler  *handler.AuditHandler  // /a2a/audit
	healthHandler *handler.HealthHandler // /health

	metricsHandler http.Handler // /metrics (promhttp)
}

// New инициализирует HTTP-сервер реестра со всеми зависимостями.
func New(
	cfg *infra.Config,
	logger *zap.Logger,
	checkH *handler.CheckHandler,
	policyH *handler.PolicyHandler,
	auditH *handler.AuditHandler,
	healthH *handler.HealthHandler,
	metricsH http.Handler,
) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger.Named("http"),
		cfg:            cfg,
		checkHandler:   checkH,
		policyHandler:  policyH,
		auditHandler:   auditH,
		healthHandler:  healthH,
		metricsHandler: metricsH,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// Инфраструктурные middleware — для всех роутов
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(tracing)
	r.Use(s.requestLogger)
	r.Use(rateLimit(rate.NewLimiter(
		rate.Limit(s.cfg.Engine.RateLimitRPS),
		s.cfg.Engine.RateLimitBurst,
	)))

	r.Get("/health", s.healthHandler.Health)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	r.Route("/a2a", func(r chi.Router) {
		r.Get("/check", s.checkHandler.Check) // Проверка делегирования

		r.Get("/policies", s.policyHandler.List)
		r.Post("/policies", s.policyHandler.Register)
		r.Get("/policies/from/{did}", s.policyHandler.From)
		r.Get("/policies/to/{did}", s.policyHandler.To)

		r.Post("/revoke", s.policyHandler.Revoke)

		r.Get("/audit", s.auditHandler.Query)
	})
}

// requestLogger — структурный access log (метод, путь, статус, длительность).
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// tracing пробрасывает сквозной X-Trace-ID: берем из заголовка,
// если агент/прокси его прислал, иначе генерируем новый.
func tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		// Возвращаем в ответ, чтобы клиент знал ID своего запроса
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r)
	})
}

// rateLimit — общий лимитер на транспортной кромке.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, `{"error": "rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
