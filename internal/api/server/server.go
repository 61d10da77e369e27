package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/unihub-backend/internal/api/handler"
	"github.com/xela07ax/unihub-backend/internal/infra"
	"github.com/xela07ax/unihub-backend/internal/infra/auth"
	"go.uber.org/zap"
)

type APIServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Проверка bearer-токенов внешнего Identity-сервиса (RS256)
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	approvalHandler *handler.ApprovalHandler // /v1/approvals

	metricsRegistry *prometheus.Registry // /metrics
}

// NewAPIServer инициализирует HTTP-слой со всеми зависимостями
func NewAPIServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	approvalH *handler.ApprovalHandler,
	metricsReg *prometheus.Registry,
) *APIServer {
	s := &APIServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("api"),
		cfg:             cfg,
		authValidator:   validator,
		approvalHandler: approvalH,
		metricsRegistry: metricsReg,
	}

	s.routes()
	return s
}

func (s *APIServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		if s.metricsRegistry != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.metricsRegistry, promhttp.HandlerOpts{}))
		}
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен Identity-сервиса) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Движок согласований (Approval Workflow)
		r.Route("/v1/approvals", func(r chi.Router) {
			r.Get("/", s.approvalHandler.List)    // Очередь заявок
			r.Post("/", s.approvalHandler.Create) // Создание заявки
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.approvalHandler.GetDetails)
				r.Post("/decide", s.approvalHandler.Decide) // Голос получателя
			})
		})
	})
}

// ServeHTTP позволяет использовать APIServer как стандартный http.Handler
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
