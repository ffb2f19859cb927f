// Package httpserver собирает HTTP API сервиса: проверку заказа на дубли,
// повторную проверку сохраненного заказа, настройку политики продавца,
// а также служебные маршруты /health и /metrics.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YusovID/order-dedup/internal/config"
	"github.com/YusovID/order-dedup/internal/http-server/handlers/duplicates/check"
	"github.com/YusovID/order-dedup/internal/http-server/handlers/duplicates/recheck"
	"github.com/YusovID/order-dedup/internal/http-server/handlers/policy/save"
	mwLogger "github.com/YusovID/order-dedup/internal/http-server/middleware/logger"
	resp "github.com/YusovID/order-dedup/lib/api/response"
)

// Deps - зависимости обработчиков.
type Deps struct {
	Detector check.DuplicateDetector
	Orders   recheck.OrderGetter
	Policies save.PolicySaver
	Cache    save.PolicyInvalidator
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(mwLogger.New(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.Render(w, r, http.StatusOK, resp.OK())
	})
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders/duplicates/check", check.New(log, deps.Detector))
		r.Get("/orders/{id}/duplicates", recheck.New(log, deps.Orders, deps.Detector))
		r.Put("/sellers/{id}/duplicate-policy", save.New(log, deps.Policies, deps.Cache))
	})

	return r
}

type Server struct {
	httpServer *http.Server
}

func NewServer(cfg config.HTTPServer, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start блокируется до остановки сервера. После Shutdown возвращает
// http.ErrServerClosed.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
