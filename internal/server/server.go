package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskbook/internal/logger"
)

// StoreState is the part of the entity store the endpoints report on.
type StoreState interface {
	Pending() int
	Err() string
	TaskCount() int
	CategoryCount() int
}

// Server exposes /metrics and /healthz for a running daemon.
type Server struct {
	echo  *echo.Echo
	log   *logger.Logger
	store StoreState
}

// New builds the server and registers store gauges plus the Go and process
// collectors on reg. /metrics serves exactly what reg gathers.
func New(reg *prometheus.Registry, store StoreState, log *logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, log: log.WithComponent("server"), store: store}

	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "taskbook_store_pending_operations",
			Help: "Store operations currently in flight",
		}, func() float64 { return float64(store.Pending()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "taskbook_store_tasks",
			Help: "Tasks held in the store cache",
		}, func() float64 { return float64(store.TaskCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "taskbook_store_categories",
			Help: "Categories held in the store cache",
		}, func() float64 { return float64(store.CategoryCount()) }),
	)

	e.GET("/healthz", s.healthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return s
}

// healthCheck reports 503 while the last store operation has failed.
func (s *Server) healthCheck(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"pending": s.store.Pending(),
	}
	if msg := s.store.Err(); msg != "" {
		body["status"] = "degraded"
		body["error"] = msg
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.Infow("starting metrics server", "address", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down metrics server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
