package repository

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"taskbook/internal/logger"
	"taskbook/internal/model"
)

// Metrics holds the gateway collectors.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskbook_gateway_operations_total",
				Help: "Gateway operations by name and outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskbook_gateway_operation_duration_seconds",
				Help:    "Gateway operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.duration)
	}
	return m
}

func outcome(err error) string {
	var conn *ConnectionError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &conn):
		return "connection_error"
	default:
		return "error"
	}
}

type instrumented struct {
	next    Gateway
	metrics *Metrics
	log     *logger.Logger
}

// Instrument wraps gw so every call is counted, timed and logged.
func Instrument(gw Gateway, m *Metrics, log *logger.Logger) Gateway {
	return &instrumented{next: gw, metrics: m, log: log.WithComponent("gateway")}
}

func (g *instrumented) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if g.metrics != nil {
		g.metrics.ops.WithLabelValues(op, outcome(err)).Inc()
		g.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	g.log.LogQuery(op, elapsed, err)
}

func (g *instrumented) Connect(ctx context.Context) (err error) {
	defer func(start time.Time) { g.observe("connect", start, err) }(time.Now())
	return g.next.Connect(ctx)
}

func (g *instrumented) Close(ctx context.Context) (err error) {
	defer func(start time.Time) { g.observe("close", start, err) }(time.Now())
	return g.next.Close(ctx)
}

func (g *instrumented) CreateTask(ctx context.Context, in model.TaskInput) (_ *model.Task, err error) {
	defer func(start time.Time) { g.observe("create_task", start, err) }(time.Now())
	return g.next.CreateTask(ctx, in)
}

func (g *instrumented) GetTask(ctx context.Context, id string) (_ *model.Task, err error) {
	defer func(start time.Time) { g.observe("get_task", start, err) }(time.Now())
	return g.next.GetTask(ctx, id)
}

func (g *instrumented) ListTasks(ctx context.Context) (_ []model.Task, err error) {
	defer func(start time.Time) { g.observe("list_tasks", start, err) }(time.Now())
	return g.next.ListTasks(ctx)
}

func (g *instrumented) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (_ *model.Task, err error) {
	defer func(start time.Time) { g.observe("update_task", start, err) }(time.Now())
	return g.next.UpdateTask(ctx, id, patch)
}

func (g *instrumented) DeleteTask(ctx context.Context, id string) (_ bool, err error) {
	defer func(start time.Time) { g.observe("delete_task", start, err) }(time.Now())
	return g.next.DeleteTask(ctx, id)
}

func (g *instrumented) CreateCategory(ctx context.Context, in model.CategoryInput) (_ *model.Category, err error) {
	defer func(start time.Time) { g.observe("create_category", start, err) }(time.Now())
	return g.next.CreateCategory(ctx, in)
}

func (g *instrumented) GetCategory(ctx context.Context, id string) (_ *model.Category, err error) {
	defer func(start time.Time) { g.observe("get_category", start, err) }(time.Now())
	return g.next.GetCategory(ctx, id)
}

func (g *instrumented) ListCategories(ctx context.Context) (_ []model.Category, err error) {
	defer func(start time.Time) { g.observe("list_categories", start, err) }(time.Now())
	return g.next.ListCategories(ctx)
}

func (g *instrumented) UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) (_ *model.Category, err error) {
	defer func(start time.Time) { g.observe("update_category", start, err) }(time.Now())
	return g.next.UpdateCategory(ctx, id, patch)
}

func (g *instrumented) DeleteCategory(ctx context.Context, id string) (_ bool, err error) {
	defer func(start time.Time) { g.observe("delete_category", start, err) }(time.Now())
	return g.next.DeleteCategory(ctx, id)
}

func (g *instrumented) AssignTaskToCategory(ctx context.Context, taskID, categoryID string) (err error) {
	defer func(start time.Time) { g.observe("assign_task", start, err) }(time.Now())
	return g.next.AssignTaskToCategory(ctx, taskID, categoryID)
}

func (g *instrumented) UnassignTask(ctx context.Context, taskID string) (err error) {
	defer func(start time.Time) { g.observe("unassign_task", start, err) }(time.Now())
	return g.next.UnassignTask(ctx, taskID)
}

func (g *instrumented) TasksByCategory(ctx context.Context, categoryID string) (_ []model.Task, err error) {
	defer func(start time.Time) { g.observe("tasks_by_category", start, err) }(time.Now())
	return g.next.TasksByCategory(ctx, categoryID)
}
