package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"taskbook/internal/logger"
	"taskbook/internal/model"
)

// stubGateway answers the calls under test and panics on the rest.
type stubGateway struct {
	Gateway
	connectErr error
	assignErr  error
}

func (s stubGateway) Connect(context.Context) error { return s.connectErr }

func (s stubGateway) GetTask(context.Context, string) (*model.Task, error) { return nil, nil }

func (s stubGateway) AssignTaskToCategory(context.Context, string, string) error {
	return s.assignErr
}

func TestInstrumentCountsOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	gw := Instrument(stubGateway{
		connectErr: &ConnectionError{Target: "neo4j://nowhere", Err: errors.New("refused")},
		assignErr:  &NotFoundError{Kind: "category", ID: "c1"},
	}, NewMetrics(reg), logger.Nop())

	ctx := context.Background()
	var conn *ConnectionError
	if err := gw.Connect(ctx); !errors.As(err, &conn) {
		t.Fatalf("connect error changed by the wrapper: %v", err)
	}
	if task, err := gw.GetTask(ctx, "t1"); task != nil || err != nil {
		t.Fatalf("GetTask = %v, %v", task, err)
	}
	if err := gw.AssignTaskToCategory(ctx, "t1", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("assign error changed by the wrapper: %v", err)
	}

	tests := []struct {
		op, outcome string
	}{
		{"connect", "connection_error"},
		{"get_task", "ok"},
		{"assign_task", "not_found"},
	}
	counts := gatherOps(t, reg)
	for _, tt := range tests {
		if got := counts[tt.op+"/"+tt.outcome]; got != 1 {
			t.Fatalf("%s/%s counter = %v, want 1", tt.op, tt.outcome, got)
		}
	}
}

func gatherOps(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "taskbook_gateway_operations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out[labels["op"]+"/"+labels["outcome"]] = metric.GetCounter().GetValue()
		}
	}
	return out
}

func TestWrapKeepsTaxonomy(t *testing.T) {
	t.Parallel()

	if Wrap("noop", nil) != nil {
		t.Fatalf("Wrap(nil) must be nil")
	}
	nf := &NotFoundError{Kind: "task", ID: "t1"}
	if got := Wrap("update task", nf); got != error(nf) {
		t.Fatalf("NotFoundError rewrapped: %v", got)
	}

	cause := errors.New("disk full")
	var be *BackendError
	if err := Wrap("create task", cause); !errors.As(err, &be) || be.Op != "create task" || !errors.Is(err, cause) {
		t.Fatalf("Wrap = %v", err)
	}
}
