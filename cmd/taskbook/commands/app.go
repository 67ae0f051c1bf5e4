package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"taskbook/internal/config"
	"taskbook/internal/logger"
	"taskbook/internal/model"
	"taskbook/internal/repository"
	"taskbook/internal/repository/graphstore"
	"taskbook/internal/repository/sqlstore"
	"taskbook/internal/service"
)

// app carries everything a command needs once the store is loaded.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store *service.Store
	reg   *prometheus.Registry
	loc   *time.Location
}

func openGateway(cfg *config.Config, log *logger.Logger) repository.Gateway {
	if cfg.Backend == config.BackendSQLite {
		return sqlstore.New(cfg.SQLite.Path, log)
	}
	if cfg.Neo4j.UsesDefaultCredentials() {
		log.Warnw("using built-in neo4j credentials; set NEO4J_USERNAME and NEO4J_PASSWORD", "uri", cfg.Neo4j.URI)
	}
	return graphstore.New(cfg.Neo4j, log)
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	gw := repository.Instrument(openGateway(cfg, log), repository.NewMetrics(reg), log)
	store := service.NewStore(gw, log, model.NewValidator())

	log.Infow("loading store", "backend", cfg.Backend)
	if err := store.Init(ctx); err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("%s (%w)", store.Err(), err)
	}

	return &app{cfg: cfg, log: log, store: store, reg: reg, loc: loc}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.Close(ctx); err != nil {
		a.log.Warnw("close store", "error", err)
	}
	_ = a.log.Close()
}

func (a *app) now() time.Time {
	return time.Now().In(a.loc)
}

type runFunc func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error

// withApp loads the store before fn and releases it afterwards.
func withApp(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a, cmd, args)
	}
}

func (a *app) resolveTask(raw string) (string, error) {
	id, err := a.store.ResolveTask(raw)
	if err != nil {
		return "", idError("task", raw, err)
	}
	return id, nil
}

// resolveCategory accepts an id, an id prefix or an exact name.
func (a *app) resolveCategory(raw string) (string, error) {
	for _, c := range a.store.Categories() {
		if strings.EqualFold(c.Name, strings.TrimSpace(raw)) {
			return c.ID, nil
		}
	}
	id, err := a.store.ResolveCategory(raw)
	if err != nil {
		return "", idError("category", raw, err)
	}
	return id, nil
}

func idError(kind, raw string, err error) error {
	if errors.Is(err, service.ErrAmbiguousID) {
		return fmt.Errorf("%s %q: prefix matches more than one id", kind, raw)
	}
	return fmt.Errorf("%s %q: not found", kind, raw)
}
