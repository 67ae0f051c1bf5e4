package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"taskbook/internal/bot"
	"taskbook/internal/server"
	"taskbook/internal/service"
)

// NewBotCommand runs the Telegram bot until interrupted.
func NewBotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long:  "Run the Telegram bot with periodic store refresh and, when enabled, the metrics endpoint",
		Args:  cobra.NoArgs,
		RunE:  withApp(runBot),
	}
}

func runBot(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	if a.cfg.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	telegramBot, err := bot.New(a.cfg, a.store, a.log)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	if interval := a.cfg.Refresh.Interval; interval > 0 {
		scheduler := service.NewSchedulerService(a.loc, a.log)
		if _, err := scheduler.ScheduleRefresh(a.store, interval); err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Metrics.Enabled {
		srv := server.New(a.reg, a.store, a.log)
		g.Go(func() error {
			return srv.Start(a.cfg.Metrics.Port)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return telegramBot.Start(ctx)
	})

	a.log.Info("taskbook bot started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}
