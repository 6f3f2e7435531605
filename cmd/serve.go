package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-hunter/internal/config"
	"github.com/spigell/job-hunter/internal/dispatch"
	"github.com/spigell/job-hunter/internal/logger"
	"github.com/spigell/job-hunter/internal/schedule"
	"github.com/spigell/job-hunter/internal/server"
	"github.com/spigell/job-hunter/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled searches and the HTTP trigger until interrupted",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", server.DefaultPort, "http port for liveness and manual triggers")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger()
	defer log.Sync() //nolint:errcheck

	log.Info("starting the job-hunter", zap.String("version", version))

	cfg, err := loadConfig(log)
	if err != nil {
		log.Fatal("loading the config", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	p, err := newPipeline(ctx, cfg, log)
	if errors.Is(err, config.ErrMissingAPIKey) {
		log.Error("scheduler is not started", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api-key in the configuration file"))
		if err := serveIdle(ctx, addr, cfg.Dispatch.QueueSize, log); err != nil {
			log.Fatal("serving", zap.Error(err))
		}
		return
	}
	if err != nil {
		log.Fatal("preparing the pipeline", zap.Error(err))
	}

	lock, err := p.lockReport()
	if err != nil {
		log.Fatal("locking the report log", zap.Error(err))
	}
	defer lock.Unlock() //nolint:errcheck

	sched, err := p.config.BuildSchedule()
	if err != nil {
		log.Fatal("building the schedule", zap.Error(err))
	}

	runner := p.runner(p.notifier)
	dispatcher := dispatch.New(runner.Run, p.config.Dispatch.QueueSize, logger.Named(log, "dispatch"))
	scheduler := schedule.NewScheduler(sched, dispatcher.Submit, logger.Named(log, "schedule"))
	srv := server.New(dispatcher, logger.Named(log, "server"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx, addr) })
	g.Go(func() error {
		// Give the platform time to route traffic before the first outbound call.
		if err := utils.WaitFor(gctx, p.config.Schedule.SettleDelay); err != nil {
			return nil
		}
		p.notifier.Send(gctx, schedule.AliveMessage(sched, time.Now()))
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("serving", zap.Error(err))
	}

	log.Info("exiting", zap.String("reason", "interrupted"))
}

// serveIdle keeps the liveness endpoint up without running any cycle.
func serveIdle(ctx context.Context, addr string, queueSize int, log *zap.Logger) error {
	return idleServer(queueSize, log).Run(ctx, addr)
}

// idleServer answers manual triggers with 503 since nothing consumes the queue.
func idleServer(queueSize int, log *zap.Logger) *server.Server {
	dispatcher := dispatch.New(nil, queueSize, logger.Named(log, "dispatch"))
	dispatcher.Close()

	return server.New(dispatcher, logger.Named(log, "server"))
}
