package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Orbit/internal/adapters/http"
	"github.com/dkeye/Orbit/internal/app"
	"github.com/dkeye/Orbit/internal/app/orch"
	"github.com/dkeye/Orbit/internal/config"
	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/engine/memory"
	"github.com/dkeye/Orbit/internal/engine/pion"
	"github.com/dkeye/Orbit/internal/metrics"
)

func newEngine(cfg config.MediaConfig) core.MediaEngine {
	if cfg.Engine == "memory" {
		log.Warn().Str("module", "main").Msg("using in-memory media engine, no media will flow")
		return memory.NewEngine()
	}
	return pion.NewEngine(pion.Config{
		MinPort:     cfg.RTCMinPort,
		MaxPort:     cfg.RTCMaxPort,
		ListenIP:    cfg.ListenIP,
		AnnouncedIP: cfg.AnnouncedIP,
		ICEServers:  cfg.ICEServers,
	})
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	// A dead worker takes its routers down with it. main exits non-zero after
	// the grace delay so a supervisor restarts it with a clean pool.
	died := make(chan error, 1)
	pool := app.NewMediaPool(newEngine(cfg.Media), func(workerID int, err error) {
		log.Error().Err(err).Str("module", "main").Int("worker", workerID).Msg("media worker died")
		select {
		case died <- fmt.Errorf("worker %d: %w", workerID, err):
		default:
		}
	})
	if err := pool.Initialize(ctx, cfg.Media.Workers); err != nil {
		log.Fatal().Err(err).Msg("failed to start media workers")
	}

	rooms := app.NewRoomManager(pool)
	o := orch.New(
		app.NewRegistry(app.PolicyFor(cfg.SlowConsumer)),
		rooms,
		pool,
		app.NewJoinRateLimiter(cfg.Calls.JoinRateLimit, cfg.Calls.JoinRateInterval),
		orch.Options{
			AllowAnonymous:         cfg.Calls.AllowAnonymous,
			RequireMembership:      cfg.Calls.RequireMembership,
			EnforceDirection:       cfg.Calls.EnforceDirection,
			MaxIncomingBitrate:     cfg.Media.MaxIncomingBitrate,
			InitialOutgoingBitrate: cfg.Media.InitialOutgoingBitrate,
		},
	)

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("failed to listen")
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	log.Info().Str("addr", addr).Int("workers", cfg.Media.Workers).Msg("Orbit server started")
	err = serve(ctx, srv, ln, died, cfg.Media.WorkerDeathGrace)
	rooms.CloseAll()
	pool.Close()
	if err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

var errWorkerDied = errors.New("media worker died")

// serve runs srv on ln until ctx ends or a worker death arrives on died. A
// death is returned as errWorkerDied once grace has passed and the server is
// shut down.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, died <-chan error, grace time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		var cause error
		select {
		case <-gctx.Done():
		case err := <-died:
			cause = fmt.Errorf("%w: %w", errWorkerDied, err)
			log.Error().Err(err).Str("module", "main").Dur("grace", grace).Msg("exiting after grace delay")
			time.Sleep(grace)
		}
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && cause == nil {
			return err
		}
		return cause
	})
	return g.Wait()
}
