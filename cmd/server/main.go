package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vedran77/dmchat/internal/config"
	"github.com/vedran77/dmchat/internal/database"
	"github.com/vedran77/dmchat/internal/logger"
	"github.com/vedran77/dmchat/internal/metrics"
	postgresrepo "github.com/vedran77/dmchat/internal/repository/postgres"
	redisrepo "github.com/vedran77/dmchat/internal/repository/redis"
	"github.com/vedran77/dmchat/internal/service"
	"github.com/vedran77/dmchat/internal/transport/http/handlers"
	"github.com/vedran77/dmchat/internal/transport/ws"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	if cfg.RunMigrations {
		if err := database.RunMigrations(cfg.DatabaseURL()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database migrations applied")
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("connected to database")

	// Offline queue
	rdb, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("configuring redis: %w", err)
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	log.Info("connected to redis")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)
	offlineQueue := redisrepo.NewOfflineQueue(rdb)

	// Real-time hub
	hub := ws.NewHub(userRepo, messageRepo, offlineQueue, collector, log)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	userService := service.NewUserService(userRepo)
	messageService := service.NewMessageService(messageRepo, userRepo)
	messageService.SetNotifier(ws.NewHubNotifier(hub))

	router := handlers.NewRouter(&handlers.RouterDeps{
		Logger:     log,
		CORSOrigin: cfg.CORSOrigin,
		Resolver:   authService,
		Auth:       authService,
		Users:      userService,
		Presence:   hub,
		Messages:   messageService,
		WS: ws.ServeWS(hub, authService, ws.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			FrameRate:      cfg.FrameRate,
			FrameBurst:     cfg.FrameBurst,
		}),
	})

	apiServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{apiServer, metricsServer} {
		g.Go(func() error {
			log.Info("server starting", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listening on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Shutdown does not track hijacked WebSocket connections; Drain waits
		// for their finalizers so presence is persisted before the pool closes.
		return errors.Join(
			apiServer.Shutdown(shutdownCtx),
			hub.Drain(shutdownCtx, "server shutting down"),
			metricsServer.Shutdown(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}
