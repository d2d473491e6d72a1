package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/axellelanca/shortlinks/cmd"
	"github.com/axellelanca/shortlinks/internal/api"
	"github.com/axellelanca/shortlinks/internal/cache"
	"github.com/axellelanca/shortlinks/internal/config"
	"github.com/axellelanca/shortlinks/internal/database"
	"github.com/axellelanca/shortlinks/internal/logger"
	"github.com/axellelanca/shortlinks/internal/metrics"
	"github.com/axellelanca/shortlinks/internal/monitor"
	"github.com/axellelanca/shortlinks/internal/repository"
	"github.com/axellelanca/shortlinks/internal/services"
	"github.com/axellelanca/shortlinks/internal/workers"
)

// RunServerCmd représente la commande 'run-server' de Cobra.
// C'est le point d'entrée pour lancer le serveur de l'application.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Lance le serveur API de raccourcissement d'URLs et les processus de fond.",
	Long: `Cette commande initialise la base de données, configure les APIs,
démarre les workers de reprise des visites et le moniteur d'URLs,
puis lance le serveur HTTP.`,
	Args: cobra.NoArgs,
	Run: func(c *cobra.Command, args []string) {
		os.Exit(run(cmd.Cfg))
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}

// run starts every component, blocks until SIGINT or SIGTERM and returns the exit code.
func run(cfg *config.Config) int {
	log, err := logger.New(cfg.Log, "shortlinks")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to build logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	// Initialiser la base de données
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Error("failed to open database", zap.Error(err))
		return 1
	}
	if err := database.Migrate(db); err != nil {
		log.Error("failed to migrate database", zap.Error(err))
		_ = database.Close(db)
		return 1
	}

	m := metrics.New()
	opts := []services.Option{services.WithLogger(log), services.WithMetrics(m)}

	var linkCache *cache.RedisCache
	if cfg.Cache.Enabled() {
		client, err := cache.NewRedisClient(context.Background(), cfg.Cache)
		if err != nil {
			log.Error("failed to connect to redis", zap.Error(err))
			_ = database.Close(db)
			return 1
		}
		linkCache = cache.New(client, cfg.Cache.Prefix, cfg.Cache.TTL)
		opts = append(opts, services.WithCache(linkCache))
		log.Info("redis lookup cache enabled", zap.String("addr", cfg.Cache.RedisAddr))
	}

	// Initialiser les repositories
	linkRepo := repository.NewLinkRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	// Workers de reprise des visites dont la transaction a échoué
	recorder := workers.NewVisitRecorder(workers.Config{
		BufferSize:  cfg.Analytics.RetryBufferSize,
		WorkerCount: cfg.Analytics.RetryWorkerCount,
		MaxAttempts: cfg.Analytics.RetryMaxAttempts,
	}, linkRepo, log, m)
	recorder.Start()
	opts = append(opts, services.WithVisitQueue(recorder))

	svc, err := buildServices(cfg, linkRepo, visitRepo, statsRepo, opts)
	if err != nil {
		log.Error("failed to build services", zap.Error(err))
		_ = recorder.Close(context.Background())
		_ = database.Close(db)
		return 1
	}

	// Moniteur d'URLs, arrêté par l'annulation de son contexte
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	monitorDone := make(chan struct{})
	if interval := cfg.Monitor.Interval(); interval > 0 {
		urlMonitor := monitor.NewUrlMonitor(linkRepo, interval, log, m)
		go func() {
			defer close(monitorDone)
			urlMonitor.Start(monitorCtx)
		}()
	} else {
		close(monitorDone)
		log.Info("URL monitor disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(svc, m, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("addr", srv.Addr), zap.String("base_url", cfg.Server.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
			serverErr <- err
		}
	}()

	stop := func(ctx context.Context) error {
		return shutdown(ctx, log, srv, stopMonitor, monitorDone, recorder, linkCache, db)
	}

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"shortlinks": func(ctx context.Context) error {
				log.Info("shutdown signal received")
				return stop(ctx)
			},
		},
	)

	select {
	case exitCode := <-wait:
		log.Info("server stopped", zap.Int("exit_code", exitCode))
		return exitCode
	case <-serverErr:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = stop(ctx)
		return 1
	}
}

func buildServices(cfg *config.Config, linkRepo repository.LinkRepository, visitRepo repository.VisitRepository,
	statsRepo repository.StatsRepository, opts []services.Option) (api.Services, error) {
	loc, err := cfg.Analytics.Location()
	if err != nil {
		return api.Services{}, err
	}

	links, err := services.NewLinkService(linkRepo, visitRepo, opts...)
	if err != nil {
		return api.Services{}, err
	}
	redirect, err := services.NewRedirectService(linkRepo, opts...)
	if err != nil {
		return api.Services{}, err
	}
	stats, err := services.NewStatsService(statsRepo, visitRepo, loc, opts...)
	if err != nil {
		return api.Services{}, err
	}
	return api.Services{Links: links, Redirect: redirect, Stats: stats}, nil
}

// shutdown stops the components in reverse dependency order: HTTP server,
// monitor, retry queue, cache, database. Every step runs even if an earlier one failed.
func shutdown(ctx context.Context, log *zap.Logger, srv *http.Server, stopMonitor context.CancelFunc,
	monitorDone <-chan struct{}, recorder *workers.VisitRecorder, linkCache *cache.RedisCache, db *gorm.DB) error {
	var errs []error

	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	log.Info("HTTP server stopped")

	stopMonitor()
	select {
	case <-monitorDone:
	case <-ctx.Done():
	}

	if err := recorder.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("visit retry queue: %w", err))
	}
	log.Info("visit retry queue drained")

	if linkCache != nil {
		if err := linkCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	if err := database.Close(db); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	log.Info("database closed")

	return errors.Join(errs...)
}
