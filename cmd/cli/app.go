package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/axellelanca/shortlinks/cmd"
	"github.com/axellelanca/shortlinks/internal/cache"
	"github.com/axellelanca/shortlinks/internal/database"
	"github.com/axellelanca/shortlinks/internal/logger"
	"github.com/axellelanca/shortlinks/internal/repository"
	"github.com/axellelanca/shortlinks/internal/services"
)

// app holds what a CLI command needs to work directly on the Store.
type app struct {
	db    *gorm.DB
	log   *zap.Logger
	cache *cache.RedisCache
	links *services.LinkService
	stats *services.StatsService
}

// openApp connects to the configured database and builds the services.
// Only errors are logged so command output stays readable.
func openApp() (*app, error) {
	cfg := cmd.Cfg

	logCfg := cfg.Log
	logCfg.Level = "error"
	log, err := logger.New(logCfg, "shortlinks-cli")
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Analytics.Location()
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	a := &app{db: db, log: log}
	opts := []services.Option{services.WithLogger(log)}

	// deletes made here must not leave stale entries behind for the server
	if cfg.Cache.Enabled() {
		client, err := cache.NewRedisClient(context.Background(), cfg.Cache)
		if err != nil {
			log.Error("redis unavailable, cached links will expire on their own", zap.Error(err))
		} else {
			a.cache = cache.New(client, cfg.Cache.Prefix, cfg.Cache.TTL)
			opts = append(opts, services.WithCache(a.cache))
		}
	}

	linkRepo := repository.NewLinkRepository(db)
	visitRepo := repository.NewVisitRepository(db)

	if a.links, err = services.NewLinkService(linkRepo, visitRepo, opts...); err != nil {
		a.Close()
		return nil, err
	}
	if a.stats, err = services.NewStatsService(repository.NewStatsRepository(db), visitRepo, loc, opts...); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if err := database.Close(a.db); err != nil {
		a.log.Error("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

func shortURL(code string) string {
	return fmt.Sprintf("%s/%s", cmd.Cfg.Server.BaseURL, code)
}
