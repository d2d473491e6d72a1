package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/axellelanca/shortlinks/internal/models"
	"github.com/axellelanca/shortlinks/internal/repository"
)

// StatsService computes the cross-link aggregates on demand.
type StatsService struct {
	statsRepo repository.StatsRepository
	visitRepo repository.VisitRepository
	loc       *time.Location

	log   *zap.Logger
	clock Clock
}

// NewStatsService builds the aggregator. loc fixes the midnight boundary of
// clicksToday; nil means the server's local time zone.
func NewStatsService(statsRepo repository.StatsRepository, visitRepo repository.VisitRepository, loc *time.Location, opts ...Option) (*StatsService, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &StatsService{
		statsRepo: statsRepo,
		visitRepo: visitRepo,
		loc:       loc,
		log:       o.log,
		clock:     o.clock,
	}, nil
}

// Aggregate returns total links, total clicks, clicks since midnight and the
// most clicked link. TopLink is nil when no link has been clicked yet.
// Ties between equally clicked links are broken arbitrarily.
func (s *StatsService) Aggregate(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	since := StartOfDay(s.clock.Now(), s.loc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.statsRepo.CountLinks(gctx)
		if err != nil {
			return storeError(s.log, "count links", err)
		}
		stats.TotalLinks = n
		return nil
	})
	g.Go(func() error {
		n, err := s.statsRepo.SumClicks(gctx)
		if err != nil {
			return storeError(s.log, "sum clicks", err)
		}
		stats.TotalClicks = n
		return nil
	})
	g.Go(func() error {
		n, err := s.visitRepo.CountSince(gctx, since)
		if err != nil {
			return storeError(s.log, "count visits today", err, zap.Time("since", since))
		}
		stats.ClicksToday = n
		return nil
	})
	g.Go(func() error {
		top, err := s.statsRepo.TopLink(gctx)
		if err != nil {
			return storeError(s.log, "find top link", err)
		}
		stats.TopLink = top
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
