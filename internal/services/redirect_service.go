package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/axellelanca/shortlinks/internal/cache"
	customerrors "github.com/axellelanca/shortlinks/internal/errors"
	"github.com/axellelanca/shortlinks/internal/metrics"
	"github.com/axellelanca/shortlinks/internal/models"
	"github.com/axellelanca/shortlinks/internal/repository"
	"github.com/axellelanca/shortlinks/internal/shortcode"
)

// RedirectService resolves short codes to their target and accounts for the visit.
type RedirectService struct {
	linkRepo repository.LinkRepository

	log     *zap.Logger
	metrics *metrics.Metrics
	clock   Clock
	cache   LinkCache
	queue   VisitQueue
}

func NewRedirectService(linkRepo repository.LinkRepository, opts ...Option) (*RedirectService, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &RedirectService{
		linkRepo: linkRepo,
		log:      o.log,
		metrics:  o.metrics,
		clock:    o.clock,
		cache:    o.cache,
		queue:    o.queue,
	}, nil
}

// Resolve returns the target URL of code and records the visit.
//
// Paths that cannot be link codes are answered with ErrNotFound without
// touching the Store, exactly like unknown codes. The click counter and the
// visit row are written in one transaction; when it fails the redirect still
// succeeds and the visit is handed to the retry queue.
func (s *RedirectService) Resolve(ctx context.Context, code string, meta models.RequestMetadata) (string, error) {
	if !shortcode.Resolvable(code) {
		s.metrics.Redirects.WithLabelValues(metrics.OutcomeRejected).Inc()
		return "", customerrors.ErrNotFound
	}

	entry, err := s.lookup(ctx, code)
	if err != nil {
		if errors.Is(err, customerrors.ErrNotFound) {
			s.metrics.Redirects.WithLabelValues(metrics.OutcomeMiss).Inc()
		}
		return "", err
	}

	event := models.VisitEvent{
		LinkID:    entry.LinkID,
		Code:      code,
		VisitID:   uuid.NewString(),
		Timestamp: s.clock.Now().UTC(),
		Metadata:  meta,
	}

	// The visit is recorded even if the client has gone away.
	recordCtx := context.WithoutCancel(ctx)
	if err := s.linkRepo.RecordVisit(recordCtx, event.Visit()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// deleted between lookup and accounting
			s.invalidate(recordCtx, code)
			s.metrics.Redirects.WithLabelValues(metrics.OutcomeMiss).Inc()
			return "", customerrors.ErrNotFound
		}
		s.metrics.VisitRecordFailures.Inc()
		s.log.Error("failed to record visit, redirecting anyway",
			zap.String("code", code),
			zap.String("visit_id", event.VisitID),
			zap.Error(err))
		switch {
		case s.queue == nil:
			s.metrics.VisitRetryDropped.Inc()
			s.log.Warn("no retry queue, visit dropped", zap.String("code", code), zap.String("visit_id", event.VisitID))
		case !s.queue.Enqueue(event):
			s.log.Warn("retry queue full, visit dropped", zap.String("code", code), zap.String("visit_id", event.VisitID))
		}
	}

	s.metrics.Redirects.WithLabelValues(metrics.OutcomeHit).Inc()
	return entry.URL, nil
}

// lookup finds the link behind code, through the cache when one is configured.
// Cache failures fall through to the Store.
func (s *RedirectService) lookup(ctx context.Context, code string) (*cache.Entry, error) {
	if s.cache != nil {
		entry, found, err := s.cache.Get(ctx, code)
		if err != nil {
			s.log.Warn("cache lookup failed", zap.String("code", code), zap.Error(err))
		} else if found {
			return entry, nil
		}
	}

	link, err := s.linkRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, customerrors.ErrNotFound
		}
		return nil, storeError(s.log, "resolve link", err, zap.String("code", code))
	}

	entry := &cache.Entry{LinkID: link.ID, URL: link.URL}
	if s.cache != nil {
		if err := s.cache.Set(ctx, code, *entry); err != nil {
			s.log.Warn("failed to cache link", zap.String("code", code), zap.Error(err))
		}
	}
	return entry, nil
}

func (s *RedirectService) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.log.Warn("failed to invalidate cached link", zap.String("code", code), zap.Error(err))
	}
}
