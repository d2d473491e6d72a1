// Package services contains the business logic layer of the URL shortener:
// the link registry, the redirect resolver and the statistics aggregator.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	customerrors "github.com/axellelanca/shortlinks/internal/errors"
	"github.com/axellelanca/shortlinks/internal/metrics"
	"github.com/axellelanca/shortlinks/internal/models"
	"github.com/axellelanca/shortlinks/internal/repository"
	"github.com/axellelanca/shortlinks/internal/shortcode"
)

// MaxGenerateAttempts bounds the number of random candidates tried before
// CreateLink gives up with ErrExhaustedRetries.
const MaxGenerateAttempts = 10

// RecentVisitsLimit is the number of visits returned with a single link.
const RecentVisitsLimit = 100

// LinkService provides business logic methods for managing shortened links.
// It acts as an intermediary between the HTTP handlers and the data repositories.
type LinkService struct {
	linkRepo  repository.LinkRepository
	visitRepo repository.VisitRepository

	log       *zap.Logger
	metrics   *metrics.Metrics
	clock     Clock
	cache     LinkCache
	generator shortcode.Generator
}

// NewLinkService creates and returns a new instance of LinkService.
// Without options it logs nowhere, uses the system clock and random codes.
func NewLinkService(linkRepo repository.LinkRepository, visitRepo repository.VisitRepository, opts ...Option) (*LinkService, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &LinkService{
		linkRepo:  linkRepo,
		visitRepo: visitRepo,
		log:       o.log,
		metrics:   o.metrics,
		clock:     o.clock,
		cache:     o.cache,
		generator: o.generator,
	}, nil
}

// validateURL accepts absolute http and https URLs with a host.
func validateURL(raw string) error {
	if raw == "" {
		return customerrors.ErrURLRequired
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return customerrors.ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return customerrors.ErrInvalidURL
	}
	return nil
}

// CreateLink creates a new shortened link.
// Parameters:
//   - longURL: the target URL, absolute http or https
//   - customCode: the requested code, or "" to generate one
//
// Returns:
//   - *models.Link: the created link
//   - error: ErrInvalidInput, ErrConflict, ErrExhaustedRetries or a StoreError
func (s *LinkService) CreateLink(ctx context.Context, longURL, customCode string) (*models.Link, error) {
	if err := validateURL(longURL); err != nil {
		return nil, err
	}

	var code string
	if customCode != "" {
		if !shortcode.ValidateFormat(customCode) {
			return nil, customerrors.ErrInvalidShortCode
		}
		exists, err := s.linkRepo.ExistsByCode(ctx, customCode)
		if err != nil {
			return nil, storeError(s.log, "check custom code", err, zap.String("code", customCode))
		}
		if exists {
			return nil, customerrors.ErrConflict
		}
		code = customCode
	} else {
		generated, err := s.generateUniqueCode(ctx)
		if err != nil {
			return nil, err
		}
		code = generated
	}

	link := &models.Link{
		ID:        uuid.NewString(),
		Code:      code,
		URL:       longURL,
		Clicks:    0,
		CreatedAt: s.clock.Now().UTC(),
	}

	// The unique index settles races between concurrent creators.
	if err := s.linkRepo.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			s.log.Info("short code taken by a concurrent create", zap.String("code", code))
			return nil, customerrors.ErrConflict
		}
		return nil, storeError(s.log, "create link", err, zap.String("code", code))
	}

	s.metrics.LinksCreated.Inc()
	s.log.Info("link created", zap.String("code", link.Code), zap.String("id", link.ID))
	return link, nil
}

// generateUniqueCode draws candidates until one is free, at most
// MaxGenerateAttempts times. Candidates the redirect path would never
// resolve count as collisions.
func (s *LinkService) generateUniqueCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= MaxGenerateAttempts; attempt++ {
		code := s.generator.Generate()
		if !shortcode.ValidateFormat(code) || !shortcode.Resolvable(code) {
			s.log.Debug("unusable short code candidate", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}

		exists, err := s.linkRepo.ExistsByCode(ctx, code)
		if err != nil {
			return "", storeError(s.log, "check generated code", err, zap.String("code", code))
		}
		if !exists {
			return code, nil
		}
		s.log.Warn("short code collision, retrying",
			zap.String("code", code),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", MaxGenerateAttempts))
	}
	s.log.Error("no free short code found", zap.Int("attempts", MaxGenerateAttempts))
	return "", customerrors.ErrExhaustedRetries
}

// GetLink returns the link and its most recent visits, newest first.
func (s *LinkService) GetLink(ctx context.Context, code string) (*models.LinkDetails, error) {
	link, err := s.linkRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, customerrors.ErrNotFound
		}
		return nil, storeError(s.log, "get link", err, zap.String("code", code))
	}

	visits, err := s.visitRepo.RecentByLinkID(ctx, link.ID, RecentVisitsLimit)
	if err != nil {
		return nil, storeError(s.log, "list visits", err, zap.String("code", code))
	}
	return &models.LinkDetails{Link: *link, Visits: visits}, nil
}

// ListLinks returns every link, newest created first, without visits.
func (s *LinkService) ListLinks(ctx context.Context) ([]models.Link, error) {
	links, err := s.linkRepo.List(ctx)
	if err != nil {
		return nil, storeError(s.log, "list links", err)
	}
	if links == nil {
		links = []models.Link{}
	}
	return links, nil
}

// DeleteLink removes the link and all of its visits.
func (s *LinkService) DeleteLink(ctx context.Context, code string) error {
	if err := s.linkRepo.DeleteByCode(ctx, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return customerrors.ErrNotFound
		}
		return storeError(s.log, "delete link", err, zap.String("code", code))
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, code); err != nil {
			s.log.Warn("failed to invalidate cached link", zap.String("code", code), zap.Error(err))
		}
	}
	s.log.Info("link deleted", zap.String("code", code))
	return nil
}

// storeError logs the raw cause and returns an error that does not carry it.
func storeError(log *zap.Logger, op string, cause error, fields ...zap.Field) error {
	log.Error(fmt.Sprintf("%s failed", op), append(fields, zap.Error(cause))...)
	return customerrors.NewStoreError(op, cause)
}
