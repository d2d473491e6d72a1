package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/axellelanca/shortlinks/internal/cache"
	"github.com/axellelanca/shortlinks/internal/database/dbtest"
	"github.com/axellelanca/shortlinks/internal/metrics"
	"github.com/axellelanca/shortlinks/internal/models"
	"github.com/axellelanca/shortlinks/internal/repository"
)

var testNow = time.Date(2026, 5, 20, 15, 4, 5, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	links    *repository.GormLinkRepository
	visits   *repository.GormVisitRepository
	stats    *repository.GormStatsRepository
	metrics  *metrics.Metrics
	linkSvc  *LinkService
	redirect *RedirectService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{
		db:      db,
		links:   repository.NewLinkRepository(db),
		visits:  repository.NewVisitRepository(db),
		stats:   repository.NewStatsRepository(db),
		metrics: metrics.New(),
	}
	opts = append([]Option{WithMetrics(f.metrics), WithClock(FixedClock{T: testNow})}, opts...)

	var err error
	f.linkSvc, err = NewLinkService(f.links, f.visits, opts...)
	require.NoError(t, err)
	f.redirect, err = NewRedirectService(f.links, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) mustCreate(t *testing.T, url, code string) *models.Link {
	t.Helper()
	link, err := f.linkSvc.CreateLink(context.Background(), url, code)
	require.NoError(t, err)
	return link
}

// memoryCache is an in-process LinkCache.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]cache.Entry)}
}

func (c *memoryCache) Get(_ context.Context, code string) (*cache.Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[code]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (c *memoryCache) Set(_ context.Context, code string, entry cache.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[code] = entry
	return nil
}

func (c *memoryCache) Delete(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
	c.deletes = append(c.deletes, code)
	return nil
}

// recordingQueue keeps every enqueued event.
type recordingQueue struct {
	mu     sync.Mutex
	events []models.VisitEvent
}

func (q *recordingQueue) Enqueue(event models.VisitEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return true
}

// countingRepo counts lookups and can make RecordVisit fail.
type countingRepo struct {
	repository.LinkRepository

	mu          sync.Mutex
	lookups     int
	recordErr   error
	recordCalls int
}

func (r *countingRepo) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	r.mu.Lock()
	r.lookups++
	r.mu.Unlock()
	return r.LinkRepository.GetByCode(ctx, code)
}

func (r *countingRepo) RecordVisit(ctx context.Context, visit *models.Visit) error {
	r.mu.Lock()
	r.recordCalls++
	err := r.recordErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.LinkRepository.RecordVisit(ctx, visit)
}

func strPtr(s string) *string { return &s }
