// Package workers replays visit accounting that failed on the redirect path.
package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/axellelanca/shortlinks/internal/metrics"
	"github.com/axellelanca/shortlinks/internal/models"
	"github.com/axellelanca/shortlinks/internal/repository"
)

// Config sizes the retry pool.
type Config struct {
	BufferSize  int
	WorkerCount int
	MaxAttempts int

	// InitialInterval is the first backoff delay. Defaults to 200ms.
	InitialInterval time.Duration
}

// VisitRecorder is a pool of workers draining a buffered channel of visit
// events. Each event is replayed through LinkRepository.RecordVisit with
// exponential backoff. The visit ID travels with the event, so a replay of
// an already committed transaction is recognised and never counted twice.
type VisitRecorder struct {
	cfg      Config
	linkRepo repository.LinkRepository
	log      *zap.Logger
	metrics  *metrics.Metrics

	events chan models.VisitEvent
	wg     sync.WaitGroup

	// ctx bounds the backoff sleeps; cancelled when the drain deadline passes.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewVisitRecorder creates the pool. Call Start to launch the workers.
func NewVisitRecorder(cfg Config, linkRepo repository.LinkRepository, log *zap.Logger, m *metrics.Metrics) *VisitRecorder {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &VisitRecorder{
		cfg:      cfg,
		linkRepo: linkRepo,
		log:      log,
		metrics:  m,
		events:   make(chan models.VisitEvent, cfg.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (r *VisitRecorder) Start() {
	r.log.Info("starting visit retry workers", zap.Int("workers", r.cfg.WorkerCount), zap.Int("buffer", r.cfg.BufferSize))
	for i := 0; i < r.cfg.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Enqueue hands an event to the pool without blocking. It returns false,
// and counts the event as dropped, when the buffer is full or the pool is closed.
func (r *VisitRecorder) Enqueue(event models.VisitEvent) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.metrics.VisitRetryDropped.Inc()
		return false
	}
	select {
	case r.events <- event:
		return true
	default:
		r.metrics.VisitRetryDropped.Inc()
		return false
	}
}

// Close stops accepting events and waits for the queued ones to be processed.
// When ctx expires first, pending backoff sleeps are abandoned and the
// remaining events are dropped.
func (r *VisitRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *VisitRecorder) worker(id int) {
	defer r.wg.Done()
	for event := range r.events {
		r.process(id, event)
	}
}

func (r *VisitRecorder) process(id int, event models.VisitEvent) {
	log := r.log.With(
		zap.Int("worker", id),
		zap.String("code", event.Code),
		zap.String("visit_id", event.VisitID))

	attempts := 0
	op := func() error {
		attempts++
		err := r.linkRepo.RecordVisit(r.ctx, event.Visit())
		switch {
		case err == nil, errors.Is(err, repository.ErrVisitAlreadyRecorded):
			return nil
		case errors.Is(err, repository.ErrNotFound):
			return backoff.Permanent(err)
		default:
			log.Warn("visit replay failed", zap.Int("attempt", attempts), zap.Error(err))
			return err
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxAttempts-1)), r.ctx)

	if err := backoff.Retry(op, policy); err != nil {
		r.metrics.VisitRetryDropped.Inc()
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("link deleted before its visit was recorded, dropping")
			return
		}
		log.Error("giving up on visit", zap.Int("attempts", attempts), zap.Error(err))
		return
	}
	log.Info("visit recorded after retry", zap.Int("attempts", attempts))
}
