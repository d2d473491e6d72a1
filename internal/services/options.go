package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/axellelanca/shortlinks/internal/cache"
	"github.com/axellelanca/shortlinks/internal/metrics"
	"github.com/axellelanca/shortlinks/internal/models"
	"github.com/axellelanca/shortlinks/internal/shortcode"
)

// LinkCache is the lookup cache consulted on the redirect path.
// *cache.RedisCache implements it.
type LinkCache interface {
	Get(ctx context.Context, code string) (*cache.Entry, bool, error)
	Set(ctx context.Context, code string, entry cache.Entry) error
	Delete(ctx context.Context, code string) error
}

// VisitQueue receives visit events whose transaction failed on the redirect path.
// *workers.VisitRecorder implements it.
type VisitQueue interface {
	Enqueue(event models.VisitEvent) bool
}

type options struct {
	log       *zap.Logger
	metrics   *metrics.Metrics
	clock     Clock
	cache     LinkCache
	queue     VisitQueue
	generator shortcode.Generator
}

// Option configures a service.
type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCache enables the lookup cache. A nil cache leaves it disabled.
func WithCache(c LinkCache) Option {
	return func(o *options) { o.cache = c }
}

// WithVisitQueue hands failed visit transactions to q for retry.
func WithVisitQueue(q VisitQueue) Option {
	return func(o *options) { o.queue = q }
}

func WithGenerator(g shortcode.Generator) Option {
	return func(o *options) { o.generator = g }
}

func buildOptions(opts []Option) (*options, error) {
	o := &options{
		log:   zap.NewNop(),
		clock: SystemClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	if o.generator == nil {
		g, err := shortcode.NewRandomGenerator()
		if err != nil {
			return nil, err
		}
		o.generator = g
	}
	return o, nil
}
