package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/imroc/req/v3"
	"go.uber.org/zap"

	customerrors "github.com/axellelanca/shortlinks/internal/errors"
	"github.com/axellelanca/shortlinks/internal/metrics"
	"github.com/axellelanca/shortlinks/internal/repository"
)

// UrlMonitor periodically checks that link targets still answer.
// It keeps the last known state of every link to report transitions only.
type UrlMonitor struct {
	linkRepo    repository.LinkRepository
	interval    time.Duration
	knownStates map[string]bool // link ID -> accessible
	codes       map[string]string
	mu          sync.Mutex
	client      *req.Client
	log         *zap.Logger
	metrics     *metrics.Metrics
}

// NewUrlMonitor creates and returns a new instance of UrlMonitor.
// interval parameter determines how frequently URLs will be checked.
func NewUrlMonitor(linkRepo repository.LinkRepository, interval time.Duration, log *zap.Logger, m *metrics.Metrics) *UrlMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	client := req.C().
		SetTimeout(5 * time.Second).
		SetUserAgent("shortlinks-monitor")

	return &UrlMonitor{
		linkRepo:    linkRepo,
		interval:    interval,
		knownStates: make(map[string]bool),
		codes:       make(map[string]string),
		client:      client,
		log:         log.Named("monitor"),
		metrics:     m,
	}
}

// Start runs a check immediately and then every interval, until ctx is cancelled.
func (m *UrlMonitor) Start(ctx context.Context) {
	m.log.Info("starting URL monitor", zap.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("URL monitor stopped")
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce checks every link target once and logs state changes.
func (m *UrlMonitor) CheckOnce(ctx context.Context) {
	links, err := m.linkRepo.List(ctx)
	if err != nil {
		m.log.Error("failed to retrieve links for monitoring", zap.Error(err))
		return
	}

	seen := make(map[string]bool, len(links))
	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		seen[link.ID] = true

		err := m.check(ctx, link.URL)
		current := err == nil
		if current {
			m.metrics.LinkTargetUp.WithLabelValues(link.Code).Set(1)
		} else {
			m.metrics.LinkTargetUp.WithLabelValues(link.Code).Set(0)
		}

		m.mu.Lock()
		previous, exists := m.knownStates[link.ID]
		m.knownStates[link.ID] = current
		m.codes[link.ID] = link.Code
		m.mu.Unlock()

		fields := []zap.Field{zap.String("code", link.Code), zap.String("url", link.URL), zap.String("state", formatState(current))}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		switch {
		case !exists:
			m.log.Info("initial link state", fields...)
		case current != previous:
			m.log.Warn("link state changed", append(fields, zap.String("previous", formatState(previous)))...)
		}
	}

	// forget deleted links
	m.mu.Lock()
	for id := range m.knownStates {
		if !seen[id] {
			m.metrics.LinkTargetUp.DeleteLabelValues(m.codes[id])
			delete(m.knownStates, id)
			delete(m.codes, id)
		}
	}
	m.mu.Unlock()
}

// State returns the last known state of a link, and whether it was checked.
func (m *UrlMonitor) State(linkID string) (accessible, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	accessible, known = m.knownStates[linkID]
	return
}

// check issues a HEAD request; 2xx and 3xx answers count as accessible.
func (m *UrlMonitor) check(ctx context.Context, url string) error {
	resp, err := m.client.R().SetContext(ctx).Head(url)
	if err != nil {
		return customerrors.ErrURLCheckFailed{URL: url, Reason: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return customerrors.ErrURLCheckFailed{URL: url, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return nil
}

func formatState(accessible bool) string {
	if accessible {
		return "ACCESSIBLE"
	}
	return "INACCESSIBLE"
}
