package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axellelanca/shortlinks/internal/database/dbtest"
	"github.com/axellelanca/shortlinks/internal/metrics"
	"github.com/axellelanca/shortlinks/internal/models"
	"github.com/axellelanca/shortlinks/internal/repository"
)

func TestUrlMonitor_CheckOnce(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch {
		case r.URL.Path == "/moved":
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
		case healthy.Load():
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	repo := repository.NewLinkRepository(dbtest.Open(t))
	up := &models.Link{ID: uuid.NewString(), Code: "upup12", URL: srv.URL + "/ok", CreatedAt: time.Now().UTC()}
	moved := &models.Link{ID: uuid.NewString(), Code: "moved1", URL: srv.URL + "/moved", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, up))
	require.NoError(t, repo.Create(ctx, moved))

	m := metrics.New()
	mon := NewUrlMonitor(repo, time.Minute, nil, m)

	mon.CheckOnce(ctx)
	state, known := mon.State(up.ID)
	assert.True(t, known)
	assert.True(t, state)
	state, _ = mon.State(moved.ID)
	assert.True(t, state, "redirects count as accessible")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LinkTargetUp.WithLabelValues("upup12")))

	healthy.Store(false)
	mon.CheckOnce(ctx)
	state, _ = mon.State(up.ID)
	assert.False(t, state)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LinkTargetUp.WithLabelValues("upup12")))

	require.NoError(t, repo.DeleteByCode(ctx, "upup12"))
	mon.CheckOnce(ctx)
	_, known = mon.State(up.ID)
	assert.False(t, known, "deleted links are forgotten")
}

func TestUrlMonitor_Unreachable(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLinkRepository(dbtest.Open(t))
	link := &models.Link{ID: uuid.NewString(), Code: "dead12", URL: "http://127.0.0.1:1/", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, link))

	mon := NewUrlMonitor(repo, time.Minute, nil, nil)
	mon.CheckOnce(ctx)

	state, known := mon.State(link.ID)
	assert.True(t, known)
	assert.False(t, state)
}

func TestUrlMonitor_StartStopsOnCancel(t *testing.T) {
	repo := repository.NewLinkRepository(dbtest.Open(t))
	mon := NewUrlMonitor(repo, 10*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mon.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
