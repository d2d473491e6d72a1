package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customerrors "github.com/axellelanca/shortlinks/internal/errors"
	"github.com/axellelanca/shortlinks/internal/models"
	"github.com/axellelanca/shortlinks/internal/shortcode"
)

func TestCreateLink_GeneratedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.linkSvc.CreateLink(ctx, "https://example.com/some/long/path?q=1", "")
	require.NoError(t, err)

	assert.True(t, shortcode.ValidateFormat(link.Code), "code %q", link.Code)
	assert.NotEmpty(t, link.ID)
	assert.Zero(t, link.Clicks)
	assert.Nil(t, link.LastClickedAt)
	assert.True(t, testNow.Equal(link.CreatedAt))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LinksCreated))

	// round trip
	details, err := f.linkSvc.GetLink(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/some/long/path?q=1", details.URL)
	assert.Equal(t, link.Code, details.Code)
	assert.Empty(t, details.Visits)
}

func TestCreateLink_CustomCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	link, err := f.linkSvc.CreateLink(ctx, "http://example.com", "MyCode1")
	require.NoError(t, err)
	assert.Equal(t, "MyCode1", link.Code)

	_, err = f.linkSvc.CreateLink(ctx, "http://example.org", "MyCode1")
	assert.ErrorIs(t, err, customerrors.ErrConflict)

	// codes are case sensitive
	_, err = f.linkSvc.CreateLink(ctx, "http://example.org", "mycode1")
	assert.NoError(t, err)
}

func TestCreateLink_InvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		url  string
		code string
		want error
	}{
		{"empty url", "", "", customerrors.ErrURLRequired},
		{"ftp scheme", "ftp://example.com", "", customerrors.ErrInvalidURL},
		{"not a url", "not-a-url", "", customerrors.ErrInvalidURL},
		{"relative path", "/just/a/path", "", customerrors.ErrInvalidURL},
		{"missing host", "http://", "", customerrors.ErrInvalidURL},
		{"javascript", "javascript:alert(1)", "", customerrors.ErrInvalidURL},
		{"code too short", "https://example.com", "abc", customerrors.ErrInvalidShortCode},
		{"code too long", "https://example.com", "abcdefghi", customerrors.ErrInvalidShortCode},
		{"code with symbol", "https://example.com", "abc-12", customerrors.ErrInvalidShortCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.linkSvc.CreateLink(context.Background(), tt.url, tt.code)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, customerrors.ErrInvalidInput)
		})
	}

	links, err := f.linkSvc.ListLinks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestCreateLink_URLSchemeCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	_, err := f.linkSvc.CreateLink(context.Background(), "HTTPS://Example.com/x", "")
	assert.NoError(t, err)
}

func TestCreateLink_CollisionRetries(t *testing.T) {
	gen := shortcode.NewSequenceGenerator("taken1", "apiAB1", "free12")
	f := newFixture(t, WithGenerator(gen))
	f.mustCreate(t, "https://example.com/a", "taken1")

	link, err := f.linkSvc.CreateLink(context.Background(), "https://example.com/b", "")
	require.NoError(t, err)
	assert.Equal(t, "free12", link.Code)
	assert.Equal(t, 3, gen.Calls(), "collision and reserved prefix both consume an attempt")
}

func TestCreateLink_ExhaustedRetries(t *testing.T) {
	gen := shortcode.NewSequenceGenerator("taken1")
	f := newFixture(t, WithGenerator(gen))
	f.mustCreate(t, "https://example.com/a", "taken1")

	_, err := f.linkSvc.CreateLink(context.Background(), "https://example.com/b", "")
	assert.ErrorIs(t, err, customerrors.ErrExhaustedRetries)
	assert.Equal(t, MaxGenerateAttempts, gen.Calls())

	links, err := f.linkSvc.ListLinks(context.Background())
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestCreateLink_ConcurrentSameCustomCode(t *testing.T) {
	f := newFixture(t)
	const writers = 10

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.linkSvc.CreateLink(context.Background(), fmt.Sprintf("https://example.com/%d", i), "race123")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, customerrors.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
}

func TestGetLink_RecentVisits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	link := f.mustCreate(t, "https://example.com", "visits1")

	for i := 0; i < RecentVisitsLimit+5; i++ {
		v := &models.Visit{
			ID:        uuid.NewString(),
			LinkID:    link.ID,
			Referer:   strPtr(fmt.Sprintf("https://ref.example/%d", i)),
			CreatedAt: testNow.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, f.links.RecordVisit(ctx, v))
	}

	details, err := f.linkSvc.GetLink(ctx, "visits1")
	require.NoError(t, err)
	require.Len(t, details.Visits, RecentVisitsLimit)
	assert.Equal(t, int64(RecentVisitsLimit+5), details.Clicks)
	assert.Equal(t, "https://ref.example/104", *details.Visits[0].Referer)
	for i := 1; i < len(details.Visits); i++ {
		assert.False(t, details.Visits[i].CreatedAt.After(details.Visits[i-1].CreatedAt), "newest first")
	}

	_, err = f.linkSvc.GetLink(ctx, "nope123")
	assert.ErrorIs(t, err, customerrors.ErrNotFound)
}

func TestListLinks_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, code := range []string{"first1", "second", "third3"} {
		svc, err := NewLinkService(f.links, f.visits, WithClock(FixedClock{T: testNow.Add(time.Duration(i) * time.Hour)}))
		require.NoError(t, err)
		_, err = svc.CreateLink(ctx, "https://example.com/"+code, code)
		require.NoError(t, err)
	}

	links, err := f.linkSvc.ListLinks(ctx)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "third3", links[0].Code)
	assert.Equal(t, "second", links[1].Code)
	assert.Equal(t, "first1", links[2].Code)
}

func TestDeleteLink_Cascades(t *testing.T) {
	c := newMemoryCache()
	f := newFixture(t, WithCache(c))
	ctx := context.Background()
	link := f.mustCreate(t, "https://example.com", "gone123")

	for i := 0; i < 3; i++ {
		_, err := f.redirect.Resolve(ctx, "gone123", models.RequestMetadata{})
		require.NoError(t, err)
	}

	require.NoError(t, f.linkSvc.DeleteLink(ctx, "gone123"))

	_, err := f.linkSvc.GetLink(ctx, "gone123")
	assert.ErrorIs(t, err, customerrors.ErrNotFound)

	n, err := f.visits.CountByLinkID(ctx, link.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, found, _ := c.Get(ctx, "gone123")
	assert.False(t, found, "cache invalidated")

	assert.ErrorIs(t, f.linkSvc.DeleteLink(ctx, "gone123"), customerrors.ErrNotFound)
}

func TestLinkService_StoreFailureIsHidden(t *testing.T) {
	f := newFixture(t)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.linkSvc.CreateLink(context.Background(), "https://example.com", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, customerrors.ErrStoreUnavailable)
	assert.NotContains(t, err.Error(), "sql")

	var storeErr *customerrors.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Error(t, storeErr.Cause)

	_, err = f.linkSvc.ListLinks(context.Background())
	assert.ErrorIs(t, err, customerrors.ErrStoreUnavailable)
}
