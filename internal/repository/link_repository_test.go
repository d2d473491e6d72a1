package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/axellelanca/shortlinks/internal/database/dbtest"
	"github.com/axellelanca/shortlinks/internal/models"
)

var baseTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newLink(code string, createdAt time.Time) *models.Link {
	return &models.Link{
		ID:        uuid.NewString(),
		Code:      code,
		URL:       "https://example.com/" + code,
		CreatedAt: createdAt,
	}
}

func newVisit(linkID string, at time.Time) *models.Visit {
	ua := "Mozilla/5.0"
	return &models.Visit{ID: uuid.NewString(), LinkID: linkID, UserAgent: &ua, CreatedAt: at}
}

func TestLinkRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewLinkRepository(dbtest.Open(t))

	link := newLink("abc123", baseTime)
	require.NoError(t, repo.Create(ctx, link))

	byCode, err := repo.GetByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, link.ID, byCode.ID)
	assert.Equal(t, link.URL, byCode.URL)
	assert.Zero(t, byCode.Clicks)
	assert.Nil(t, byCode.LastClickedAt)
	assert.True(t, baseTime.Equal(byCode.CreatedAt))

	byID, err := repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", byID.Code)

	exists, err := repo.ExistsByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByCode(ctx, "zzz999")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.GetByCode(ctx, "zzz999")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkRepository_CreateDuplicateCode(t *testing.T) {
	ctx := context.Background()
	repo := NewLinkRepository(dbtest.Open(t))

	require.NoError(t, repo.Create(ctx, newLink("dup1234", baseTime)))
	err := repo.Create(ctx, newLink("dup1234", baseTime))
	assert.ErrorIs(t, err, ErrDuplicateCode)

	// the first row is untouched
	links, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestLinkRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewLinkRepository(dbtest.Open(t))

	require.NoError(t, repo.Create(ctx, newLink("first11", baseTime)))
	require.NoError(t, repo.Create(ctx, newLink("third33", baseTime.Add(2*time.Hour))))
	require.NoError(t, repo.Create(ctx, newLink("second2", baseTime.Add(time.Hour))))

	links, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, []string{"third33", "second2", "first11"}, []string{links[0].Code, links[1].Code, links[2].Code})
}

func TestLinkRepository_RecordVisit(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewLinkRepository(db)
	visits := NewVisitRepository(db)

	link := newLink("visit01", baseTime)
	require.NoError(t, repo.Create(ctx, link))

	clickedAt := baseTime.Add(time.Minute)
	visit := newVisit(link.ID, clickedAt)
	require.NoError(t, repo.RecordVisit(ctx, visit))

	got, err := repo.GetByCode(ctx, "visit01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Clicks)
	require.NotNil(t, got.LastClickedAt)
	assert.True(t, clickedAt.Equal(*got.LastClickedAt))

	count, err := visits.CountByLinkID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	t.Run("replayed visit is not counted twice", func(t *testing.T) {
		err := repo.RecordVisit(ctx, visit)
		assert.ErrorIs(t, err, ErrVisitAlreadyRecorded)

		got, err := repo.GetByCode(ctx, "visit01")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Clicks, "increment rolled back with the failed insert")
	})

	t.Run("missing link writes nothing", func(t *testing.T) {
		err := repo.RecordVisit(ctx, newVisit(uuid.NewString(), clickedAt))
		assert.ErrorIs(t, err, ErrNotFound)

		var total int64
		require.NoError(t, db.Model(&models.Visit{}).Count(&total).Error)
		assert.Equal(t, int64(1), total)
	})
}

func TestLinkRepository_RecordVisitConcurrent(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewLinkRepository(db)
	visits := NewVisitRepository(db)

	link := newLink("burst01", baseTime)
	require.NoError(t, repo.Create(ctx, link))

	const k = 40
	var wg sync.WaitGroup
	errs := make(chan error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.RecordVisit(ctx, newVisit(link.ID, baseTime.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetByCode(ctx, "burst01")
	require.NoError(t, err)
	assert.Equal(t, int64(k), got.Clicks)

	count, err := visits.CountByLinkID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(k), count)
}

func TestLinkRepository_DeleteByCodeCascades(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewLinkRepository(db)
	visits := NewVisitRepository(db)

	keep := newLink("keep001", baseTime)
	gone := newLink("gone001", baseTime)
	require.NoError(t, repo.Create(ctx, keep))
	require.NoError(t, repo.Create(ctx, gone))
	require.NoError(t, repo.RecordVisit(ctx, newVisit(keep.ID, baseTime)))
	require.NoError(t, repo.RecordVisit(ctx, newVisit(gone.ID, baseTime)))
	require.NoError(t, repo.RecordVisit(ctx, newVisit(gone.ID, baseTime)))

	require.NoError(t, repo.DeleteByCode(ctx, "gone001"))

	_, err := repo.GetByCode(ctx, "gone001")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := visits.CountByLinkID(ctx, gone.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = visits.CountByLinkID(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.ErrorIs(t, repo.DeleteByCode(ctx, "gone001"), ErrNotFound)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.False(t, isDuplicateKey(nil))
	assert.True(t, isDuplicateKey(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKey(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isDuplicateKey(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isDuplicateKey(errors.New("constraint failed: UNIQUE constraint failed: links.code (2067)")))
	assert.False(t, isDuplicateKey(errors.New("database is locked")))
}
