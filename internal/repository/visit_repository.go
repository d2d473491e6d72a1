package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/axellelanca/shortlinks/internal/models"
)

// VisitRepository gives read access to recorded visits. Visits are only
// written through LinkRepository.RecordVisit.
type VisitRepository interface {
	RecentByLinkID(ctx context.Context, linkID string, limit int) ([]models.Visit, error)
	CountByLinkID(ctx context.Context, linkID string) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// GormVisitRepository est l'implémentation de VisitRepository utilisant GORM.
type GormVisitRepository struct {
	db *gorm.DB
}

// NewVisitRepository crée et retourne une nouvelle instance de GormVisitRepository.
func NewVisitRepository(db *gorm.DB) *GormVisitRepository {
	return &GormVisitRepository{db: db}
}

// RecentByLinkID returns at most limit visits of a link, newest first.
func (r *GormVisitRepository) RecentByLinkID(ctx context.Context, linkID string, limit int) ([]models.Visit, error) {
	visits := make([]models.Visit, 0)
	err := r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("created_at desc").
		Limit(limit).
		Find(&visits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list visits for link %s: %w", linkID, err)
	}
	return visits, nil
}

// CountByLinkID compte le nombre total de visites pour un ID de lien donné.
func (r *GormVisitRepository) CountByLinkID(ctx context.Context, linkID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Visit{}).Where("link_id = ?", linkID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count visits for link %s: %w", linkID, err)
	}
	return count, nil
}

// CountSince counts visits created at or after since, across all links.
func (r *GormVisitRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Visit{}).Where("created_at >= ?", since.UTC()).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count visits since %s: %w", since.Format(time.RFC3339), err)
	}
	return count, nil
}
