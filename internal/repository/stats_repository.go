package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/axellelanca/shortlinks/internal/models"
)

// StatsRepository runs the aggregate queries over links.
type StatsRepository interface {
	CountLinks(ctx context.Context) (int64, error)
	SumClicks(ctx context.Context) (int64, error)
	TopLink(ctx context.Context) (*models.TopLink, error)
}

type GormStatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) *GormStatsRepository {
	return &GormStatsRepository{db: db}
}

func (r *GormStatsRepository) CountLinks(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Link{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// SumClicks returns 0 on an empty table.
func (r *GormStatsRepository) SumClicks(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Link{}).Select("COALESCE(SUM(clicks), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum clicks: %w", err)
	}
	return total, nil
}

// TopLink returns one of the links with the most clicks, or nil when no link
// has been clicked yet. Ties are not broken in any particular order.
func (r *GormStatsRepository) TopLink(ctx context.Context) (*models.TopLink, error) {
	var links []models.Link
	err := r.db.WithContext(ctx).
		Select("code", "clicks").
		Where("clicks > 0").
		Order("clicks desc").
		Limit(1).
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find top link: %w", err)
	}
	if len(links) == 0 {
		return nil, nil
	}
	return &models.TopLink{Code: links[0].Code, Clicks: links[0].Clicks}, nil
}
