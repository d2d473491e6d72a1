package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/axellelanca/shortlinks/internal/models"
)

// LinkRepository est une interface qui définit les méthodes d'accès aux liens.
type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByCode(ctx context.Context, code string) (*models.Link, error)
	GetByID(ctx context.Context, id string) (*models.Link, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context) ([]models.Link, error)
	DeleteByCode(ctx context.Context, code string) error
	RecordVisit(ctx context.Context, visit *models.Visit) error
}

// GormLinkRepository est l'implémentation de LinkRepository utilisant GORM.
type GormLinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository crée et retourne une nouvelle instance de GormLinkRepository.
func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

// Create insère un nouveau lien. The unique index on code is the final
// arbiter between concurrent creators: the loser gets ErrDuplicateCode.
func (r *GormLinkRepository) Create(ctx context.Context, link *models.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// GetByCode récupère un lien en utilisant son code.
func (r *GormLinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	return r.first(ctx, "code = ?", code)
}

// GetByID récupère un lien en utilisant son identifiant.
func (r *GormLinkRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormLinkRepository) first(ctx context.Context, query string, arg interface{}) (*models.Link, error) {
	var link models.Link
	if err := r.db.WithContext(ctx).Where(query, arg).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return &link, nil
}

// ExistsByCode indique si un code est déjà utilisé.
func (r *GormLinkRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Link{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check code %q: %w", code, err)
	}
	return count > 0, nil
}

// List récupère tous les liens, du plus récent au plus ancien.
func (r *GormLinkRepository) List(ctx context.Context) ([]models.Link, error) {
	var links []models.Link
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve all links: %w", err)
	}
	return links, nil
}

// DeleteByCode supprime un lien et ses visites dans une seule transaction.
// Visits are removed explicitly so the cascade holds even where the
// foreign key is not enforced.
func (r *GormLinkRepository) DeleteByCode(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link models.Link
		if err := tx.Select("id").Where("code = ?", code).First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to find link: %w", err)
		}

		if err := tx.Where("link_id = ?", link.ID).Delete(&models.Visit{}).Error; err != nil {
			return fmt.Errorf("failed to delete visits of link %s: %w", link.ID, err)
		}

		result := tx.Where("id = ?", link.ID).Delete(&models.Link{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete link %s: %w", link.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RecordVisit increments the link's counter, stamps lastClickedAt and inserts
// the visit row, all in one transaction with the visit's timestamp.
// When the link no longer exists nothing is written and ErrNotFound is returned.
func (r *GormLinkRepository) RecordVisit(ctx context.Context, visit *models.Visit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Link{}).
			Where("id = ?", visit.LinkID).
			Updates(map[string]interface{}{
				"clicks":          gorm.Expr("clicks + ?", 1),
				"last_clicked_at": visit.CreatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to increment clicks for link %s: %w", visit.LinkID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Create(visit).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrVisitAlreadyRecorded
			}
			return fmt.Errorf("failed to create visit for link %s: %w", visit.LinkID, err)
		}
		return nil
	})
}
