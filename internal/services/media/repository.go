package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/review"
)

// RepositoryImpl implements the Repository interface
type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new media repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) CreateVideo(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		return fmt.Errorf("creating video: %w", err)
	}
	return nil
}

// GetVideoByUUID retrieves a video with its active rendition
func (r *RepositoryImpl) GetVideoByUUID(ctx context.Context, uuid string) (*models.Video, error) {
	var video models.Video
	err := r.db.WithContext(ctx).Preload("ActiveRendition").Where("uuid = ?", uuid).First(&video).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, review.ErrVideoNotFound
		}
		return nil, fmt.Errorf("getting video: %w", err)
	}
	return &video, nil
}

func (r *RepositoryImpl) ListVideos(ctx context.Context) ([]models.Video, error) {
	var videos []models.Video
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	return videos, nil
}

func (r *RepositoryImpl) StaleRenditions(ctx context.Context, cutoff time.Time) ([]models.Rendition, error) {
	var renditions []models.Rendition
	active := r.db.Model(&models.Video{}).Select("active_rendition_id").Where("active_rendition_id IS NOT NULL")
	err := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Where("id NOT IN (?)", active).
		Order("created_at ASC").
		Find(&renditions).Error
	if err != nil {
		return nil, fmt.Errorf("listing stale renditions: %w", err)
	}
	return renditions, nil
}

func (r *RepositoryImpl) DeleteRendition(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&models.Rendition{}, id).Error; err != nil {
		return fmt.Errorf("deleting rendition: %w", err)
	}
	return nil
}
