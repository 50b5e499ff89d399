package annotations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/review"
)

const insertBatchSize = 500

// RepositoryImpl implements the Repository interface
type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new detection repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

// GetVideoByUUID retrieves a video by its public id
func (r *RepositoryImpl) GetVideoByUUID(ctx context.Context, uuid string) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, review.ErrVideoNotFound
		}
		return nil, fmt.Errorf("getting video: %w", err)
	}
	return &video, nil
}

// GetDetections returns every detection of a video ordered by frame
func (r *RepositoryImpl) GetDetections(ctx context.Context, videoID uint) ([]models.Detection, error) {
	var detections []models.Detection
	if err := r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("frame ASC, id ASC").
		Find(&detections).Error; err != nil {
		return nil, fmt.Errorf("getting detections: %w", err)
	}
	return detections, nil
}

// ReplaceDetections swaps the stored tracking data for a video and stamps the import time
func (r *RepositoryImpl) ReplaceDetections(ctx context.Context, videoID uint, detections []models.Detection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", videoID).Delete(&models.Detection{}).Error; err != nil {
			return fmt.Errorf("deleting detections: %w", err)
		}

		for i := range detections {
			detections[i].ID = 0
			detections[i].VideoID = videoID
		}
		if len(detections) > 0 {
			if err := tx.CreateInBatches(detections, insertBatchSize).Error; err != nil {
				return fmt.Errorf("inserting detections: %w", err)
			}
		}

		now := time.Now().UTC()
		result := tx.Model(&models.Video{}).Where("id = ?", videoID).Updates(map[string]any{
			"annotations_imported_at": &now,
			"detection_count":         len(detections),
		})
		if result.Error != nil {
			return fmt.Errorf("updating video: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return review.ErrVideoNotFound
		}
		return nil
	})
}

// CommitRender records a finished render in one transaction. The remaps are
// folded into the stored detections in order, so later directives see
// earlier ones, then the rendition is stored and activated. When baseMedia
// is set the video must still be playing it; otherwise nothing is written
// and ErrStaleBase is returned.
func (r *RepositoryImpl) CommitRender(ctx context.Context, videoID uint, baseMedia string, remaps []corrections.Directive, rendition *models.Rendition) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var video models.Video
		if err := tx.Preload("ActiveRendition").First(&video, videoID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return review.ErrVideoNotFound
			}
			return fmt.Errorf("getting video: %w", err)
		}
		if baseMedia != "" && video.ActiveFileName() != baseMedia {
			return fmt.Errorf("%w: video plays %s, render started from %s", ErrStaleBase, video.ActiveFileName(), baseMedia)
		}

		for _, d := range remaps {
			result := tx.Model(&models.Detection{}).
				Where("video_id = ? AND track_id = ?", videoID, d.OldID).
				Update("track_id", d.NewID)
			if result.Error != nil {
				return fmt.Errorf("remapping track %s to %s: %w", d.OldID, d.NewID, result.Error)
			}
			total += result.RowsAffected
		}

		rendition.VideoID = videoID
		if err := tx.Create(rendition).Error; err != nil {
			return fmt.Errorf("creating rendition: %w", err)
		}

		// Swap the active rendition only if nothing else did since the read.
		activate := tx.Model(&models.Video{}).Where("id = ?", videoID)
		if video.ActiveRenditionID == nil {
			activate = activate.Where("active_rendition_id IS NULL")
		} else {
			activate = activate.Where("active_rendition_id = ?", *video.ActiveRenditionID)
		}
		result := activate.Update("active_rendition_id", rendition.ID)
		if result.Error != nil {
			return fmt.Errorf("activating rendition: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: active rendition changed during commit", ErrStaleBase)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
