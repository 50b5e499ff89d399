package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Video is an uploaded source video. UUID is the public identifier used in
// API paths; FileName is the stored file under the media directory.
type Video struct {
	gorm.Model
	UUID         string `json:"id" gorm:"uniqueIndex;not null"`
	OriginalName string `json:"original_name"`
	FileName     string `json:"file_name" gorm:"not null"`
	ContentType  string `json:"content_type"`
	SizeBytes    int64  `json:"size_bytes"`

	// Probe results
	DurationSeconds float64 `json:"duration_seconds"`
	FrameRate       float64 `json:"frame_rate"`
	FrameCount      int64   `json:"frame_count"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Codec           string  `json:"codec"`

	AnnotationsImportedAt *time.Time `json:"annotations_imported_at"`
	DetectionCount        int        `json:"detection_count" gorm:"default:0"`

	// ActiveRenditionID points at the latest rendered overlay, nil until one exists.
	ActiveRenditionID *uint      `json:"active_rendition_id"`
	ActiveRendition   *Rendition `json:"active_rendition,omitempty" gorm:"foreignKey:ActiveRenditionID"`
}

// BeforeCreate assigns the public id.
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.UUID == "" {
		v.UUID = uuid.New().String()
	}
	return nil
}

// ActiveFileName is the stored file a review plays: the active rendition
// when there is one, the upload otherwise. ActiveRendition must be loaded.
func (v *Video) ActiveFileName() string {
	if v.ActiveRendition != nil {
		return v.ActiveRendition.FileName
	}
	return v.FileName
}

// HasAnnotations reports whether tracking data has been imported.
func (v *Video) HasAnnotations() bool {
	return v.AnnotationsImportedAt != nil
}

func (Video) TableName() string {
	return "videos"
}

// Rendition is a copy of a video with the tracking overlay burned in.
type Rendition struct {
	gorm.Model
	VideoID   uint   `json:"video_id" gorm:"not null;index"`
	FileName  string `json:"file_name" gorm:"not null;uniqueIndex"`
	JobID     uint   `json:"job_id"`
	SizeBytes int64  `json:"size_bytes"`
	// Directives counts the remaps folded into the annotations at render time.
	Directives int `json:"directives"`
}

func (Rendition) TableName() string {
	return "renditions"
}
