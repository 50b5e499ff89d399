package models

import "fmt"

// Detection is one row of tracker output: a bounding box on a frame with
// the track it was assigned to.
type Detection struct {
	ID         uint    `json:"-" gorm:"primaryKey"`
	VideoID    uint    `json:"-" gorm:"not null;index:idx_detections_video_frame;index:idx_detections_video_track"`
	Frame      int     `json:"frame" gorm:"not null;index:idx_detections_video_frame"`
	TrackID    string  `json:"track_id" gorm:"not null;index:idx_detections_video_track"`
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

func (Detection) TableName() string {
	return "detections"
}

// Label is the caption drawn next to the box in rendered output.
func (d Detection) Label() string {
	return fmt.Sprintf("ID: %s, Class: %d, Conf: %.2f", d.TrackID, d.ClassID, d.Confidence)
}

func (d Detection) Width() float64  { return d.X2 - d.X1 }
func (d Detection) Height() float64 { return d.Y2 - d.Y1 }

// TrackSummary aggregates a track's detections above the confidence floor.
type TrackSummary struct {
	TrackID         string  `json:"track_id"`
	StartFrame      int     `json:"start_frame"`
	EndFrame        int     `json:"end_frame"`
	TotalDetections int     `json:"total_detections"`
	Gaps            int     `json:"gaps"`
	AvgConfidence   float64 `json:"avg_confidence"`
}
