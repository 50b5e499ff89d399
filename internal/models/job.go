package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// JobStatus is where a job is in its lifecycle.
type JobStatus string

const (
	JobStatusPending           JobStatus = "pending"
	JobStatusProcessing        JobStatus = "processing"
	JobStatusCompleted         JobStatus = "completed"
	JobStatusFailed            JobStatus = "failed"
	JobStatusPermanentlyFailed JobStatus = "permanently_failed"
	JobStatusCancelled         JobStatus = "cancelled"
)

type JobType string

// JobTypeRender burns the tracking overlay into a video.
const JobTypeRender JobType = "render"

// Payload keys understood by render jobs. PayloadRemaps holds the directives
// a render folds into the annotations; PayloadBaseMedia names the file the
// reviewer was watching when the render was queued.
const (
	PayloadVideoID    = "video_id"
	PayloadDirectives = "directives"
	PayloadReason     = "reason"
	PayloadRemaps     = "remaps"
	PayloadBaseMedia  = "base_media"
)

// JobErrorType classifies why a render failed. Input and not-found failures
// are final; the others are retried.
type JobErrorType string

const (
	ErrorTypeInput      JobErrorType = "input"      // video has no annotations, or none survive the filter
	ErrorTypeProcessing JobErrorType = "processing" // ffmpeg failed
	ErrorTypeSystem     JobErrorType = "system"     // database or storage
	ErrorTypeNotFound   JobErrorType = "not_found"  // the video was deleted
)

// Final reports whether a failure of this type should not be retried.
func (t JobErrorType) Final() bool {
	return t == ErrorTypeInput || t == ErrorTypeNotFound
}

// JobError is returned by processors so the worker can record why a job
// failed and decide whether it is retried.
type JobError struct {
	Type    JobErrorType
	Code    string
	Message string
	Details string
	Cause   error
}

func (e *JobError) Error() string { return e.Message }

func (e *JobError) Unwrap() error { return e.Cause }

func newJobError(t JobErrorType, code, message, details string, cause error) *JobError {
	return &JobError{Type: t, Code: code, Message: message, Details: details, Cause: cause}
}

func NewInputError(code, message, details string, cause error) *JobError {
	return newJobError(ErrorTypeInput, code, message, details, cause)
}

func NewProcessingError(code, message, details string, cause error) *JobError {
	return newJobError(ErrorTypeProcessing, code, message, details, cause)
}

func NewSystemError(code, message, details string, cause error) *JobError {
	return newJobError(ErrorTypeSystem, code, message, details, cause)
}

func NewNotFoundError(code, message, details string, cause error) *JobError {
	return newJobError(ErrorTypeNotFound, code, message, details, cause)
}

// Job is a queued render. Payload carries the video and why the render was
// requested; Result records the rendition it produced.
type Job struct {
	gorm.Model
	Type        JobType    `json:"type" gorm:"not null;index:idx_jobs_type_status"`
	Status      JobStatus  `json:"status" gorm:"default:'pending';index:idx_jobs_status_priority"`
	Payload     JobPayload `json:"payload" gorm:"type:json"`
	Priority    int        `json:"priority" gorm:"default:0;index:idx_jobs_status_priority"`
	MaxRetries  int        `json:"max_retries" gorm:"default:3"`
	RetryCount  int        `json:"retry_count" gorm:"default:0"`
	Progress    int        `json:"progress" gorm:"default:0"` // 0-100
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	FailedAt    *time.Time `json:"failed_at"`
	Result      JobResult  `json:"result,omitempty" gorm:"type:json"`
	WorkerID    string     `json:"worker_id,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"` // "import" or "review"

	Error        string `json:"error,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"` // e.g. "ffmpeg_failed", "no_detections"
	ErrorDetails string `json:"error_details,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

// JobPayload is the job input, stored as a json column.
type JobPayload map[string]any

func (p JobPayload) Value() (driver.Value, error) {
	return jsonValue(p)
}

func (p *JobPayload) Scan(value any) error {
	return scanJSON(value, (*map[string]any)(p))
}

// JobResult is the job output, stored as a json column.
type JobResult map[string]any

func (r JobResult) Value() (driver.Value, error) {
	return jsonValue(r)
}

func (r *JobResult) Scan(value any) error {
	return scanJSON(value, (*map[string]any)(r))
}

// jsonValue writes maps as text so sqlite's json functions can query them.
func jsonValue(m map[string]any) (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func scanJSON(value any, dst *map[string]any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*dst = make(map[string]any)
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported json column type")
	}
	return json.Unmarshal(raw, dst)
}

// IsRetryable reports whether a failed job still has attempts left.
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// IsTerminal reports whether the job will not run again on its own.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCancelled, JobStatusPermanentlyFailed:
		return true
	case JobStatusFailed:
		return !j.IsRetryable()
	}
	return false
}

// CanRequeue reports whether an operator may put the job back in the queue.
func (j *Job) CanRequeue() bool {
	return j.Status == JobStatusFailed || j.Status == JobStatusPermanentlyFailed
}

// GetPayloadString returns a string payload value.
func (j *Job) GetPayloadString(key string) (string, bool) {
	s, ok := j.Payload[key].(string)
	return s, ok
}

// GetPayloadInt returns a numeric payload value. Values read back from the
// database are float64.
func (j *Job) GetPayloadInt(key string) (int, bool) {
	switch v := j.Payload[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
