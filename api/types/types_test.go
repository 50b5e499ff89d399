package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/trackreview-api/internal/services/media"
	"github.com/killallgit/trackreview-api/internal/services/review"
	apperrors "github.com/killallgit/trackreview-api/pkg/errors"
)

func TestSendError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid duration", review.ErrInvalidDuration, http.StatusConflict, "INVALID_DURATION", ""},
		{"precondition", fmt.Errorf("%w: no annotations imported", review.ErrPreconditionNotMet), http.StatusPreconditionFailed, "PRECONDITION_NOT_MET", "precondition not met: no annotations imported"},
		{"validation", review.ErrValidation, http.StatusBadRequest, "VALIDATION", ""},
		{"nothing to commit", review.ErrNothingToCommit, http.StatusConflict, "NOTHING_TO_COMMIT", ""},
		{"commit in flight", review.ErrCommitInFlight, http.StatusConflict, "CONFLICT", ""},
		{"edit in progress", review.ErrEditInProgress, http.StatusConflict, "CONFLICT", ""},
		{"malformed", fmt.Errorf("line 3: %w", review.ErrMalformedAnnotationData), http.StatusUnprocessableEntity, "MALFORMED_ANNOTATION_DATA", ""},
		{"media unavailable", review.ErrMediaUnavailable, http.StatusFailedDependency, "MEDIA_UNAVAILABLE", ""},
		{"reprocess failed", fmt.Errorf("%w: CSV missing", review.ErrReprocessFailed), http.StatusBadGateway, "EXTERNAL_SERVICE", ""},
		{"session not found", review.ErrSessionNotFound, http.StatusNotFound, "NOT_FOUND", ""},
		{"unsupported media", media.ErrUnsupportedMedia, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA", ""},
		{"app error passes through", apperrors.ValidationError("frame", "must be >= 0"), http.StatusBadRequest, "VALIDATION", ""},
		{"unknown is internal", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL", "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			SendError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, StatusError, body.Status)
			assert.Equal(t, tt.wantCode, body.Error)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Message)
			}
			assert.True(t, c.IsAborted())
		})
	}
}

func TestSendError_HidesInternalText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SendError(c, errors.New("open /var/lib/secret.db: permission denied"))

	assert.NotContains(t, w.Body.String(), "secret.db")
	require.Len(t, c.Errors, 1, "internal errors are kept for the request log")
}

func TestBindJSONOrError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		body   string
		wantOK bool
	}{
		{"valid", `{"videoId": "abc"}`, true},
		{"missing required", `{}`, false},
		{"not json", `videoId=abc`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req OpenReviewRequest
			ok := BindJSONOrError(c, &req)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Contains(t, w.Body.String(), "INVALID_INPUT")
			}
		})
	}
}
