package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/trackreview-api/api/types"
	"github.com/killallgit/trackreview-api/internal/database"
)

func TestGet(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		setupDeps      func(t *testing.T) *types.Dependencies
		expectedStatus int
		expectedBody   string
		expectedDB     string
	}{
		{
			name: "healthy with database",
			setupDeps: func(t *testing.T) *types.Dependencies {
				db, err := database.OpenInMemory()
				require.NoError(t, err)
				t.Cleanup(func() { _ = db.Close() })
				return &types.Dependencies{DB: db, Version: "1.2.3"}
			},
			expectedStatus: http.StatusOK,
			expectedBody:   types.StatusOK,
			expectedDB:     "healthy",
		},
		{
			name: "healthy without database",
			setupDeps: func(t *testing.T) *types.Dependencies {
				return &types.Dependencies{Version: "1.2.3"}
			},
			expectedStatus: http.StatusOK,
			expectedBody:   types.StatusOK,
			expectedDB:     "not configured",
		},
		{
			name: "unhealthy with closed database",
			setupDeps: func(t *testing.T) *types.Dependencies {
				db, err := database.OpenInMemory()
				require.NoError(t, err)
				sqlDB, err := db.DB.DB()
				require.NoError(t, err)
				require.NoError(t, sqlDB.Close())
				return &types.Dependencies{DB: db, Version: "1.2.3"}
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   types.StatusError,
			expectedDB:     "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

			Get(tt.setupDeps(t))(c)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response struct {
				Status   string         `json:"status"`
				Version  string         `json:"version"`
				Services map[string]any `json:"services"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

			assert.Equal(t, tt.expectedBody, response.Status)
			assert.Equal(t, "1.2.3", response.Version)
			db, ok := response.Services["database"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.expectedDB, db["status"])
		})
	}
}

func TestGetDatabaseStatus_NilDeps(t *testing.T) {
	assert.Equal(t, "not configured", getDatabaseStatus(nil)["status"])
}
