package reprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/services/corrections"
	"github.com/killallgit/trackreview-api/internal/services/playback"
)

// Config holds configuration for the remote reprocessing client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPClient talks to a standalone tracking backend that owns the
// annotations and renders on its own.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

type updateIDRequest struct {
	CurrentFrame int    `json:"currentFrame"`
	CurrentID    string `json:"currentId"`
	NewID        string `json:"newId"`
}

type logEntry struct {
	FrameNumber int    `json:"frameNumber"`
	A           string `json:"A"`
	B           string `json:"B"`
}

type saveLogsRequest struct {
	Logs []logEntry `json:"logs"`
}

type backendResponse struct {
	Success  bool   `json:"success"`
	NewVideo string `json:"new_video"`
	Error    string `json:"error"`
	Message  string `json:"message"`
}

func NewHTTPClient(cfg Config, logger *slog.Logger) (*HTTPClient, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid reprocess base url %q", cfg.BaseURL)
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logging.WithComponent(logger, "reprocess-client"),
	}, nil
}

// Reprocess sends a single directive to /update-id, or the whole log to
// /save-logs. A negative answer is a Response, not an error; errors mean the
// backend could not be reached or did not answer in its format.
func (c *HTTPClient) Reprocess(ctx context.Context, req corrections.Request) (corrections.Response, error) {
	var (
		endpoint string
		body     any
	)
	if req.Target.Batch {
		logs := make([]logEntry, len(req.Directives))
		for i, d := range req.Directives {
			logs[i] = logEntry{FrameNumber: d.Frame, A: d.OldID, B: d.NewID}
		}
		endpoint, body = "/save-logs", saveLogsRequest{Logs: logs}
	} else {
		if len(req.Directives) != 1 {
			return corrections.Response{}, fmt.Errorf("single reprocess needs exactly one directive, got %d", len(req.Directives))
		}
		d := req.Directives[0]
		endpoint, body = "/update-id", updateIDRequest{CurrentFrame: d.Frame, CurrentID: d.OldID, NewID: d.NewID}
	}

	var out backendResponse
	if err := c.post(ctx, endpoint, body, &out); err != nil {
		return corrections.Response{}, err
	}

	if !out.Success || out.NewVideo == "" {
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		return corrections.Response{Message: msg}, nil
	}

	media := playback.Media{
		URL:             c.baseURL + "/temp/" + url.PathEscape(out.NewVideo),
		DurationSeconds: req.ActiveMedia.DurationSeconds,
		FrameRate:       req.ActiveMedia.FrameRate,
		DecodedFrames:   req.ActiveMedia.DecodedFrames,
	}
	return corrections.Response{Success: true, NewMedia: &media, Message: out.Message}, nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	fullURL := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	// The backend reports its own failures as JSON with a 4xx/5xx status,
	// so the body is decoded whatever the status.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(raw, result); err != nil {
		c.logger.Error("backend returned an unreadable response", "url", fullURL, "status", resp.StatusCode)
		return fmt.Errorf("backend returned status %d: decoding response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("backend rejected request", "url", fullURL, "status", resp.StatusCode)
	}
	return nil
}
