package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/playback"
	"github.com/killallgit/trackreview-api/internal/services/review"
)

// URLPrefix is the path under which stored files are served.
const URLPrefix = "/media/"

const sniffLen = 3072

// ServiceImpl implements the Service interface
type ServiceImpl struct {
	repository Repository
	prober     Prober
	fs         afero.Fs
	root       string
	logger     *slog.Logger
}

// NewService stores files in fs. root is the on-disk directory fs is based
// at, handed to ffmpeg; with an in-memory fs it is only a label.
func NewService(repository Repository, prober Prober, fs afero.Fs, root string, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		repository: repository,
		prober:     prober,
		fs:         fs,
		root:       root,
		logger:     logging.WithComponent(logger, "media"),
	}
}

// NewDiskFs returns a filesystem rooted at dir, creating dir if needed.
func NewDiskFs(dir string) (afero.Fs, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return afero.NewBasePathFs(osFs, dir), nil
}

// Upload stores a video under a generated name, probes it and records it.
// Content that does not sniff as video is refused before anything is written.
func (s *ServiceImpl) Upload(ctx context.Context, originalName string, r io.Reader) (*models.Video, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	mtype := mimetype.Detect(head)
	if !isVideo(mtype) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mtype.String())
	}

	name := uuid.New().String() + mtype.Extension()
	if err := afero.WriteReader(s.fs, name, br); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}
	info, err := s.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	meta, err := s.prober.ProbeVideo(ctx, s.LocalPath(name))
	if err != nil {
		_ = s.fs.Remove(name)
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}

	video := &models.Video{
		OriginalName:    filepath.Base(originalName),
		FileName:        name,
		ContentType:     mtype.String(),
		SizeBytes:       info.Size(),
		DurationSeconds: meta.Duration,
		FrameRate:       meta.FrameRate,
		FrameCount:      meta.FrameCount,
		Width:           meta.Width,
		Height:          meta.Height,
		Codec:           meta.Codec,
	}
	if err := s.repository.CreateVideo(ctx, video); err != nil {
		_ = s.fs.Remove(name)
		return nil, err
	}

	logging.WithVideo(s.logger, video.UUID).Info("video stored",
		"file", name, "bytes", video.SizeBytes, "duration", video.DurationSeconds, "frames", video.FrameCount)
	return video, nil
}

func isVideo(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}

func (s *ServiceImpl) Get(ctx context.Context, videoUUID string) (*models.Video, error) {
	return s.repository.GetVideoByUUID(ctx, videoUUID)
}

func (s *ServiceImpl) List(ctx context.Context) ([]models.Video, error) {
	return s.repository.ListVideos(ctx)
}

// Media returns the latest rendition when one exists, else the source file.
// Renders keep the source's timing, so probe values apply to both.
func (s *ServiceImpl) Media(ctx context.Context, videoUUID string) (playback.Media, error) {
	video, err := s.repository.GetVideoByUUID(ctx, videoUUID)
	if err != nil {
		if errors.Is(err, review.ErrVideoNotFound) {
			return playback.Media{}, err
		}
		return playback.Media{}, fmt.Errorf("%w: %v", review.ErrMediaUnavailable, err)
	}

	name := video.ActiveFileName()
	if ok, _ := afero.Exists(s.fs, name); !ok {
		return playback.Media{}, fmt.Errorf("%w: %s is missing", review.ErrMediaUnavailable, name)
	}

	return playback.Media{
		URL:             URLPrefix + name,
		DurationSeconds: video.DurationSeconds,
		FrameRate:       video.FrameRate,
		DecodedFrames:   video.FrameCount,
	}, nil
}

// Open returns a stored file. Names are flat; anything with a path
// separator is rejected.
func (s *ServiceImpl) Open(name string) (afero.File, error) {
	if !validName(name) {
		return nil, review.ErrVideoNotFound
	}
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", review.ErrMediaUnavailable, err)
	}
	return f, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && path.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

func (s *ServiceImpl) LocalPath(name string) string {
	return filepath.Join(s.root, name)
}

func (s *ServiceImpl) NewRenditionName(video *models.Video) string {
	ext := filepath.Ext(video.FileName)
	if ext == "" {
		ext = ".mp4"
	}
	return fmt.Sprintf("%s_render_%s%s", strings.TrimSuffix(video.FileName, ext), uuid.New().String()[:8], ext)
}

// FileSize reports the size of a stored file, zero when it cannot be read.
func (s *ServiceImpl) FileSize(name string) int64 {
	info, err := s.fs.Stat(name)
	if err != nil {
		return 0
	}
	return info.Size()
}

// PruneRenditions removes renders older than olderThan that no video plays.
// It keeps going past individual failures and reports them together.
func (s *ServiceImpl) PruneRenditions(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.repository.StaleRenditions(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	var errs error
	removed := 0
	for _, r := range stale {
		if err := s.fs.Remove(r.FileName); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			errs = multierr.Append(errs, fmt.Errorf("removing %s: %w", r.FileName, err))
			continue
		}
		if err := s.repository.DeleteRendition(ctx, r.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("pruned renditions", "removed", removed, "failed", len(multierr.Errors(errs)))
	}
	return removed, errs
}
