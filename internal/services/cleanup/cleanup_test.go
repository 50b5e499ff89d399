package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type fakePruner struct {
	calls atomic.Int32
	age   time.Duration
	n     int
	err   error
}

func (f *fakePruner) PruneRenditions(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.age = olderThan
	return f.n, f.err
}

type fakeSessions struct{ n int }

func (f fakeSessions) CloseIdle(time.Duration) int { return f.n }

type fakeJobs struct {
	days int
	n    int64
	err  error
}

func (f *fakeJobs) CleanupOldJobs(_ context.Context, retentionDays int) (int64, error) {
	f.days = retentionDays
	return f.n, f.err
}

func writeFile(t *testing.T, fs afero.Fs, name string, age time.Duration) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, []byte("x"), 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, fs.Chtimes(name, mtime, mtime))
}

func TestRunOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/overlay_old.txt", 48*time.Hour)
	writeFile(t, fs, "/overlay_fresh.txt", time.Minute)
	writeFile(t, fs, "/clip.mp4", 48*time.Hour)

	pruner := &fakePruner{n: 2}
	jobs := &fakeJobs{n: 5}
	svc := NewService(pruner, fakeSessions{n: 1}, jobs, fs, Options{
		MaxArtifactAge:   24 * time.Hour,
		MaxSessionIdle:   time.Hour,
		JobRetentionDays: 7,
	}, nil)

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Renditions: 2, Sessions: 1, Jobs: 5, ScratchFiles: 1}, report)
	assert.Equal(t, 24*time.Hour, pruner.age)
	assert.Equal(t, 7, jobs.days)

	exists, _ := afero.Exists(fs, "/overlay_old.txt")
	assert.False(t, exists)
	exists, _ = afero.Exists(fs, "/overlay_fresh.txt")
	assert.True(t, exists)
	exists, _ = afero.Exists(fs, "/clip.mp4")
	assert.True(t, exists, "only filter scripts are swept")
}

func TestRunOnce_CollectsFailures(t *testing.T) {
	pruneErr := errors.New("rendition locked")
	jobsErr := errors.New("database is locked")
	svc := NewService(&fakePruner{n: 1, err: pruneErr}, nil, &fakeJobs{err: jobsErr}, nil, Options{
		MaxArtifactAge:   time.Hour,
		JobRetentionDays: 1,
	}, nil)

	report, err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pruneErr)
	assert.ErrorIs(t, err, jobsErr)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 1, report.Renditions)
}

func TestRunOnce_DisabledParts(t *testing.T) {
	pruner := &fakePruner{}
	jobs := &fakeJobs{}
	svc := NewService(pruner, fakeSessions{n: 3}, jobs, afero.NewMemMapFs(), Options{}, nil)

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Zero(t, pruner.calls.Load())
	assert.Zero(t, jobs.days)
}

func TestStartStop(t *testing.T) {
	pruner := &fakePruner{}
	svc := NewService(pruner, nil, nil, nil, Options{
		Interval:       10 * time.Millisecond,
		MaxArtifactAge: time.Hour,
	}, nil)

	svc.Start(context.Background())
	svc.Start(context.Background()) // already running

	assert.Eventually(t, func() bool { return pruner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	svc.Stop()
	calls := pruner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, pruner.calls.Load(), "no sweeps after Stop")

	svc.Stop() // idempotent
}
