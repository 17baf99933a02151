package jobs

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projdex/internal/index"
	"github.com/dshills/projdex/internal/scanner"
	"github.com/dshills/projdex/internal/store"
	"github.com/dshills/projdex/pkg/types"
)

const waitFor = 2 * time.Second

// fakeScanner returns a canned result. When block is non-nil it parks until
// the channel closes or the context is cancelled, like a long scan.
type fakeScanner struct {
	mu           sync.Mutex
	calls        int
	block        chan struct{}
	ignoreCancel bool
	result       *types.ScanResult
}

func (f *fakeScanner) Scan(ctx context.Context, cfg types.ScanConfig, onProgress scanner.ProgressFunc) (*types.ScanResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if onProgress != nil {
		onProgress(types.ScanProgress{Discovered: 1, Processed: 1})
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			if !f.ignoreCancel {
				return &types.ScanResult{}, ctx.Err()
			}
			<-f.block
		}
	}
	if ctx.Err() != nil && !f.ignoreCancel {
		return &types.ScanResult{}, ctx.Err()
	}
	if f.result != nil {
		return f.result, nil
	}
	return &types.ScanResult{}, nil
}

func (f *fakeScanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorderSpy struct {
	mu   sync.Mutex
	jobs []types.Job
}

func (r *recorderSpy) Record(_ context.Context, job types.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recorderSpy) byID(id string) (types.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return types.Job{}, false
}

func scanResult(ids ...string) *types.ScanResult {
	res := &types.ScanResult{}
	for _, id := range ids {
		res.Projects = append(res.Projects, types.Project{
			ID:   id,
			Name: id,
			Path: "/projects/" + id,
			Type: types.ProjectTypeGit,
		})
	}
	res.Stats.TotalScanned = len(res.Projects)
	return res
}

func newTestManager(t *testing.T, sc Scanner) (*Manager, *store.Store, *index.Manager, *recorderSpy) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "catalog.json"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx := index.NewManager(nil)
	spy := &recorderSpy{}
	m := NewManager(sc, st, idx, spy, nil)
	t.Cleanup(m.Close)
	return m, st, idx, spy
}

func waitTerminal(t *testing.T, m *Manager, id string) types.Job {
	t.Helper()
	var job *types.Job
	require.Eventually(t, func() bool {
		job = m.GetJobStatus(id)
		return job != nil && job.Status.Terminal()
	}, waitFor, 5*time.Millisecond)
	return *job
}

func TestStartScan_CommitsResult(t *testing.T) {
	fake := &fakeScanner{result: scanResult("a", "b")}
	m, st, idx, _ := newTestManager(t, fake)

	id := m.StartScan(types.ScanConfig{})
	require.NotEmpty(t, id)

	job := waitTerminal(t, m, id)
	assert.Equal(t, types.JobStatusComplete, job.Status)
	require.NotNil(t, job.Result)
	assert.Len(t, job.Result.Projects, 2)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, 1, job.Progress.Discovered)

	assert.Len(t, st.ListProjects(), 2)
	assert.Equal(t, 2, idx.Count())
	assert.False(t, st.Export().Meta.LastScanAt.IsZero())
}

// Starting a second scan while one runs leaves exactly one running job and
// cancels the first.
func TestStartScan_SupersedesRunning(t *testing.T) {
	release := make(chan struct{})
	fake := &fakeScanner{block: release, result: scanResult("a")}
	m, _, _, spy := newTestManager(t, fake)

	first := m.StartScan(types.ScanConfig{})
	require.Eventually(t, func() bool { return fake.callCount() == 1 }, waitFor, 5*time.Millisecond)

	second := m.StartScan(types.ScanConfig{})
	require.NotEqual(t, first, second)

	// The supervisor now tracks only the new job.
	assert.Nil(t, m.GetJobStatus(first))
	running := m.GetJobStatus(second)
	require.NotNil(t, running)
	assert.Equal(t, types.JobStatusRunning, running.Status)

	// The superseded job went to the journal as cancelled.
	recorded, ok := spy.byID(first)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusCancelled, recorded.Status)

	close(release)
	job := waitTerminal(t, m, second)
	assert.Equal(t, types.JobStatusComplete, job.Status)
}

// A scanner that misses the cancellation signal still cannot commit: the
// identity check in the completion path discards its result.
func TestSupersededResult_Discarded(t *testing.T) {
	release := make(chan struct{})
	fake := &fakeScanner{block: release, ignoreCancel: true, result: scanResult("stale")}
	m, st, _, _ := newTestManager(t, fake)

	first := m.StartScan(types.ScanConfig{})
	require.Eventually(t, func() bool { return fake.callCount() >= 1 }, waitFor, 5*time.Millisecond)
	require.NoError(t, m.CancelScan(first))

	close(release)
	m.Close()

	// Never look up "stale" by scan-derived ID here; the fake sets raw IDs.
	assert.Empty(t, st.ListProjects())
}

func TestCancelScan(t *testing.T) {
	release := make(chan struct{})
	fake := &fakeScanner{block: release}
	m, _, _, _ := newTestManager(t, fake)
	defer close(release)

	id := m.StartScan(types.ScanConfig{})
	require.Eventually(t, func() bool { return fake.callCount() == 1 }, waitFor, 5*time.Millisecond)

	require.NoError(t, m.CancelScan(id))
	job := m.GetJobStatus(id)
	require.NotNil(t, job)
	assert.Equal(t, types.JobStatusCancelled, job.Status)
	require.NotNil(t, job.CompletedAt)

	assert.ErrorIs(t, m.CancelScan(id), types.ErrJobNotRunning)
	assert.ErrorIs(t, m.CancelScan("no-such-job"), types.ErrJobNotFound)
}

func TestGetJobStatus_UnknownID(t *testing.T) {
	m, _, _, _ := newTestManager(t, &fakeScanner{})
	assert.Nil(t, m.GetJobStatus("missing"))
}

func TestGetJobStatus_SnapshotIsDetached(t *testing.T) {
	fake := &fakeScanner{result: scanResult("a")}
	m, _, _, _ := newTestManager(t, fake)

	id := m.StartScan(types.ScanConfig{})
	job := waitTerminal(t, m, id)
	job.Result.Projects[0].Name = "mutated"

	again := m.GetJobStatus(id)
	require.NotNil(t, again)
	assert.Equal(t, "a", again.Result.Projects[0].Name)
}

// One panicking subscriber must not starve the others or the scan.
func TestOnProgress_FanOutIsolation(t *testing.T) {
	fake := &fakeScanner{result: scanResult("a")}
	m, _, _, _ := newTestManager(t, fake)

	var mu sync.Mutex
	var got []string
	m.OnProgress(func(jobID string, _ types.ScanProgress) {
		panic("bad subscriber")
	})
	unsub := m.OnProgress(func(jobID string, p types.ScanProgress) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, jobID)
	})

	id := m.StartScan(types.ScanConfig{})
	waitTerminal(t, m, id)

	mu.Lock()
	require.NotEmpty(t, got)
	assert.Equal(t, id, got[0])
	seen := len(got)
	mu.Unlock()

	unsub()
	id2 := m.StartScan(types.ScanConfig{})
	waitTerminal(t, m, id2)

	mu.Lock()
	assert.Len(t, got, seen)
	mu.Unlock()
}

func TestRecorder_ReceivesCompletedJob(t *testing.T) {
	fake := &fakeScanner{result: scanResult("a")}
	m, _, _, spy := newTestManager(t, fake)

	id := m.StartScan(types.ScanConfig{})
	waitTerminal(t, m, id)

	require.Eventually(t, func() bool {
		_, ok := spy.byID(id)
		return ok
	}, waitFor, 5*time.Millisecond)
	recorded, _ := spy.byID(id)
	assert.Equal(t, types.JobStatusComplete, recorded.Status)
}
