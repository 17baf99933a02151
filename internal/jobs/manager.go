// Package jobs supervises scan jobs: one running scan at a time, progress
// fan-out to subscribers, and commit of completed results into the store
// and search index.
//
// Starting a scan never fails and never blocks on the scan itself; all
// failure surfaces through job status polling. Starting a new scan while
// one is running cancels the old one first (single-flight supersession,
// never a queue).
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/projdex/internal/index"
	"github.com/dshills/projdex/internal/scanner"
	"github.com/dshills/projdex/internal/store"
	"github.com/dshills/projdex/pkg/types"
)

// Scanner runs one scan. The concrete implementation is scanner.Scanner;
// tests substitute fakes.
type Scanner interface {
	Scan(ctx context.Context, cfg types.ScanConfig, onProgress scanner.ProgressFunc) (*types.ScanResult, error)
}

// Recorder persists terminal job outcomes; history.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, job types.Job) error
}

// ProgressSubscriber receives progress for every job, not one specific job.
type ProgressSubscriber func(jobID string, progress types.ScanProgress)

const recordTimeout = 5 * time.Second

// Manager coordinates scan jobs against the store and index.
type Manager struct {
	scanner Scanner
	store   *store.Store
	index   *index.Manager
	history Recorder // may be nil
	log     *zap.Logger

	mu     sync.Mutex
	job    *types.Job
	cancel context.CancelFunc

	subMu   sync.Mutex
	subs    map[int]ProgressSubscriber
	nextSub int

	wg sync.WaitGroup
}

// NewManager creates a job manager. history may be nil to disable the
// scan-history journal.
func NewManager(sc Scanner, st *store.Store, idx *index.Manager, history Recorder, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		scanner: sc,
		store:   st,
		index:   idx,
		history: history,
		log:     log,
		subs:    make(map[int]ProgressSubscriber),
	}
}

// StartScan launches a scan asynchronously and returns its job ID before
// the scan completes. A currently running job is cancelled first.
func (m *Manager) StartScan(cfg types.ScanConfig) string {
	m.mu.Lock()
	if m.job != nil && m.job.Status == types.JobStatusRunning {
		m.log.Info("superseding running scan", zap.String("job", m.job.ID))
		superseded := m.cancelLocked()
		defer m.record(superseded)
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	m.job = &types.Job{
		ID:        id,
		Status:    types.JobStatusRunning,
		StartedAt: time.Now(),
	}
	m.cancel = cancel
	m.mu.Unlock()

	m.log.Info("scan started", zap.String("job", id))
	m.wg.Add(1)
	go m.run(ctx, id, cfg)
	return id
}

// CancelScan cancels jobID if it is the tracked job and still running.
// The scanner finishes its in-flight candidate; the eventual result is
// discarded by the identity check in the completion path.
func (m *Manager) CancelScan(jobID string) error {
	m.mu.Lock()
	if m.job == nil || m.job.ID != jobID {
		m.mu.Unlock()
		return types.ErrJobNotFound
	}
	if m.job.Status != types.JobStatusRunning {
		m.mu.Unlock()
		return types.ErrJobNotRunning
	}
	cancelled := m.cancelLocked()
	m.mu.Unlock()

	m.log.Info("scan cancelled", zap.String("job", jobID))
	m.record(cancelled)
	return nil
}

// cancelLocked stops the running job and returns its terminal snapshot.
// Callers hold m.mu.
func (m *Manager) cancelLocked() types.Job {
	if m.cancel != nil {
		m.cancel()
	}
	now := time.Now()
	m.job.Status = types.JobStatusCancelled
	m.job.CompletedAt = &now
	return m.job.Clone()
}

// GetJobStatus returns an immutable snapshot of the job, or nil for an
// unknown ID.
func (m *Manager) GetJobStatus(jobID string) *types.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil || m.job.ID != jobID {
		return nil
	}
	snapshot := m.job.Clone()
	return &snapshot
}

// OnProgress registers a subscriber notified for every job. The returned
// function unsubscribes it.
func (m *Manager) OnProgress(sub ProgressSubscriber) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = sub
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// Close cancels any running job and waits for its goroutine to drain.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.job != nil && m.job.Status == types.JobStatusRunning {
		terminal := m.cancelLocked()
		defer m.record(terminal)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// run is the detached scan body. Every failure is contained here; nothing
// escapes to the caller of StartScan.
func (m *Manager) run(ctx context.Context, id string, cfg types.ScanConfig) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("scan job panicked", zap.String("job", id), zap.Any("panic", r))
			m.finish(id, func(j *types.Job) {
				j.Status = types.JobStatusError
				j.Error = fmt.Sprintf("panic: %v", r)
			})
		}
	}()

	result, err := m.scanner.Scan(ctx, cfg, func(p types.ScanProgress) {
		m.publishProgress(id, p)
	})
	if err != nil {
		// Cancelled; the job was already marked terminal by whoever
		// cancelled it. The partial result is discarded.
		m.log.Info("scan aborted", zap.String("job", id), zap.Error(err))
		return
	}

	// Identity check before committing: a superseded job must not write
	// its results into the store.
	if current := m.GetJobStatus(id); current == nil || current.Status != types.JobStatusRunning {
		m.log.Info("discarding result of superseded scan", zap.String("job", id))
		return
	}

	if err := m.commit(result); err != nil {
		m.log.Error("scan commit failed", zap.String("job", id), zap.Error(err))
		m.finish(id, func(j *types.Job) {
			j.Status = types.JobStatusError
			j.Error = err.Error()
		})
		return
	}

	m.log.Info("scan complete",
		zap.String("job", id),
		zap.Int("projects", len(result.Projects)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Stats.Duration))
	m.finish(id, func(j *types.Job) {
		j.Status = types.JobStatusComplete
		j.Result = result
	})
}

// commit folds a scan result into the store and rebuilds the index from
// the full authoritative list, so projects untouched by this scan stay
// searchable.
func (m *Manager) commit(result *types.ScanResult) error {
	for i := range result.Projects {
		m.store.UpsertProject(result.Projects[i])
	}
	m.store.SetLastScanAt(time.Now())

	if err := m.store.Flush(); err != nil {
		return fmt.Errorf("flush catalog: %w", err)
	}

	m.index.Build(m.store.ListProjects())
	return nil
}

// finish applies a terminal mutation if the job is still the tracked one,
// then records the outcome.
func (m *Manager) finish(id string, mutate func(*types.Job)) {
	m.mu.Lock()
	if m.job == nil || m.job.ID != id || m.job.Status != types.JobStatusRunning {
		m.mu.Unlock()
		return
	}
	mutate(m.job)
	now := time.Now()
	m.job.CompletedAt = &now
	terminal := m.job.Clone()
	m.mu.Unlock()

	m.record(terminal)
}

// publishProgress updates the tracked job and fans out to subscribers.
// A subscriber failure is logged and isolated; it never reaches other
// subscribers or the scan.
func (m *Manager) publishProgress(id string, p types.ScanProgress) {
	m.mu.Lock()
	if m.job != nil && m.job.ID == id {
		m.job.Progress = p
	}
	m.mu.Unlock()

	m.subMu.Lock()
	subs := make([]ProgressSubscriber, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.subMu.Unlock()

	for _, sub := range subs {
		m.notify(id, p, sub)
	}
}

func (m *Manager) notify(id string, p types.ScanProgress, sub ProgressSubscriber) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("progress subscriber panicked",
				zap.String("job", id), zap.Any("panic", r))
		}
	}()
	sub(id, p)
}

// record appends a terminal job to the history journal, when one is
// configured. Journal trouble never fails a job.
func (m *Manager) record(job types.Job) {
	if m.history == nil || !job.Status.Terminal() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := m.history.Record(ctx, job); err != nil {
		m.log.Warn("scan history record failed",
			zap.String("job", job.ID), zap.Error(err))
	}
}
