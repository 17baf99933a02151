package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/projdex/pkg/types"
)

const (
	// DefaultDebounce is the trailing-edge write coalescing window.
	DefaultDebounce = 500 * time.Millisecond

	backupSuffix = ".bak"
	tmpSuffix    = ".tmp"
)

// Meta carries catalog-level bookkeeping persisted alongside the projects.
type Meta struct {
	Version      int       `json:"version"`
	LastScanAt   time.Time `json:"lastScanAt"`
	ProjectCount int       `json:"projectCount"`
}

// Document is the persisted catalog shape.
type Document struct {
	Meta     Meta            `json:"meta"`
	Projects []types.Project `json:"projects"`
}

// ProjectUpdate describes a user edit; nil fields are left unchanged.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Tags        *[]string
	Importance  *int
}

// Store is a single-writer-per-process durable collection of projects keyed
// by project ID.
type Store struct {
	path string
	log  *zap.Logger

	mu  sync.Mutex
	doc Document

	debounce time.Duration
	kick     chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	dirty    atomic.Bool

	closeOnce sync.Once

	// flush counter, observed by tests
	flushes atomic.Int64
}

// Open loads (or creates) the catalog at path and starts the debounced
// writer. Corrupt files are recovered via backup or reset; Open only fails
// when the directory itself is unusable.
func Open(path string, log *zap.Logger) (*Store, error) {
	return OpenWithDebounce(path, DefaultDebounce, log)
}

// OpenWithDebounce is Open with an explicit coalescing window.
func OpenWithDebounce(path string, debounce time.Duration, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	s := &Store{
		path:     path,
		log:      log,
		debounce: debounce,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// load implements the backup-then-reset recovery ladder.
func (s *Store) load() error {
	doc, err := readDocument(s.path)
	switch {
	case err == nil:
		needsFlush := doc.Meta.Version < CurrentVersion
		s.doc = Migrate(doc)
		if needsFlush {
			return s.flushLocked()
		}
		return nil

	case errors.Is(err, fs.ErrNotExist):
		s.log.Info("creating new catalog", zap.String("path", s.path))
		s.doc = emptyDocument()
		return s.flushLocked()

	default:
		s.log.Warn("catalog unreadable, trying backup",
			zap.String("path", s.path), zap.Error(err))

		doc, bakErr := readDocument(s.path + backupSuffix)
		if bakErr != nil {
			s.log.Error("backup unreadable, resetting catalog",
				zap.Error(bakErr))
			s.doc = emptyDocument()
			return s.flushLocked()
		}
		s.doc = Migrate(doc)
		// Re-persist the recovered content as canonical.
		return s.flushLocked()
	}
}

func readDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// UpsertProject inserts or replaces a project. For an existing record the
// user-owned fields (tags, importance, description, created time) survive
// the re-scan untouched.
func (s *Store) UpsertProject(p types.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Projects {
		if s.doc.Projects[i].ID != p.ID {
			continue
		}
		existing := s.doc.Projects[i]
		p.Tags = existing.Tags
		p.Importance = existing.Importance
		if p.Description == "" {
			p.Description = existing.Description
		}
		if !existing.CreatedAt.IsZero() {
			p.CreatedAt = existing.CreatedAt
		}
		s.doc.Projects[i] = p
		s.afterMutateLocked()
		return
	}

	s.doc.Projects = append(s.doc.Projects, p)
	s.afterMutateLocked()
}

// UpdateProject applies a user edit and marks the record user-modified.
func (s *Store) UpdateProject(id string, upd ProjectUpdate) (types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Projects {
		if s.doc.Projects[i].ID != id {
			continue
		}
		p := &s.doc.Projects[i]
		if upd.Name != nil {
			p.Name = *upd.Name
		}
		if upd.Description != nil {
			p.Description = *upd.Description
		}
		if upd.Tags != nil {
			p.Tags = append([]string(nil), (*upd.Tags)...)
		}
		if upd.Importance != nil {
			p.Importance = *upd.Importance
		}
		p.ScanStatus = types.ScanStatusUserModified
		s.afterMutateLocked()
		return p.Clone(), nil
	}
	return types.Project{}, types.ErrProjectNotFound
}

// DeleteProject removes a project by ID.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Projects {
		if s.doc.Projects[i].ID == id {
			s.doc.Projects = append(s.doc.Projects[:i], s.doc.Projects[i+1:]...)
			s.afterMutateLocked()
			return nil
		}
	}
	return types.ErrProjectNotFound
}

// GetProject returns a copy of one project.
func (s *Store) GetProject(id string) (types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Projects {
		if s.doc.Projects[i].ID == id {
			return s.doc.Projects[i].Clone(), nil
		}
	}
	return types.Project{}, types.ErrProjectNotFound
}

// ListProjects returns copies of all projects in insertion order.
func (s *Store) ListProjects() []types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Project, 0, len(s.doc.Projects))
	for i := range s.doc.Projects {
		out = append(out, s.doc.Projects[i].Clone())
	}
	return out
}

// SetLastScanAt records the completion time of the most recent scan.
func (s *Store) SetLastScanAt(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Meta.LastScanAt = t
	s.afterMutateLocked()
}

// Export returns a deep-copy snapshot of the current document.
func (s *Store) Export() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDocument(s.doc)
}

// Import replaces the catalog with doc (migrated first) and flushes
// immediately.
func (s *Store) Import(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = Migrate(cloneDocument(doc))
	return s.flushLocked()
}

// Flush forces an immediate durable write. Unlike the debounced path, the
// error is surfaced to the caller.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close stops the writer goroutine and flushes any pending mutations.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		if s.dirty.Load() {
			err = s.Flush()
		}
	})
	return err
}

// afterMutateLocked recomputes meta and signals the debounced writer.
// Callers hold s.mu.
func (s *Store) afterMutateLocked() {
	s.doc.Meta.ProjectCount = len(s.doc.Projects)
	s.dirty.Store(true)
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// writeLoop is the single writer task: each mutation signal re-arms the
// trailing-edge timer; the flush happens once the burst goes quiet.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-s.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case <-s.kick:
			if timer == nil {
				timer = time.NewTimer(s.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			if err := s.Flush(); err != nil {
				// Known durability gap: a debounced write failure is
				// silent to every caller.
				s.log.Error("debounced catalog flush failed", zap.Error(err))
			}
		}
	}
}

// flushLocked serializes the current document and writes it atomically:
// write .tmp with fsync, best-effort backup of the current canonical file,
// then rename .tmp over the canonical path. Callers hold s.mu.
func (s *Store) flushLocked() error {
	s.doc.Meta.ProjectCount = len(s.doc.Projects)

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		s.log.Error("catalog serialization failed", zap.Error(err))
		return fmt.Errorf("serialize catalog: %w", err)
	}

	tmpPath := s.path + tmpSuffix
	if err := writeFileSync(tmpPath, data); err != nil {
		s.log.Error("catalog write failed", zap.Error(err))
		return fmt.Errorf("write %s: %w", filepath.Base(tmpPath), err)
	}

	// Backup failure must not block the flush.
	if current, err := os.ReadFile(s.path); err == nil {
		if err := os.WriteFile(s.path+backupSuffix, current, 0o644); err != nil {
			s.log.Warn("catalog backup failed", zap.Error(err))
		}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		s.log.Error("catalog rename failed", zap.Error(err))
		return fmt.Errorf("rename catalog: %w", err)
	}

	s.dirty.Store(false)
	s.flushes.Add(1)
	return nil
}

// writeFileSync writes data and fsyncs before closing, so the subsequent
// rename publishes fully persisted bytes.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func cloneDocument(doc Document) Document {
	out := Document{Meta: doc.Meta, Projects: make([]types.Project, 0, len(doc.Projects))}
	for i := range doc.Projects {
		out.Projects = append(out.Projects, doc.Projects[i].Clone())
	}
	return out
}

func emptyDocument() Document {
	return Document{
		Meta:     Meta{Version: CurrentVersion},
		Projects: []types.Project{},
	}
}
