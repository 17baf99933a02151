package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/dshills/projdex/internal/history"
	"github.com/dshills/projdex/internal/index"
	"github.com/dshills/projdex/internal/jobs"
	"github.com/dshills/projdex/internal/scanner"
	"github.com/dshills/projdex/internal/store"
	"github.com/dshills/projdex/internal/vcsinfo"
	"github.com/dshills/projdex/pkg/types"
)

// PipelineTestSuite drives the full scan → commit → search pipeline against
// a fixture directory tree.
type PipelineTestSuite struct {
	suite.Suite
	ctx     context.Context
	dataDir string
	scanDir string
	store   *store.Store
	index   *index.Manager
	history *history.Journal
	jobs    *jobs.Manager
}

func (s *PipelineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.dataDir = s.T().TempDir()
	s.scanDir = s.T().TempDir()

	s.mkGitRepo("repos/api-server")
	s.mkGitRepo("repos/frontend")
	s.mkLocalProject("notes", "README.md")
	s.mkGitRepo("node_modules/stray-dep")

	var err error
	s.store, err = store.Open(filepath.Join(s.dataDir, "catalog.json"), nil)
	s.Require().NoError(err)

	s.index = index.NewManager(nil)
	s.index.Build(s.store.ListProjects())

	s.history, err = history.Open(filepath.Join(s.dataDir, "history.db"))
	s.Require().NoError(err)

	git := vcsinfo.NewGit(vcsinfo.DefaultTimeout, nil)
	scan := scanner.New(git, nil)
	s.jobs = jobs.NewManager(scan, s.store, s.index, s.history, nil)
}

func (s *PipelineTestSuite) TearDownTest() {
	s.jobs.Close()
	_ = s.store.Close()
	_ = s.history.Close()
}

func (s *PipelineTestSuite) mkGitRepo(rel string) {
	dir := filepath.Join(s.scanDir, rel)
	s.Require().NoError(os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
}

func (s *PipelineTestSuite) mkLocalProject(rel string, files ...string) {
	dir := filepath.Join(s.scanDir, rel)
	s.Require().NoError(os.MkdirAll(dir, 0o755))
	for _, f := range files {
		s.Require().NoError(os.WriteFile(filepath.Join(dir, f), []byte("x\n"), 0o644))
	}
}

func (s *PipelineTestSuite) scanConfig() types.ScanConfig {
	return types.ScanConfig{
		// Discovery only ever considers a root itself as a local
		// candidate, so the plain notes directory is its own root.
		Paths: []types.ScanPath{
			{Path: s.scanDir},
			{Path: filepath.Join(s.scanDir, "notes")},
		},
		IgnoredPatterns: []string{"node_modules"},
	}
}

func (s *PipelineTestSuite) runScan() types.Job {
	id := s.jobs.StartScan(s.scanConfig())
	var job *types.Job
	s.Require().Eventually(func() bool {
		job = s.jobs.GetJobStatus(id)
		return job != nil && job.Status.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	return *job
}

func (s *PipelineTestSuite) TestScanCommitSearch() {
	job := s.runScan()
	s.Require().Equal(types.JobStatusComplete, job.Status)
	s.Require().NotNil(job.Result)

	// Two git repos and one local project; the ignored subtree contributes
	// nothing.
	s.Len(job.Result.Projects, 3)
	s.Equal(2, job.Result.Stats.GitRepos)
	s.Equal(1, job.Result.Stats.LocalProjects)

	// Committed to the store and the index.
	s.Len(s.store.ListProjects(), 3)
	s.Equal(3, s.index.Count())

	results := s.index.Search("api", 10)
	s.Require().NotEmpty(results)
	s.Equal("api-server", results[0].Project.Name)

	// The catalog file on disk reflects the commit.
	data, err := os.ReadFile(filepath.Join(s.dataDir, "catalog.json"))
	s.Require().NoError(err)
	var doc store.Document
	s.Require().NoError(json.Unmarshal(data, &doc))
	s.Equal(3, doc.Meta.ProjectCount)
	s.False(doc.Meta.LastScanAt.IsZero())
}

func (s *PipelineTestSuite) TestRescanConvergesAndPreservesUserEdits() {
	first := s.runScan()
	s.Require().Equal(types.JobStatusComplete, first.Status)

	var target types.Project
	for _, p := range s.store.ListProjects() {
		if p.Name == "api-server" {
			target = p
		}
	}
	s.Require().NotEmpty(target.ID)

	tags := []string{"work", "backend"}
	importance := 5
	_, err := s.store.UpdateProject(target.ID, store.ProjectUpdate{Tags: &tags, Importance: &importance})
	s.Require().NoError(err)

	second := s.runScan()
	s.Require().Equal(types.JobStatusComplete, second.Status)

	// Path-derived identity: the re-scan converges to the same records
	// instead of duplicating them.
	s.Len(s.store.ListProjects(), 3)

	got, err := s.store.GetProject(target.ID)
	s.Require().NoError(err)
	s.Equal([]string{"work", "backend"}, got.Tags)
	s.Equal(5, got.Importance)

	// The preserved edits are searchable after the index rebuild.
	results := s.index.Search("backend", 10)
	s.Require().NotEmpty(results)
	s.Equal(target.ID, results[0].Project.ID)
}

func (s *PipelineTestSuite) TestJournalRecordsRuns() {
	job := s.runScan()
	s.Require().Equal(types.JobStatusComplete, job.Status)

	var entries []history.Entry
	s.Require().Eventually(func() bool {
		var err error
		entries, err = s.history.List(s.ctx, history.ListOptions{})
		return err == nil && len(entries) == 1
	}, 5*time.Second, 10*time.Millisecond)

	s.Equal(job.ID, entries[0].ID)
	s.Equal(types.JobStatusComplete, entries[0].Status)
	s.Equal(2, entries[0].GitRepos)
	s.Equal(1, entries[0].LocalProjects)
}

func (s *PipelineTestSuite) TestCatalogSurvivesReopen() {
	job := s.runScan()
	s.Require().Equal(types.JobStatusComplete, job.Status)
	s.Require().NoError(s.store.Close())

	reopened, err := store.Open(filepath.Join(s.dataDir, "catalog.json"), nil)
	s.Require().NoError(err)
	defer reopened.Close()

	s.Len(reopened.ListProjects(), 3)

	idx := index.NewManager(nil)
	idx.Build(reopened.ListProjects())
	s.NotEmpty(idx.Search("frontend", 5))
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}
