package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/dshills/projdex/internal/vcsinfo"
	"github.com/dshills/projdex/pkg/types"
)

const (
	// progressInterval is the candidate-processing cadence between
	// progress callbacks.
	progressInterval = 10

	// defaultMaxDepth bounds discovery when the config does not.
	defaultMaxDepth = 5
)

// VCSInfo is the collaborator that answers git metadata queries. It must
// never fail; unusable directories yield the zero Info.
type VCSInfo interface {
	Get(ctx context.Context, dir string) vcsinfo.Info
}

// Scanner discovers and processes project candidates.
type Scanner struct {
	vcs VCSInfo
	log *zap.Logger
}

// New creates a Scanner using the given VCS metadata provider.
func New(vcs VCSInfo, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{vcs: vcs, log: log}
}

// ProgressFunc receives scan progress updates.
type ProgressFunc func(types.ScanProgress)

// Scan discovers candidates under cfg.Paths and extracts metadata for each.
//
// Root candidate rules, per configured root:
//   - every .git directory strictly below the root (bounded by MaxDepth,
//     minus IgnoredPatterns) marks its parent as a git candidate;
//   - the root itself is a git candidate only if it is versioned and either
//     IncludeAsProject is set or it has no git descendants, which keeps a
//     super-repository from being double-counted with its nested repos;
//   - an unversioned root with no git descendants is a local candidate only
//     if it carries a README or a language manifest.
//
// Scan only returns a non-nil error when ctx is cancelled; every other
// failure is contained in the result's Errors slice. On cancellation the
// partial result accumulated so far is still returned.
func (s *Scanner) Scan(ctx context.Context, cfg types.ScanConfig, onProgress ProgressFunc) (*types.ScanResult, error) {
	start := time.Now()

	candidates := s.discover(cfg)
	s.log.Info("scan discovery complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("roots", len(cfg.Paths)))

	result := &types.ScanResult{
		Projects: []types.Project{},
		Errors:   []types.ScanError{},
	}

	notify := func(current string) {
		if onProgress != nil {
			onProgress(types.ScanProgress{
				Discovered:  len(candidates),
				Processed:   result.Stats.TotalScanned,
				CurrentPath: current,
			})
		}
	}

	var last string
	for _, cand := range candidates {
		// Cooperative cancellation point; in-flight candidate work is
		// never interrupted.
		if err := ctx.Err(); err != nil {
			result.Stats.Duration = time.Since(start)
			return result, err
		}

		project, err := s.processCandidate(ctx, cand, cfg.MinSizeBytes)
		result.Stats.TotalScanned++
		last = cand

		switch {
		case err != nil:
			s.log.Warn("candidate processing failed",
				zap.String("path", cand),
				zap.Error(err))
			result.Errors = append(result.Errors, types.ScanError{
				Path:  cand,
				Error: err.Error(),
			})
		case project != nil:
			result.Projects = append(result.Projects, *project)
			if project.Type == types.ProjectTypeGit {
				result.Stats.GitRepos++
			} else {
				result.Stats.LocalProjects++
			}
		}

		if result.Stats.TotalScanned%progressInterval == 0 {
			notify(cand)
		}
	}

	notify(last)
	result.Stats.Duration = time.Since(start)
	return result, nil
}

// discover runs phase 1: enumerate candidates across all roots,
// deduplicated by canonical path.
func (s *Scanner) discover(cfg types.ScanConfig) []string {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	var out []string
	seen := make(map[string]bool)
	add := func(path string) {
		canon := canonicalPath(path)
		if !seen[canon] {
			seen[canon] = true
			out = append(out, canon)
		}
	}

	for _, root := range cfg.Paths {
		rootPath, err := filepath.Abs(root.Path)
		if err != nil {
			continue
		}
		st, err := os.Stat(rootPath)
		if err != nil || !st.IsDir() {
			s.log.Warn("skipping unreadable scan root", zap.String("path", root.Path))
			continue
		}

		gitDirs := findGitDirs(rootPath, maxDepth, cfg.IgnoredPatterns)
		for _, gd := range gitDirs {
			add(filepath.Dir(gd))
		}

		rootVersioned := isVersioned(rootPath)
		switch {
		case rootVersioned && (root.IncludeAsProject || len(gitDirs) == 0):
			add(rootPath)
		case !rootVersioned && len(gitDirs) == 0 && looksLikeProject(rootPath):
			add(rootPath)
		}
	}
	return out
}

// findGitDirs returns .git directories strictly below root, at most
// maxDepth levels down, skipping subtrees matched by ignored patterns.
func findGitDirs(root string, maxDepth int, ignored []string) []string {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root || !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return filepath.SkipDir
		}

		if matchesIgnored(ignored, rel, d.Name()) {
			return filepath.SkipDir
		}
		if d.Name() == ".git" {
			// The root's own .git marks the root as versioned, not as a
			// descendant repository; isVersioned handles the root.
			if filepath.Dir(path) != root {
				dirs = append(dirs, path)
			}
			return filepath.SkipDir
		}
		if pathDepth(rel) >= maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	return dirs
}

// matchesIgnored matches glob patterns against both the root-relative path
// and the bare entry name, so "node_modules" excludes the directory at any
// depth while "vendor/**" style patterns stay anchored.
func matchesIgnored(patterns []string, rel, name string) bool {
	relSlash := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, relSlash); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

func pathDepth(rel string) int {
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

func isVersioned(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// looksLikeProject filters incidental directories out of the local
// candidate set: a genuine project carries a README or a language manifest
// at its top level.
func looksLikeProject(dir string) bool {
	return hasRootReadme(dir) || DetectLanguage(dir) != ""
}

func hasRootReadme(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(strings.ToLower(e.Name()), "readme") {
			return true
		}
	}
	return false
}

// canonicalPath resolves symlinks so the same project reached through
// different links dedupes to one candidate.
func canonicalPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
