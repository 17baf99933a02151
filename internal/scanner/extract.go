package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/projdex/internal/vcsinfo"
	"github.com/dshills/projdex/pkg/types"
)

const (
	// sizeSampleDepth bounds how deep the size sample walks.
	sizeSampleDepth = 3
	// sizeSampleCap stops size accumulation once the running total
	// passes 100 MB.
	sizeSampleCap = 100 << 20

	fileCountDepth = 5
	readmeDepth    = 2
)

// ProjectID derives a stable identifier from a project's canonical path, so
// re-scanning the same directory updates the existing record instead of
// creating a duplicate.
func ProjectID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// processCandidate runs phase 2 for one candidate. A nil project with a nil
// error means the candidate was dropped by contract (not a directory, or
// below the size threshold), not that anything failed.
func (s *Scanner) processCandidate(ctx context.Context, path string, minSizeBytes int64) (*types.Project, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, nil
	}

	size := sampleSize(path)
	if size < minSizeBytes {
		return nil, nil
	}

	info := s.vcs.Get(ctx, path)

	project := types.Project{
		ID:         ProjectID(path),
		Name:       filepath.Base(path),
		Path:       path,
		Type:       types.ProjectTypeLocal,
		Tags:       []string{},
		Importance: types.DefaultImportance,
		SizeBytes:  size,
		FileCount:  countFiles(path),
		// Creation time is not portably available; the stat mtime stands
		// in for both timestamps.
		CreatedAt:      st.ModTime(),
		LastModifiedAt: st.ModTime(),
		ReadmeFiles:    findReadmes(path),
		Language:       DetectLanguage(path),
		ScanStatus:     types.ScanStatusComplete,
		LastScannedAt:  time.Now(),
	}

	if info.IsVersioned {
		project.Type = types.ProjectTypeGit
		project.Branch = info.Branch
		project.LastCommitHash = info.LastCommitHash
		project.Remotes = info.Remotes
		project.Provider = vcsinfo.PrimaryProvider(info.Remotes)
	}

	return &project, nil
}

// walkToDepth walks root down to maxDepth levels, skipping .git subtrees
// and swallowing per-entry errors. fn may return filepath.SkipAll to stop.
func walkToDepth(root string, maxDepth int, fn func(rel string, d fs.DirEntry) error) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return filepath.SkipDir
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if fnErr := fn(rel, d); fnErr != nil {
			return fnErr
		}
		if d.IsDir() && pathDepth(rel) >= maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
}

// sampleSize approximates a directory's size: regular files down to
// sizeSampleDepth, accumulation stops past sizeSampleCap. A cost-bounded
// heuristic, not an exact size.
func sampleSize(root string) int64 {
	var total int64
	walkToDepth(root, sizeSampleDepth, func(_ string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		if total > sizeSampleCap {
			return filepath.SkipAll
		}
		return nil
	})
	return total
}

// countFiles counts regular files down to fileCountDepth.
func countFiles(root string) int {
	count := 0
	walkToDepth(root, fileCountDepth, func(_ string, d fs.DirEntry) error {
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}

// findReadmes returns relative paths of README files (case-insensitive
// prefix match) down to readmeDepth.
func findReadmes(root string) []string {
	var readmes []string
	walkToDepth(root, readmeDepth, func(rel string, d fs.DirEntry) error {
		if !d.IsDir() && strings.HasPrefix(strings.ToLower(d.Name()), "readme") {
			readmes = append(readmes, filepath.ToSlash(rel))
		}
		return nil
	})
	return readmes
}
