// Package index maintains the derived, fuzzy-searchable mirror of the
// project catalog.
//
// The index is never authoritative: it is rebuilt wholesale from the store's
// project list on bulk loads and after every single-record mutation. The
// per-mutation rebuild is O(n); acceptable for the small and medium catalogs
// this tool targets, and the first thing to revisit if it ever is not.
package index

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/dshills/projdex/pkg/types"
)

// Field weights for multi-field relevance scoring.
const (
	weightName        = 0.4
	weightPath        = 0.3
	weightDescription = 0.2
	weightTags        = 0.1

	// matchThreshold trims weak matches relative to the best one:
	// 0 keeps only matches as strong as the best, 1 keeps everything.
	matchThreshold = 0.4

	// minMatchLength is the shortest query that triggers fuzzy matching;
	// anything shorter falls back to insertion order.
	minMatchLength = 2
)

// Result is one ranked search hit.
type Result struct {
	Project types.Project
	Score   float64
}

// ListOptions filters, sorts, and paginates GetAll.
type ListOptions struct {
	Type       string   // exact match on project type
	Provider   string   // exact match on VCS provider
	Tags       []string // any-of match
	Importance int      // exact match; 0 disables the filter

	SortBy   string // field name; "" disables sorting
	SortDesc bool

	Offset int
	Limit  int // 0 means no limit
}

type fieldSource struct {
	weight float64
	values []string
}

// Manager owns the in-memory project list and its fuzzy sources.
type Manager struct {
	mu       sync.RWMutex
	projects []types.Project
	sources  []fieldSource
	log      *zap.Logger
}

// NewManager creates an empty index manager.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log}
}

// Build replaces the indexed list wholesale.
func (m *Manager) Build(projects []types.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects = make([]types.Project, 0, len(projects))
	for i := range projects {
		m.projects = append(m.projects, projects[i].Clone())
	}
	m.rebuildLocked()
	m.log.Debug("search index rebuilt", zap.Int("projects", len(m.projects)))
}

// AddProject indexes one new project.
func (m *Manager) AddProject(p types.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append(m.projects, p.Clone())
	m.rebuildLocked()
}

// UpdateProject replaces the indexed copy of a project; unknown IDs are
// added.
func (m *Manager) UpdateProject(p types.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.projects {
		if m.projects[i].ID == p.ID {
			m.projects[i] = p.Clone()
			m.rebuildLocked()
			return
		}
	}
	m.projects = append(m.projects, p.Clone())
	m.rebuildLocked()
}

// RemoveProject drops a project from the index.
func (m *Manager) RemoveProject(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.projects {
		if m.projects[i].ID == id {
			m.projects = append(m.projects[:i], m.projects[i+1:]...)
			m.rebuildLocked()
			return
		}
	}
}

// Count returns the number of indexed projects.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.projects)
}

// rebuildLocked regenerates the per-field source arrays the fuzzy matcher
// runs against. Callers hold m.mu.
func (m *Manager) rebuildLocked() {
	n := len(m.projects)
	names := make([]string, n)
	paths := make([]string, n)
	descriptions := make([]string, n)
	tags := make([]string, n)
	for i := range m.projects {
		p := &m.projects[i]
		names[i] = p.Name
		paths[i] = p.Path
		descriptions[i] = p.Description
		tags[i] = strings.Join(p.Tags, " ")
	}
	m.sources = []fieldSource{
		{weightName, names},
		{weightPath, paths},
		{weightDescription, descriptions},
		{weightTags, tags},
	}
}

// Search returns up to limit projects ranked by weighted multi-field fuzzy
// relevance. For an empty (or sub-minimum) query it returns the first limit
// projects in insertion order; callers must not read ranking semantics into
// that path.
func (m *Manager) Search(query string, limit int) []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.projects) {
		limit = len(m.projects)
	}

	query = strings.TrimSpace(query)
	if len([]rune(query)) < minMatchLength {
		out := make([]Result, 0, limit)
		for i := 0; i < limit; i++ {
			out = append(out, Result{Project: m.projects[i].Clone()})
		}
		return out
	}

	// Combined score per project index across the weighted fields.
	combined := make(map[int]float64)
	for _, src := range m.sources {
		matches := fuzzy.Find(query, src.values)
		if len(matches) == 0 {
			continue
		}
		lo, hi := matches[len(matches)-1].Score, matches[0].Score
		for _, match := range matches {
			norm := 1.0
			if hi > lo {
				norm = float64(match.Score-lo) / float64(hi-lo)
			}
			combined[match.Index] += src.weight * norm
		}
	}
	if len(combined) == 0 {
		return []Result{}
	}

	best := 0.0
	for _, score := range combined {
		if score > best {
			best = score
		}
	}
	cutoff := best * (1 - matchThreshold)

	indexes := make([]int, 0, len(combined))
	for i, score := range combined {
		if score >= cutoff {
			indexes = append(indexes, i)
		}
	}
	sort.Slice(indexes, func(a, b int) bool {
		if combined[indexes[a]] != combined[indexes[b]] {
			return combined[indexes[a]] > combined[indexes[b]]
		}
		return indexes[a] < indexes[b]
	})

	if len(indexes) > limit {
		indexes = indexes[:limit]
	}
	out := make([]Result, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, Result{Project: m.projects[i].Clone(), Score: combined[i]})
	}
	return out
}

// GetAll applies exact-match filters, a single-key sort, and offset-based
// pagination over the current list.
func (m *Manager) GetAll(opts ListOptions) []types.Project {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filtered := make([]types.Project, 0, len(m.projects))
	for i := range m.projects {
		if matchesFilters(&m.projects[i], opts) {
			filtered = append(filtered, m.projects[i].Clone())
		}
	}

	if opts.SortBy != "" {
		sort.SliceStable(filtered, func(a, b int) bool {
			if opts.SortDesc {
				return fieldLess(&filtered[b], &filtered[a], opts.SortBy)
			}
			return fieldLess(&filtered[a], &filtered[b], opts.SortBy)
		})
	}

	if opts.Offset >= len(filtered) {
		return []types.Project{}
	}
	filtered = filtered[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}
	return filtered
}

func matchesFilters(p *types.Project, opts ListOptions) bool {
	if opts.Type != "" && string(p.Type) != opts.Type {
		return false
	}
	if opts.Provider != "" && p.Provider != opts.Provider {
		return false
	}
	if opts.Importance != 0 && p.Importance != opts.Importance {
		return false
	}
	if len(opts.Tags) > 0 {
		found := false
		for _, want := range opts.Tags {
			for _, have := range p.Tags {
				if want == have {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// fieldLess is the ascending comparison for one sort key. Absent values
// (empty strings, zero times) order last; a descending sort flips the
// arguments, which puts them first.
func fieldLess(a, b *types.Project, field string) bool {
	av, aNull := sortKey(a, field)
	bv, bNull := sortKey(b, field)
	if aNull != bNull {
		return !aNull
	}
	if aNull {
		return false
	}

	switch x := av.(type) {
	case string:
		return strings.ToLower(x) < strings.ToLower(bv.(string))
	case int64:
		return x < bv.(int64)
	case time.Time:
		return x.Before(bv.(time.Time))
	default:
		return false
	}
}

func sortKey(p *types.Project, field string) (value any, null bool) {
	switch field {
	case "name":
		return p.Name, p.Name == ""
	case "path":
		return p.Path, p.Path == ""
	case "type":
		return string(p.Type), p.Type == ""
	case "language":
		return p.Language, p.Language == ""
	case "provider":
		return p.Provider, p.Provider == ""
	case "importance":
		return int64(p.Importance), false
	case "sizeBytes":
		return p.SizeBytes, false
	case "fileCount":
		return int64(p.FileCount), false
	case "createdAt":
		return p.CreatedAt, p.CreatedAt.IsZero()
	case "lastModifiedAt":
		return p.LastModifiedAt, p.LastModifiedAt.IsZero()
	case "lastScannedAt":
		return p.LastScannedAt, p.LastScannedAt.IsZero()
	default:
		return nil, true
	}
}
