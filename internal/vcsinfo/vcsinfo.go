// Package vcsinfo extracts branch, commit, and remote metadata from git
// working copies by shelling out to the git binary.
//
// The collaborator contract is deliberately lossy: Get never returns an
// error. A missing git binary, a timeout, or a corrupt repository all
// degrade to the zero Info value so a scan is never aborted by VCS trouble.
package vcsinfo

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/projdex/pkg/types"
)

// Info is the metadata extracted from one working copy.
type Info struct {
	IsVersioned    bool
	Branch         string
	LastCommitHash string
	Remotes        []types.Remote
}

// Provider answers VCS metadata queries for directories.
type Provider interface {
	Get(ctx context.Context, dir string) Info
}

const (
	// DefaultTimeout bounds the combined git subprocess time per directory.
	DefaultTimeout = 5 * time.Second

	cacheSize = 512
)

type cacheEntry struct {
	info     Info
	gitMtime time.Time
}

// Git queries metadata with the git CLI. Results are cached per directory
// and invalidated when the .git directory's mtime changes, so repeated
// scans of a stable catalog skip repeated process spawns.
type Git struct {
	timeout time.Duration
	cache   *lru.Cache[string, cacheEntry]
	log     *zap.Logger
}

// NewGit creates a git metadata provider.
func NewGit(timeout time.Duration, log *zap.Logger) *Git {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		// Only possible with a non-positive size.
		panic(err)
	}
	return &Git{timeout: timeout, cache: cache, log: log}
}

// Get returns metadata for dir. The zero Info is returned for directories
// that are not git working copies and for any extraction failure.
func (g *Git) Get(ctx context.Context, dir string) Info {
	gitPath := filepath.Join(dir, ".git")
	st, err := os.Stat(gitPath)
	if err != nil {
		return Info{}
	}

	if entry, ok := g.cache.Get(dir); ok && entry.gitMtime.Equal(st.ModTime()) {
		return entry.info
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	info := Info{IsVersioned: true}

	// The three subqueries are independent; run them concurrently under
	// the shared timeout. Each failure leaves its field empty.
	var branch, commit, remotes string
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		branch = g.run(gctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
		return nil
	})
	grp.Go(func() error {
		commit = g.run(gctx, dir, "rev-parse", "HEAD")
		return nil
	})
	grp.Go(func() error {
		remotes = g.run(gctx, dir, "remote", "-v")
		return nil
	})
	_ = grp.Wait()

	info.Branch = branch
	info.LastCommitHash = commit
	info.Remotes = parseRemotes(remotes)

	g.cache.Add(dir, cacheEntry{info: info, gitMtime: st.ModTime()})
	return info
}

// run executes one git subcommand and returns its trimmed stdout, or ""
// on any failure.
func (g *Git) run(ctx context.Context, dir string, args ...string) string {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if g.log != nil {
			g.log.Debug("git query failed",
				zap.String("dir", dir),
				zap.Strings("args", args),
				zap.Error(err))
		}
		return ""
	}
	return strings.TrimSpace(out.String())
}

// parseRemotes parses `git remote -v` output. Only fetch lines are kept;
// each remote name appears once.
func parseRemotes(output string) []types.Remote {
	if output == "" {
		return nil
	}

	var remotes []types.Remote
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if len(fields) >= 3 && fields[2] != "(fetch)" {
			continue
		}
		name, url := fields[0], fields[1]
		if seen[name] {
			continue
		}
		seen[name] = true

		remote := types.Remote{Name: name, URL: url}
		remote.Provider, remote.Owner, remote.Repo = ParseRemoteURL(url)
		remotes = append(remotes, remote)
	}
	return remotes
}

// ParseRemoteURL extracts hosting provider, owner, and repository name from
// an SSH (git@host:owner/repo.git) or HTTP(S) remote URL. Unrecognized
// shapes yield empty strings.
func ParseRemoteURL(url string) (provider, owner, repo string) {
	var host, path string

	switch {
	case strings.HasPrefix(url, "git@"):
		rest := strings.TrimPrefix(url, "git@")
		host, path, _ = strings.Cut(rest, ":")
	case strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://"):
		rest := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
		host, path, _ = strings.Cut(rest, "/")
	case strings.HasPrefix(url, "ssh://"):
		rest := strings.TrimPrefix(url, "ssh://")
		rest = strings.TrimPrefix(rest, "git@")
		host, path, _ = strings.Cut(rest, "/")
	default:
		return "", "", ""
	}

	provider = providerForHost(host)

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) >= 2 {
		owner = parts[len(parts)-2]
		repo = parts[len(parts)-1]
	}
	return provider, owner, repo
}

func providerForHost(host string) string {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "github"):
		return "github"
	case strings.Contains(host, "gitlab"):
		return "gitlab"
	case strings.Contains(host, "bitbucket"):
		return "bitbucket"
	default:
		return ""
	}
}

// PrimaryProvider picks the provider to display for a project: origin's
// if present, otherwise the first remote's.
func PrimaryProvider(remotes []types.Remote) string {
	for _, r := range remotes {
		if r.Name == "origin" {
			return r.Provider
		}
	}
	if len(remotes) > 0 {
		return remotes[0].Provider
	}
	return ""
}
