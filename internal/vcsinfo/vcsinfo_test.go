package vcsinfo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/projdex/pkg/types"
)

func TestGet_NotARepository(t *testing.T) {
	g := NewGit(time.Second, nil)
	info := g.Get(context.Background(), t.TempDir())

	assert.False(t, info.IsVersioned)
	assert.Empty(t, info.Branch)
	assert.Empty(t, info.LastCommitHash)
	assert.Empty(t, info.Remotes)
}

func TestParseRemotes(t *testing.T) {
	output := "origin\tgit@github.com:dshills/projdex.git (fetch)\n" +
		"origin\tgit@github.com:dshills/projdex.git (push)\n" +
		"upstream\thttps://gitlab.com/other/tool.git (fetch)\n" +
		"upstream\thttps://gitlab.com/other/tool.git (push)"

	remotes := parseRemotes(output)
	assert.Len(t, remotes, 2)

	assert.Equal(t, "origin", remotes[0].Name)
	assert.Equal(t, "git@github.com:dshills/projdex.git", remotes[0].URL)
	assert.Equal(t, "github", remotes[0].Provider)
	assert.Equal(t, "dshills", remotes[0].Owner)
	assert.Equal(t, "projdex", remotes[0].Repo)

	assert.Equal(t, "upstream", remotes[1].Name)
	assert.Equal(t, "gitlab", remotes[1].Provider)
	assert.Equal(t, "other", remotes[1].Owner)
	assert.Equal(t, "tool", remotes[1].Repo)
}

func TestParseRemotes_Empty(t *testing.T) {
	assert.Nil(t, parseRemotes(""))
}

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		provider string
		owner    string
		repo     string
	}{
		{"github ssh", "git@github.com:octo/hello.git", "github", "octo", "hello"},
		{"github https", "https://github.com/octo/hello.git", "github", "octo", "hello"},
		{"github https no suffix", "https://github.com/octo/hello", "github", "octo", "hello"},
		{"gitlab subgroup", "https://gitlab.com/group/sub/hello.git", "gitlab", "sub", "hello"},
		{"bitbucket ssh", "git@bitbucket.org:team/hello.git", "bitbucket", "team", "hello"},
		{"ssh scheme", "ssh://git@github.com/octo/hello.git", "github", "octo", "hello"},
		{"self-hosted", "https://git.example.com/octo/hello.git", "", "octo", "hello"},
		{"local path", "/srv/git/hello.git", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, owner, repo := ParseRemoteURL(tt.url)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestPrimaryProvider(t *testing.T) {
	t.Run("prefers origin", func(t *testing.T) {
		remotes := []types.Remote{
			{Name: "upstream", Provider: "gitlab"},
			{Name: "origin", Provider: "github"},
		}
		assert.Equal(t, "github", PrimaryProvider(remotes))
	})

	t.Run("falls back to first remote", func(t *testing.T) {
		remotes := []types.Remote{{Name: "mirror", Provider: "bitbucket"}}
		assert.Equal(t, "bitbucket", PrimaryProvider(remotes))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", PrimaryProvider(nil))
	})
}
