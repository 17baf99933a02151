package scanner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"typescript", []string{"tsconfig.json"}, "typescript"},
		{"javascript", []string{"package.json"}, "javascript"},
		{"python pyproject", []string{"pyproject.toml"}, "python"},
		{"rust", []string{"Cargo.toml"}, "rust"},
		{"go", []string{"go.mod"}, "go"},
		{"java gradle", []string{"build.gradle.kts"}, "java"},
		{"ruby", []string{"Gemfile"}, "ruby"},
		{"php", []string{"composer.json"}, "php"},
		{"csharp project", []string{"App.csproj"}, "csharp"},
		{"swift", []string{"Package.swift"}, "swift"},
		{"nothing", []string{"README.md"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, filepath.Join(dir, f), "x")
			}
			assert.Equal(t, tt.want, DetectLanguage(dir))
		})
	}
}

// Table order is the tie-break policy: typescript beats everything below it.
func TestDetectLanguage_TieBreak(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "requirements.txt"), "")
	writeFile(t, filepath.Join(dir, "tsconfig.json"), "{}")

	assert.Equal(t, "typescript", DetectLanguage(dir))
}

func TestDetectLanguage_JavascriptBeatsRust(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), "")
	writeFile(t, filepath.Join(dir, "package.json"), "{}")

	assert.Equal(t, "javascript", DetectLanguage(dir))
}
