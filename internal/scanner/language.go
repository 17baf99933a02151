package scanner

import (
	"os"

	"github.com/bmatcuk/doublestar/v4"
)

// languageIndicator maps one language to the manifest files that signal it.
type languageIndicator struct {
	language string
	files    []string // exact filenames at the project root
	globs    []string // patterns matched against root entries
}

// languageTable is ordered: the first language with any matching indicator
// wins. Table order is the tie-break policy.
var languageTable = []languageIndicator{
	{language: "typescript", files: []string{"tsconfig.json"}},
	{language: "javascript", files: []string{"package.json"}},
	{language: "python", files: []string{"requirements.txt", "pyproject.toml", "setup.py", "Pipfile"}},
	{language: "rust", files: []string{"Cargo.toml"}},
	{language: "go", files: []string{"go.mod"}},
	{language: "java", files: []string{"pom.xml", "build.gradle", "build.gradle.kts"}},
	{language: "ruby", files: []string{"Gemfile"}},
	{language: "php", files: []string{"composer.json"}},
	{language: "csharp", globs: []string{"*.csproj", "*.sln"}},
	{language: "swift", files: []string{"Package.swift"}},
}

// DetectLanguage guesses a project's primary language from manifest files
// at its root. Returns "" when nothing matches.
func DetectLanguage(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	names := make(map[string]bool, len(entries))
	var fileNames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names[e.Name()] = true
		fileNames = append(fileNames, e.Name())
	}

	for _, ind := range languageTable {
		for _, f := range ind.files {
			if names[f] {
				return ind.language
			}
		}
		for _, g := range ind.globs {
			for _, n := range fileNames {
				if ok, err := doublestar.Match(g, n); err == nil && ok {
					return ind.language
				}
			}
		}
	}
	return ""
}
