package types

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// ScanPath is one configured scan root.
type ScanPath struct {
	Path string `json:"path" yaml:"path"`
	// IncludeAsProject forces the root itself to be a candidate even when
	// it contains nested repositories.
	IncludeAsProject bool `json:"includeAsProject,omitempty" yaml:"include_as_project,omitempty"`
}

// UnmarshalJSON accepts either a bare path string or a {path, includeAsProject}
// object, so callers can mix both forms in one paths array.
func (s *ScanPath) UnmarshalJSON(data []byte) error {
	var path string
	if err := json.Unmarshal(data, &path); err == nil {
		s.Path = path
		s.IncludeAsProject = false
		return nil
	}

	type scanPath ScanPath // drop methods to avoid recursion
	var obj scanPath
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = ScanPath(obj)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for the config file.
func (s *ScanPath) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Path = value.Value
		s.IncludeAsProject = false
		return nil
	}

	type scanPath ScanPath
	var obj scanPath
	if err := value.Decode(&obj); err != nil {
		return err
	}
	*s = ScanPath(obj)
	return nil
}

// ScanConfig configures one scan run.
type ScanConfig struct {
	Paths           []ScanPath `json:"paths" yaml:"paths"`
	IgnoredPatterns []string   `json:"ignoredPatterns" yaml:"ignored_patterns"`
	MaxDepth        int        `json:"maxDepth" yaml:"max_depth"`
	MinSizeBytes    int64      `json:"minSizeBytes" yaml:"min_size_bytes"`
}

// ScanProgress is the payload delivered to progress subscribers.
type ScanProgress struct {
	Discovered  int    `json:"discovered"`
	Processed   int    `json:"processed"`
	CurrentPath string `json:"currentPath"`
}

// ScanError records a candidate whose extraction failed. The scan continues
// past it.
type ScanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// ScanStats summarizes a completed scan.
type ScanStats struct {
	TotalScanned  int           `json:"totalScanned"`
	GitRepos      int           `json:"gitRepos"`
	LocalProjects int           `json:"localProjects"`
	Duration      time.Duration `json:"-"`
}

// ScanResult is the output of one scan run.
type ScanResult struct {
	Projects []Project   `json:"projects"`
	Errors   []ScanError `json:"errors"`
	Stats    ScanStats   `json:"stats"`
}
