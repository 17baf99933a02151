package types

import "time"

// ProjectType classifies how a project was discovered.
type ProjectType string

const (
	// ProjectTypeGit marks a project backed by a git repository.
	ProjectTypeGit ProjectType = "git"
	// ProjectTypeLocal marks a plain directory with project indicators
	// (a README or a language manifest) but no version control.
	ProjectTypeLocal ProjectType = "local"
)

// ScanStatus records whether a project reflects its last scan or has been
// edited by the user since.
type ScanStatus string

const (
	// ScanStatusComplete means the record is untouched since the last scan.
	ScanStatusComplete ScanStatus = "complete"
	// ScanStatusUserModified means the user edited the record after scanning.
	ScanStatusUserModified ScanStatus = "user-modified"
)

// Remote describes one VCS remote of a git project.
type Remote struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Provider string `json:"provider,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Repo     string `json:"repo,omitempty"`
}

// Project is the persisted, user-editable record describing one discovered
// codebase.
//
// Identity is derived from the canonical absolute path, so re-scanning the
// same directory converges on a single record. Tags and Importance are user
// state and must survive re-scans untouched.
type Project struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Path string      `json:"path"` // canonical absolute path
	Type ProjectType `json:"type"`

	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Importance  int      `json:"importance"` // 1-5 user rating, default 3

	// SizeBytes is a bounded sample, not an exact size; FileCount is a
	// bounded-depth count. Neither is a durable filesystem truth.
	SizeBytes int64 `json:"sizeBytes"`
	FileCount int   `json:"fileCount"`

	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`

	// VCS fields, populated only when Type is ProjectTypeGit.
	Provider       string   `json:"provider,omitempty"`
	LastCommitHash string   `json:"lastCommitHash,omitempty"`
	Branch         string   `json:"branch,omitempty"`
	Remotes        []Remote `json:"remotes,omitempty"`

	ReadmeFiles []string `json:"readmeFiles,omitempty"` // relative paths
	Language    string   `json:"language,omitempty"`    // best-effort guess

	ScanStatus    ScanStatus `json:"scanStatus"`
	LastScannedAt time.Time  `json:"lastScannedAt"`
}

// DefaultImportance is the rating assigned to newly discovered projects.
const DefaultImportance = 3

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.Remotes != nil {
		out.Remotes = append([]Remote(nil), p.Remotes...)
	}
	if p.ReadmeFiles != nil {
		out.ReadmeFiles = append([]string(nil), p.ReadmeFiles...)
	}
	return out
}
