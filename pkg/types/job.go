package types

import "time"

// JobStatus is the lifecycle state of a scan job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusComplete  JobStatus = "complete"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError || s == JobStatusCancelled
}

// Job tracks one scan run. At most one job is running per process; starting
// a new scan supersedes (cancels) the current one.
type Job struct {
	ID          string       `json:"id"`
	Status      JobStatus    `json:"status"`
	Progress    ScanProgress `json:"progress"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	Result      *ScanResult  `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Clone returns a snapshot safe to hand to callers while the job mutates.
func (j Job) Clone() Job {
	out := j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.Result != nil {
		r := ScanResult{
			Projects: make([]Project, 0, len(j.Result.Projects)),
			Errors:   append([]ScanError(nil), j.Result.Errors...),
			Stats:    j.Result.Stats,
		}
		for _, p := range j.Result.Projects {
			r.Projects = append(r.Projects, p.Clone())
		}
		out.Result = &r
	}
	return out
}
