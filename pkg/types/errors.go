package types

import "errors"

// Domain errors shared across packages
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotRunning   = errors.New("job is not running")
	ErrNoScanPaths     = errors.New("scan config has no paths")
)
