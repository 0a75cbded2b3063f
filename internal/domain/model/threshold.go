package model

// GateThresholds holds the numeric limits applied by the PR validation gates.
type GateThresholds struct {
	SampleSize      int // Merged PRs sampled per repository, newest-updated first.
	MinChangedLines int // Gate A: additions + deletions.
	MinChangedFiles int // Gate B: changed files.
}

// Default gate thresholds.
const (
	defaultSampleSize      = 10
	defaultMinChangedLines = 500
	defaultMinChangedFiles = 5
)

// DefaultGateThresholds returns the thresholds used when none are configured.
func DefaultGateThresholds() GateThresholds {
	return GateThresholds{
		SampleSize:      defaultSampleSize,
		MinChangedLines: defaultMinChangedLines,
		MinChangedFiles: defaultMinChangedFiles,
	}
}

// Stats summarizes store contents.
type Stats struct {
	Repositories int
	Processed    int
	Pending      int
	PullRequests int
}
