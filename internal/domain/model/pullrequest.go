package model

import "time"

// PullRequest represents a merged pull request that passed every validation gate.
type PullRequest struct {
	ID           int64 // GitHub pull request ID, globally unique.
	RepoID       int64 // Foreign key to repos.
	Number       int
	URL          string
	Additions    int
	Deletions    int
	ChangedFiles int
	HeadSHA      string
	MergedAt     time.Time
	ValidatedAt  time.Time
}

// ChangedLines returns additions plus deletions.
func (pr PullRequest) ChangedLines() int {
	return pr.Additions + pr.Deletions
}
