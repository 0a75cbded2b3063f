package model

import "time"

// CommitState is the overall combined status of a commit as reported by the
// GitHub Status API.
type CommitState string

const (
	CommitStateSuccess CommitState = "success"
	CommitStateFailure CommitState = "failure"
	CommitStatePending CommitState = "pending"
	CommitStateError   CommitState = "error"
)

// PRDetail carries per-PR detail data returned by the single-PR GET endpoint.
// Used as a data transfer struct, not persisted separately.
type PRDetail struct {
	ID           int64
	Number       int
	URL          string
	Additions    int
	Deletions    int
	ChangedFiles int
	HeadSHA      string
	Merged       bool
	MergedAt     time.Time
}

// ToPullRequest converts the detail into an accepted PullRequest owned by repoID.
func (d PRDetail) ToPullRequest(repoID int64, validatedAt time.Time) PullRequest {
	return PullRequest{
		ID:           d.ID,
		RepoID:       repoID,
		Number:       d.Number,
		URL:          d.URL,
		Additions:    d.Additions,
		Deletions:    d.Deletions,
		ChangedFiles: d.ChangedFiles,
		HeadSHA:      d.HeadSHA,
		MergedAt:     d.MergedAt,
		ValidatedAt:  validatedAt,
	}
}
