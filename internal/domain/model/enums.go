package model

// Gate identifies one pass/fail predicate in the PR validation chain.
type Gate string

const (
	GateNone    Gate = ""        // All gates passed.
	GateMerged  Gate = "merged"  // PR must be merged.
	GateSize    Gate = "size"    // additions + deletions threshold.
	GateBreadth Gate = "breadth" // changed files threshold.
	GateTests   Gate = "tests"   // at least one test or spec file touched.
	GateCI      Gate = "ci"      // combined commit status is success.
)

// RepoStatus filters repositories by their processed flag.
type RepoStatus string

const (
	RepoStatusAll       RepoStatus = "all"
	RepoStatusPending   RepoStatus = "pending"
	RepoStatusProcessed RepoStatus = "processed"
)

// Valid reports whether s is one of the known statuses.
func (s RepoStatus) Valid() bool {
	switch s {
	case RepoStatusAll, RepoStatusPending, RepoStatusProcessed:
		return true
	default:
		return false
	}
}
