package model

import (
	"fmt"
	"strings"
	"time"
)

// Partition is an independent discovery query bucket with its own pagination
// cursor and quota. Partitions exist only for the duration of a collection run.
type Partition struct {
	Name      string // Human-readable tag, e.g. "Go".
	Qualifier string // Search qualifier appended to the query, e.g. `language:"Go"`.
}

// LanguagePartition returns a partition restricted to a single GitHub language.
func LanguagePartition(language string) Partition {
	return Partition{
		Name:      language,
		Qualifier: fmt.Sprintf("language:%q", language),
	}
}

// SearchCriteria holds the thresholds shared by every partition query.
type SearchCriteria struct {
	MinStars     int
	CreatedAfter time.Time
}

// Query builds the repository search query for the given partition. Archived
// repositories and forks are always excluded.
func (c SearchCriteria) Query(p Partition) string {
	parts := []string{fmt.Sprintf("stars:>=%d", c.MinStars)}
	if !c.CreatedAfter.IsZero() {
		parts = append(parts, "created:>="+c.CreatedAfter.Format(time.DateOnly))
	}
	parts = append(parts, "archived:false", "fork:false")
	if p.Qualifier != "" {
		parts = append(parts, p.Qualifier)
	}
	return strings.Join(parts, " ")
}
