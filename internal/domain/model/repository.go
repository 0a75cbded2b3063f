package model

import (
	"fmt"
	"time"
)

// Repository represents a GitHub repository surfaced by discovery.
type Repository struct {
	ID         int64 // GitHub repository ID, globally unique.
	Owner      string
	Name       string
	URL        string
	Stars      int
	LicenseKey string // SPDX-style key as reported by GitHub ("mit", "apache-2.0"); empty if none.
	Partition  string // Partition that first surfaced the repository.

	DiscoveredAt time.Time

	// Processed is false while validation has not been attempted. Once set it
	// never reverts.
	Processed   bool
	ProcessedAt time.Time
}

// FullName returns the "owner/name" form of the repository.
func (r Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}
