// Package application contains use-case orchestration services.
package application

import "github.com/ericfisherdev/prharvest/internal/domain/model"

// FilterLicensed returns the repositories whose license key is on the
// allow-list, in input order. Repositories without a license are dropped.
// The input slice is not modified.
func FilterLicensed(repos []model.Repository, allow model.LicenseAllowList) []model.Repository {
	kept := make([]model.Repository, 0, len(repos))
	for _, repo := range repos {
		if allow.Allows(repo.LicenseKey) {
			kept = append(kept, repo)
		}
	}
	return kept
}
