package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
)

// SearchRepositories returns one page of repository search results for query,
// sorted by stars descending. page is 1-based.
func (c *Client) SearchRepositories(ctx context.Context, query string, page, perPage int) ([]model.Repository, error) {
	opts := &gh.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("searching repositories (page %d): %w", page, classify(err))
	}

	logRateLimit(resp, "search/repositories", page, len(result.Repositories))

	repos := make([]model.Repository, 0, len(result.Repositories))
	for _, r := range result.Repositories {
		repos = append(repos, mapRepository(r))
	}

	return repos, nil
}

// SearchMergedPRs returns the numbers of up to limit merged pull requests in
// owner/name, most recently updated first.
func (c *Client) SearchMergedPRs(ctx context.Context, owner, name string, limit int) ([]int, error) {
	query := fmt.Sprintf("repo:%s/%s is:pr is:merged", owner, name)
	opts := &gh.SearchOptions{
		Sort:  "updated",
		Order: "desc",
		ListOptions: gh.ListOptions{
			PerPage: limit,
		},
	}

	result, resp, err := c.gh.Search.Issues(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("searching merged PRs for %s/%s: %w", owner, name, classify(err))
	}

	logRateLimit(resp, "search/issues", 0, len(result.Issues))

	numbers := make([]int, 0, len(result.Issues))
	for _, issue := range result.Issues {
		if len(numbers) == limit {
			break
		}
		numbers = append(numbers, issue.GetNumber())
	}

	return numbers, nil
}

// mapRepository converts a go-github Repository to a domain model Repository.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapRepository(r *gh.Repository) model.Repository {
	return model.Repository{
		ID:           r.GetID(),
		Owner:        r.GetOwner().GetLogin(),
		Name:         r.GetName(),
		URL:          r.GetHTMLURL(),
		Stars:        r.GetStargazersCount(),
		LicenseKey:   r.GetLicense().GetKey(),
		DiscoveredAt: time.Time{}, // Set by the store on insert.
	}
}
