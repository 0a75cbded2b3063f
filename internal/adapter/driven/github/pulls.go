package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
)

// maxFilePages bounds ListFiles pagination. GitHub stops listing at 3000 files.
const maxFilePages = 30

// FetchPRDetail returns diff stats, merge state and head commit for a single PR.
func (c *Client) FetchPRDetail(ctx context.Context, owner, name string, number int) (*model.PRDetail, error) {
	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("fetching PR detail for %s/%s#%d: %w", owner, name, number, classify(err))
	}

	logRateLimit(resp, owner+"/"+name+"/pr-detail", 0, 1)

	return mapPRDetail(pr), nil
}

// FetchChangedFiles returns every filename touched by the PR. It handles
// pagination automatically.
func (c *Client) FetchChangedFiles(ctx context.Context, owner, name string, number int) ([]string, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var filenames []string

	for range maxFilePages {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files for %s/%s#%d (page %d): %w", owner, name, number, opts.Page, classify(err))
		}

		logRateLimit(resp, owner+"/"+name+"/files", opts.Page, len(files))

		for _, f := range files {
			filenames = append(filenames, f.GetFilename())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return filenames, nil
}

// mapPRDetail converts a go-github PullRequest to a domain model PRDetail.
func mapPRDetail(pr *gh.PullRequest) *model.PRDetail {
	return &model.PRDetail{
		ID:           pr.GetID(),
		Number:       pr.GetNumber(),
		URL:          pr.GetHTMLURL(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		HeadSHA:      pr.GetHead().GetSHA(),
		Merged:       pr.GetMerged() || !pr.GetMergedAt().IsZero(),
		MergedAt:     pr.GetMergedAt().Time,
	}
}
