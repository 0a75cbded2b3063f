package github

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
)

// FetchCombinedStatus returns the combined commit status for the given ref.
// A ref with no statuses reports "pending", which callers treat as not green.
func (c *Client) FetchCombinedStatus(ctx context.Context, owner, name, ref string) (model.CommitState, error) {
	cs, resp, err := c.gh.Repositories.GetCombinedStatus(ctx, owner, name, ref, nil)
	if err != nil {
		return "", fmt.Errorf("fetching combined status for %s/%s@%s: %w", owner, name, ref, classify(err))
	}

	logRateLimit(resp, owner+"/"+name+"/status", 0, len(cs.Statuses))

	return model.CommitState(cs.GetState()), nil
}
