package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// classify wraps err with driven.ErrTransient or driven.ErrPermanent based on
// the GitHub response. Context cancellation and unrecognized errors are
// returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %w", driven.ErrTransient, err)
	}

	// Rate limits on 403/429 surface as the typed errors above. Any other 403
	// is an access block on the repository and does not clear by retrying.
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch code := respErr.Response.StatusCode; {
		case code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", driven.ErrTransient, err)
		case code == http.StatusNotFound,
			code == http.StatusGone,
			code == http.StatusForbidden,
			code == http.StatusUnavailableForLegalReasons,
			// Search returns 422 when the repo: qualifier names a renamed or deleted repository.
			code == http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %w", driven.ErrPermanent, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", driven.ErrTransient, err)
	}

	return err
}
