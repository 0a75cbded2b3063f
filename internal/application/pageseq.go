package application

import (
	"context"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
)

// pageFetcher returns one page of search results, 1-based.
type pageFetcher func(ctx context.Context, page int) ([]model.Repository, error)

// pageSeq is a lazy, finite sequence of search result pages keyed by a page
// cursor. A failed fetch leaves the cursor in place, so calling Next again
// retries the same page.
type pageSeq struct {
	fetch     pageFetcher
	pageSize  int
	maxPages  int
	cursor    int
	exhausted bool
}

func newPageSeq(fetch pageFetcher, pageSize, maxPages int) *pageSeq {
	return &pageSeq{
		fetch:    fetch,
		pageSize: pageSize,
		maxPages: maxPages,
		cursor:   1,
	}
}

// Next fetches the page at the cursor. ok is false once the provider returned
// a short page or the page ceiling is reached.
func (s *pageSeq) Next(ctx context.Context) (items []model.Repository, ok bool, err error) {
	if s.Done() {
		return nil, false, nil
	}

	items, err = s.fetch(ctx, s.cursor)
	if err != nil {
		return nil, false, err
	}

	s.cursor++
	if len(items) < s.pageSize {
		s.exhausted = true
	}
	return items, true, nil
}

// Cursor returns the next page number to fetch.
func (s *pageSeq) Cursor() int { return s.cursor }

// Exhausted reports whether the provider returned a short page.
func (s *pageSeq) Exhausted() bool { return s.exhausted }

// Done reports whether Next would return no further pages.
func (s *pageSeq) Done() bool { return s.exhausted || s.cursor > s.maxPages }
