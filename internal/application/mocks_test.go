package application_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ericfisherdev/prharvest/internal/application"
	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// fastRetry keeps retry tests quick.
var fastRetry = application.RetryPolicy{
	Attempts:        3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

// --- GitHub client mock ---

type mockGitHubClient struct {
	mu    sync.Mutex
	calls map[string]int

	searchRepositories  func(ctx context.Context, query string, page, perPage int) ([]model.Repository, error)
	searchMergedPRs     func(ctx context.Context, owner, name string, limit int) ([]int, error)
	fetchPRDetail       func(ctx context.Context, owner, name string, number int) (*model.PRDetail, error)
	fetchChangedFiles   func(ctx context.Context, owner, name string, number int) ([]string, error)
	fetchCombinedStatus func(ctx context.Context, owner, name, ref string) (model.CommitState, error)
}

var _ driven.GitHubClient = (*mockGitHubClient)(nil)

func (m *mockGitHubClient) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

func (m *mockGitHubClient) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockGitHubClient) SearchRepositories(ctx context.Context, query string, page, perPage int) ([]model.Repository, error) {
	m.record("SearchRepositories")
	if m.searchRepositories == nil {
		return nil, nil
	}
	return m.searchRepositories(ctx, query, page, perPage)
}

func (m *mockGitHubClient) SearchMergedPRs(ctx context.Context, owner, name string, limit int) ([]int, error) {
	m.record("SearchMergedPRs")
	if m.searchMergedPRs == nil {
		return nil, nil
	}
	return m.searchMergedPRs(ctx, owner, name, limit)
}

func (m *mockGitHubClient) FetchPRDetail(ctx context.Context, owner, name string, number int) (*model.PRDetail, error) {
	m.record("FetchPRDetail")
	if m.fetchPRDetail == nil {
		return &model.PRDetail{Number: number}, nil
	}
	return m.fetchPRDetail(ctx, owner, name, number)
}

func (m *mockGitHubClient) FetchChangedFiles(ctx context.Context, owner, name string, number int) ([]string, error) {
	m.record("FetchChangedFiles")
	if m.fetchChangedFiles == nil {
		return nil, nil
	}
	return m.fetchChangedFiles(ctx, owner, name, number)
}

func (m *mockGitHubClient) FetchCombinedStatus(ctx context.Context, owner, name, ref string) (model.CommitState, error) {
	m.record("FetchCombinedStatus")
	if m.fetchCombinedStatus == nil {
		return model.CommitStatePending, nil
	}
	return m.fetchCombinedStatus(ctx, owner, name, ref)
}

// prFixture describes one PR served by newPRClient.
type prFixture struct {
	detail model.PRDetail
	files  []string
	state  model.CommitState
}

// newPRClient serves the given PRs, by number, for every repository. Merged
// search returns the numbers in fixture order.
func newPRClient(prs ...prFixture) *mockGitHubClient {
	byNumber := make(map[int]prFixture, len(prs))
	numbers := make([]int, 0, len(prs))
	bySHA := make(map[string]model.CommitState, len(prs))
	for _, pr := range prs {
		byNumber[pr.detail.Number] = pr
		numbers = append(numbers, pr.detail.Number)
		bySHA[pr.detail.HeadSHA] = pr.state
	}

	return &mockGitHubClient{
		searchMergedPRs: func(_ context.Context, _, _ string, limit int) ([]int, error) {
			if len(numbers) > limit {
				return numbers[:limit], nil
			}
			return numbers, nil
		},
		fetchPRDetail: func(_ context.Context, _, _ string, number int) (*model.PRDetail, error) {
			pr, ok := byNumber[number]
			if !ok {
				return nil, driven.ErrPermanent
			}
			d := pr.detail
			return &d, nil
		},
		fetchChangedFiles: func(_ context.Context, _, _ string, number int) ([]string, error) {
			return byNumber[number].files, nil
		},
		fetchCombinedStatus: func(_ context.Context, _, _, ref string) (model.CommitState, error) {
			return bySHA[ref], nil
		},
	}
}

// qualifyingPR returns a PR that passes every gate with default thresholds.
func qualifyingPR(number int) prFixture {
	return prFixture{
		detail: model.PRDetail{
			ID:           int64(9000 + number),
			Number:       number,
			URL:          fmt.Sprintf("https://github.com/octo/hello/pull/%d", number),
			Additions:    400,
			Deletions:    150,
			ChangedFiles: 6,
			HeadSHA:      fmt.Sprintf("sha-%d", number),
			Merged:       true,
			MergedAt:     time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		},
		files: []string{"src/foo.ts", "src/foo.test.ts", "README.md"},
		state: model.CommitStateSuccess,
	}
}

// --- Store mocks ---

// memRepoStore is an in-memory RepoStore that keeps insertion order.
type memRepoStore struct {
	mu      sync.Mutex
	order   []int64
	rows    map[int64]model.Repository
	markErr map[int64]error
	marks   []int64
}

var _ driven.RepoStore = (*memRepoStore)(nil)

func newMemRepoStore(repos ...model.Repository) *memRepoStore {
	s := &memRepoStore{rows: make(map[int64]model.Repository)}
	for _, r := range repos {
		s.order = append(s.order, r.ID)
		s.rows[r.ID] = r
	}
	return s
}

func (s *memRepoStore) InsertNew(_ context.Context, repos []model.Repository) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, r := range repos {
		if _, ok := s.rows[r.ID]; ok {
			continue
		}
		r.Processed = false
		s.order = append(s.order, r.ID)
		s.rows[r.ID] = r
		n++
	}
	return n, nil
}

func (s *memRepoStore) Upsert(_ context.Context, repos []model.Repository) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range repos {
		existing, ok := s.rows[r.ID]
		if !ok {
			s.order = append(s.order, r.ID)
			r.Processed = false
			s.rows[r.ID] = r
			continue
		}
		existing.Owner, existing.Name, existing.URL = r.Owner, r.Name, r.URL
		existing.Stars, existing.LicenseKey = r.Stars, r.LicenseKey
		s.rows[r.ID] = existing
	}
	return len(repos), nil
}

func (s *memRepoStore) ListPending(_ context.Context, limit int) ([]model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Repository{}
	for _, id := range s.order {
		if len(out) == limit {
			break
		}
		if r := s.rows[id]; !r.Processed {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRepoStore) MarkProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.markErr[id]; err != nil {
		return err
	}
	r, ok := s.rows[id]
	if !ok {
		return driven.ErrRepoNotFound
	}
	s.marks = append(s.marks, id)
	r.Processed = true
	s.rows[id] = r
	return nil
}

func (s *memRepoStore) GetByID(_ context.Context, id int64) (*model.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memRepoStore) List(_ context.Context, _ model.RepoStatus, _ int) ([]model.Repository, error) {
	return nil, nil
}

func (s *memRepoStore) Stats(_ context.Context) (model.Stats, error) {
	return model.Stats{}, nil
}

func (s *memRepoStore) processed(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].Processed
}

// memPRStore is an in-memory PRStore keyed by PR ID.
type memPRStore struct {
	mu        sync.Mutex
	rows      map[int64]model.PullRequest
	upsertErr error
}

var _ driven.PRStore = (*memPRStore)(nil)

func newMemPRStore() *memPRStore {
	return &memPRStore{rows: make(map[int64]model.PullRequest)}
}

func (s *memPRStore) Upsert(_ context.Context, prs []model.PullRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, pr := range prs {
		s.rows[pr.ID] = pr
	}
	return nil
}

func (s *memPRStore) ListByRepo(_ context.Context, repoID int64) ([]model.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.PullRequest{}
	for _, pr := range s.rows {
		if pr.RepoID == repoID {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (s *memPRStore) ListAll(_ context.Context, _ int) ([]model.PullRequest, error) {
	return nil, nil
}

func (s *memPRStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func makeRepo(id int64, name, license string) model.Repository {
	return model.Repository{
		ID:         id,
		Owner:      "octo",
		Name:       name,
		URL:        "https://github.com/octo/" + name,
		Stars:      5000 - int(id),
		LicenseKey: license,
	}
}
