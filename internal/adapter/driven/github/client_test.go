package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/prharvest/internal/adapter/driven/github"
	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/")
	require.NoError(t, err)

	return client
}

type repoJSON struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	HTMLURL  string       `json:"html_url"`
	Stars    int          `json:"stargazers_count"`
	Owner    userJSON     `json:"owner"`
	License  *licenseJSON `json:"license,omitempty"`
	Archived bool         `json:"archived"`
}

type userJSON struct {
	Login string `json:"login"`
}

type licenseJSON struct {
	Key string `json:"key"`
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestSearchRepositories(t *testing.T) {
	var gotQuery, gotSort, gotOrder, gotPage, gotPerPage string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/repositories", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotSort = r.URL.Query().Get("sort")
		gotOrder = r.URL.Query().Get("order")
		gotPage = r.URL.Query().Get("page")
		gotPerPage = r.URL.Query().Get("per_page")

		writeJSON(t, w, map[string]any{
			"total_count":        2,
			"incomplete_results": false,
			"items": []repoJSON{
				{
					ID:      101,
					Name:    "hello",
					HTMLURL: "https://github.com/octo/hello",
					Stars:   4200,
					Owner:   userJSON{Login: "octo"},
					License: &licenseJSON{Key: "mit"},
				},
				{
					ID:      102,
					Name:    "nolicense",
					HTMLURL: "https://github.com/octo/nolicense",
					Stars:   1500,
					Owner:   userJSON{Login: "octo"},
				},
			},
		})
	})

	client := newTestClient(t, handler)
	repos, err := client.SearchRepositories(context.Background(), `stars:>=1000 language:"Go"`, 2, 100)

	require.NoError(t, err)
	require.Len(t, repos, 2)

	assert.Equal(t, `stars:>=1000 language:"Go"`, gotQuery)
	assert.Equal(t, "stars", gotSort)
	assert.Equal(t, "desc", gotOrder)
	assert.Equal(t, "2", gotPage)
	assert.Equal(t, "100", gotPerPage)

	assert.Equal(t, int64(101), repos[0].ID)
	assert.Equal(t, "octo", repos[0].Owner)
	assert.Equal(t, "hello", repos[0].Name)
	assert.Equal(t, "https://github.com/octo/hello", repos[0].URL)
	assert.Equal(t, 4200, repos[0].Stars)
	assert.Equal(t, "mit", repos[0].LicenseKey)

	assert.Equal(t, "", repos[1].LicenseKey, "missing license maps to empty key")
}

func TestSearchMergedPRs(t *testing.T) {
	var gotQuery, gotSort, gotPerPage string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/issues", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotSort = r.URL.Query().Get("sort")
		gotPerPage = r.URL.Query().Get("per_page")

		writeJSON(t, w, map[string]any{
			"total_count": 3,
			"items": []map[string]any{
				{"number": 30}, {"number": 20}, {"number": 10},
			},
		})
	})

	client := newTestClient(t, handler)
	numbers, err := client.SearchMergedPRs(context.Background(), "octo", "hello", 2)

	require.NoError(t, err)
	assert.Equal(t, "repo:octo/hello is:pr is:merged", gotQuery)
	assert.Equal(t, "updated", gotSort)
	assert.Equal(t, "2", gotPerPage)
	assert.Equal(t, []int{30, 20}, numbers, "result is truncated to the sample size")
}

func TestFetchPRDetail(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/octo/hello/pulls/7", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"id":            9007,
			"number":        7,
			"html_url":      "https://github.com/octo/hello/pull/7",
			"additions":     400,
			"deletions":     150,
			"changed_files": 6,
			"merged":        true,
			"merged_at":     "2026-02-01T10:00:00Z",
			"head":          map[string]any{"sha": "abc123"},
		})
	})

	client := newTestClient(t, handler)
	detail, err := client.FetchPRDetail(context.Background(), "octo", "hello", 7)

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, int64(9007), detail.ID)
	assert.Equal(t, 7, detail.Number)
	assert.Equal(t, "https://github.com/octo/hello/pull/7", detail.URL)
	assert.Equal(t, 400, detail.Additions)
	assert.Equal(t, 150, detail.Deletions)
	assert.Equal(t, 6, detail.ChangedFiles)
	assert.Equal(t, "abc123", detail.HeadSHA)
	assert.True(t, detail.Merged)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), detail.MergedAt.UTC())
}

func TestFetchChangedFiles_Pagination(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/octo/hello/pulls/7/files", r.URL.Path)
		page := r.URL.Query().Get("page")

		if page == "" || page == "1" {
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, "http://"+r.Host+r.URL.Path))
			writeJSON(t, w, []map[string]any{
				{"filename": "src/foo.ts"},
				{"filename": "README.md"},
			})
			return
		}

		writeJSON(t, w, []map[string]any{
			{"filename": "src/foo.test.ts"},
		})
	})

	client := newTestClient(t, handler)
	files, err := client.FetchChangedFiles(context.Background(), "octo", "hello", 7)

	require.NoError(t, err)
	assert.Equal(t, []string{"src/foo.ts", "README.md", "src/foo.test.ts"}, files)
}

func TestFetchCombinedStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/octo/hello/commits/abc123/status", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"state": "failure",
			"statuses": []map[string]any{
				{"context": "ci/build", "state": "failure"},
			},
		})
	})

	client := newTestClient(t, handler)
	state, err := client.FetchCombinedStatus(context.Background(), "octo", "hello", "abc123")

	require.NoError(t, err)
	assert.Equal(t, model.CommitStateFailure, state)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		want    error
	}{
		{name: "not found is permanent", status: http.StatusNotFound, want: driven.ErrPermanent},
		{name: "gone is permanent", status: http.StatusGone, want: driven.ErrPermanent},
		{name: "unprocessable is permanent", status: http.StatusUnprocessableEntity, want: driven.ErrPermanent},
		{name: "access blocked is permanent", status: http.StatusForbidden, want: driven.ErrPermanent},
		{name: "legal takedown is permanent", status: http.StatusUnavailableForLegalReasons, want: driven.ErrPermanent},
		{
			name:    "primary rate limit is transient",
			status:  http.StatusForbidden,
			headers: map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Limit": "5000"},
			want:    driven.ErrTransient,
		},
		{
			name:    "secondary rate limit is transient",
			status:  http.StatusForbidden,
			headers: map[string]string{"Retry-After": "1"},
			body:    `{"message":"slow down","documentation_url":"https://docs.github.com/en/rest/overview/resources-in-the-rest-api#secondary-rate-limits"}`,
			want:    driven.ErrTransient,
		},
		{name: "bad gateway is transient", status: http.StatusBadGateway, want: driven.ErrTransient},
		{name: "too many requests is transient", status: http.StatusTooManyRequests, want: driven.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				body := tt.body
				if body == "" {
					body = `{"message":"nope"}`
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(body))
			})

			client := newTestClient(t, handler)
			_, err := client.FetchPRDetail(context.Background(), "octo", "hello", 1)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestErrorClassification_CanceledContextUnclassified(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"state": "success"})
	})

	client := newTestClient(t, handler)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchCombinedStatus(ctx, "octo", "hello", "abc")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, driven.ErrTransient)
	assert.NotErrorIs(t, err, driven.ErrPermanent)
}
