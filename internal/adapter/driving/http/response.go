package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// StatsResponse is the JSON representation of store counts.
type StatsResponse struct {
	Repositories int `json:"repositories"`
	Processed    int `json:"processed"`
	Pending      int `json:"pending"`
	PullRequests int `json:"pull_requests"`
}

// RepoResponse is the JSON representation of a discovered repository.
type RepoResponse struct {
	ID           int64   `json:"id"`
	FullName     string  `json:"full_name"`
	Owner        string  `json:"owner"`
	Name         string  `json:"name"`
	URL          string  `json:"url"`
	Stars        int     `json:"stars"`
	License      string  `json:"license"`
	Partition    string  `json:"partition"`
	Processed    bool    `json:"processed"`
	DiscoveredAt string  `json:"discovered_at"`
	ProcessedAt  *string `json:"processed_at"`
}

// PRResponse is the JSON representation of an accepted pull request.
type PRResponse struct {
	ID           int64   `json:"id"`
	RepoID       int64   `json:"repo_id"`
	Number       int     `json:"number"`
	URL          string  `json:"url"`
	Additions    int     `json:"additions"`
	Deletions    int     `json:"deletions"`
	ChangedLines int     `json:"changed_lines"`
	ChangedFiles int     `json:"changed_files"`
	HeadSHA      string  `json:"head_sha"`
	MergedAt     *string `json:"merged_at"`
	ValidatedAt  string  `json:"validated_at"`
}

func toStatsResponse(s model.Stats) StatsResponse {
	return StatsResponse{
		Repositories: s.Repositories,
		Processed:    s.Processed,
		Pending:      s.Pending,
		PullRequests: s.PullRequests,
	}
}

// toRepoResponse converts a domain Repository to its JSON response representation.
func toRepoResponse(repo model.Repository) RepoResponse {
	return RepoResponse{
		ID:           repo.ID,
		FullName:     repo.FullName(),
		Owner:        repo.Owner,
		Name:         repo.Name,
		URL:          repo.URL,
		Stars:        repo.Stars,
		License:      repo.LicenseKey,
		Partition:    repo.Partition,
		Processed:    repo.Processed,
		DiscoveredAt: repo.DiscoveredAt.UTC().Format(time.RFC3339),
		ProcessedAt:  optionalTime(repo.ProcessedAt),
	}
}

// toPRResponse converts a domain PullRequest to its JSON response representation.
func toPRResponse(pr model.PullRequest) PRResponse {
	return PRResponse{
		ID:           pr.ID,
		RepoID:       pr.RepoID,
		Number:       pr.Number,
		URL:          pr.URL,
		Additions:    pr.Additions,
		Deletions:    pr.Deletions,
		ChangedLines: pr.ChangedLines(),
		ChangedFiles: pr.ChangedFiles,
		HeadSHA:      pr.HeadSHA,
		MergedAt:     optionalTime(pr.MergedAt),
		ValidatedAt:  pr.ValidatedAt.UTC().Format(time.RFC3339),
	}
}

func toPRResponses(prs []model.PullRequest) []PRResponse {
	resp := make([]PRResponse, 0, len(prs))
	for _, pr := range prs {
		resp = append(resp, toPRResponse(pr))
	}
	return resp
}

// optionalTime formats t as RFC 3339, or returns nil for the zero time.
func optionalTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
