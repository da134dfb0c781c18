package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

func TestNewGitHub_RequiresTokenAndRepo(t *testing.T) {
	assert.Nil(t, NewGitHub(GitHubConfig{Repository: "o/r"}, testClient()))
	assert.Nil(t, NewGitHub(GitHubConfig{Token: "t", Repository: "norepo"}, testClient()))
	assert.NotNil(t, NewGitHub(GitHubConfig{Token: "t", Repository: "o/r"}, testClient()))
}

func TestGitHub_FindOpenIssueMatchesExactTitle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r/issues", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		assert.Equal(t, "monitoring,website-down", r.URL.Query().Get("labels"))
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]Issue{
			{Number: 1, Title: IssueTitle("Example Staging"), State: "open"},
			{Number: 2, Title: IssueTitle("Example"), State: "open"},
		})
	}))
	defer ts.Close()

	gh := NewGitHub(GitHubConfig{Token: "secret", Repository: "o/r", APIURL: ts.URL}, testClient())
	issue, err := gh.FindOpenIssue(context.Background(), "Example")
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, 2, issue.Number)

	none, err := gh.FindOpenIssue(context.Background(), "Other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGitHub_FindOpenIssueFollowsNextPage(t *testing.T) {
	var pages []string
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		if page == "" {
			w.Header().Set("Link", `<`+ts.URL+`/repos/o/r/issues?page=2>; rel="next", <`+ts.URL+`/repos/o/r/issues?page=2>; rel="last"`)
			issues := make([]Issue, 100)
			for i := range issues {
				issues[i] = Issue{Number: i + 1, Title: IssueTitle(fmt.Sprintf("Site %d", i)), State: "open"}
			}
			json.NewEncoder(w).Encode(issues)
			return
		}
		json.NewEncoder(w).Encode([]Issue{{Number: 101, Title: IssueTitle("Example"), State: "open"}})
	}))
	defer ts.Close()

	gh := NewGitHub(GitHubConfig{Token: "t", Repository: "o/r", APIURL: ts.URL}, testClient())
	issue, err := gh.FindOpenIssue(context.Background(), "Example")
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, 101, issue.Number)
	assert.Equal(t, []string{"", "2"}, pages)
}

func TestNextPage(t *testing.T) {
	link := `<https://api.github.com/x?page=3>; rel="next", <https://api.github.com/x?page=9>; rel="last"`
	assert.Equal(t, "https://api.github.com/x?page=3", nextPage(link))
	assert.Equal(t, "", nextPage(`<https://api.github.com/x?page=1>; rel="prev"`))
	assert.Equal(t, "", nextPage(""))
}

func TestGitHub_CreateIssue(t *testing.T) {
	var got struct {
		Title  string   `json:"title"`
		Body   string   `json:"body"`
		Labels []string `json:"labels"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"number":7,"title":"x","state":"open"}`))
	}))
	defer ts.Close()

	gh := NewGitHub(GitHubConfig{Token: "t", Repository: "o/r", APIURL: ts.URL}, testClient())
	issue, err := gh.CreateIssue(context.Background(), downReport(), RunInfo{RunID: "42", CommitSHA: "0123456789abcdef", Branch: "main"})
	require.NoError(t, err)
	assert.Equal(t, 7, issue.Number)
	assert.Equal(t, IssueTitle("Example"), got.Title)
	assert.Equal(t, []string{"monitoring", "website-down", "automated", "timeout", "critical"}, got.Labels)
	assert.Contains(t, got.Body, "**Error Category**: timeout")
	assert.Contains(t, got.Body, "**Workflow Run ID**: 42")
	assert.Contains(t, got.Body, "**Commit**: 0123456")
}

func TestGitHub_CloseIssueCommentsThenCloses(t *testing.T) {
	var calls []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPatch {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "closed", body["state"])
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	gh := NewGitHub(GitHubConfig{Token: "t", Repository: "o/r", APIURL: ts.URL}, testClient())
	require.NoError(t, gh.CloseIssue(context.Background(), 9, "recovered"))
	assert.Equal(t, []string{"POST /repos/o/r/issues/9/comments", "PATCH /repos/o/r/issues/9"}, calls)
}

func TestIssueLabels_WarningWithoutCategory(t *testing.T) {
	labels := IssueLabels(domain.StatusReport{Severity: domain.SeverityWarning})
	assert.Equal(t, []string{"monitoring", "website-down", "automated", "unknown_error"}, labels)
}
