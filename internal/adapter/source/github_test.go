package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altnbk/saas-landing-page/internal/pkg/config"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

type fakeGitHub struct {
	mu       sync.Mutex
	requests []recordedRequest
	repos    map[string]bool
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *httptest.Server) {
	f := &fakeGitHub{repos: map[string]bool{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGitHub) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body := map[string]interface{}{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})

	if r.Header.Get("Authorization") != "Bearer tkn" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && (r.URL.Path == "/user/repos" || r.URL.Path == "/orgs/acme/repos"):
		// GitHub 返回规范化后的名称
		name := strings.ToLower(body["name"].(string))
		if f.repos[name] {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Repository creation failed.","errors":[{"message":"name already exists on this account"}]}`))
			return
		}
		f.repos[name] = true
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"name":           name,
			"html_url":       "https://github.com/acme/" + name,
			"clone_url":      "https://github.com/acme/" + name + ".git",
			"default_branch": "main",
			"owner":          map[string]string{"login": "acme"},
		})
	case r.URL.Path == "/repos/acme/limited":
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	case strings.HasPrefix(r.URL.Path, "/repos/acme/"):
		f.serveRepo(w, r, strings.TrimPrefix(r.URL.Path, "/repos/acme/"))
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (f *fakeGitHub) serveRepo(w http.ResponseWriter, r *http.Request, rest string) {
	name, sub, _ := strings.Cut(rest, "/")
	switch {
	case r.Method == http.MethodGet && sub == "git/ref/heads/main":
		_, _ = w.Write([]byte(`{"ref":"refs/heads/main","object":{"sha":"head0"}}`))
	case r.Method == http.MethodPost && sub == "git/trees":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sha":"tree1"}`))
	case r.Method == http.MethodPost && sub == "git/commits":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sha":"commit1"}`))
	case r.Method == http.MethodPatch && sub == "git/refs/heads/main":
		_, _ = w.Write([]byte(`{"ref":"refs/heads/main","object":{"sha":"commit1"}}`))
	case r.Method == http.MethodGet && sub == "":
		if f.repos[name] {
			_ = json.NewEncoder(w).Encode(map[string]string{"name": name})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	case r.Method == http.MethodDelete && sub == "":
		if !f.repos[name] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		delete(f.repos, name)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func newTestProvisioner(t *testing.T, baseURL string) *GitHubProvisioner {
	p, err := NewGitHubProvisioner(&config.GitHubConfig{
		BaseURL:   baseURL,
		Token:     "tkn",
		Owner:     "acme",
		OwnerType: "user",
	})
	require.NoError(t, err)
	return p
}

func TestGitHubCreateRepo(t *testing.T) {
	fake, srv := newFakeGitHub(t)
	p := newTestProvisioner(t, srv.URL)

	repo, err := p.CreateRepo(context.Background(), "landing-x", "Landing page for Acme", []File{
		{Path: "index.html", Content: []byte("<h1>Acme</h1>")},
		{Path: "README.md", Content: []byte("# Acme")},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/landing-x", repo.HTMLURL)
	assert.Equal(t, "acme", repo.Owner)
	assert.Equal(t, "main", repo.DefaultBranch)

	require.Len(t, fake.requests, 5)
	assert.Equal(t, "/user/repos", fake.requests[0].Path)

	tree := fake.requests[2].Body["tree"].([]interface{})
	require.Len(t, tree, 2)
	assert.Equal(t, "100644", tree[0].(map[string]interface{})["mode"])

	commit := fake.requests[3].Body
	assert.Equal(t, initialCommitMessage, commit["message"])
	assert.Equal(t, []interface{}{"head0"}, commit["parents"])
	assert.Equal(t, "commit1", fake.requests[4].Body["sha"])
	assert.Equal(t, true, fake.requests[4].Body["force"])
}

func TestGitHubCreateRepoUsesCanonicalName(t *testing.T) {
	fake, srv := newFakeGitHub(t)
	p := newTestProvisioner(t, srv.URL)

	repo, err := p.CreateRepo(context.Background(), "Landing-X", "", []File{{Path: "index.html"}})
	require.NoError(t, err)
	assert.Equal(t, "landing-x", repo.Name)

	require.Len(t, fake.requests, 5)
	for _, req := range fake.requests[1:] {
		assert.True(t, strings.HasPrefix(req.Path, "/repos/acme/landing-x/"), req.Path)
	}
}

func TestGitHubCreateRepoConflict(t *testing.T) {
	_, srv := newFakeGitHub(t)
	p := newTestProvisioner(t, srv.URL)

	_, err := p.CreateRepo(context.Background(), "landing-x", "", nil)
	require.NoError(t, err)

	_, err = p.CreateRepo(context.Background(), "landing-x", "", nil)
	require.Error(t, err)
	assert.Equal(t, pkgErrors.KindConflict, pkgErrors.KindOf(err))
	assert.Contains(t, err.Error(), "name already exists")
	assert.False(t, pkgErrors.IsRetryable(err))
}

func TestGitHubExistsAndDelete(t *testing.T) {
	fake, srv := newFakeGitHub(t)
	p := newTestProvisioner(t, srv.URL)
	ctx := context.Background()

	ok, err := p.Exists(ctx, "landing-x")
	require.NoError(t, err)
	assert.False(t, ok)

	fake.repos["landing-x"] = true
	ok, err = p.Exists(ctx, "landing-x")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.Delete(ctx, "landing-x"))
	// 再次删除不存在的仓库视为成功
	require.NoError(t, p.Delete(ctx, "landing-x"))
}

func TestGitHubErrorClassification(t *testing.T) {
	_, srv := newFakeGitHub(t)
	ctx := context.Background()

	_, err := newTestProvisioner(t, srv.URL).Exists(ctx, "limited")
	assert.Equal(t, pkgErrors.KindRateLimited, pkgErrors.KindOf(err))
	assert.True(t, pkgErrors.IsRetryable(err))

	bad, err := NewGitHubProvisioner(&config.GitHubConfig{BaseURL: srv.URL, Token: "wrong", Owner: "acme"})
	require.NoError(t, err)
	_, err = bad.Exists(ctx, "landing-x")
	assert.Equal(t, pkgErrors.KindPermanent, pkgErrors.KindOf(err))
	assert.Contains(t, err.Error(), "Bad credentials")

	srv.Close()
	_, err = newTestProvisioner(t, srv.URL).Exists(ctx, "landing-x")
	require.Error(t, err)
}

func TestMockProvisionerUniqueness(t *testing.T) {
	m := NewMockProvisioner("acme")
	ctx := context.Background()

	_, err := m.CreateRepo(ctx, "landing-a", "", []File{{Path: "index.html"}})
	require.NoError(t, err)
	_, err = m.CreateRepo(ctx, "landing-a", "", nil)
	assert.Equal(t, pkgErrors.KindConflict, pkgErrors.KindOf(err))
	assert.Equal(t, 2, m.Calls())
	assert.Len(t, m.Files("landing-a"), 1)
}
