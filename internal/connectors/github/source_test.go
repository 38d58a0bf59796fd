package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

type repoJSON struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	Archived bool   `json:"archived"`
	Fork     bool   `json:"fork"`
	Private  bool   `json:"private"`
	Language string `json:"language,omitempty"`
}

// newRepoServer serves the given pages for path, linking each page to the next.
func newRepoServer(t *testing.T, path string, pages [][]repoJSON) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			page, _ = strconv.Atoi(p)
		}
		if page < 1 || page > len(pages) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
			return
		}
		if page < len(pages) {
			w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=%d>; rel="next"`, srv.URL, path, page+1))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(HeaderRateRemaining, "4999")
		_ = json.NewEncoder(w).Encode(pages[page-1])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSource(t *testing.T, srv *httptest.Server, options map[string]string) *Source {
	t.Helper()
	opts := map[string]string{"base_url": srv.URL, "requests_per_second": "1000"}
	for k, v := range options {
		opts[k] = v
	}
	cfg, err := ParseConfig(opts)
	require.NoError(t, err)
	client, err := NewClientWithHTTPClient(cfg, srv.Client())
	require.NoError(t, err)
	return New("gh-acme", cfg, client)
}

func collect(t *testing.T, src driven.Source) []*domain.Page {
	t.Helper()
	var pages []*domain.Page
	err := src.Around(context.Background(), func(ctx context.Context, session driven.FetchSession) error {
		cursor := ""
		for {
			page, err := session.Next(ctx, cursor)
			if err != nil {
				return err
			}
			pages = append(pages, page)
			if page.Done {
				return nil
			}
			cursor = page.Cursor
		}
	})
	require.NoError(t, err)
	return pages
}

func TestSource_PagesThroughOrgRepos(t *testing.T) {
	srv := newRepoServer(t, "/orgs/acme/repos", [][]repoJSON{
		{{FullName: "acme/api", Language: "Go"}, {FullName: "acme/web"}},
		{{FullName: "acme/zeta", Private: true}},
	})
	src := newTestSource(t, srv, map[string]string{"owner": "acme", "owner_type": "org"})

	pages := collect(t, src)

	require.Len(t, pages, 2)
	assert.Equal(t, "2", pages[0].Cursor)
	assert.False(t, pages[0].Done)
	assert.True(t, pages[1].Done)
	assert.Empty(t, pages[1].Cursor)

	require.Len(t, pages[0].Entities, 2)
	api := pages[0].Entities[0]
	assert.Equal(t, "acme/api", api.Key)
	assert.Equal(t, KindRepository, api.Kind)
	assert.Equal(t, "Go", api.Attributes["language"])
	assert.Equal(t, "false", api.Attributes["private"])
	assert.Equal(t, "true", pages[1].Entities[0].Attributes["private"])
}

func TestSource_OwnerDefaultsToOrg(t *testing.T) {
	srv := newRepoServer(t, "/orgs/acme/repos", [][]repoJSON{{{FullName: "acme/api"}}})
	src := newTestSource(t, srv, map[string]string{"owner": "acme"})

	pages := collect(t, src)

	require.Len(t, pages, 1)
	assert.True(t, pages[0].Done)
}

func TestSource_UserRepos(t *testing.T) {
	srv := newRepoServer(t, "/users/octo/repos", [][]repoJSON{{{FullName: "octo/dots"}}})
	src := newTestSource(t, srv, map[string]string{"owner": "octo", "owner_type": "user"})

	pages := collect(t, src)

	require.Len(t, pages, 1)
	assert.Equal(t, "octo/dots", pages[0].Entities[0].Key)
}

func TestSource_AuthenticatedRepos(t *testing.T) {
	srv := newRepoServer(t, "/user/repos", [][]repoJSON{{{FullName: "me/notes"}}})
	src := newTestSource(t, srv, nil)

	pages := collect(t, src)

	require.Len(t, pages, 1)
	assert.Equal(t, "me/notes", pages[0].Entities[0].Key)
}

func TestSource_FiltersArchivedAndForks(t *testing.T) {
	repos := [][]repoJSON{{
		{FullName: "acme/live"},
		{FullName: "acme/old", Archived: true},
		{FullName: "acme/copy", Fork: true},
	}}

	t.Run("defaults drop archived only", func(t *testing.T) {
		srv := newRepoServer(t, "/orgs/acme/repos", repos)
		pages := collect(t, newTestSource(t, srv, map[string]string{"owner": "acme"}))
		assert.Equal(t, []string{"acme/live", "acme/copy"}, keys(pages[0].Entities))
	})

	t.Run("explicit options", func(t *testing.T) {
		srv := newRepoServer(t, "/orgs/acme/repos", repos)
		pages := collect(t, newTestSource(t, srv, map[string]string{
			"owner":            "acme",
			"include_archived": "true",
			"include_forks":    "false",
		}))
		assert.Equal(t, []string{"acme/live", "acme/old"}, keys(pages[0].Entities))
	})
}

func TestSource_ResumesFromCursor(t *testing.T) {
	srv := newRepoServer(t, "/orgs/acme/repos", [][]repoJSON{
		{{FullName: "acme/a"}},
		{{FullName: "acme/b"}},
		{{FullName: "acme/c"}},
	})
	src := newTestSource(t, srv, map[string]string{"owner": "acme"})

	var page *domain.Page
	err := src.Around(context.Background(), func(ctx context.Context, session driven.FetchSession) error {
		var err error
		page, err = session.Next(ctx, "2")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, "acme/b", page.Entities[0].Key)
	assert.Equal(t, "3", page.Cursor)
}

func TestSource_Errors(t *testing.T) {
	t.Run("invalid cursor", func(t *testing.T) {
		srv := newRepoServer(t, "/orgs/acme/repos", nil)
		src := newTestSource(t, srv, map[string]string{"owner": "acme"})
		err := src.Around(context.Background(), func(ctx context.Context, session driven.FetchSession) error {
			_, err := session.Next(ctx, "not-a-page")
			return err
		})
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("api error is an ordinary failure", func(t *testing.T) {
		srv := newRepoServer(t, "/orgs/acme/repos", nil)
		src := newTestSource(t, srv, map[string]string{"owner": "missing"})
		err := src.Around(context.Background(), func(ctx context.Context, session driven.FetchSession) error {
			_, err := session.Next(ctx, "")
			return err
		})
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.False(t, domain.IsCanceled(err))
	})
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			options: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, OwnerAuthenticated, cfg.OwnerType)
				assert.Equal(t, DefaultTokenEnv, cfg.TokenEnv)
				assert.Equal(t, DefaultPerPage, cfg.PerPage)
				assert.False(t, cfg.IncludeArchived)
				assert.True(t, cfg.IncludeForks)
			},
		},
		{
			name:    "user owner",
			options: map[string]string{"owner": "octo", "owner_type": "User", "per_page": "50", "token_env": "GH_PAT"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, OwnerUser, cfg.OwnerType)
				assert.Equal(t, 50, cfg.PerPage)
				assert.Equal(t, "GH_PAT", cfg.TokenEnv)
			},
		},
		{name: "unknown owner type", options: map[string]string{"owner": "x", "owner_type": "team"}, wantErr: true},
		{name: "owner type without owner", options: map[string]string{"owner_type": "org"}, wantErr: true},
		{name: "per page too large", options: map[string]string{"per_page": "500"}, wantErr: true},
		{name: "bad bool", options: map[string]string{"include_forks": "maybe"}, wantErr: true},
		{name: "bad rate", options: map[string]string{"requests_per_second": "-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(tt.options)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestBuild_RequiresTokenForAuthenticatedListing(t *testing.T) {
	t.Setenv("SERCHA_TEST_EMPTY_TOKEN", "")

	_, err := Build(context.Background(), "gh", map[string]string{"token_env": "SERCHA_TEST_EMPTY_TOKEN"})

	assert.ErrorIs(t, err, ErrMissingToken)
}

func keys(entities []domain.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Key
	}
	return out
}
