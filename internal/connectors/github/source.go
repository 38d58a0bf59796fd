package github

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Type is the ingestion type served by this package.
const Type = "github"

// KindRepository is the entity kind emitted for repositories.
const KindRepository = "repository"

// Ensure Source implements the interface.
var _ driven.Source = (*Source)(nil)

// Source pages through the repositories visible to a GitHub identity.
// The cursor is the next page number.
type Source struct {
	provider string
	config   *Config
	client   *Client
}

// New creates a source over an existing client.
func New(provider string, cfg *Config, client *Client) *Source {
	return &Source{
		provider: provider,
		config:   cfg,
		client:   client,
	}
}

// Build is the driven.SourceBuilder for GitHub ingestions.
// The token is read from the environment variable named by token_env.
func Build(ctx context.Context, provider string, options map[string]string) (driven.Source, error) {
	cfg, err := ParseConfig(options)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(ctx, cfg, os.Getenv(cfg.TokenEnv))
	if err != nil {
		return nil, err
	}
	return New(provider, cfg, client), nil
}

// ProviderName returns the stable key identifying this source.
func (s *Source) ProviderName() string {
	return s.provider
}

// Around runs fn with a session over the shared client.
// The client holds no per-burst resources so there is nothing to release.
func (s *Source) Around(ctx context.Context, fn func(ctx context.Context, session driven.FetchSession) error) error {
	return fn(ctx, &session{source: s})
}

type session struct {
	source *Source
}

// Next fetches the page of repositories addressed by cursor.
func (sess *session) Next(ctx context.Context, cursor string) (*domain.Page, error) {
	page, err := parseCursor(cursor)
	if err != nil {
		return nil, err
	}

	repos, next, err := sess.source.client.ListRepos(ctx, page)
	if err != nil {
		return nil, err
	}

	cfg := sess.source.config
	entities := make([]domain.Entity, 0, len(repos))
	for _, r := range FilterRepos(repos, cfg.IncludeArchived, cfg.IncludeForks) {
		entities = append(entities, repoEntity(r))
	}

	if next == 0 {
		return &domain.Page{Entities: entities, Done: true}, nil
	}
	return &domain.Page{Entities: entities, Cursor: strconv.Itoa(next)}, nil
}

// FilterRepos filters repositories based on criteria.
func FilterRepos(repos []*gh.Repository, includeArchived, includeForks bool) []*gh.Repository {
	filtered := make([]*gh.Repository, 0, len(repos))
	for _, r := range repos {
		if r.GetArchived() && !includeArchived {
			continue
		}
		if r.GetFork() && !includeForks {
			continue
		}
		if r.GetDisabled() {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func repoEntity(r *gh.Repository) domain.Entity {
	attrs := map[string]string{
		"html_url":       r.GetHTMLURL(),
		"default_branch": r.GetDefaultBranch(),
		"private":        strconv.FormatBool(r.GetPrivate()),
		"archived":       strconv.FormatBool(r.GetArchived()),
		"fork":           strconv.FormatBool(r.GetFork()),
	}
	if lang := r.GetLanguage(); lang != "" {
		attrs["language"] = lang
	}
	if desc := r.GetDescription(); desc != "" {
		attrs["description"] = desc
	}
	if pushed := r.GetPushedAt(); !pushed.IsZero() {
		attrs["pushed_at"] = pushed.UTC().Format(time.RFC3339)
	}
	return domain.Entity{
		Key:        r.GetFullName(),
		Kind:       KindRepository,
		Attributes: attrs,
	}
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return page, nil
}
