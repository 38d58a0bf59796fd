package drive

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/google"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Type is the ingestion type served by this package.
const Type = "gdrive"

// KindFile is the entity kind emitted for Drive files.
const KindFile = "file"

// listFields limits files.list responses to what entities carry.
const listFields googleapi.Field = "nextPageToken, files(id, name, mimeType, modifiedTime, size, webViewLink, md5Checksum, parents)"

// Ensure Source implements the interface.
var _ driven.Source = (*Source)(nil)

// Source pages through the files visible to a Google identity.
// The cursor is the Drive page token.
type Source struct {
	provider    string
	config      *Config
	svc         *drive.Service
	rateLimiter *google.RateLimiter
}

// New creates a source over an existing Drive service.
func New(provider string, cfg *Config, svc *drive.Service) *Source {
	limiter := google.NewRateLimiter(google.ServiceDrive)
	if cfg.RequestsPerSecond > 0 {
		limiter = google.NewRateLimiterWithConfig(google.RateLimitConfig{
			RequestsPerSecond: cfg.RequestsPerSecond,
			BurstSize:         1,
		})
	}
	return &Source{
		provider:    provider,
		config:      cfg,
		svc:         svc,
		rateLimiter: limiter,
	}
}

// Build is the driven.SourceBuilder for Google Drive ingestions.
func Build(ctx context.Context, provider string, options map[string]string) (driven.Source, error) {
	cfg, err := ParseConfig(options)
	if err != nil {
		return nil, err
	}

	opts := google.ServiceOptions{
		CredentialsFile: cfg.CredentialsFile,
		Endpoint:        cfg.Endpoint,
		UserAgent:       "sercha-ingest",
	}
	if cfg.CredentialsFile == "" {
		opts.TokenSource = google.NewEnvTokenSource(cfg.TokenEnv)
	}

	svc, err := google.NewDriveService(ctx, opts)
	if err != nil {
		return nil, err
	}
	return New(provider, cfg, svc), nil
}

// ProviderName returns the stable key identifying this source.
func (s *Source) ProviderName() string {
	return s.provider
}

// Around runs fn with a session over the shared service.
func (s *Source) Around(ctx context.Context, fn func(ctx context.Context, session driven.FetchSession) error) error {
	return fn(ctx, &session{source: s, query: s.config.Query()})
}

type session struct {
	source *Source
	query  string
}

// Next fetches the page of files addressed by cursor.
// An expired page token cancels the cycle so it restarts from the first page.
func (sess *session) Next(ctx context.Context, cursor string) (*domain.Page, error) {
	s := sess.source
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := s.svc.Files.List().
		Q(sess.query).
		PageSize(s.config.PageSize).
		OrderBy("name").
		Fields(listFields).
		Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	resp, err := call.Do()
	if err != nil {
		err = google.WrapError(err)
		switch {
		case google.IsPageTokenExpired(err):
			return nil, &domain.CancelError{Reason: "drive page token expired"}
		case google.IsRateLimited(err):
			s.rateLimiter.RecordRateLimitError(retryAfter(err))
		}
		return nil, err
	}

	entities := make([]domain.Entity, 0, len(resp.Files))
	for _, f := range resp.Files {
		if f.MimeType == MimeTypeFolder {
			continue
		}
		entities = append(entities, fileEntity(f))
	}

	if resp.NextPageToken == "" {
		return &domain.Page{Entities: entities, Done: true}, nil
	}
	return &domain.Page{Entities: entities, Cursor: resp.NextPageToken}, nil
}

func fileEntity(f *drive.File) domain.Entity {
	attrs := map[string]string{
		"name":      f.Name,
		"mime_type": f.MimeType,
	}
	if f.ModifiedTime != "" {
		attrs["modified_time"] = f.ModifiedTime
	}
	if f.WebViewLink != "" {
		attrs["web_link"] = f.WebViewLink
	}
	if f.Md5Checksum != "" {
		attrs["md5"] = f.Md5Checksum
	}
	if f.Size > 0 {
		attrs["size"] = strconv.FormatInt(f.Size, 10)
	}
	if len(f.Parents) > 0 {
		attrs["parent"] = f.Parents[0]
	}
	return domain.Entity{
		Key:        f.Id,
		Kind:       KindFile,
		Attributes: attrs,
	}
}

// retryAfter reads the Retry-After header of a rate limited response, in seconds.
func retryAfter(err error) int {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0
	}
	n, _ := strconv.Atoi(gerr.Header.Get("Retry-After"))
	return n
}
