package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Type is the ingestion type served by this package.
const Type = "filesystem"

// KindFile is the entity kind emitted for regular files.
const KindFile = "file"

// Ensure Source implements the interfaces.
var (
	_ driven.Source  = (*Source)(nil)
	_ driven.Watcher = (*Source)(nil)
)

// Source lists the regular files under a root directory in path order.
// The cursor is the slash-separated relative path of the last file emitted,
// so files created or removed between bursts never shift later pages.
type Source struct {
	provider string
	config   *Config
}

// New creates a filesystem source.
func New(provider string, cfg *Config) *Source {
	return &Source{provider: provider, config: cfg}
}

// Build is the driven.SourceBuilder for filesystem ingestions.
func Build(_ context.Context, provider string, options map[string]string) (driven.Source, error) {
	cfg, err := ParseConfig(options)
	if err != nil {
		return nil, err
	}
	return New(provider, cfg), nil
}

// ProviderName returns the stable key identifying this source.
func (s *Source) ProviderName() string {
	return s.provider
}

// Around runs fn with a session that snapshots the tree once per burst.
func (s *Source) Around(ctx context.Context, fn func(ctx context.Context, session driven.FetchSession) error) error {
	sess := &session{source: s}
	defer func() { sess.files = nil }()
	return fn(ctx, sess)
}

type fileInfo struct {
	path    string
	size    int64
	modTime time.Time
}

type session struct {
	source *Source
	files  []fileInfo
	listed bool
}

// Next returns up to PageSize files whose path sorts after cursor.
func (sess *session) Next(ctx context.Context, cursor string) (*domain.Page, error) {
	if !sess.listed {
		files, err := sess.source.list(ctx)
		if err != nil {
			return nil, err
		}
		sess.files = files
		sess.listed = true
	}

	start := sort.Search(len(sess.files), func(i int) bool {
		return sess.files[i].path > cursor
	})
	end := start + sess.source.config.PageSize
	if end > len(sess.files) {
		end = len(sess.files)
	}

	entities := make([]domain.Entity, 0, end-start)
	for _, f := range sess.files[start:end] {
		entities = append(entities, domain.Entity{
			Key:  f.path,
			Kind: KindFile,
			Attributes: map[string]string{
				"size":     strconv.FormatInt(f.size, 10),
				"mod_time": f.modTime.UTC().Format(time.RFC3339),
			},
		})
	}

	if end == len(sess.files) {
		return &domain.Page{Entities: entities, Done: true}, nil
	}
	return &domain.Page{Entities: entities, Cursor: sess.files[end-1].path}, nil
}

// list walks the root and returns its regular files sorted by relative path.
func (s *Source) list(ctx context.Context) ([]fileInfo, error) {
	root := s.config.Root
	var files []fileInfo

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != root && s.skip(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// Removed between readdir and stat.
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, fileInfo{
			path:    filepath.ToSlash(rel),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

func (s *Source) skip(name string) bool {
	return !s.config.IncludeHidden && strings.HasPrefix(name, ".")
}
