package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

const (
	// DefaultPageSize is the number of files emitted per page.
	DefaultPageSize = 500

	// DefaultDebounce is how long the watcher waits for changes to settle.
	DefaultDebounce = 2 * time.Second
)

// Config holds the parsed configuration for a filesystem source.
type Config struct {
	// Root is the absolute directory whose files are listed.
	Root string

	// PageSize is the number of files per page.
	PageSize int

	// IncludeHidden lists dot files and descends into dot directories.
	IncludeHidden bool

	// Debounce delays watch notifications until changes settle.
	Debounce time.Duration
}

// ParseConfig parses ingestion options into a Config. The root option is required.
func ParseConfig(options map[string]string) (*Config, error) {
	root := strings.TrimSpace(options["root"])
	if root == "" {
		return nil, fmt.Errorf("%w: root is required", domain.ErrInvalidInput)
	}
	if strings.HasPrefix(root, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expand root: %w", err)
		}
		root = filepath.Join(home, strings.TrimPrefix(root, "~"))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	cfg := &Config{
		Root:     abs,
		PageSize: DefaultPageSize,
		Debounce: DefaultDebounce,
	}

	if v := options["page_size"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: page_size must be a positive integer", domain.ErrInvalidInput)
		}
		cfg.PageSize = n
	}
	if v := options["include_hidden"]; v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: include_hidden must be true or false", domain.ErrInvalidInput)
		}
		cfg.IncludeHidden = b
	}
	if v := options["watch_debounce"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%w: watch_debounce must be a duration", domain.ErrInvalidInput)
		}
		cfg.Debounce = d
	}

	return cfg, nil
}
