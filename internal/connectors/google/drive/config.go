package drive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// DefaultTokenEnv is the environment variable holding the access token.
const DefaultTokenEnv = "GOOGLE_ACCESS_TOKEN"

// MimeTypeFolder identifies Drive folders, which are never emitted.
const MimeTypeFolder = "application/vnd.google-apps.folder"

// Config holds Google Drive source configuration.
type Config struct {
	// FolderIDs limits listing to files directly inside these folders (optional).
	FolderIDs []string
	// MimeTypeFilter limits listing to specific MIME types (optional).
	MimeTypeFilter []string
	// PageSize is the page size for API requests.
	PageSize int64
	// TokenEnv names the environment variable holding an access token.
	TokenEnv string
	// CredentialsFile is used instead of TokenEnv when set.
	CredentialsFile string
	// Endpoint overrides the API base URL.
	Endpoint string
	// RequestsPerSecond overrides the default throttle rate.
	RequestsPerSecond float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PageSize: 100,
		TokenEnv: DefaultTokenEnv,
	}
}

// ParseConfig extracts configuration from ingestion options.
func ParseConfig(options map[string]string) (*Config, error) {
	cfg := DefaultConfig()

	cfg.FolderIDs = splitList(options["folder_ids"])
	cfg.MimeTypeFilter = splitList(options["mime_types"])
	cfg.CredentialsFile = strings.TrimSpace(options["credentials_file"])
	cfg.Endpoint = strings.TrimSpace(options["endpoint"])

	if val := strings.TrimSpace(options["token_env"]); val != "" {
		cfg.TokenEnv = val
	}

	if val := options["page_size"]; val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil || n <= 0 || n > 1000 {
			return nil, fmt.Errorf("%w: page_size must be between 1 and 1000", domain.ErrInvalidInput)
		}
		cfg.PageSize = n
	}

	if val := options["requests_per_second"]; val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("%w: requests_per_second must be positive", domain.ErrInvalidInput)
		}
		cfg.RequestsPerSecond = f
	}

	return cfg, nil
}

// Query builds the files.list search expression.
func (c *Config) Query() string {
	clauses := []string{"trashed = false", fmt.Sprintf("mimeType != '%s'", MimeTypeFolder)}
	if len(c.FolderIDs) > 0 {
		clauses = append(clauses, anyOf("'%s' in parents", c.FolderIDs))
	}
	if len(c.MimeTypeFilter) > 0 {
		clauses = append(clauses, anyOf("mimeType = '%s'", c.MimeTypeFilter))
	}
	return strings.Join(clauses, " and ")
}

func anyOf(format string, values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf(format, escapeQuery(v))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
