package github

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// OwnerType selects which repository listing endpoint a source pages through.
type OwnerType string

const (
	// OwnerAuthenticated lists every repository the token can access.
	OwnerAuthenticated OwnerType = ""
	// OwnerOrg lists the repositories of an organisation.
	OwnerOrg OwnerType = "org"
	// OwnerUser lists the public repositories of a user.
	OwnerUser OwnerType = "user"
)

const (
	// DefaultTokenEnv is the environment variable holding the access token.
	DefaultTokenEnv = "GITHUB_TOKEN"

	// DefaultPerPage is the page size requested from the API (GitHub's maximum).
	DefaultPerPage = 100
)

// Config holds the parsed configuration for a GitHub source.
type Config struct {
	// Owner is the organisation or user whose repositories are listed.
	// Empty lists the authenticated user's accessible repositories.
	Owner string

	// OwnerType selects the listing endpoint for Owner.
	OwnerType OwnerType

	// TokenEnv names the environment variable holding the access token.
	TokenEnv string

	// BaseURL overrides the API endpoint (GitHub Enterprise, tests).
	BaseURL string

	// PerPage is the number of repositories requested per page.
	PerPage int

	// RequestsPerSecond overrides the proactive throttle rate.
	RequestsPerSecond float64

	IncludeArchived bool
	IncludeForks    bool
}

// ParseConfig parses ingestion options into a Config.
// All keys are optional; by default every accessible repository is listed.
func ParseConfig(options map[string]string) (*Config, error) {
	cfg := &Config{
		Owner:             strings.TrimSpace(options["owner"]),
		OwnerType:         OwnerType(strings.ToLower(strings.TrimSpace(options["owner_type"]))),
		TokenEnv:          DefaultTokenEnv,
		BaseURL:           strings.TrimSpace(options["base_url"]),
		PerPage:           DefaultPerPage,
		RequestsPerSecond: ProactiveRate,
		IncludeForks:      true,
	}

	if env := strings.TrimSpace(options["token_env"]); env != "" {
		cfg.TokenEnv = env
	}

	switch cfg.OwnerType {
	case OwnerAuthenticated, OwnerOrg, OwnerUser:
	default:
		return nil, fmt.Errorf("%w: owner_type must be org or user, got %q", domain.ErrInvalidInput, cfg.OwnerType)
	}
	if cfg.Owner != "" && cfg.OwnerType == OwnerAuthenticated {
		cfg.OwnerType = OwnerOrg
	}
	if cfg.Owner == "" && cfg.OwnerType != OwnerAuthenticated {
		return nil, fmt.Errorf("%w: owner_type %q requires owner", domain.ErrInvalidInput, cfg.OwnerType)
	}

	if v, ok := options["per_page"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > DefaultPerPage {
			return nil, fmt.Errorf("%w: per_page must be between 1 and %d", domain.ErrInvalidInput, DefaultPerPage)
		}
		cfg.PerPage = n
	}

	if v, ok := options["requests_per_second"]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("%w: requests_per_second must be positive", domain.ErrInvalidInput)
		}
		cfg.RequestsPerSecond = f
	}

	var err error
	if cfg.IncludeArchived, err = parseBool(options, "include_archived", false); err != nil {
		return nil, err
	}
	if cfg.IncludeForks, err = parseBool(options, "include_forks", true); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseBool(options map[string]string, key string, fallback bool) (bool, error) {
	v, ok := options[key]
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
	}
	return b, nil
}
