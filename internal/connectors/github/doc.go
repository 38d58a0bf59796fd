// Package github implements an ingestion source for GitHub repositories.
//
// The source pages through repository listings and emits one entity per
// repository, keyed by its full name ("owner/repo"). Three listings are
// supported, selected by the ingestion options:
//
//   - no owner: every repository the token can access (owned, collaborator
//     and organisation member repositories)
//   - owner with owner_type "org": an organisation's repositories
//   - owner with owner_type "user": a user's repositories
//
// Listings are sorted by full name so the page number used as cursor
// addresses the same slice of the inventory for the whole cycle.
//
// # Configuration
//
// Ingestion options accept the following keys:
//
//   - owner, owner_type: listing selection as above
//   - token_env: environment variable holding the token (default GITHUB_TOKEN)
//   - base_url: API endpoint override for GitHub Enterprise
//   - per_page: repositories per page, 1 to 100 (default 100)
//   - include_archived: emit archived repositories (default false)
//   - include_forks: emit forks (default true)
//   - requests_per_second: proactive throttle rate (default 1.2)
//
// # Rate Limiting
//
// The source implements a dual-strategy rate limiting approach:
//
//  1. Proactive throttling: a token bucket limits requests to approximately
//     1.2 requests per second, staying well under the 5,000/hour limit.
//
//  2. Reactive handling: the source monitors X-RateLimit-Remaining and
//     X-RateLimit-Reset headers. When limits are nearly exhausted, it waits
//     until the reset time before continuing.
//
// Rate limit and API errors fail the burst and are retried by the
// ingestion's backoff schedule.
package github
