// Package google provides shared infrastructure for Google API sources.
//
// This package contains common utilities used by the drive source:
//   - an environment-backed oauth2.TokenSource
//   - service factories for creating Google API clients
//   - error handling for common Google API errors (401, 403, 404, 410, 429)
//   - rate limiting to respect Google API quotas
//
// # Usage
//
//	ts := google.NewEnvTokenSource("GOOGLE_ACCESS_TOKEN")
//	svc, err := google.NewDriveService(ctx, google.ServiceOptions{TokenSource: ts})
//
// # OAuth2 Scopes
//
// The drive source needs https://www.googleapis.com/auth/drive.metadata.readonly.
package google
