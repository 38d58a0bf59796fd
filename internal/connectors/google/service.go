package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// ServiceOptions selects how a Google API client authenticates and where it connects.
type ServiceOptions struct {
	// TokenSource supplies access tokens. Ignored when HTTPClient is set.
	TokenSource oauth2.TokenSource

	// CredentialsFile is a service account or authorized user JSON file.
	// Used when TokenSource is nil.
	CredentialsFile string

	// Endpoint overrides the API base URL.
	Endpoint string

	// UserAgent is sent with every request.
	UserAgent string
}

func (o ServiceOptions) clientOptions() ([]option.ClientOption, error) {
	var opts []option.ClientOption
	switch {
	case o.TokenSource != nil:
		opts = append(opts, option.WithTokenSource(o.TokenSource))
	case o.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	default:
		return nil, ErrNoCredentials
	}
	if o.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.Endpoint))
	}
	if o.UserAgent != "" {
		opts = append(opts, option.WithUserAgent(o.UserAgent))
	}
	return opts, nil
}

// NewDriveService creates a Google Drive API service.
func NewDriveService(ctx context.Context, o ServiceOptions) (*drive.Service, error) {
	opts, err := o.clientOptions()
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}
