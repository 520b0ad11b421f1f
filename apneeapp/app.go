package apneeapp

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/etnz/apnee/config"
)

// App holds the bridge's state and dependencies, like the Google Drive service client.
type App struct {
	DriveService *drive.Service
	// FileName is the name of the data file on Drive.
	FileName string
	Auth     *Authenticator

	limiter *RateLimiter
}

// New creates and returns a new, fully initialized App instance.
//
// The Drive service authenticates every request with the stored token, loaded on
// first use, so New succeeds before the user has ever logged in and picks up a new
// login immediately. opts are applied after, and may replace the HTTP client.
func New(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (*App, error) {
	auth := NewAuthenticator(cfg)
	client := &http.Client{Transport: &oauth2.Transport{Source: auth.TokenSource()}}
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)

	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create drive service: %w", err)
	}

	return &App{
		DriveService: driveService,
		FileName:     cfg.FileName,
		Auth:         auth,
		limiter:      NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst),
	}, nil
}
