package apneeapp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/etnz/apnee/config"
)

// DefaultLoginTimeout bounds the time the user has to go through the consent page.
const DefaultLoginTimeout = 5 * time.Minute

// Authenticator runs the OAuth 2.0 flow and provides the tokens it stored.
type Authenticator struct {
	Config *oauth2.Config
	Store  *TokenStore
	// OpenURL opens the consent page. Defaults to the system browser.
	OpenURL func(url string) error
	// Out receives the instructions meant for the user.
	Out     io.Writer
	Timeout time.Duration

	ts *tokenSource

	mu      sync.Mutex
	running bool
}

// NewAuthenticator creates an Authenticator for the OAuth client described in cfg.
// The scope grants read and write access to the user's files, since the data file
// may have been created by another application.
func NewAuthenticator(cfg *config.Config) *Authenticator {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{drive.DriveScope},
		Endpoint:     google.Endpoint,
	}
	store := &TokenStore{Path: cfg.TokenPath}
	return &Authenticator{
		Config:  oauthConfig,
		Store:   store,
		OpenURL: browser.OpenURL,
		Out:     os.Stderr,
		Timeout: DefaultLoginTimeout,
		ts:      &tokenSource{config: oauthConfig, store: store},
	}
}

// TokenSource returns the token source backed by the stored token.
func (a *Authenticator) TokenSource() oauth2.TokenSource {
	return a.ts
}

// Login initiates the OAuth 2.0 flow to get and store a user token.
func (a *Authenticator) Login(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrLoginInProgress
	}
	a.running = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	redirect, err := url.Parse(a.Config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("invalid redirect URL %q", a.Config.RedirectURL)
	}

	// Create a random state string for CSRF protection.
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return fmt.Errorf("failed to generate random state: %w", err)
	}
	state := fmt.Sprintf("%x", stateBytes)

	// Buffered, so the callback handler never blocks once Login gave up.
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		// Check for errors from Google.
		if errMsg := r.FormValue("error"); errMsg != "" {
			report(errChan, fmt.Errorf("authentication failed: %s", errMsg))
			fmt.Fprintf(w, "Authentication failed. You can close this window.")
			return
		}
		if r.FormValue("state") != state {
			report(errChan, errors.New("invalid state parameter received"))
			http.Error(w, "Invalid state parameter.", http.StatusBadRequest)
			return
		}
		code := r.FormValue("code")
		if code == "" {
			report(errChan, errors.New("no authorization code received"))
			http.Error(w, "No authorization code received.", http.StatusBadRequest)
			return
		}
		select {
		case codeChan <- code:
		default:
		}
		fmt.Fprintf(w, "Authentication successful! You can now close this browser window and return to the application.")
	})

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("callback server: %w", err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			report(errChan, fmt.Errorf("callback server error: %w", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("failed to shutdown callback server")
		}
	}()

	authURL := a.Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(a.Out, "Your browser should open for you to grant access to your Google Drive...")
	if err := a.OpenURL(authURL); err != nil {
		fmt.Fprintf(a.Out, "\nIf your browser didn't open, please open this URL manually:\n\n%s\n\n", authURL)
	}

	var authCode string
	select {
	case authCode = <-codeChan:
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}

	tok, err := a.Config.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code for token: %w", err)
	}
	if err := a.Store.Save(tok); err != nil {
		return err
	}
	a.ts.Reset()
	logrus.Info("logged in to Google Drive")
	return nil
}

func report(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
	}
}

// TokenStore keeps the OAuth token in a JSON file readable by the user only.
type TokenStore struct {
	Path string
}

// Save saves a token to the file.
func (s *TokenStore) Save(token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token to file: %w", err)
	}
	return nil
}

// Load reads the token back. It returns ErrNotLoggedIn when none was saved.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("token file is empty. Please log in again")
		}
		return nil, fmt.Errorf("failed to decode token from file: %w", err)
	}
	return tok, nil
}

// tokenSource loads the stored token on first use and persists the refreshed ones.
type tokenSource struct {
	config *oauth2.Config
	store  *TokenStore

	mu   sync.Mutex
	base oauth2.TokenSource
	last string
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.base == nil {
		tok, err := s.store.Load()
		if err != nil {
			return nil, err
		}
		s.base = s.config.TokenSource(context.Background(), tok)
		s.last = tok.AccessToken
	}

	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	if tok.AccessToken != s.last {
		if err := s.store.Save(tok); err != nil {
			logrus.WithError(err).Warn("could not persist refreshed token")
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// Reset forgets the cached token, the next call reads the store again.
func (s *tokenSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = nil
	s.last = ""
}
