package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mikey/phishing-detector/internal/core"
)

const consentTimeout = 5 * time.Minute

// TokenStore owns the persisted OAuth credential. It reuses a valid stored
// token, refreshes an expired one via its refresh token, and falls back to an
// interactive consent flow with a local redirect listener.
type TokenStore struct {
	credentialsPath string
	tokenPath       string
	redirectPort    int
	scopes          []string
	logger          *zap.Logger
}

// NewTokenStore creates a new token store
func NewTokenStore(credentialsPath, tokenPath string, redirectPort int, scopes []string, logger *zap.Logger) *TokenStore {
	return &TokenStore{
		credentialsPath: credentialsPath,
		tokenPath:       tokenPath,
		redirectPort:    redirectPort,
		scopes:          scopes,
		logger:          logger,
	}
}

// Client returns an authenticated HTTP client for the mail API. A successful
// (re)authentication rewrites the token file.
func (s *TokenStore) Client(ctx context.Context) (*http.Client, error) {
	conf, err := s.oauthConfig()
	if err != nil {
		return nil, err
	}

	token, err := s.tokenFromFile()
	if err == nil {
		ts := conf.TokenSource(ctx, token)
		refreshed, err := ts.Token()
		if err == nil {
			if refreshed.AccessToken != token.AccessToken {
				if err := s.saveToken(refreshed); err != nil {
					s.logger.Warn("Failed to persist refreshed token", zap.Error(err))
				}
			}
			return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(refreshed, ts)), nil
		}
		s.logger.Info("Stored token is invalid, starting consent flow", zap.Error(err))
	}

	token, err = s.consentFlow(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err := s.saveToken(token); err != nil {
		return nil, core.NewAuthError("failed to persist token", err)
	}

	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token)), nil
}

func (s *TokenStore) oauthConfig() (*oauth2.Config, error) {
	b, err := os.ReadFile(s.credentialsPath)
	if err != nil {
		return nil, core.NewAuthError("missing client secrets configuration", err)
	}
	conf, err := google.ConfigFromJSON(b, s.scopes...)
	if err != nil {
		return nil, core.NewAuthError("invalid client secrets configuration", err)
	}
	return conf, nil
}

func (s *TokenStore) tokenFromFile() (*oauth2.Token, error) {
	f, err := os.Open(s.tokenPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *TokenStore) saveToken(token *oauth2.Token) error {
	f, err := os.OpenFile(s.tokenPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// consentFlow runs the interactive OAuth consent flow. It blocks the calling
// goroutine until the browser redirect delivers an authorization code or the
// flow times out.
func (s *TokenStore) consentFlow(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.redirectPort))
	if err != nil {
		return nil, core.NewAuthError("failed to start redirect listener", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	conf.RedirectURL = fmt.Sprintf("http://localhost:%d/", port)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if denied := r.URL.Query().Get("error"); denied != "" {
			errCh <- fmt.Errorf("consent denied: %s", denied)
			http.Error(w, "Authorization denied.", http.StatusForbidden)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			errCh <- fmt.Errorf("no authorization code in callback")
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Authorization successful. You can close this window and return to the terminal.")
		codeCh <- code
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer server.Close()

	authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	s.logger.Info("Waiting for OAuth consent", zap.String("url", authURL))
	openBrowser(authURL)

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, core.NewAuthError("consent flow failed", err)
	case <-time.After(consentTimeout):
		return nil, core.NewAuthError("consent flow timed out", nil)
	case <-ctx.Done():
		return nil, core.NewAuthError("consent flow canceled", ctx.Err())
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, core.NewAuthError("failed to exchange authorization code", err)
	}
	return token, nil
}

// openBrowser tries to open the URL in the default browser. Failure is not
// fatal; the URL is already logged for manual use.
func openBrowser(url string) {
	switch runtime.GOOS {
	case "linux":
		exec.Command("xdg-open", url).Start()
	case "windows":
		exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		exec.Command("open", url).Start()
	}
}
