package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/mikey/phishing-detector/internal/core"
)

const clientSecrets = `{
  "installed": {
    "client_id": "client-id.apps.googleusercontent.com",
    "client_secret": "client-secret",
    "redirect_uris": ["http://localhost"],
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token"
  }
}`

func newTestStore(t *testing.T) *TokenStore {
	t.Helper()
	dir := t.TempDir()
	credPath := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(credPath, []byte(clientSecrets), 0600))
	return NewTokenStore(credPath, filepath.Join(dir, "token.json"), 0, []string{"scope"}, zap.NewNop())
}

func TestTokenRoundTrip(t *testing.T) {
	store := newTestStore(t)

	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
	require.NoError(t, store.saveToken(token))

	loaded, err := store.tokenFromFile()
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, loaded.Valid())
}

func TestClientReusesValidStoredToken(t *testing.T) {
	store := newTestStore(t)

	token := &oauth2.Token{
		AccessToken: "still-good",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
	require.NoError(t, store.saveToken(token))

	// A valid stored token must authenticate without re-triggering the
	// interactive consent flow (which would block on a browser redirect).
	client, err := store.Client(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestClientMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(filepath.Join(dir, "nope.json"), filepath.Join(dir, "token.json"), 0, []string{"scope"}, zap.NewNop())

	_, err := store.Client(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindAuth, core.KindOf(err))
}

func TestClientInvalidCredentials(t *testing.T) {
	dir := t.TempDir()
	credPath := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(credPath, []byte("not json"), 0600))
	store := NewTokenStore(credPath, filepath.Join(dir, "token.json"), 0, []string{"scope"}, zap.NewNop())

	_, err := store.Client(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindAuth, core.KindOf(err))
}

func TestSaveTokenPermissions(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.saveToken(&oauth2.Token{AccessToken: "a"}))

	info, err := os.Stat(store.tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
