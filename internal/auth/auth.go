// Package auth builds authenticated Gmail services for fuc.
//
// OAuth client configuration comes from a Google credentials.json; the
// bearer token lives in the fuc database and is refreshed transparently
// by the oauth2 token source. A refreshed token means a new API context:
// callers construct their Gmail service once per run.
package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes requested from Google. Ingestion only ever reads.
var Scopes = []string{gm.GmailReadonlyScope}

// TokenStore persists the serialized OAuth token between runs.
type TokenStore interface {
	SaveToken(token string) error
	LoadToken() (string, error)
}

// LoadConfig reads a Google credentials.json into an OAuth2 config.
func LoadConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials from %s: %w", credentialsPath, err)
	}
	config, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return config, nil
}

// Service returns an authenticated Gmail service using the stored token,
// saving it back if the token source refreshed it.
func Service(ctx context.Context, credentialsPath string, store TokenStore) (*gm.Service, error) {
	config, err := LoadConfig(credentialsPath)
	if err != nil {
		return nil, err
	}

	raw, err := store.LoadToken()
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, fmt.Errorf("no stored token, run 'fuc auth' first")
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("parse stored token: %w", err)
	}

	ts := config.TokenSource(ctx, &token)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.AccessToken != token.AccessToken {
		if saveErr := saveToken(store, fresh); saveErr != nil {
			// Non-fatal: the run proceeds on the in-memory token.
			fmt.Fprintf(os.Stderr, "warning: could not save refreshed token: %v\n", saveErr)
		}
	}

	return gm.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
}

// Authorize runs the console authorization-code flow: it prints the
// consent URL, reads the code from in, and stores the exchanged token.
func Authorize(ctx context.Context, credentialsPath string, store TokenStore, in io.Reader, out io.Writer) error {
	config, err := LoadConfig(credentialsPath)
	if err != nil {
		return err
	}

	url := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open the following link in your browser, then paste the authorization code:\n%s\n\nCode: ", url)

	var code string
	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		code = scanner.Text()
	}
	if code == "" {
		return fmt.Errorf("no authorization code provided")
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(store, token)
}

func saveToken(store TokenStore, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("serialize token: %w", err)
	}
	return store.SaveToken(string(data))
}
