package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"newsbrief/internal/logger"
)

var scopes = []string{
	gmailapi.GmailReadonlyScope,
	gmailapi.GmailSendScope,
	gmailapi.GmailModifyScope,
}

const redirectAddr = "localhost:8080"

// loadOAuthConfig reads the Google OAuth client secrets file.
func loadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("credentials file not found at %s (download the OAuth client JSON from Google Cloud Console): %w", credentialsPath, err)
	}

	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	conf.RedirectURL = "http://" + redirectAddr
	return conf, nil
}

// loadToken reads a cached OAuth token from disk.
func loadToken(tokenPath string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", tokenPath, err)
	}
	return tok, nil
}

// saveToken persists an OAuth token for future runs.
func saveToken(tokenPath string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(tokenPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", tokenPath, err)
	}
	logger.Infof("Token saved to %s", tokenPath)
	return nil
}

// Setup runs the OAuth2 installed-app flow: it opens a local callback
// server, prints the consent URL, exchanges the returned code, and caches
// the token at tokenPath.
func Setup(ctx context.Context, credentialsPath, tokenPath string) error {
	conf, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return err
	}

	state := fmt.Sprintf("newsbrief-%d", time.Now().UnixNano())
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	server := &http.Server{Addr: redirectAddr, Handler: mux}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- fmt.Errorf("oauth state mismatch")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- fmt.Errorf("oauth callback missing code parameter")
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this tab.")
		codeCh <- code
	})

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("oauth callback server failed: %w", err)
		}
	}()
	defer server.Shutdown(context.Background()) //nolint:errcheck

	fmt.Println("Open the following URL in your browser to authorize access:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	return saveToken(tokenPath, tok)
}

// NewService builds an authenticated Gmail service from the cached token,
// refreshing and re-persisting it when expired.
func NewService(ctx context.Context, credentialsPath, tokenPath string) (*gmailapi.Service, error) {
	conf, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}

	tok, err := loadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("no cached token at %s; run `newsbrief setup` first: %w", tokenPath, err)
	}

	source := conf.TokenSource(ctx, tok)
	fresh, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh OAuth token (re-run `newsbrief setup`): %w", err)
	}
	if fresh.AccessToken != tok.AccessToken {
		logger.Info("Refreshed expired OAuth token")
		if err := saveToken(tokenPath, fresh); err != nil {
			logger.Warnf("could not persist refreshed token: %v", err)
		}
	}

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}
