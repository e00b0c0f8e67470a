// Command oauth-init runs the one-time browser consent flow and saves
// the Google token the export worker uses for spreadsheet access. Run it
// once on a machine with a browser, then ship the token file alongside
// the worker's configuration.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"caltrack/internal/cli"
	"caltrack/internal/config"
	applog "caltrack/internal/log"
)

func main() {
	port := flag.String("port", "8085", "local port for the OAuth redirect (must match an authorized redirect URI)")
	timeout := flag.Duration("timeout", 5*time.Minute, "how long to wait for the browser consent")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentOAuthInit)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	tok, err := authorize(ctx, cfg, *port)
	if err != nil {
		logger.Error("Authorization failed", "error", err)
		os.Exit(1)
	}

	if err := saveToken(cfg.GoogleOAuthTokenFile, tok); err != nil {
		logger.Error("Failed to save token", "error", err, "path", cfg.GoogleOAuthTokenFile)
		os.Exit(1)
	}
	logger.Info("Token saved", "path", cfg.GoogleOAuthTokenFile)
}

// authorize walks the authorization-code flow: print the consent URL,
// catch the redirect on a local listener, trade the code for a token.
func authorize(ctx context.Context, cfg *config.Config, port string) (*oauth2.Token, error) {
	oauthCfg, err := oauthConfig(cfg, port)
	if err != nil {
		return nil, err
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "Authorization was denied.", http.StatusBadRequest)
			errCh <- fmt.Errorf("provider returned error: %s", q.Get("error"))
		case q.Get("state") != state:
			http.Error(w, "State mismatch.", http.StatusBadRequest)
			errCh <- errors.New("oauth state mismatch")
		default:
			fmt.Fprintln(w, "Authorized. You can close this window.")
			codeCh <- q.Get("code")
		}
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("callback listener: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Open this URL in a browser to authorize spreadsheet access:\n\n%s\n\n",
		oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case code := <-codeCh:
		tok, err := oauthCfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization not completed: %w", ctx.Err())
	}
}

func oauthConfig(cfg *config.Config, port string) (*oauth2.Config, error) {
	var b []byte
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		b = []byte(cfg.GoogleOAuthClientJSON)
	case cfg.GoogleOAuthClientFile != "":
		var err error
		b, err = os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}

	oauthCfg, err := google.ConfigFromJSON(b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client config: %w", err)
	}
	// The OAuth client must list this URI among its authorized redirects.
	oauthCfg.RedirectURL = "http://localhost:" + port + "/callback"
	return oauthCfg, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tok); err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return nil
}
