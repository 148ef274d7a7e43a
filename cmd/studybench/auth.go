package main

import (
	"context"
	"strings"

	"github.com/torosent/studybench/internal/auth"
	"github.com/torosent/studybench/internal/config"
)

// buildAuthProvider prefers a static bearer token and falls back to Google
// application default credentials.
func buildAuthProvider(ctx context.Context, cfg config.AuthConfig) (auth.Provider, error) {
	if token := strings.TrimSpace(cfg.Token); token != "" {
		return auth.NewStaticTokenProvider(token), nil
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{config.DefaultScope}
	}
	return auth.NewGoogleDefaultProvider(ctx, scopes...)
}
