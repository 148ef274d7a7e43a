package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenSourceProvider adapts an oauth2.TokenSource to Provider. Tokens are
// cached and refreshed shortly before expiry by oauth2.ReuseTokenSource.
type TokenSourceProvider struct {
	source oauth2.TokenSource
}

// NewTokenSourceProvider wraps src in a caching token source.
func NewTokenSourceProvider(src oauth2.TokenSource) *TokenSourceProvider {
	return &TokenSourceProvider{source: oauth2.ReuseTokenSource(nil, src)}
}

// NewGoogleDefaultProvider resolves Google application default credentials
// (GOOGLE_APPLICATION_CREDENTIALS, gcloud user credentials or the metadata
// server) for the given scopes.
func NewGoogleDefaultProvider(ctx context.Context, scopes ...string) (*TokenSourceProvider, error) {
	src, err := google.DefaultTokenSource(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("application default credentials: %w", err)
	}
	return NewTokenSourceProvider(src), nil
}

// Token returns the current access token, fetching a new one when the cached
// token is expired.
func (p *TokenSourceProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.current(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// InjectHeader sets the Authorization header from the current token.
func (p *TokenSourceProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	tok, err := p.current(ctx)
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	return nil
}

func (p *TokenSourceProvider) current(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tok, err := p.source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token source returned an empty access token")
	}
	return tok, nil
}

// Close is a no-op; token sources hold no resources.
func (p *TokenSourceProvider) Close() error {
	return nil
}
