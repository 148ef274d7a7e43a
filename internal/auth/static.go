package auth

import "golang.org/x/oauth2"

// NewStaticTokenProvider serves a fixed access token, such as the output of
// `gcloud auth print-access-token`. The token carries no expiry and is never
// refreshed, so a run outliving it fails with HTTP 401.
func NewStaticTokenProvider(token string) *TokenSourceProvider {
	return &TokenSourceProvider{
		source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
	}
}
