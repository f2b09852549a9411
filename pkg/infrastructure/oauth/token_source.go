package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/pulseloop/server/pkg/types"
)

// TokenSource exposes a stored user credential as an oauth2.TokenSource.
// Token refresh is the auth service's concern; by the time a credential
// reaches the pipeline its access token is expected to be live.
func TokenSource(cred *types.UserCredential) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.OAuthToken,
	})
}

// NewClient returns an HTTP client that attaches the credential's bearer
// token to every provider request.
func NewClient(ctx context.Context, cred *types.UserCredential) *http.Client {
	return oauth2.NewClient(ctx, TokenSource(cred))
}
