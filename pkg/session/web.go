package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// WebSession is the identity carried by the non-admin session collaborator.
// Only the email matters to resolution; everything else about the actor
// comes from the identity store.
type WebSession struct {
	Email string
}

// Source yields the web session for a request, or nil when the request
// carries no usable credential. A nil session is not an error; the
// middleware turns it into a 401 only after the admin probe also missed.
type Source interface {
	GetSession(r *http.Request) (*WebSession, error)
}

// OIDCSource verifies an ID-token cookie minted by the identity provider
// the web application signs users in with
type OIDCSource struct {
	verifier   *oidc.IDTokenVerifier
	cookieName string
}

// NewOIDCSource builds a Source from the provider's discovery document
func NewOIDCSource(ctx context.Context, issuer, clientID, cookieName string) (*OIDCSource, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &OIDCSource{
		verifier:   provider.Verifier(&oidc.Config{ClientID: clientID}),
		cookieName: cookieName,
	}, nil
}

// GetSession verifies the ID-token cookie. Invalid or absent tokens yield
// (nil, nil); token verification failure is an authentication miss, not an
// infrastructure error.
func (s *OIDCSource) GetSession(r *http.Request) (*WebSession, error) {
	c, err := r.Cookie(s.cookieName)
	if err != nil || c.Value == "" {
		return nil, nil
	}

	idToken, err := s.verifier.Verify(r.Context(), c.Value)
	if err != nil {
		return nil, nil
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil || claims.Email == "" {
		return nil, nil
	}

	return &WebSession{Email: claims.Email}, nil
}
