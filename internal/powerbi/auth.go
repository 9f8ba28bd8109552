package powerbi

import (
	"context"
	"errors"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AccessToken is a bearer credential for the dataset API. It is used for a
// single publish and then dropped.
type AccessToken struct {
	Value  string
	Type   string
	Expiry time.Time
}

// TokenURL returns the v2.0 token endpoint for tenantID.
func (c *Client) TokenURL(tenantID string) string {
	return c.cfg.AuthorityHost + "/" + url.PathEscape(tenantID) + "/oauth2/v2.0/token"
}

// Authenticate requests an access token with the client-credentials grant.
// Any response without an access_token fails with *AuthenticationError.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*AccessToken, error) {
	scope := creds.Scope
	if scope == "" {
		scope = c.cfg.Scope
	}

	cc := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     c.TokenURL(creds.TenantID),
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// Token is called directly rather than through a TokenSource so nothing
	// is cached between publishes.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := cc.Token(ctx)
	if err != nil {
		authErr := &AuthenticationError{Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			if retrieveErr.Response != nil {
				authErr.StatusCode = retrieveErr.Response.StatusCode
			}
			authErr.Code = retrieveErr.ErrorCode
			authErr.Description = retrieveErr.ErrorDescription
			authErr.Body = capBody(retrieveErr.Body)
		}
		c.logger.Warn("token request failed",
			"tenant_id", creds.TenantID,
			"status", authErr.StatusCode,
			"code", authErr.Code,
		)
		return nil, authErr
	}
	if tok.AccessToken == "" {
		return nil, &AuthenticationError{Err: errors.New("token response missing access_token")}
	}

	c.logger.Debug("token acquired", "tenant_id", creds.TenantID, "expiry", tok.Expiry)
	return &AccessToken{
		Value:  tok.AccessToken,
		Type:   tok.Type(),
		Expiry: tok.Expiry,
	}, nil
}
