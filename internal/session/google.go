package session

import (
	"bitwise74/course-archive/config"
	"bitwise74/course-archive/internal/model"
	"context"
	"errors"
	"fmt"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var ErrNoIDToken = errors.New("token response has no id_token")

// Provider is the third party that proves who a user is
type Provider interface {
	// AuthCodeURL is where the browser is sent to log in
	AuthCodeURL(state string) string
	// Exchange trades the code from the callback for a verified identity
	Exchange(ctx context.Context, code string) (*model.Identity, error)
}

type GoogleProvider struct {
	conf   *oauth2.Config
	domain string
}

func NewGoogleProvider(cfg config.OAuthConfig, domain string) *GoogleProvider {
	return &GoogleProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		domain: domain,
	}
}

// AuthCodeURL asks Google to only offer accounts of the institution's domain.
// The hint is not trusted, the callback checks the domain again.
func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("hd", g.domain),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*model.Identity, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code, %w", err)
	}

	idToken, ok := tok.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, ErrNoIDToken
	}

	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.conf.ClientID}); err != nil {
		return nil, fmt.Errorf("failed to verify id token, %w", err)
	}

	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decode id token, %w", err)
	}

	return &model.Identity{Email: claimSet.Email, Name: claimSet.Name}, nil
}
