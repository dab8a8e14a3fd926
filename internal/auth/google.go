package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleProfile is the subset of the userinfo response we keep.
type GoogleProfile struct {
	ID    string
	Email string
	Name  string
}

// GoogleVerifier exchanges OAuth authorization codes for verified profiles.
type GoogleVerifier struct {
	config *oauth2.Config
}

func NewGoogleVerifier(clientID, clientSecret, redirectURL string) *GoogleVerifier {
	return &GoogleVerifier{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{goauth.UserinfoEmailScope, goauth.UserinfoProfileScope},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the consent page URL for the given CSRF state.
func (v *GoogleVerifier) AuthURL(state string) string {
	return v.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeCode trades the authorization code for a token and fetches the
// user's profile from the userinfo endpoint.
func (v *GoogleVerifier) ExchangeCode(ctx context.Context, code string) (*GoogleProfile, error) {
	token, err := v.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	svc, err := goauth.NewService(ctx, option.WithTokenSource(v.config.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("creating userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}
	if info.Id == "" || info.Email == "" {
		return nil, fmt.Errorf("incomplete userinfo response")
	}

	return &GoogleProfile{
		ID:    info.Id,
		Email: info.Email,
		Name:  info.Name,
	}, nil
}
