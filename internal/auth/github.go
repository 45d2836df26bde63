// Package auth implements the identity provider collaborator: an OAuth code
// exchange resolving a GitHub authorization code to a stable external
// identity. The rest of the system trusts this identity verbatim.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Identity is the external identity resolved from the OAuth handshake.
type Identity struct {
	GithubID   string
	Username   string
	Email      string
	Avatar     string
	ProfileURL string
}

// IdentityProvider resolves an authorization code to an Identity. Tests
// substitute a fake.
type IdentityProvider interface {
	AuthURL() string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

const githubUserAPI = "https://api.github.com/user"

// GithubProvider implements IdentityProvider against GitHub OAuth.
type GithubProvider struct {
	oauth *oauth2.Config
}

func NewGithubProvider(clientID, clientSecret string) *GithubProvider {
	return &GithubProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// AuthURL returns the URL the client visits to start the OAuth flow.
func (p *GithubProvider) AuthURL() string {
	return p.oauth.AuthCodeURL("")
}

// Exchange swaps the authorization code for an access token and fetches the
// GitHub user behind it.
func (p *GithubProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubUserAPI, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching github user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user endpoint returned %d", resp.StatusCode)
	}

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
		HTMLURL   string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&githubUser); err != nil {
		return nil, fmt.Errorf("decoding github user: %w", err)
	}

	return &Identity{
		GithubID:   strconv.FormatInt(githubUser.ID, 10),
		Username:   githubUser.Login,
		Email:      githubUser.Email,
		Avatar:     githubUser.AvatarURL,
		ProfileURL: githubUser.HTMLURL,
	}, nil
}
