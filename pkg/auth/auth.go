// Package auth obtains VK access tokens from the OAuth server.
//
// Two non-interactive flows are supported: client_credentials for service tokens
// and password for direct authorization of trusted applications. Captcha and
// validation challenges are returned as typed errors for the caller to resolve.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the VK OAuth server.
const DefaultBaseURL = "https://oauth.vk.com/"

// GrantType selects the OAuth flow.
type GrantType string

const (
	// GrantClientCredentials requests a service token for the application itself.
	GrantClientCredentials GrantType = "client_credentials"

	// GrantPassword requests a user token from the user's login and password.
	GrantPassword GrantType = "password"
)

// tokenPath returns the endpoint of the flow relative to the OAuth base URL.
func (g GrantType) tokenPath() string {
	if g == GrantPassword {
		return "token"
	}
	return "access_token"
}

// Config holds authenticator settings.
type Config struct {
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// BaseURL of the OAuth server (default DefaultBaseURL).
	BaseURL string

	ClientID     string
	ClientSecret string

	// Username and Password select the password grant when both are set.
	Username string
	Password string

	// Scope is a comma-separated permission list (password grant only).
	Scope string

	// APIVersion is sent as "v".
	APIVersion string

	UserAgent string
}

// Token is a successful OAuth response.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      int64  `json:"user_id,omitempty"`

	// IssuedAt is set by the authenticator.
	IssuedAt time.Time `json:"-"`
}

// Expires returns when the token stops being valid. Zero means it does not expire.
func (t *Token) Expires() time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Authenticator requests access tokens.
type Authenticator struct {
	client   *http.Client
	cfg      Config
	grant    GrantType
	tokenURL *url.URL
	logger   zerolog.Logger
}

// NewAuthenticator validates cfg and picks the grant type.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.ClientID == "" {
		return nil, &AuthError{Err: errors.New("client id is required")}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	grant := GrantClientCredentials
	if cfg.Username != "" || cfg.Password != "" {
		if cfg.Username == "" || cfg.Password == "" {
			return nil, &AuthError{Err: errors.New("username and password must be set together")}
		}
		grant = GrantPassword
	}
	if cfg.ClientSecret == "" {
		return nil, &AuthError{Err: fmt.Errorf("client secret is required for the %s grant", grant)}
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("failed to parse base URL: %w", err)}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	return &Authenticator{
		client:   cfg.HTTPClient,
		cfg:      cfg,
		grant:    grant,
		tokenURL: parsedURL.JoinPath(grant.tokenPath()),
		logger:   log.With().Str("component", "vk-auth").Logger(),
	}, nil
}

// Grant returns the flow the authenticator uses.
func (a *Authenticator) Grant() GrantType {
	return a.grant
}

// GetToken performs the configured grant.
func (a *Authenticator) GetToken(ctx context.Context) (*Token, error) {
	return a.request(ctx, a.form())
}

// GetTokenWithCaptcha repeats the grant with the answer to a captcha challenge.
func (a *Authenticator) GetTokenWithCaptcha(ctx context.Context, challenge *CaptchaError, answer string) (*Token, error) {
	form := a.form()
	form.Set("captcha_sid", challenge.SID)
	form.Set("captcha_key", answer)
	return a.request(ctx, form)
}

func (a *Authenticator) form() url.Values {
	form := url.Values{}
	form.Set("grant_type", string(a.grant))
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	if a.cfg.APIVersion != "" {
		form.Set("v", a.cfg.APIVersion)
	}
	if a.grant == GrantPassword {
		form.Set("username", a.cfg.Username)
		form.Set("password", a.cfg.Password)
		if a.cfg.Scope != "" {
			form.Set("scope", a.cfg.Scope)
		}
	}
	return form
}

// oauthResponse covers both the token and the error shapes.
type oauthResponse struct {
	Token
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	CaptchaSID       any    `json:"captcha_sid"`
	CaptchaImg       string `json:"captcha_img"`
	RedirectURI      string `json:"redirect_uri"`
	ValidationType   string `json:"validation_type"`
}

func (a *Authenticator) request(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if a.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", a.cfg.UserAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &AuthError{Transport: true, Err: fmt.Errorf("failed to execute token request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Transport: true, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var out oauthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &AuthError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("failed to unmarshal token response: %w", err),
		}
	}

	// VK reports OAuth errors with 200 as well as 4xx statuses
	switch out.Error {
	case "":
	case "need_captcha":
		return nil, &CaptchaError{SID: idString(out.CaptchaSID), Image: out.CaptchaImg}
	case "need_validation":
		return nil, &ValidationError{RedirectURI: out.RedirectURI, Type: out.ValidationType, Description: out.ErrorDescription}
	default:
		return nil, &AuthError{StatusCode: resp.StatusCode, Code: out.Error, Description: out.ErrorDescription}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out.AccessToken == "" {
		return nil, &AuthError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        errors.New("access token was empty in response"),
		}
	}

	token := out.Token
	token.IssuedAt = time.Now()

	a.logger.Info().
		Str("grant_type", string(a.grant)).
		Int64("user_id", token.UserID).
		Int("expires_in", token.ExpiresIn).
		Msg("Access token obtained")

	return &token, nil
}

// idString renders captcha_sid, which VK sends as a string or a number.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
