package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockResponse defines the response from the mock server.
type mockResponse struct {
	statusCode int
	body       string
}

// mockOAuthServer records token requests and replies with a fixed response.
type mockOAuthServer struct {
	mu       sync.Mutex
	path     string
	form     url.Values
	response mockResponse
}

func (s *mockOAuthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.path = r.URL.Path
	s.form = r.PostForm
	resp := s.response
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.statusCode)
	fmt.Fprint(w, resp.body)
}

// last returns the path and form of the most recent request.
func (s *mockOAuthServer) last() (string, url.Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path, s.form
}

func newMockOAuth(t *testing.T, resp mockResponse) (*mockOAuthServer, *httptest.Server) {
	t.Helper()
	mock := &mockOAuthServer{response: resp}
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)
	return mock, server
}

func TestNewAuthenticator(t *testing.T) {
	testCases := []struct {
		name      string
		cfg       Config
		wantErr   string
		wantGrant GrantType
		wantURL   string
	}{
		{
			name:      "client credentials",
			cfg:       Config{ClientID: "1", ClientSecret: "s"},
			wantGrant: GrantClientCredentials,
			wantURL:   "https://oauth.vk.com/access_token",
		},
		{
			name:      "password grant",
			cfg:       Config{ClientID: "1", ClientSecret: "s", Username: "u", Password: "p"},
			wantGrant: GrantPassword,
			wantURL:   "https://oauth.vk.com/token",
		},
		{
			name:      "base url without trailing slash",
			cfg:       Config{ClientID: "1", ClientSecret: "s", BaseURL: "http://localhost:8080/oauth"},
			wantGrant: GrantClientCredentials,
			wantURL:   "http://localhost:8080/oauth/access_token",
		},
		{
			name:    "missing client id",
			cfg:     Config{ClientSecret: "s"},
			wantErr: "client id is required",
		},
		{
			name:    "missing client secret",
			cfg:     Config{ClientID: "1"},
			wantErr: "client secret is required",
		},
		{
			name:    "username without password",
			cfg:     Config{ClientID: "1", ClientSecret: "s", Username: "u"},
			wantErr: "must be set together",
		},
		{
			name:    "invalid base url",
			cfg:     Config{ClientID: "1", ClientSecret: "s", BaseURL: "://bad"},
			wantErr: "failed to parse base URL",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := NewAuthenticator(tc.cfg)
			if tc.wantErr != "" {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("error = %v, want *AuthError", err)
				}
				if !strings.Contains(err.Error(), tc.wantErr) {
					t.Errorf("error = %q, want containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Grant() != tc.wantGrant {
				t.Errorf("Grant() = %q, want %q", a.Grant(), tc.wantGrant)
			}
			if a.tokenURL.String() != tc.wantURL {
				t.Errorf("tokenURL = %q, want %q", a.tokenURL, tc.wantURL)
			}
			if a.client == nil {
				t.Error("http client should default")
			}
		})
	}
}

func TestGetToken_ClientCredentials(t *testing.T) {
	mock, server := newMockOAuth(t, mockResponse{
		statusCode: http.StatusOK,
		body:       `{"access_token":"service-token","expires_in":0}`,
	})

	a, err := NewAuthenticator(Config{
		BaseURL:      server.URL,
		ClientID:     "51234567",
		ClientSecret: "secret",
		APIVersion:   "5.199",
	})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	token, err := a.GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if token.AccessToken != "service-token" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
	if !token.Expires().IsZero() {
		t.Errorf("Expires() = %v, want zero for non-expiring token", token.Expires())
	}

	path, form := mock.last()
	if path != "/access_token" {
		t.Errorf("path = %q, want /access_token", path)
	}
	want := map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     "51234567",
		"client_secret": "secret",
		"v":             "5.199",
	}
	for k, v := range want {
		if got := form.Get(k); got != v {
			t.Errorf("form[%q] = %q, want %q", k, got, v)
		}
	}
	if form.Has("username") {
		t.Error("client_credentials must not send username")
	}
}

func TestGetToken_Password(t *testing.T) {
	mock, server := newMockOAuth(t, mockResponse{
		statusCode: http.StatusOK,
		body:       `{"access_token":"user-token","expires_in":86400,"user_id":42}`,
	})

	a, err := NewAuthenticator(Config{
		BaseURL:      server.URL,
		ClientID:     "2274003",
		ClientSecret: "secret",
		Username:     "user@example.com",
		Password:     "hunter2",
		Scope:        "wall,friends",
	})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	before := time.Now()
	token, err := a.GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}

	if token.AccessToken != "user-token" || token.UserID != 42 {
		t.Errorf("token = %+v", token)
	}
	if exp := token.Expires(); exp.Before(before.Add(24*time.Hour)) || exp.After(time.Now().Add(24*time.Hour)) {
		t.Errorf("Expires() = %v, want about 24h from now", exp)
	}

	path, form := mock.last()
	if path != "/token" {
		t.Errorf("path = %q, want /token", path)
	}
	if form.Get("grant_type") != "password" ||
		form.Get("username") != "user@example.com" ||
		form.Get("password") != "hunter2" ||
		form.Get("scope") != "wall,friends" {
		t.Errorf("form = %v", form)
	}
}

func TestGetToken_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		response mockResponse
		check    func(t *testing.T, err error)
	}{
		{
			name:     "invalid client",
			response: mockResponse{http.StatusUnauthorized, `{"error":"invalid_client","error_description":"client_secret is incorrect"}`},
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("error = %T, want *AuthError", err)
				}
				if authErr.Code != "invalid_client" || authErr.Description != "client_secret is incorrect" {
					t.Errorf("AuthError = %+v", authErr)
				}
				if authErr.StatusCode != http.StatusUnauthorized {
					t.Errorf("StatusCode = %d, want 401", authErr.StatusCode)
				}
				if authErr.Transport {
					t.Error("a rejected secret is not a transport failure")
				}
			},
		},
		{
			name:     "captcha",
			response: mockResponse{http.StatusUnauthorized, `{"error":"need_captcha","captcha_sid":548361,"captcha_img":"https://api.vk.com/captcha.php?sid=548361"}`},
			check: func(t *testing.T, err error) {
				var captcha *CaptchaError
				if !errors.As(err, &captcha) {
					t.Fatalf("error = %T, want *CaptchaError", err)
				}
				if captcha.SID != "548361" {
					t.Errorf("SID = %q, want 548361", captcha.SID)
				}
				if !strings.HasPrefix(captcha.Image, "https://api.vk.com/captcha.php") {
					t.Errorf("Image = %q", captcha.Image)
				}
			},
		},
		{
			name:     "validation",
			response: mockResponse{http.StatusUnauthorized, `{"error":"need_validation","validation_type":"2fa_app","redirect_uri":"https://m.vk.com/login?act=authcheck"}`},
			check: func(t *testing.T, err error) {
				var validation *ValidationError
				if !errors.As(err, &validation) {
					t.Fatalf("error = %T, want *ValidationError", err)
				}
				if validation.Type != "2fa_app" || validation.RedirectURI == "" {
					t.Errorf("ValidationError = %+v", validation)
				}
			},
		},
		{
			name:     "not json",
			response: mockResponse{http.StatusBadGateway, `<html>bad gateway</html>`},
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("error = %T, want *AuthError", err)
				}
				if authErr.Err == nil || authErr.Body == "" {
					t.Errorf("AuthError = %+v, want Err and Body", authErr)
				}
			},
		},
		{
			name:     "empty token",
			response: mockResponse{http.StatusOK, `{"expires_in":0}`},
			check: func(t *testing.T, err error) {
				if err == nil || !strings.Contains(err.Error(), "access token was empty") {
					t.Errorf("error = %v", err)
				}
			},
		},
		{
			name:     "server error without body fields",
			response: mockResponse{http.StatusInternalServerError, `{}`},
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) || authErr.StatusCode != http.StatusInternalServerError {
					t.Errorf("error = %v, want AuthError with status 500", err)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, server := newMockOAuth(t, tc.response)

			a, err := NewAuthenticator(Config{BaseURL: server.URL, ClientID: "1", ClientSecret: "s"})
			if err != nil {
				t.Fatalf("NewAuthenticator() error = %v", err)
			}

			_, err = a.GetToken(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			tc.check(t, err)
		})
	}
}

func TestGetTokenWithCaptcha(t *testing.T) {
	mock, server := newMockOAuth(t, mockResponse{http.StatusOK, `{"access_token":"t","expires_in":0}`})

	a, err := NewAuthenticator(Config{
		BaseURL:      server.URL,
		ClientID:     "1",
		ClientSecret: "s",
		Username:     "u",
		Password:     "p",
	})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	_, err = a.GetTokenWithCaptcha(context.Background(), &CaptchaError{SID: "548361"}, "qwerty")
	if err != nil {
		t.Fatalf("GetTokenWithCaptcha() error = %v", err)
	}
	_, form := mock.last()
	if form.Get("captcha_sid") != "548361" || form.Get("captcha_key") != "qwerty" {
		t.Errorf("form = %v", form)
	}
	if form.Get("username") != "u" {
		t.Error("captcha retry must repeat the original grant")
	}
}

func TestGetToken_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	a, err := NewAuthenticator(Config{BaseURL: server.URL, ClientID: "1", ClientSecret: "s"})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}

	_, err = a.GetToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Err == nil {
		t.Fatalf("error = %v, want AuthError wrapping the network error", err)
	}
	if !authErr.Transport {
		t.Error("Transport should be set when the server is unreachable")
	}
}

func TestAuthError_Error(t *testing.T) {
	testCases := []struct {
		name string
		err  *AuthError
		want string
	}{
		{
			name: "oauth error",
			err:  &AuthError{StatusCode: 401, Code: "invalid_client", Description: "bad secret"},
			want: "auth error: status code 401, invalid_client (bad secret)",
		},
		{
			name: "wrapped",
			err:  &AuthError{Err: errors.New("boom")},
			want: "auth error, err: boom",
		},
		{
			name: "body",
			err:  &AuthError{StatusCode: 502, Body: "oops"},
			want: `auth error: status code 502, body: "oops"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Errorf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}
