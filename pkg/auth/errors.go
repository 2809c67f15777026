package auth

import (
	"fmt"
	"strings"
)

// AuthError is a failed token request.
type AuthError struct {
	StatusCode int

	// Code and Description come from the OAuth "error" and "error_description" fields.
	Code        string
	Description string

	// Body holds the raw response when it could not be interpreted.
	Body string

	// Err is the underlying network, parsing or validation error.
	Err error

	// Transport is set when the OAuth server could not be reached or its reply was cut off.
	// No credentials were judged in that case.
	Transport bool
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	var sb strings.Builder
	sb.WriteString("auth error")

	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status code %d", e.StatusCode)
	}

	if e.Code != "" {
		fmt.Fprintf(&sb, ", %s", e.Code)
		if e.Description != "" {
			fmt.Fprintf(&sb, " (%s)", e.Description)
		}
	}

	if e.Body != "" {
		fmt.Fprintf(&sb, ", body: %q", e.Body)
	}

	if e.Err != nil {
		fmt.Fprintf(&sb, ", err: %v", e.Err)
	}

	return sb.String()
}

// Unwrap allows for error chaining with errors.Is and errors.As.
func (e *AuthError) Unwrap() error { return e.Err }

// CaptchaError asks the user to solve the captcha at Image.
// Pass it with the answer to Authenticator.GetTokenWithCaptcha.
type CaptchaError struct {
	SID   string
	Image string
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("captcha required (sid %s): %s", e.SID, e.Image)
}

// ValidationError means the account requires extra verification, usually two-factor,
// which has to be completed in a browser at RedirectURI.
type ValidationError struct {
	RedirectURI string
	Type        string
	Description string
}

func (e *ValidationError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("validation required (%s): %s", e.Type, e.RedirectURI)
	}
	return "validation required: " + e.RedirectURI
}
