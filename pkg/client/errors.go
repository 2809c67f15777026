package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrMalformedPage is returned when a list response lacks the fields its method requires.
	ErrMalformedPage = errors.New("malformed page")

	// ErrInvalidToken matches API errors caused by a missing, expired or revoked access token.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrTooManyRequests matches API errors reporting the per-second request limit.
	ErrTooManyRequests = errors.New("too many requests")

	// ErrAccessDenied matches API errors caused by missing permissions.
	ErrAccessDenied = errors.New("access denied")
)

// VK API error codes with a sentinel counterpart.
const (
	CodeAuthFailed      = 5
	CodeTooManyRequests = 6
	CodeAccessDenied    = 15
	CodePrivateProfile  = 30
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx HTTP errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx HTTP errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassAPI represents errors reported inside the VK response envelope.
	ErrorClassAPI ErrorClass = "api"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents responses that are not a valid VK envelope.
	ErrorClassDecode ErrorClass = "decode"
)

// RequestParam echoes one parameter of the failed request.
type RequestParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// APIError is an error reported by VK in the "error" member of a response.
type APIError struct {
	Code          int            `json:"error_code"`
	Message       string         `json:"error_msg"`
	RequestParams []RequestParam `json:"request_params,omitempty"`

	// Method is filled in by the client.
	Method string `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("VK API error %d in %s: %s", e.Code, e.Method, e.Message)
	}
	return fmt.Sprintf("VK API error %d: %s", e.Code, e.Message)
}

// Is maps well-known error codes to the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrInvalidToken:
		return e.Code == CodeAuthFailed
	case ErrTooManyRequests:
		return e.Code == CodeTooManyRequests
	case ErrAccessDenied:
		return e.Code == CodeAccessDenied || e.Code == CodePrivateProfile
	default:
		return false
	}
}

// RequestError is a failed request that never produced a VK envelope.
type RequestError struct {
	Method     string
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("VK %s error calling %s (status %d): %v",
			e.ErrorClass, e.Method, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("VK %s error calling %s: %v", e.ErrorClass, e.Method, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyStatus categorizes an HTTP status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
