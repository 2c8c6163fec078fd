package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the backend client, the media resolver, the
// response buffer and the session controller.
var (
	// ErrAuthRequired means no token, an expired token or a 401 from the backend.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNotFound means the target test, section or record is absent.
	ErrNotFound = errors.New("resource not found")
	// ErrNetwork is a transient transport or server failure.
	ErrNetwork = errors.New("network error")
	// ErrUpload is a failed media handshake or binary transfer.
	ErrUpload = errors.New("media upload failed")
	// ErrUnsupportedType is an unknown question display type.
	ErrUnsupportedType = errors.New("unsupported question type")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Op         string `json:"op"`
	StatusCode int    `json:"status_code"`
	Body       string `json:"body,omitempty"`
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap maps the status code onto the taxonomy so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == 401:
		return ErrAuthRequired
	case e.StatusCode == 404:
		return ErrNotFound
	case e.StatusCode == 408, e.StatusCode == 429, e.StatusCode >= 500:
		return ErrNetwork
	default:
		return nil
	}
}

// UploadError carries the step of the media flow that failed.
type UploadError struct {
	Step string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("media upload failed at %s: %v", e.Step, e.Err)
}

func (e *UploadError) Unwrap() []error {
	return []error{ErrUpload, e.Err}
}

func NewUploadError(step string, err error) *UploadError {
	return &UploadError{Step: step, Err: err}
}

// UnsupportedTypeError names the type that could not be dispatched.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported question type %q", e.Type)
}

func (e *UnsupportedTypeError) Unwrap() error { return ErrUnsupportedType }

func IsAuthRequired(err error) bool { return errors.Is(err, ErrAuthRequired) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

func IsUpload(err error) bool { return errors.Is(err, ErrUpload) }

func IsUnsupportedType(err error) bool { return errors.Is(err, ErrUnsupportedType) }
