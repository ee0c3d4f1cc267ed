package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidStatus      = errors.New("invalid invoice status")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidRange       = errors.New("invalid time range")
	ErrRequestInProgress  = errors.New("a request with this idempotency key is in progress")

	// ErrRemote matches every *RemoteError.
	ErrRemote = errors.New("remote call failed")
	// ErrAuthFailed matches every *AuthError.
	ErrAuthFailed = errors.New("authentication failed")
)

// RemoteError wraps a document store failure at the invoice store boundary.
// Message is safe to show to users; Err is logged only.
type RemoteError struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// AuthError is returned when the session collaborator rejects a sign-in or sign-up.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrAuthFailed }

// ValidationError lists the offending fields of a rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
