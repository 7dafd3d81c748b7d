package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrStorage       = errors.New("storage error")
	ErrEngine        = errors.New("engine failure")
	ErrTimeout       = errors.New("timeout")
	ErrNotFound      = errors.New("not found")
	ErrCanceled      = errors.New("canceled")
	ErrConfiguration = errors.New("configuration error")
	ErrExpired       = errors.New("expired")
)

// Kind is the persisted classification of a job failure.
type Kind string

const (
	KindNone          Kind = ""
	KindValidation    Kind = "validation"
	KindStorage       Kind = "storage"
	KindEngine        Kind = "engine"
	KindTimeout       Kind = "timeout"
	KindCanceled      Kind = "canceled"
	KindInterrupted   Kind = "interrupted"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindExpired       Kind = "expired"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStorage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf maps an error to its failure kind. Timeout is checked before engine
// because a timed out conversion carries both markers.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrCanceled):
		return KindCanceled
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrEngine):
		return KindEngine
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindStorage
	}
}

// PublicError pairs an internal cause with a message that is safe to hand to
// untrusted callers. Paths and process output stay in the wrapped error.
type PublicError struct {
	Message string
	Err     error
}

func (e *PublicError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *PublicError) Unwrap() error { return e.Err }

// PublicMessage returns the caller-safe message.
func (e *PublicError) PublicMessage() string { return e.Message }

// publicMessenger is implemented by errors that carry their own caller-safe text.
type publicMessenger interface {
	PublicMessage() string
}

// Public attaches a caller-safe message to err.
func Public(message string, err error) error {
	return &PublicError{Message: strings.TrimSpace(message), Err: err}
}

// PublicMessage returns the caller-safe reason for err. Errors without an
// attached message fall back to a generic sentence for their kind.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var public publicMessenger
	if errors.As(err, &public) {
		if msg := strings.TrimSpace(public.PublicMessage()); msg != "" {
			return msg
		}
	}
	switch KindOf(err) {
	case KindValidation:
		return "upload rejected"
	case KindTimeout:
		return "conversion timed out"
	case KindCanceled:
		return "conversion canceled"
	case KindEngine:
		return "conversion failed"
	case KindNotFound:
		return "file not found"
	case KindExpired:
		return "download expired"
	default:
		return "internal storage error"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
