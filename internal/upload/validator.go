package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"

	"cadence/internal/services"
)

// Reason identifies why a submission was rejected.
type Reason string

const (
	ReasonNone  Reason = ""
	ReasonType  Reason = "type"
	ReasonSize  Reason = "size"
	ReasonEmpty Reason = "empty"
)

// ErrTooLarge is returned by a limited reader once the stream exceeds its limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Decision is the outcome of a validation.
type Decision struct {
	Accepted bool
	Reason   Reason
	Message  string
}

// Accept is the accepting decision.
var Accept = Decision{Accepted: true}

// Reject builds a rejecting decision.
func Reject(reason Reason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// Err converts a rejecting decision into a validation error. Accepting
// decisions return nil.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return &RejectionError{Reason: d.Reason, Message: d.Message}
}

// RejectionError carries the rejection reason through error returns.
type RejectionError struct {
	Reason  Reason
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

func (e *RejectionError) Unwrap() error { return services.ErrValidation }

// PublicMessage returns the rejection text, which never includes paths.
func (e *RejectionError) PublicMessage() string { return e.Message }

// ReasonOf returns the rejection reason carried by err, if any.
func ReasonOf(err error) Reason {
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return rejection.Reason
	}
	if errors.Is(err, ErrTooLarge) {
		return ReasonSize
	}
	return ReasonNone
}

// Validator holds the admission rules.
type Validator struct {
	AcceptedType string
	Limit        int64
}

// New returns a Validator for acceptedType and limit bytes.
func New(acceptedType string, limit int64) Validator {
	return Validator{AcceptedType: acceptedType, Limit: limit}
}

// Validate decides on a declared MIME type and the number of bytes observed
// so far. It can be called repeatedly while streaming.
func (v Validator) Validate(declaredType string, observed int64) Decision {
	if !v.TypeAccepted(declaredType) {
		shown := strings.TrimSpace(declaredType)
		if shown == "" {
			shown = "unknown"
		}
		return Reject(ReasonType, fmt.Sprintf("unsupported file type %s, expected %s", shown, v.AcceptedType))
	}
	if v.Limit > 0 && observed > v.Limit {
		return Reject(ReasonSize, v.tooLargeMessage())
	}
	return Accept
}

// CheckDeclared validates the metadata a client sent before any byte is
// stored. A declaredSize of -1 means unknown and is only checked later
// while streaming.
func (v Validator) CheckDeclared(declaredType string, declaredSize int64) error {
	if decision := v.Validate(declaredType, 0); !decision.Accepted {
		return decision.Err()
	}
	if declaredSize == 0 {
		return Reject(ReasonEmpty, "uploaded file is empty").Err()
	}
	if declaredSize > 0 {
		return v.Validate(declaredType, declaredSize).Err()
	}
	return nil
}

// CheckObserved validates the final byte count after streaming completed.
func (v Validator) CheckObserved(declaredType string, observed int64) error {
	if observed == 0 {
		return Reject(ReasonEmpty, "uploaded file is empty").Err()
	}
	return v.Validate(declaredType, observed).Err()
}

// TypeAccepted compares media types ignoring case and parameters.
func (v Validator) TypeAccepted(declaredType string) bool {
	want := normalizeType(v.AcceptedType)
	if want == "" {
		return true
	}
	return normalizeType(declaredType) == want
}

// Reader wraps r so that reading more than the validator's limit fails with
// a rejection as soon as the limit is crossed.
func (v Validator) Reader(r io.Reader) *LimitedReader {
	return &LimitedReader{r: r, limit: v.Limit, message: v.tooLargeMessage()}
}

func (v Validator) tooLargeMessage() string {
	return fmt.Sprintf("file exceeds the %s upload limit", humanize.IBytes(uint64(max(v.Limit, 0))))
}

func normalizeType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		if idx := strings.IndexByte(value, ';'); idx >= 0 {
			value = value[:idx]
		}
		return strings.ToLower(strings.TrimSpace(value))
	}
	return mediaType
}
