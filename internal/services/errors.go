package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying: network timeouts, vendor
	// 5xx responses, rate limits.
	ErrTransient = errors.New("transient failure")
	// ErrValidation marks responses that failed shape validation. The call is
	// retried because a malformed reply may be flaky rather than systematic.
	ErrValidation = errors.New("validation error")
	// ErrPermanent marks per-file failures where no retry can help: corrupt or
	// unsupported audio, files over the size limit.
	ErrPermanent = errors.New("permanent failure")
	// ErrConfiguration marks process-level misconfiguration detected before or
	// during startup. The poll loop is never entered.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing files or directories.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later retry classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the retry policy should re-attempt the stage.
// Transient and validation failures retry; everything else quarantines.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) || errors.Is(err, ErrConfiguration) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrValidation)
}

// ErrorKind describes the classification of a wrapped error.
type ErrorKind string

const (
	KindTransient     ErrorKind = "transient"
	KindValidation    ErrorKind = "validation"
	KindPermanent     ErrorKind = "permanent"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindUnknown       ErrorKind = "unknown"
)

// ErrorDetails carries the classification and human message of a stage error.
type ErrorDetails struct {
	Kind    ErrorKind
	Message string
}

// Details extracts classification and message from a wrapped stage error.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{Kind: KindUnknown, Message: strings.TrimSpace(err.Error())}
	switch {
	case errors.Is(err, ErrValidation):
		details.Kind = KindValidation
	case errors.Is(err, ErrPermanent):
		details.Kind = KindPermanent
	case errors.Is(err, ErrConfiguration):
		details.Kind = KindConfiguration
	case errors.Is(err, ErrNotFound):
		details.Kind = KindNotFound
	case errors.Is(err, ErrTransient):
		details.Kind = KindTransient
	}
	return details
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
