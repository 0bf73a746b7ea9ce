package provider

import (
	"errors"
	"fmt"
	"strings"

	"galleryvault/internal/transport"
)

var (
	ErrNoResponse     = transport.ErrNoResponse
	ErrConfiguration  = errors.New("configuration error")
	ErrTransient      = errors.New("transient failure")
	ErrNotFound       = errors.New("not found")
	ErrCorruptArchive = errors.New("corrupt archive")
	ErrUnsupported    = errors.New("unsupported")
)

// Wrap builds an error message that includes provider context while tagging it
// with the given marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, providerName, operation, message string, err error) error {
	detail := buildDetail(providerName, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a failure may succeed on a later attempt.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound), errors.Is(err, ErrUnsupported):
		return false
	default:
		return true
	}
}

func buildDetail(providerName, operation, message string) string {
	parts := make([]string, 0, 3)
	if providerName = strings.TrimSpace(providerName); providerName != "" {
		parts = append(parts, providerName)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "provider failure"
	}
	return strings.Join(parts, ": ")
}
