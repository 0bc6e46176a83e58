package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPageUnreachable marks a failed load of the portal login page. The
	// remote service is down; the attempt loop never starts.
	ErrPageUnreachable = errors.New("login page unreachable")
	// ErrAuthExhausted marks an authentication run that consumed every
	// permitted attempt without the portal accepting a login.
	ErrAuthExhausted = errors.New("authentication attempts exhausted")
	// ErrIdentifierMismatch marks a lookup page whose displayed permit number
	// does not match the requested identifier.
	ErrIdentifierMismatch = errors.New("identifier mismatch")
	// ErrExternalTool marks failures of external binaries (tesseract, chrome).
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
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

// FatalToStage reports whether an error must abort the whole pipeline stage.
// Everything else is a per-item failure: logged, skipped, batch continues.
func FatalToStage(err error) bool {
	switch {
	case errors.Is(err, ErrPageUnreachable),
		errors.Is(err, ErrAuthExhausted),
		errors.Is(err, ErrConfiguration):
		return true
	default:
		return false
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
