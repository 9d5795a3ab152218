package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedInput  = errors.New("malformed input")
	ErrTransient       = errors.New("transient failure")
	ErrPermanent       = errors.New("permanent failure")
	ErrQuotaExhausted  = errors.New("upstream quota exhausted")
	ErrBudgetExhausted = errors.New("call budget exhausted")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPermanent
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind classifies an error for retry and stop decisions.
type FailureKind string

const (
	KindNone      FailureKind = ""
	KindMalformed FailureKind = "malformed"
	KindTransient FailureKind = "transient"
	KindQuota     FailureKind = "quota"
	KindBudget    FailureKind = "budget"
	KindPermanent FailureKind = "permanent"
)

// Classify maps err onto the failure taxonomy. Quota wins over every other
// marker so a quota fault wrapped inside a transient error still stops the run.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrQuotaExhausted):
		return KindQuota
	case errors.Is(err, ErrBudgetExhausted):
		return KindBudget
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrMalformedInput):
		return KindMalformed
	default:
		return KindPermanent
	}
}

// IsStopSignal reports whether err means "stop the run cleanly" rather than "fail".
func IsStopSignal(err error) bool {
	kind := Classify(err)
	return kind == KindQuota || kind == KindBudget
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
