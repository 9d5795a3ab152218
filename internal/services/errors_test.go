package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"marquee/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "kobis", "movie info", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"kobis", "movie info", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.FailureKind
	}{
		{"nil", nil, services.KindNone},
		{"transient", services.Wrap(services.ErrTransient, "a", "b", "c", nil), services.KindTransient},
		{"quota", services.Wrap(services.ErrQuotaExhausted, "a", "b", "c", nil), services.KindQuota},
		{"budget", fmt.Errorf("outer: %w", services.ErrBudgetExhausted), services.KindBudget},
		{"malformed", services.Wrap(services.ErrMalformedInput, "a", "b", "c", nil), services.KindMalformed},
		{"unclassified", errors.New("???"), services.KindPermanent},
		{"quota inside transient", services.Wrap(services.ErrTransient, "a", "b", "c", services.ErrQuotaExhausted), services.KindQuota},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	if got := services.StatusFor(nil); got != services.StatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	quota := services.StatusFor(services.Wrap(services.ErrQuotaExhausted, "fetcher", "call", "", nil))
	if quota != services.StatusStoppedQuota || !quota.Stopped() || quota.Failed() {
		t.Fatalf("expected clean quota stop, got %s", quota)
	}
	if got := services.StatusFor(services.ErrBudgetExhausted); got != services.StatusStoppedBudget {
		t.Fatalf("expected budget stop, got %s", got)
	}
	failed := services.StatusFor(errors.New("disk full"))
	if !failed.Failed() {
		t.Fatalf("expected failure, got %s", failed)
	}
	if quota.Label() != "stopped by quota" {
		t.Fatalf("unexpected label %q", quota.Label())
	}
}
