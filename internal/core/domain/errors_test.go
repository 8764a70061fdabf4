//go:build unit

package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSubStatusFor(t *testing.T) {
	tests := []struct {
		kind FaultKind
		want string
	}{
		{KindLoANotSupported, SubStatusQAANotSupported},
		{KindMandatoryAttributesMissing, SubStatusInvalidAttrValue},
		{KindInvalidAttributeList, SubStatusInvalidAttrValue},
		{KindAuthenticationFailed, SubStatusAuthnFailed},
		{KindSignatureInvalid, SubStatusAuthnFailed},
		{KindUnauthorized, SubStatusRequestDenied},
		{KindInvalidParameter, SubStatusRequestDenied},
		{KindAttributeAccessDenied, SubStatusRequestDenied},
		// Unmapped kinds fall back to request-denied.
		{KindNoMetadata, SubStatusRequestDenied},
		{KindInvalidSession, SubStatusRequestDenied},
		{KindInternal, SubStatusRequestDenied},
	}
	for _, tt := range tests {
		if got := SubStatusFor(tt.kind); got != tt.want {
			t.Errorf("SubStatusFor(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewFault(KindUnauthorized, "nope")); got != KindUnauthorized {
		t.Errorf("KindOf(fault) = %s, want %s", got, KindUnauthorized)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(plain error) = %s, want %s", got, KindInternal)
	}
	wrapped := fmt.Errorf("marshalling response: %w", NewFault(KindInvalidMetadata, "no consumer URL"))
	if got := KindOf(wrapped); got != KindInvalidMetadata {
		t.Errorf("KindOf(wrapped fault) = %s, want %s", got, KindInvalidMetadata)
	}
}

func TestFaultError(t *testing.T) {
	f := NewFault(KindInvalidParameter, "missing %s", "SAMLRequest")
	if got, want := f.Error(), "invalid_parameter: missing SAMLRequest"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := errors.New("boom")
	wrapped := WrapFault(KindInternal, cause, "store failed")
	if got, want := wrapped.Error(), "internal: store failed: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFaultUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	f := WrapFault(KindNoMetadata, cause, "fetch")
	if !errors.Is(f, cause) {
		t.Error("errors.Is did not reach the wrapped cause")
	}
	if f.Unwrap() != cause {
		t.Error("Unwrap did not return the cause")
	}
}

func TestFaultIsByKind(t *testing.T) {
	f := WrapFault(KindInvalidSession, errors.New("expired"), "correlation gone")
	if !errors.Is(f, NewFault(KindInvalidSession, "")) {
		t.Error("faults of the same kind should match")
	}
	if errors.Is(f, NewFault(KindUnauthorized, "")) {
		t.Error("faults of different kinds should not match")
	}

	// Matching survives an extra wrapping layer.
	outer := fmt.Errorf("handling request: %w", f)
	if !errors.Is(outer, NewFault(KindInvalidSession, "")) {
		t.Error("wrapped fault should still match by kind")
	}

	var target *Fault
	if !errors.As(outer, &target) || target.Kind != KindInvalidSession {
		t.Error("errors.As should recover the fault")
	}
}

func TestUserMessageFor(t *testing.T) {
	// Kinds that share a message group must render identically.
	sameMessage := [][]FaultKind{
		{KindUnauthorized, KindAttributeAccessDenied},
		{KindMandatoryAttributesMissing, KindInvalidAttributeList},
		{KindNoMetadata, KindInvalidMetadata, KindInvalidMetadataSource, KindSignatureInvalid},
	}
	for _, group := range sameMessage {
		want := UserMessageFor(group[0])
		for _, k := range group[1:] {
			if got := UserMessageFor(k); got != want {
				t.Errorf("UserMessageFor(%s) = %q, want %q", k, got, want)
			}
		}
	}

	// Every kind renders something non-empty and never leaks internals.
	kinds := []FaultKind{
		KindInvalidParameter, KindInvalidSession, KindUnauthorized,
		KindAttributeAccessDenied, KindMandatoryAttributesMissing,
		KindInvalidAttributeList, KindLoANotSupported, KindNoMetadata,
		KindInvalidMetadata, KindInvalidMetadataSource, KindSignatureInvalid,
		KindAuthenticationFailed, KindInternal,
	}
	for _, k := range kinds {
		if UserMessageFor(k) == "" {
			t.Errorf("UserMessageFor(%s) returned an empty message", k)
		}
	}
}
