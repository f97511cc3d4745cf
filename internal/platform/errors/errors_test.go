package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindInference, "roboflow.infer", "inference request failed",
				errors.New("connection refused")),
			contains: []string{"[inference:roboflow.infer]", "inference request failed", "connection refused"},
		},
		{
			name:     "error without cause",
			err:      New(KindValidation, "detect", "No image provided"),
			contains: []string{"[validation:detect]", "No image provided"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindDecode, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrap_KeepsInnerKind(t *testing.T) {
	inner := New(KindDecode, "image.decode", "Could not decode image")
	outer := Wrap(KindInference, "detect", "outer", fmt.Errorf("ctx: %w", inner))

	if outer.Kind != KindDecode {
		t.Fatalf("expected inner kind %s, got %s", KindDecode, outer.Kind)
	}
	if Wrap(KindConfig, "x", "y", nil) != nil {
		t.Fatal("Wrap(nil) should return nil")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindValidation, "test", "message"),
			kind:     KindValidation,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      fmt.Errorf("outer: %w", Wrap(KindInference, "test", "message", errors.New("cause"))),
			kind:     KindInference,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindDecode, "test", "message"),
			kind:     KindValidation,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindConfig,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			kind:     KindUnknown,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}
