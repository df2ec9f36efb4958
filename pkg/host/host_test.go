package host

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat      Category
		expected string
	}{
		{CategoryReceive, "receive"},
		{CategorySend, "send"},
		{CategoryHardware, "hardware"},
		{Category(7), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.cat.String(); got != tt.expected {
			t.Errorf("Category(%d).String() = %q, want %q", int(tt.cat), got, tt.expected)
		}
	}
	if Category(2).Valid() || !CategoryReceive.Valid() {
		t.Error("Valid() should accept -1..1 only")
	}
}

func TestEnvelopeParam(t *testing.T) {
	for _, chunk := range []string{"VOLENV", "<VOLENV"} {
		if got := EnvelopeParam(chunk); got != "P_ENV:<VOLENV" {
			t.Errorf("EnvelopeParam(%q) = %q, want %q", chunk, got, "P_ENV:<VOLENV")
		}
	}
}

// mockHost implements Host only
type mockHost struct{}

func (mockHost) GetSendInfo(context.Context, string, Category, int, string) (float64, error) {
	return 0, nil
}
func (mockHost) SetSendInfo(context.Context, string, Category, int, string, float64) error {
	return nil
}
func (mockHost) RemoveSend(context.Context, string, Category, int) error { return nil }
func (mockHost) TrackFromPointer(context.Context, float64) (Track, error) {
	return Track{}, nil
}

// mockExtHost adds an Extension and an Executor
type mockExtHost struct {
	mockHost
	available bool
	insideRun int
}

func (m *mockExtHost) ExtensionAvailable(context.Context) bool { return m.available }
func (m *mockExtHost) GetSetSendInfo(context.Context, string, Category, int, string, bool, float64) (float64, error) {
	return 1, nil
}
func (m *mockExtHost) Inside(ctx context.Context, fn func(ctx context.Context) error) error {
	m.insideRun++
	return fn(ctx)
}

func TestRequireExtension(t *testing.T) {
	ctx := context.Background()

	if _, err := RequireExtension(ctx, mockHost{}); !errors.Is(err, ErrExtensionUnavailable) {
		t.Errorf("RequireExtension(no ext) error = %v, want ErrExtensionUnavailable", err)
	}
	if _, err := RequireExtension(ctx, &mockExtHost{}); !errors.Is(err, ErrExtensionUnavailable) {
		t.Errorf("RequireExtension(not installed) error = %v, want ErrExtensionUnavailable", err)
	}
	if _, err := RequireExtension(ctx, &mockExtHost{available: true}); err != nil {
		t.Errorf("RequireExtension(installed) error = %v", err)
	}
}

func TestInside(t *testing.T) {
	ctx := context.Background()
	called := false
	if err := Inside(ctx, mockHost{}, func(context.Context) error { called = true; return nil }); err != nil || !called {
		t.Errorf("Inside(no executor) = %v, called = %v", err, called)
	}

	h := &mockExtHost{}
	_ = Inside(ctx, h, func(context.Context) error { return nil })
	if h.insideRun != 1 {
		t.Errorf("executor ran %d times, want 1", h.insideRun)
	}
}

func TestErrorCodes(t *testing.T) {
	sentinels := []error{ErrInvalidTrack, ErrInvalidParam, ErrIndexOutOfRange, ErrReadOnly, ErrExtensionUnavailable}
	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("%w: detail", sentinel)
		code := ErrorCode(wrapped)
		if got := ErrorFromCode(code); got != sentinel {
			t.Errorf("ErrorFromCode(%q) = %v, want %v", code, got, sentinel)
		}
	}
	if ErrorCode(errors.New("other")) != "host_error" {
		t.Error("unknown errors should map to host_error")
	}
	if ErrorFromCode("host_error") != nil {
		t.Error("ErrorFromCode(host_error) should be nil")
	}
}
