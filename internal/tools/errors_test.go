package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrToolFault_Error(t *testing.T) {
	err := &ErrToolFault{ToolName: "get_weather", Err: errors.New("boom")}
	want := `tool "get_weather" failed: boom`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrToolFault_WrappedErrorsAs(t *testing.T) {
	orig := &ErrToolFault{ToolName: "search_offices", Err: context.Canceled}
	wrapped := fmt.Errorf("step 2: %w", orig)

	var target *ErrToolFault
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As failed to match wrapped *ErrToolFault")
	}
	if target.ToolName != "search_offices" {
		t.Errorf("ToolName = %q, want %q", target.ToolName, "search_offices")
	}
	if !errors.Is(wrapped, context.Canceled) {
		t.Error("errors.Is should reach the underlying error")
	}
}

func TestErrToolFault_NotMatchOtherErrors(t *testing.T) {
	other := fmt.Errorf("some other error")
	var target *ErrToolFault
	if errors.As(other, &target) {
		t.Error("errors.As should not match non-ErrToolFault error")
	}
}
