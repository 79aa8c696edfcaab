package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "WithoutCause",
			err:  New(ErrCodeInvalidEndpoint, "goal (%d,%d) out of bounds", 9, 9),
			want: "INVALID_ENDPOINT: goal (9,9) out of bounds",
		},
		{
			name: "WithCause",
			err:  Wrap(ErrCodeMissingLayer, stderrors.New("open failed"), "load layer %q", "height"),
			want: `MISSING_LAYER: load layer "height": open failed`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsMatchesCodeThroughWrapping(t *testing.T) {
	inner := New(ErrCodeLayerMismatch, "rock layer is 4x4, height layer is 3x3")
	outer := fmt.Errorf("build cost map: %w", inner)

	if !Is(outer, ErrCodeLayerMismatch) {
		t.Error("Is() should match through fmt.Errorf wrapping")
	}
	if Is(outer, ErrCodeMissingLayer) {
		t.Error("Is() matched the wrong code")
	}
	if Is(stderrors.New("plain"), ErrCodeLayerMismatch) {
		t.Error("Is() matched a plain error")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeDuplicatePath, "dup")); got != ErrCodeDuplicatePath {
		t.Errorf("GetCode = %q, want %q", got, ErrCodeDuplicatePath)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode on plain error = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeNotFound, "record abc not found")
	if msg := UserMessage(err); strings.Contains(msg, "NOT_FOUND") {
		t.Errorf("UserMessage should strip the code prefix, got %q", msg)
	}
	plain := stderrors.New("plain failure")
	if msg := UserMessage(plain); msg != "plain failure" {
		t.Errorf("UserMessage on plain error = %q", msg)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrCodeInternal, cause, "persist record")
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}
}
