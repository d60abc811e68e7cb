package i18n

import (
	"testing"

	"ugcvideo/internal/domain"
)

func TestBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "en"},
		{in: "id", want: "id"},
		{in: "id-ID", want: "id"},
		{in: "id-ID,en;q=0.8", want: "id"},
		{in: "en-US,en;q=0.9", want: "en"},
		{in: "fr-FR", want: "en"},
		{in: "not a locale;;", want: "en"},
	}
	for _, tt := range tests {
		if got := Base(tt.in); got != tt.want {
			t.Fatalf("Base(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTFormatsAndFallsBack(t *testing.T) {
	if got := T("en", MsgRefundSucceeded, 32); got != "Successfully refunded 32 credits" {
		t.Fatalf("got %q", got)
	}
	if got := T("id", MsgRetryNoCredits, 12); got != "Kredit tidak cukup. Dibutuhkan minimal 12 kredit untuk mengulang." {
		t.Fatalf("got %q", got)
	}
	if got := T("id", "missing_key"); got != "missing_key" {
		t.Fatalf("unknown keys must echo, got %q", got)
	}
}

func TestEveryKeyTranslated(t *testing.T) {
	for key := range messages[supported[0]] {
		for _, tag := range supported[1:] {
			if _, ok := messages[tag][key]; !ok {
				t.Fatalf("%s missing translation for %s", tag, key)
			}
		}
	}
}

func TestErrorMessage(t *testing.T) {
	timeout := domain.ErrorTypeTimeout
	if got := ErrorMessage("id", timeout, timeout.DefaultMessage()); got == timeout.DefaultMessage() {
		t.Fatalf("default message not translated")
	}
	if got := ErrorMessage("id", timeout, ""); got != T("id", msgErrorTypePrefix+string(timeout)) {
		t.Fatalf("empty message should use translated default, got %q", got)
	}
	if got := ErrorMessage("id", domain.ErrorTypeValidation, "prompt too short"); got != "prompt too short" {
		t.Fatalf("specific message must pass through, got %q", got)
	}
	if got := ErrorMessage("en", "", ""); got != "" {
		t.Fatalf("no failure should stay empty, got %q", got)
	}
}
