package utils

import (
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"petty_cash", false},
		{"notify-payroll", false},
		{"leave2", false},
		{"", true},
		{"Petty", true},
		{"2fast", true},
		{"has space", true},
		{strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := ValidateIdentifier("request type", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeComment(t *testing.T) {
	if got := SanitizeComment("  ok\x00 then\nnext\x1b "); got != "ok then\nnext" {
		t.Errorf("SanitizeComment() = %q", got)
	}

	long := strings.Repeat("é", MaxCommentLength+10)
	if got := []rune(SanitizeComment(long)); len(got) != MaxCommentLength {
		t.Errorf("SanitizeComment() length = %d, want %d", len(got), MaxCommentLength)
	}
}
