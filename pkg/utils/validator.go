package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	identifierRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)
	controlRegex    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// MaxCommentLength bounds free-text comments stored in the audit trail
const MaxCommentLength = 2000

// ValidateIdentifier checks request types and effect keys: lower-case, starts
// with a letter, then letters, digits, '_' or '-'
func ValidateIdentifier(kind, value string) error {
	if !identifierRegex.MatchString(value) {
		return fmt.Errorf("invalid %s %q: must match %s", kind, value, identifierRegex.String())
	}
	return nil
}

// SanitizeString removes control characters other than tab and newline and trims
// surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlRegex.ReplaceAllString(s, ""))
}

// SanitizeComment sanitizes s and truncates it to MaxCommentLength runes
func SanitizeComment(s string) string {
	s = SanitizeString(s)
	if r := []rune(s); len(r) > MaxCommentLength {
		s = string(r[:MaxCommentLength])
	}
	return s
}
