package dtsbundle

import "strings"

// Token strings emitted into fake-JS must not contain raw newlines or tabs:
// some bundlers rewrite escape-heavy string literals into template literals,
// which corrupts declaration text that itself contains backticks. Each control
// character is substituted with a marker built from a Private-Use-Area code
// point sandwiching a short ASCII tag. The markers pass through the bundler
// untouched and are removed again by the reverse transform.
const (
	escapeMark    = "\ue0b9"
	newlineEscape = escapeMark + "#n" + escapeMark
	tabEscape     = escapeMark + "#t" + escapeMark
)

var (
	tokenEscaper   = strings.NewReplacer("\n", newlineEscape, "\t", tabEscape)
	tokenUnescaper = strings.NewReplacer(newlineEscape, "\n", tabEscape, "\t")
)

// EscapeTokenText replaces newlines and tabs with the reserved markers.
func EscapeTokenText(s string) string {
	return tokenEscaper.Replace(s)
}

// UnescapeTokenText restores newlines and tabs. Idempotent on strings that
// carry no markers.
func UnescapeTokenText(s string) string {
	return tokenUnescaper.Replace(s)
}
