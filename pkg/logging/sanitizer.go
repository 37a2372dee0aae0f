// Package logging holds helpers shared by the zap call sites: request ID
// propagation and redaction of credentials that drivers echo into errors.
package logging

import (
	"regexp"
	"unicode/utf8"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)=[^;&\s]+`)

	// user:pass@ in a DSN; the host is kept
	urlCredentialsPattern = regexp.MustCompile(`://[^/\s:@]+:[^\s@]+@`)

	// Bearer tokens and provider API keys (sk-..., sk-ant-...)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.=]+`)
	apiKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{8,}`)
)

// Sanitize removes credentials from s. Use it on DSNs and driver error text
// before logging.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = urlCredentialsPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = apiKeyPattern.ReplaceAllString(s, RedactedText)
	return s
}

// SanitizeError returns err's message with credentials removed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return Sanitize(err.Error())
}

// TruncateString shortens s to at most maxLen runes, adding an ellipsis when
// anything was cut.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
