package logging

import (
	"regexp"
	"strings"
)

// Sensitive field names that should be redacted.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"passphrase",
	"authorization",
	"auth",
	"credential",
	"private_key",
	"privatekey",
}

// Patterns for secrets that should be redacted regardless of caller intent.
var secretPatterns = []*regexp.Regexp{
	// Basic auth embedded in curl invocations and URLs
	regexp.MustCompile(`(?i)-u\s+\S+:\S+`),
	regexp.MustCompile(`(?i)://[^/\s:]+:[^@\s]+@`),

	// Generic key/token assignments
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{16,})["']?`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces well-known sensitive information in a string.
func Redact(s string) string {
	result := s

	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}

	return result
}

// Conceal replaces every substring of s matching any of the given patterns
// with the redaction marker. Patterns are regular expressions; a pattern that
// fails to compile is matched literally instead of being dropped, so a caller
// can always rely on the named text never reaching the logs.
func Conceal(s string, patterns []string) string {
	result := s
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			re = regexp.MustCompile(regexp.QuoteMeta(p))
		}
		result = re.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lowerName := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerName, field) {
			return true
		}
	}
	return false
}
