package shared

import (
	"regexp"
)

const redactedPlaceholder = "[REDACTED]"

// secretPatterns match secrets that end up in log lines: credentials pasted
// into task text and userinfo in exporter endpoints.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)((?:api[_-]?key|apikey|secret|password|passwd|auth[_-]?token|token)\s*[:=]\s*"?)([^\s"]{6,})`),
	regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9_\-./+=]{16,})`),
	regexp.MustCompile(`(://[^/\s:@]+:)([^/\s@]+)@`),
}

// Redact replaces secret-bearing patterns in the input string with [REDACTED].
// The key or prefix of a match is kept.
func Redact(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(match string) string {
			submatch := pat.FindStringSubmatch(match)
			if len(submatch) < 3 {
				return redactedPlaceholder
			}
			out := submatch[1] + redactedPlaceholder
			if pat == secretPatterns[2] {
				out += "@"
			}
			return out
		})
	}
	return result
}
