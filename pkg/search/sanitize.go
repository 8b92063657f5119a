package search

import (
	"regexp"
)

// maxErrorLen caps sanitized provider error text.
const maxErrorLen = 300

// redactionPattern pairs a compiled regex with its replacement. The
// table is applied in order, longest-reach patterns first, so a URL
// containing an api_key parameter is redacted as a URL rather than
// leaking its path.
type redactionPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

var redactions = []redactionPattern{
	{
		name:        "bearer_token",
		regex:       regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]+=*`),
		replacement: "Bearer ***",
	},
	{
		name:        "api_key_param",
		regex:       regexp.MustCompile(`(?i)api[_-]?key\s*[=:]\s*[^\s&"']+`),
		replacement: "api_key=***",
	},
	{
		name:        "url",
		regex:       regexp.MustCompile(`https?://[^\s"']+`),
		replacement: "<url>",
	},
	{
		name:        "base64ish_token",
		regex:       regexp.MustCompile(`[A-Za-z0-9+/_-]{32,}={0,2}`),
		replacement: "***",
	},
}

// SanitizeError scrubs provider error text before it reaches logs:
// URLs, bearer tokens, api_key parameters, and long base64-ish blobs
// are redacted, and the result is truncated to 300 characters.
func SanitizeError(msg string) string {
	for _, p := range redactions {
		msg = p.regex.ReplaceAllString(msg, p.replacement)
	}
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}
