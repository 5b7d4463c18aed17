package outputfmt

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[redacted]"

var (
	absoluteURLInTextRE = regexp.MustCompile(`https?://[^\s"'<>]+`)
	botTokenSegmentRE   = regexp.MustCompile(`^bot[0-9]+:[A-Za-z0-9_-]+$`)
	botTokenInTextRE    = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]{10,}`)
)

// Path segments that follow these names carry account or namespace ids.
var sensitivePathParents = map[string]bool{
	"accounts":   true,
	"namespaces": true,
}

// FormatErrorForDisplay sanitizes error text before it reaches a chat reply.
// URL hosts are dropped, Telegram bot tokens and store account ids in paths
// are redacted, and sensitive query values are masked.
func FormatErrorForDisplay(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	return Redact(SanitizeErrorText(err.Error()), secrets...)
}

// SanitizeErrorText removes URL hosts from arbitrary text while keeping the
// rest of each URL with its sensitive parts masked.
func SanitizeErrorText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = absoluteURLInTextRE.ReplaceAllStringFunc(raw, sanitizeURLInText)
	return botTokenInTextRE.ReplaceAllString(raw, "bot"+redacted)
}

// Redact replaces every occurrence of the given secret values.
func Redact(text string, secrets ...string) string {
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if len(s) < 4 {
			continue
		}
		text = strings.ReplaceAll(text, s, redacted)
	}
	return text
}

func sanitizeURLInText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
		return raw
	}
	path := redactPath(u.EscapedPath())
	if path == "" {
		path = "/"
	}
	if q := redactSensitiveQuery(u.Query()); q != "" {
		path += "?" + q
	}
	if frag := strings.TrimSpace(u.EscapedFragment()); frag != "" {
		path += "#" + frag
	}
	return path
}

func redactPath(path string) string {
	if path == "" {
		return path
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if botTokenSegmentRE.MatchString(part) {
			parts[i] = "bot" + redacted
			continue
		}
		if i > 0 && sensitivePathParents[strings.ToLower(parts[i-1])] && part != "" {
			parts[i] = redacted
		}
	}
	return strings.Join(parts, "/")
}

func redactSensitiveQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	for k := range q {
		if isSensitiveQueryKey(k) {
			q.Set(k, redacted)
		}
	}
	return q.Encode()
}

func isSensitiveQueryKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	n := strings.ReplaceAll(strings.ReplaceAll(k, "-", ""), "_", "")
	if n == "key" {
		return true
	}
	for _, marker := range []string{"apikey", "authorization", "token", "secret", "password", "signature", "credential", "cookie"} {
		if strings.Contains(n, marker) {
			return true
		}
	}
	return false
}
