package log

import "net/url"

// RedactURL keeps scheme and host so private feed tokens and paths never
// reach log output.
//
//	https://example.com/path/to/private.ics?token=abcd -> https://example.com/...(redacted)
func RedactURL(raw string) string {
	const redactedSuffix = "/...(redacted)"

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "url://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + redactedSuffix
}
