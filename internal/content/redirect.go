package content

import (
	"net/url"
	"regexp"
)

// redirectPattern matches the platform's outbound-link wrapper (spec
// §4.1 "Redirect unwrapping"): `https://{ywh_domain}/redirect?url=...`.
// %s is the platform domain, regexp-escaped by the caller.
func redirectPattern(domain string) *regexp.Regexp {
	return regexp.MustCompile(`https?://` + regexp.QuoteMeta(domain) + `/redirect\?([^\s"'<>]*)`)
}

// UnwrapRedirects removes the platform's redirect wrapper from every
// occurrence in text — inside HTML href/src attribute values and in bare
// text alike, since both are just substrings of the same string — and
// replaces it with the inner URL: percent-decoded twice, with the
// `expires` and `token` query parameters stripped and every other
// parameter preserved (spec §4.1, P7). Applying it twice is a fixed point
// because the output no longer matches the wrapper pattern.
func UnwrapRedirects(text, ywhDomain string) string {
	pattern := redirectPattern(ywhDomain)
	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := pattern.FindStringSubmatch(match)
		query := sub[1]

		values, err := url.ParseQuery(query)
		if err != nil {
			return match
		}

		wrapped := values.Get("url")
		if wrapped == "" {
			return match
		}

		inner := wrapped
		for range 2 {
			decoded, err := url.QueryUnescape(inner)
			if err != nil {
				return match
			}
			inner = decoded
		}

		return stripExpiresAndToken(inner)
	})
}

// stripExpiresAndToken removes the `expires` and `token` query parameters
// from a URL string while preserving every other parameter; the surviving
// parameters are re-encoded sorted by key.
func stripExpiresAndToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}

	q := u.Query()
	q.Del("expires")
	q.Del("token")

	u.RawQuery = q.Encode()
	return u.String()
}
