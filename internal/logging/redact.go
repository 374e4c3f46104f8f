package logging

import (
	"net/url"
	"sort"
	"strings"
)

const redacted = "REDACTED"

// Redact masks all but the last four characters of a secret.
func Redact(secret string) string {
	s := strings.TrimSpace(secret)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return redacted
	}
	return redacted + "…" + s[len(s)-4:]
}

// RedactURL strips userinfo and masks every query value so that challenge
// tokens and contact addresses never reach a log line. Keys are kept so the
// shape of the request remains readable.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if u.User != nil {
		u.User = url.User(redacted)
	}
	if u.RawQuery == "" {
		return u.String()
	}
	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if isPublicParam(k) {
			for _, v := range q[k] {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
			continue
		}
		parts = append(parts, url.QueryEscape(k)+"="+redacted)
	}
	u.RawQuery = strings.Join(parts, "&")
	return u.String()
}

// query parameters that describe the upstream request and carry no secrets
var publicParams = map[string]struct{}{
	"callsign":         {},
	"modify":           {},
	"flowStartSeconds": {},
	"rronly":           {},
	"rptlimit":         {},
}

func isPublicParam(key string) bool {
	_, ok := publicParams[key]
	return ok
}

// RedactOrigin keeps only scheme and host. Challenge follow-up URLs can carry
// tokens in the path as well as the query.
func RedactOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	return u.Scheme + "://" + u.Host + "/" + redacted
}
