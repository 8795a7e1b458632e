package connector

import (
	"fmt"
	"net/url"
	"strings"
)

// withURLCredentials adds credentials to a URL-form DSN
// (postgres://host/db). Credentials already in the URL win.
func withURLCredentials(raw string, c Credentials) (string, error) {
	if c.Username == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		// key=value DSN
		return appendKeyValueCredentials(raw, c), nil
	}
	if u.User != nil && u.User.Username() != "" {
		return raw, nil
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	} else {
		u.User = url.User(c.Username)
	}
	return u.String(), nil
}

// appendKeyValueCredentials handles libpq keyword DSNs
// ("host=localhost dbname=app").
func appendKeyValueCredentials(raw string, c Credentials) string {
	var sb strings.Builder
	sb.WriteString(raw)
	if !strings.Contains(raw, "user=") {
		sb.WriteString(" user=")
		sb.WriteString(quoteKeyValue(c.Username))
	}
	if c.Password != "" && !strings.Contains(raw, "password=") {
		sb.WriteString(" password=")
		sb.WriteString(quoteKeyValue(c.Password))
	}
	return strings.TrimSpace(sb.String())
}

func quoteKeyValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// redact hides the password of a DSN for logging. For non-URL forms
// everything before the "@" is masked.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" && u.Host != "" {
		return u.Redacted()
	}
	if i := strings.LastIndexByte(raw, '@'); i >= 0 {
		return "***" + raw[i:]
	}
	return raw
}
