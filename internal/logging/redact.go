package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

const redactedValue = "[redacted]"

// secretKeyParts marks attribute keys whose values never reach a log sink.
// Provider session cookies are named ipb_member_id and ipb_pass_hash.
var secretKeyParts = []string{"cookie", "password", "pass_hash", "token", "secret", "ipb_", "authorization"}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// redactAttr masks secret values. Group members are checked individually.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		out := make([]slog.Attr, len(members))
		for i, m := range members {
			out[i] = redactAttr(m)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(out...)}
	}
	if masked(attr) {
		return slog.String(attr.Key, redactedValue)
	}
	return attr
}

// masked reports whether attr carries a secret. Flags such as
// api_token_present and empty strings stay readable.
func masked(attr slog.Attr) bool {
	if !isSecretKey(attr.Key) {
		return false
	}
	switch attr.Value.Kind() {
	case slog.KindString:
		return attr.Value.String() != ""
	case slog.KindAny, slog.KindLogValuer:
		return true
	}
	return false
}

// URL returns an attribute holding raw without credentials, query or fragment.
// Gallery links carry session keys in their query strings.
func URL(key, raw string) Attr {
	return slog.String(key, scrubURL(raw))
}

func scrubURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
