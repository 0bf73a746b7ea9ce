package catalog

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

type scanner interface{ Scan(dest ...any) error }

// Timestamps are stored as UTC RFC 3339 text; rows written by the sqlite
// CLI use the DATETIME layout instead.
var timeLayouts = []string{time.RFC3339Nano, time.DateTime}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw.String); err == nil {
			return t
		}
	}
	return time.Time{}
}

// nullableString, nullableID and nullableTime map zero values to NULL so
// COALESCE upserts keep the stored column.
func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// encodeStrings stores tag lists as JSON arrays; nil encodes as "[]".
func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	return string(data), err
}

func decodeStrings(raw sql.NullString) []string {
	var out []string
	if raw.String == "" || json.Unmarshal([]byte(raw.String), &out) != nil || len(out) == 0 {
		return nil
	}
	return out
}

// placeholders returns "?,?,?" for n bind parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
