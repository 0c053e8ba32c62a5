package logging

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"module":     {},
	"op":         {},
	"opid":       {},
	"backend":    {},
	"datadir":    {},
	"collection": {},
	"assetid":    {},
	"caller":     {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns a sorted copy of the keys emitted without
// redaction.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns the canonical redacted placeholder for non-blank values.
// Blank values collapse to "" to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return RedactedValue
}

// MaskField returns a zap field that redacts value unless key is allowlisted.
func MaskField(key, value string) zap.Field {
	if IsAllowlisted(key) {
		return zap.String(key, value)
	}
	return zap.String(key, MaskValue(value))
}
