// Package env reads process variables that are needed before the typed config
// is loaded, such as the log format and the instance id.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces zipshift variables. Keep in sync with config.EnvPrefix.
const Prefix = "ZIPSHIFT_"

// Get returns ZIPSHIFT_<key> when set, then the bare key, then fallback.
func Get(key, fallback string) string {
	if val, ok := Lookup(key); ok {
		return val
	}
	return fallback
}

// Lookup is Get without a fallback. Blank values count as unset.
func Lookup(key string) (string, bool) {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val, true
		}
	}
	return "", false
}
