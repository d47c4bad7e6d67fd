// Package trackingnumber issues the public, unguessable parcel identifiers.
package trackingnumber

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix marks every tracking number issued by the platform.
const Prefix = "ZS"

// Length is the full length of an issued tracking number.
const Length = len(Prefix) + 26

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// New returns a fresh tracking number. Uniqueness comes from the UUIDv7 payload; the
// database unique index is the final arbiter.
func New() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate tracking id: %w", err)
	}
	return Prefix + encoding.EncodeToString(id[:]), nil
}

// Normalize uppercases and trims user input.
func Normalize(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// Valid reports whether value has the shape of an issued tracking number.
func Valid(value string) bool {
	if len(value) != Length || !strings.HasPrefix(value, Prefix) {
		return false
	}
	decoded, err := encoding.DecodeString(value[len(Prefix):])
	return err == nil && len(decoded) == 16
}
