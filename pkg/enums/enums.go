// Package enums holds the string enumerations stored in the database and
// exchanged over the API. Each type has IsValid and a strict Parse function.
package enums

import (
	"fmt"
	"slices"
)

func parseOneOf[T ~string](kind, value string, valid []T) (T, error) {
	if v := T(value); slices.Contains(valid, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
