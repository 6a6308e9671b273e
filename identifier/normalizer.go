// Package identifier provides the canonical string form used for every
// cross-source identifier comparison. Marketplace payloads carry the same
// identifier as a number, a padded string, or a string with stray
// whitespace; direct typed comparison across those shapes is forbidden by
// contract and routed through Equal instead.
package identifier

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrMalformedIdentifier = errors.New("identifier: malformed identifier")

// Absent is the canonical sentinel for a missing identifier. Empty
// strings, nil, and the numeric literal 0 all normalize to it.
const Absent = ""

// Normalize coerces a numeric or string identifier into its canonical
// string form. Zero-padded string codes keep their padding; numeric zero
// and empty inputs collapse to Absent. Unsupported kinds return an error
// rather than leaking into equality checks.
func Normalize(id any) (string, error) {
	switch typed := id.(type) {
	case nil:
		return Absent, nil
	case string:
		return normalizeString(typed), nil
	case int:
		return normalizeInt(int64(typed)), nil
	case int32:
		return normalizeInt(int64(typed)), nil
	case int64:
		return normalizeInt(typed), nil
	case uint:
		return normalizeInt(int64(typed)), nil
	case uint32:
		return normalizeInt(int64(typed)), nil
	case uint64:
		if typed > math.MaxInt64 {
			return "", fmt.Errorf("%w: %d overflows", ErrMalformedIdentifier, typed)
		}
		return normalizeInt(int64(typed)), nil
	case float32:
		return normalizeFloat(float64(typed))
	case float64:
		return normalizeFloat(typed)
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrMalformedIdentifier, id)
	}
}

func normalizeString(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Absent
	}
	// A bare numeric zero is treated as absent; "007"-style codes are a
	// deliberate non-zero padded identifier and survive unchanged.
	if isAllZeros(trimmed) && len(trimmed) == 1 {
		return Absent
	}
	return trimmed
}

func normalizeInt(value int64) string {
	if value == 0 {
		return Absent
	}
	return strconv.FormatInt(value, 10)
}

func normalizeFloat(value float64) (string, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", fmt.Errorf("%w: non-finite number", ErrMalformedIdentifier)
	}
	if value != math.Trunc(value) {
		return "", fmt.Errorf("%w: fractional value %v", ErrMalformedIdentifier, value)
	}
	return normalizeInt(int64(value)), nil
}

func isAllZeros(value string) bool {
	for _, r := range value {
		if r != '0' {
			return false
		}
	}
	return true
}

// Equal is the single approved cross-source identifier comparison. Both
// sides are normalized first; malformed or absent identifiers never
// compare equal to anything.
func Equal(a any, b any) bool {
	left, err := Normalize(a)
	if err != nil || left == Absent {
		return false
	}
	right, err := Normalize(b)
	if err != nil || right == Absent {
		return false
	}
	return left == right
}

// SQLInClause normalizes, escapes, and joins identifiers for a bulk
// lookup. Absent identifiers are skipped; an input with no usable
// identifier is an error rather than an empty clause.
func SQLInClause(ids []any) (string, error) {
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		normalized, err := Normalize(id)
		if err != nil {
			return "", err
		}
		if normalized == Absent {
			continue
		}
		quoted = append(quoted, "'"+strings.ReplaceAll(normalized, "'", "''")+"'")
	}
	if len(quoted) == 0 {
		return "", fmt.Errorf("%w: no usable identifiers", ErrMalformedIdentifier)
	}
	return strings.Join(quoted, ", "), nil
}
