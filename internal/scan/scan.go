// Package scan normalizes raw token identifiers read from physical tags.
package scan

import (
	"errors"
	"strings"
)

// Prefix is the URI scheme written onto tags. Tags carrying a bare
// identifier are accepted too.
const Prefix = "cookies:"

var ErrEmptyToken = errors.New("scanned token is empty")

// Normalize converts raw tag payload into a canonical token id: surrounding
// whitespace is trimmed and the scheme prefix stripped when present.
func Normalize(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(id, Prefix); ok {
		id = strings.TrimSpace(rest)
	}
	if id == "" {
		return "", ErrEmptyToken
	}
	return id, nil
}
