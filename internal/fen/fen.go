// Package fen derives result-cache keys from FEN position strings.
package fen

import (
	"errors"
	"fmt"

	"github.com/notnil/chess"
)

// ErrInvalidPosition reports input that is empty or not syntactically
// valid FEN.
var ErrInvalidPosition = errors.New("invalid position")

// Key identifies a position in the result cache. The raw FEN text itself is
// the key: move counters and the like are not stripped, so two FEN spellings
// of the same position cache as separate entries.
type Key string

// Normalize validates raw as FEN and returns it as a cache key. Parsing is
// delegated to the chess library; any parse failure maps to
// ErrInvalidPosition.
func Normalize(raw string) (Key, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: no FEN provided", ErrInvalidPosition)
	}
	if _, err := chess.FEN(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return Key(raw), nil
}
