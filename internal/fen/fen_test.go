package fen_test

import (
	"errors"
	"testing"

	"github.com/chess-tools/stockfishd/internal/fen"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestNormalizeValid(t *testing.T) {
	fens := []string{
		startFEN,
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		"8/8/8/8/8/4k3/4p3/4K3 w - - 0 1",
	}
	for _, raw := range fens {
		key, err := fen.Normalize(raw)
		if err != nil {
			t.Errorf("Normalize(%q): %v", raw, err)
			continue
		}
		if string(key) != raw {
			t.Errorf("Normalize(%q): key %q, want the raw FEN", raw, key)
		}
	}
}

func TestNormalizeInvalid(t *testing.T) {
	fens := []string{
		"",
		"not-a-fen",
		"rnbqkbnr/pppppppp/8/8", // truncated
	}
	for _, raw := range fens {
		if _, err := fen.Normalize(raw); !errors.Is(err, fen.ErrInvalidPosition) {
			t.Errorf("Normalize(%q): err = %v, want ErrInvalidPosition", raw, err)
		}
	}
}

func TestNormalizeKeepsCountersDistinct(t *testing.T) {
	a := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	b := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 5 20"

	ka, err := fen.Normalize(a)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := fen.Normalize(b)
	if err != nil {
		t.Fatal(err)
	}
	if ka == kb {
		t.Errorf("FENs differing only in counters share key %q", ka)
	}
}
