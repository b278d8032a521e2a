package engine_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chess-tools/stockfishd/internal/engine"
)

const (
	whiteToMove = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	blackToMove = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
)

func TestScoreWhitePerspective(t *testing.T) {
	tests := []struct {
		name string
		raw  int
		mate bool
		fen  string
		want int
	}{
		{"cp white to move", 31, false, whiteToMove, 31},
		{"negative cp white to move", -120, false, whiteToMove, -120},
		{"cp black to move flips", 31, false, blackToMove, -31},
		{"negative cp black to move flips", -85, false, blackToMove, 85},
		{"mate for white", 3, true, whiteToMove, engine.MateScore},
		{"mate against white", -5, true, whiteToMove, -engine.MateScore},
		{"mate for black flips", 2, true, blackToMove, -engine.MateScore},
		{"mate against black flips", -7, true, blackToMove, engine.MateScore},
		{"mate magnitude ignores distance", 15, true, whiteToMove, engine.MateScore},
	}
	for _, tt := range tests {
		if got := engine.Score(tt.raw, tt.mate, tt.fen); got != tt.want {
			t.Errorf("%s: Score(%d, %v) = %d, want %d", tt.name, tt.raw, tt.mate, got, tt.want)
		}
	}
}

func TestStartMissingExecutable(t *testing.T) {
	_, err := engine.Start(filepath.Join(t.TempDir(), "no-such-engine"), engine.Config{}, zerolog.Nop())
	if !errors.Is(err, engine.ErrStart) {
		t.Errorf("Start on missing executable: err = %v, want ErrStart", err)
	}
}

// fakeEngine writes a shell script that speaks just enough UCI for tests.
func fakeEngine(t *testing.T, goResponse string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine script requires a POSIX shell")
	}

	script := fmt.Sprintf(`#!/bin/sh
while read -r line; do
  case "$line" in
    uci)
      echo "id name FakeFish 1.0"
      echo "uciok"
      ;;
    isready)
      echo "readyok"
      ;;
    go*)
      %s
      ;;
    quit)
      exit 0
      ;;
  esac
done
`, goResponse)

	path := filepath.Join(t.TempDir(), "fakefish")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEvaluateCentipawns(t *testing.T) {
	path := fakeEngine(t, `echo "info depth 12 score cp 42 pv e2e4"
      echo "bestmove e2e4"`)

	p, err := engine.Start(path, engine.Config{MoveTime: 10 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Stop()

	if p.Name() != "FakeFish 1.0" {
		t.Errorf("Name = %q, want FakeFish 1.0", p.Name())
	}

	ev, err := p.Evaluate(context.Background(), whiteToMove)
	if err != nil {
		t.Fatal(err)
	}
	if ev.BestMove != "e2e4" || ev.Score != 42 {
		t.Errorf("Evaluate = %+v, want e2e4/42", ev)
	}

	// Same raw score with Black to move lands on the other side of zero.
	ev, err = p.Evaluate(context.Background(), blackToMove)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Score != -42 {
		t.Errorf("black-to-move Score = %d, want -42", ev.Score)
	}
}

func TestEvaluateMateSentinel(t *testing.T) {
	path := fakeEngine(t, `echo "info depth 20 score mate 3 pv d8h4"
      echo "bestmove d8h4"`)

	p, err := engine.Start(path, engine.Config{MoveTime: 10 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Stop()

	ev, err := p.Evaluate(context.Background(), blackToMove)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Score != -engine.MateScore {
		t.Errorf("mate for the side to move (Black) scored %d, want %d", ev.Score, -engine.MateScore)
	}
}

func TestEvaluateProcessDeath(t *testing.T) {
	path := fakeEngine(t, "exit 1")

	p, err := engine.Start(path, engine.Config{MoveTime: 10 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Stop()

	if _, err := p.Evaluate(context.Background(), whiteToMove); !errors.Is(err, engine.ErrComm) {
		t.Errorf("Evaluate on dead process: err = %v, want ErrComm", err)
	}
}

func TestEvaluateMissingScore(t *testing.T) {
	path := fakeEngine(t, `echo "bestmove e2e4"`)

	p, err := engine.Start(path, engine.Config{MoveTime: 10 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Stop()

	if _, err := p.Evaluate(context.Background(), whiteToMove); !errors.Is(err, engine.ErrComm) {
		t.Errorf("Evaluate without score: err = %v, want ErrComm", err)
	}
}
