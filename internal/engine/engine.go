// Package engine runs one Stockfish subprocess and speaks UCI to it over
// stdin/stdout pipes.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel error categories. Start failures mean the process could not be
// launched or configured; Comm failures mean a running process stopped
// answering correctly and needs replacing.
var (
	ErrStart = errors.New("engine start")
	ErrComm  = errors.New("engine communication")
)

// MateScore is the sentinel evaluation magnitude for forced mates, positive
// when the mate favors White. The engine's mate-in-N distance is collapsed
// into this sentinel so mates stay outside the ordinary centipawn range.
const MateScore = 10000

// Config holds the UCI options applied at startup and the per-request
// think-time budget.
type Config struct {
	Threads        int           // UCI Threads option
	HashMB         int           // UCI Hash option, in MB
	MoveOverheadMS int           // UCI Move Overhead option, in ms
	MoveTime       time.Duration // movetime per evaluation
	StartupTimeout time.Duration // bound on the UCI handshake
}

func (c Config) withDefaults() Config {
	if c.Threads <= 0 {
		c.Threads = 2
	}
	if c.HashMB <= 0 {
		c.HashMB = 128
	}
	if c.MoveOverheadMS < 0 {
		c.MoveOverheadMS = 0
	}
	if c.MoveTime <= 0 {
		c.MoveTime = 150 * time.Millisecond
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 5 * time.Second
	}
	return c
}

// Evaluation is the engine's answer for one position.
type Evaluation struct {
	BestMove string
	Score    int // centipawns from White's perspective, or ±MateScore
}

// Process is one live UCI engine session. The UCI channel carries a single
// pending request at a time, so Process is not safe for concurrent use; the
// analysis coordinator serializes access.
type Process struct {
	cmd  *exec.Cmd
	in   *bufio.Writer
	out  *bufio.Scanner
	cfg  Config
	name string
	log  zerolog.Logger
}

// Start launches the engine at path, performs the UCI handshake and applies
// cfg within cfg.StartupTimeout. Any failure wraps ErrStart.
func Start(path string, cfg Config, log zerolog.Logger) (*Process, error) {
	cfg = cfg.withDefaults()

	cmd := exec.Command(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrStart, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrStart, err)
	}

	p := &Process{
		cmd: cmd,
		in:  bufio.NewWriter(stdin),
		out: bufio.NewScanner(stdout),
		cfg: cfg,
		log: log,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStart, err)
	}
	if err := p.handshake(); err != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w: %v", ErrStart, err)
	}
	if p.name == "" {
		p.name = filepath.Base(path)
	}

	log.Info().
		Str("engine", p.name).
		Int("threads", cfg.Threads).
		Int("hash_mb", cfg.HashMB).
		Int("move_overhead_ms", cfg.MoveOverheadMS).
		Msg("engine started")
	return p, nil
}

// Name reports the engine's self-identification from the UCI handshake.
func (p *Process) Name() string { return p.name }

// handshake performs the uci/isready exchange and applies option settings.
func (p *Process) handshake() error {
	deadline := time.After(p.cfg.StartupTimeout)

	if err := p.send("uci"); err != nil {
		return err
	}
	if err := p.expect("uciok", deadline, func(line string) {
		if name, ok := strings.CutPrefix(line, "id name "); ok {
			p.name = name
		}
	}); err != nil {
		return err
	}

	options := []string{
		fmt.Sprintf("setoption name Threads value %d", p.cfg.Threads),
		fmt.Sprintf("setoption name Hash value %d", p.cfg.HashMB),
		fmt.Sprintf("setoption name Move Overhead value %d", p.cfg.MoveOverheadMS),
		"isready",
	}
	for _, cmd := range options {
		if err := p.send(cmd); err != nil {
			return err
		}
	}
	return p.expect("readyok", deadline, nil)
}

// expect reads lines until an exact match, the deadline fires, or the pipe
// closes. A fired deadline abandons the reader goroutine; it exits once the
// caller kills the process and the pipe closes.
func (p *Process) expect(want string, deadline <-chan time.Time, observe func(string)) error {
	done := make(chan error, 1)
	go func() {
		for p.out.Scan() {
			line := p.out.Text()
			if observe != nil {
				observe(line)
			}
			if line == want {
				done <- nil
				return
			}
		}
		if err := p.out.Err(); err != nil {
			done <- err
			return
		}
		done <- fmt.Errorf("engine closed pipe waiting for %q", want)
	}()

	select {
	case err := <-done:
		return err
	case <-deadline:
		return fmt.Errorf("timeout waiting for %q", want)
	}
}

// Evaluate submits one position and waits for a scored best move. The raw
// score arrives from the side to move's perspective; Evaluate flips it to
// White's and collapses forced mates into ±MateScore. Process death, a
// closed pipe, malformed output and silence past the time budget all wrap
// ErrComm.
func (p *Process) Evaluate(ctx context.Context, fen string) (Evaluation, error) {
	if err := p.send("position fen " + fen); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrComm, err)
	}
	if err := p.send(fmt.Sprintf("go movetime %d", p.cfg.MoveTime.Milliseconds())); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %v", ErrComm, err)
	}

	type outcome struct {
		ev  Evaluation
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var cp, mate *int
		for p.out.Scan() {
			line := p.out.Text()
			switch {
			case strings.HasPrefix(line, "info "):
				// info depth 18 ... score cp 23 ...
				// info depth 20 ... score mate 3 ...
				if n, ok := parseScore(line, "cp"); ok {
					cp, mate = &n, nil
				} else if n, ok := parseScore(line, "mate"); ok {
					mate, cp = &n, nil
				}
			case strings.HasPrefix(line, "bestmove "):
				fields := strings.Fields(line)
				if len(fields) < 2 || fields[1] == "(none)" {
					done <- outcome{err: fmt.Errorf("no best move in %q", line)}
					return
				}
				switch {
				case mate != nil:
					done <- outcome{ev: Evaluation{BestMove: fields[1], Score: Score(*mate, true, fen)}}
				case cp != nil:
					done <- outcome{ev: Evaluation{BestMove: fields[1], Score: Score(*cp, false, fen)}}
				default:
					done <- outcome{err: fmt.Errorf("bestmove %q without a score", fields[1])}
				}
				return
			}
		}
		if err := p.out.Err(); err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{err: errors.New("engine closed pipe before bestmove")}
	}()

	// The engine should answer right after the movetime budget; well past it
	// the process is considered wedged.
	grace := p.cfg.MoveTime + 2*time.Second
	select {
	case out := <-done:
		if out.err != nil {
			return Evaluation{}, fmt.Errorf("%w: %v", ErrComm, out.err)
		}
		p.log.Debug().
			Str("fen", fen).
			Str("bestmove", out.ev.BestMove).
			Int("score", out.ev.Score).
			Msg("evaluated")
		return out.ev, nil
	case <-ctx.Done():
		return Evaluation{}, fmt.Errorf("%w: %v", ErrComm, ctx.Err())
	case <-time.After(grace):
		return Evaluation{}, fmt.Errorf("%w: no bestmove within %s", ErrComm, grace)
	}
}

// Stop terminates the engine. Termination is best effort by design: the
// process may already be dead, so failures are logged and never propagated.
func (p *Process) Stop() {
	if err := p.send("quit"); err != nil {
		p.log.Debug().Err(err).Msg("quit write failed, killing engine")
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		_ = p.cmd.Wait()
		return
	}

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		p.log.Warn().Msg("engine ignored quit, killing")
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-done
	}
}

// Score converts a raw UCI score (side-to-move perspective) into a
// white-positive evaluation. Forced mates collapse into ±MateScore
// regardless of distance.
func Score(raw int, mate bool, fen string) int {
	if strings.Contains(fen, " b ") {
		raw = -raw
	}
	if mate {
		if raw > 0 {
			return MateScore
		}
		return -MateScore
	}
	return raw
}

// parseScore extracts the N of "score <kind> N" from a UCI info line.
func parseScore(line, kind string) (int, bool) {
	marker := " score " + kind + " "
	i := strings.Index(line, marker)
	if i < 0 {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(line[i+len(marker):], "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

func (p *Process) send(cmd string) error {
	if _, err := fmt.Fprintln(p.in, cmd); err != nil {
		return err
	}
	return p.in.Flush()
}
