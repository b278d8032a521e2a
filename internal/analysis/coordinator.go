// Package analysis serializes access to a single UCI engine process,
// caches results, and transparently restarts the engine once per request
// when it fails.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/chess-tools/stockfishd/internal/cache"
	"github.com/chess-tools/stockfishd/internal/engine"
	"github.com/chess-tools/stockfishd/internal/fen"
)

// ErrEngineUnavailable reports that the engine failed and the single
// restart attempt also failed. The service stays up; the next request
// triggers its own fresh recovery.
var ErrEngineUnavailable = errors.New("engine unavailable")

// Engine is the slice of engine.Process the coordinator depends on.
type Engine interface {
	Evaluate(ctx context.Context, fen string) (engine.Evaluation, error)
	Name() string
	Stop()
}

// StartFunc launches a replacement engine with the service's configuration.
type StartFunc func() (Engine, error)

// Coordinator presents a stateless, concurrency-safe facade over one
// stateful engine session. The UCI channel carries a single pending request
// at a time, so the whole evaluate-or-recover sequence, cache write
// included, runs under one mutex. Exactly one engine is current at any
// time, and only the coordinator replaces it.
type Coordinator struct {
	mu      sync.Mutex
	current Engine

	start    StartFunc
	cache    *cache.Cache
	log      zerolog.Logger
	restarts uint64
}

// New launches the initial engine via start and returns a ready
// coordinator. A nil cache gets the default capacity.
func New(start StartFunc, c *cache.Cache, log zerolog.Logger) (*Coordinator, error) {
	eng, err := start()
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = cache.New(cache.DefaultCapacity)
	}
	return &Coordinator{current: eng, start: start, cache: c, log: log}, nil
}

// Analyze answers a best-move query for raw FEN text, serving repeat
// positions from the cache. On an engine failure it replaces the process
// and retries the evaluation exactly once before reporting
// ErrEngineUnavailable.
func (co *Coordinator) Analyze(ctx context.Context, raw string) (cache.Result, error) {
	key, err := fen.Normalize(raw)
	if err != nil {
		return cache.Result{}, err
	}

	// Hit path: never waits on the engine lock. Results are copied out of
	// the cache by value, so the Cached flag mutation is local.
	if res, ok := co.cache.Get(key); ok {
		res.Cached = true
		return res, nil
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	ev, err := co.current.Evaluate(ctx, raw)
	if err != nil {
		co.log.Warn().Err(err).Str("fen", raw).Msg("engine failed, attempting restart")
		ev, err = co.recover(ctx, raw)
		if err != nil {
			return cache.Result{}, err
		}
	}

	res := cache.Result{BestMove: ev.BestMove, Evaluation: ev.Score, FEN: raw}
	co.cache.Put(key, res)
	return res, nil
}

// recover replaces the failed engine and retries the evaluation once.
// The bounded retry keeps a persistently broken engine from looping; any
// further failure surfaces as ErrEngineUnavailable. Caller holds co.mu.
func (co *Coordinator) recover(ctx context.Context, raw string) (engine.Evaluation, error) {
	co.current.Stop()

	replacement, err := co.start()
	if err != nil {
		return engine.Evaluation{}, fmt.Errorf("%w: restart failed: %v", ErrEngineUnavailable, err)
	}
	co.current = replacement
	atomic.AddUint64(&co.restarts, 1)
	co.log.Info().Str("engine", replacement.Name()).Msg("engine restarted")

	ev, err := co.current.Evaluate(ctx, raw)
	if err != nil {
		return engine.Evaluation{}, fmt.Errorf("%w: retry failed: %v", ErrEngineUnavailable, err)
	}
	return ev, nil
}

// EngineName reports the current engine's self-identification.
func (co *Coordinator) EngineName() string {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.current.Name()
}

// Restarts reports how many recovery cycles have replaced the engine.
func (co *Coordinator) Restarts() uint64 {
	return atomic.LoadUint64(&co.restarts)
}

// Close stops the current engine. Shutdown only; best effort.
func (co *Coordinator) Close() {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.current.Stop()
}
