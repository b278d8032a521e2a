package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/chess-tools/stockfishd/internal/analysis"
	"github.com/chess-tools/stockfishd/internal/cache"
	"github.com/chess-tools/stockfishd/internal/engine"
	"github.com/chess-tools/stockfishd/internal/httpapi"
	"github.com/chess-tools/stockfishd/internal/logx"
)

// findStockfish looks for the engine binary next to the running executable.
func findStockfish() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	name := "stockfish"
	if runtime.GOOS == "windows" {
		name = "stockfish.exe"
	}
	path := filepath.Join(filepath.Dir(exe), name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func main() {
	var (
		addr         = flag.String("addr", ":5000", "listen address")
		stockfish    = flag.String("stockfish", "", "path to Stockfish executable (default: next to this binary, or STOCKFISH_PATH)")
		threads      = flag.Int("threads", 2, "Stockfish threads")
		hashMB       = flag.Int("hash", 128, "Stockfish hash MB")
		moveOverhead = flag.Int("move-overhead", 0, "Stockfish move overhead in ms")
		moveTime     = flag.Duration("movetime", 150*time.Millisecond, "think time per analysis request")
		cacheSize    = flag.Int("cache-size", cache.DefaultCapacity, "max cached positions")
	)
	flag.Parse()

	logger := logx.NewLogger()

	path := *stockfish
	if path == "" {
		path = os.Getenv("STOCKFISH_PATH")
	}
	if path == "" {
		p, err := findStockfish()
		if err != nil {
			logger.Fatal().Err(err).Msg("no stockfish next to this binary; use -stockfish or STOCKFISH_PATH")
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		logger.Fatal().Err(err).Str("path", path).Msg("stockfish executable missing")
	}

	cfg := engine.Config{
		Threads:        *threads,
		HashMB:         *hashMB,
		MoveOverheadMS: *moveOverhead,
		MoveTime:       *moveTime,
	}
	engLog := logger.With().Str("component", "engine").Logger()
	start := func() (analysis.Engine, error) {
		return engine.Start(path, cfg, engLog)
	}

	results := cache.New(*cacheSize)
	coord, err := analysis.New(start, results, logger.With().Str("component", "coordinator").Logger())
	if err != nil {
		logger.Fatal().Err(err).Str("path", path).Msg("start engine")
	}
	defer coord.Close()

	logger.Info().
		Str("engine", coord.EngineName()).
		Str("path", path).
		Int("cache_size", *cacheSize).
		Msg("engine ready")

	srv := &http.Server{
		Addr:         *addr,
		Handler:      httpapi.NewRouter(logger, coord, results, coord.EngineName()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}
