package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"otc-signal-bot/internal/analysis"
	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/logging"
)

// Cache key patterns
const (
	KeyAnalysis     = "analysis:%s"   // analysis:{symbol}
	KeyLatestSignal = "signal:latest" // most recent persisted signal
	KeyStats        = "stats:%d"      // stats:{since unix}
)

// TTLs
const (
	LatestSignalTTL = 15 * time.Minute
	StatsTTL        = 30 * time.Second
)

// SignalCache shares analysis results, the latest signal and statistics
// between instances. Every read falls back to a miss when the backend is
// unhealthy so callers always have the store as source of truth.
type SignalCache struct {
	backend Backend
	logger  *logging.Logger
}

// NewSignalCache wraps a backend, typically a *CacheService
func NewSignalCache(backend Backend) *SignalCache {
	return &SignalCache{
		backend: backend,
		logger:  logging.WithComponent("signal_cache"),
	}
}

// IsHealthy reports whether the backend is reachable
func (sc *SignalCache) IsHealthy() bool {
	return sc.backend != nil && sc.backend.IsHealthy()
}

// BackendStats returns Redis statistics when the backend is a *CacheService
func (sc *SignalCache) BackendStats() (Stats, bool) {
	cs, ok := sc.backend.(*CacheService)
	if !ok || cs == nil {
		return Stats{}, false
	}
	return cs.GetStats(), true
}

func (sc *SignalCache) getJSON(ctx context.Context, key string, dest interface{}) bool {
	if !sc.IsHealthy() {
		return false
	}
	data, err := sc.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			sc.logger.Debug("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		sc.logger.Warn("corrupt cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (sc *SignalCache) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !sc.IsHealthy() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		sc.logger.Warn("failed to encode cache entry", "key", key, "error", err)
		return
	}
	if err := sc.backend.Set(ctx, key, data, ttl); err != nil {
		sc.logger.Debug("cache write failed", "key", key, "error", err)
	}
}

// GetAnalysis returns a cached combined analysis
func (sc *SignalCache) GetAnalysis(ctx context.Context, symbol string) (*analysis.MultiTimeframeResult, bool) {
	var r analysis.MultiTimeframeResult
	if !sc.getJSON(ctx, fmt.Sprintf(KeyAnalysis, symbol), &r) {
		return nil, false
	}
	return &r, true
}

// SetAnalysis stores a combined analysis
func (sc *SignalCache) SetAnalysis(ctx context.Context, result *analysis.MultiTimeframeResult, ttl time.Duration) {
	if result == nil {
		return
	}
	sc.setJSON(ctx, fmt.Sprintf(KeyAnalysis, result.Symbol), result, ttl)
}

// GetLatestSignal returns the cached most recent signal
func (sc *SignalCache) GetLatestSignal(ctx context.Context) (*database.Signal, bool) {
	var s database.Signal
	if !sc.getJSON(ctx, KeyLatestSignal, &s) {
		return nil, false
	}
	return &s, true
}

// SetLatestSignal replaces the cached most recent signal
func (sc *SignalCache) SetLatestSignal(ctx context.Context, s *database.Signal) {
	if s == nil {
		return
	}
	sc.setJSON(ctx, KeyLatestSignal, s, LatestSignalTTL)
}

// UpdateLatestSignal refreshes the cached signal if it is the one that was settled
func (sc *SignalCache) UpdateLatestSignal(ctx context.Context, s *database.Signal) {
	if s == nil {
		return
	}
	if current, ok := sc.GetLatestSignal(ctx); ok && current.ID != s.ID {
		return
	}
	sc.SetLatestSignal(ctx, s)
}

// GetStats returns cached statistics for the window starting at since
func (sc *SignalCache) GetStats(ctx context.Context, since time.Time) (*database.SignalStats, bool) {
	var stats database.SignalStats
	if !sc.getJSON(ctx, fmt.Sprintf(KeyStats, since.Unix()), &stats) {
		return nil, false
	}
	return &stats, true
}

// SetStats caches statistics for a short time
func (sc *SignalCache) SetStats(ctx context.Context, stats *database.SignalStats) {
	if stats == nil {
		return
	}
	sc.setJSON(ctx, fmt.Sprintf(KeyStats, stats.Since.Unix()), stats, StatsTTL)
}

// InvalidateStats removes cached statistics for a window
func (sc *SignalCache) InvalidateStats(ctx context.Context, since time.Time) {
	if !sc.IsHealthy() {
		return
	}
	if err := sc.backend.Delete(ctx, fmt.Sprintf(KeyStats, since.Unix())); err != nil {
		sc.logger.Debug("failed to invalidate stats", "error", err)
	}
}
