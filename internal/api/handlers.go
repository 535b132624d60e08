package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/market"
)

const defaultStatsPeriod = 24 * time.Hour

// ============================================================================
// HEALTH
// ============================================================================

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":   "healthy",
		"database": "healthy",
		"uptime":   time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.deps.Cache != nil {
		body["cache"] = healthLabel(s.deps.Cache.IsHealthy())
	}
	if s.deps.Manager != nil {
		body["manager_running"] = s.deps.Manager.Status().Running
	}

	if err := s.deps.Store.HealthCheck(ctx); err != nil {
		body["status"] = "unhealthy"
		body["database"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func healthLabel(ok bool) string {
	if ok {
		return "healthy"
	}
	return "degraded"
}

// ============================================================================
// PAIRS
// ============================================================================

type pairInfo struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	IsOTC  bool   `json:"is_otc"`
}

func (s *Server) handleGetPairs(c *gin.Context) {
	if s.deps.Analyzer == nil {
		errorResponse(c, http.StatusServiceUnavailable, "analyzer not configured")
		return
	}
	pairs := s.deps.Analyzer.Pairs()
	out := make([]pairInfo, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, pairInfo{Symbol: p, Base: market.BaseSymbol(p), IsOTC: market.IsOTC(p)})
	}
	successResponse(c, out)
}

// resolvePair matches a URL-safe pair name such as eurusd-otc or EUR_USD
// against the configured symbols
func resolvePair(name string, pairs []string) (string, bool) {
	want := normalizePair(name)
	for _, p := range pairs {
		if normalizePair(p) == want {
			return p, true
		}
	}
	return "", false
}

func normalizePair(s string) string {
	return strings.NewReplacer("/", "", "_", "", "-", "", " ", "").Replace(strings.ToUpper(s))
}

// ============================================================================
// SIGNALS
// ============================================================================

// handleListSignals returns signal history filtered by pair, status and since
func (s *Server) handleListSignals(c *gin.Context) {
	filter := database.SignalFilter{
		Status: strings.ToUpper(c.Query("status")),
	}

	switch filter.Status {
	case "", database.StatusPending, database.StatusWin, database.StatusLoss, database.StatusDraw:
	default:
		errorResponse(c, http.StatusBadRequest, "status must be one of PENDING, WIN, LOSS, DRAW")
		return
	}

	if p := c.Query("pair"); p != "" {
		filter.Pair = p
		if s.deps.Analyzer != nil {
			if resolved, ok := resolvePair(p, s.deps.Analyzer.Pairs()); ok {
				filter.Pair = resolved
			}
		}
	}

	if v := c.Query("since"); v != "" {
		since, err := parseSince(v, time.Now())
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "since must be RFC3339 or a duration such as 24h")
			return
		}
		filter.Since = since
	}

	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	list, err := s.deps.Store.ListSignals(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list signals", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to fetch signals")
		return
	}
	if list == nil {
		list = []*database.Signal{}
	}
	successResponse(c, list)
}

// parseSince accepts an RFC3339 timestamp or a look-back duration
func parseSince(v string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(v); err == nil {
		if d < 0 {
			d = -d
		}
		return now.Add(-d), nil
	}
	return time.Parse(time.RFC3339, v)
}

func (s *Server) handleLatestSignal(c *gin.Context) {
	ctx := c.Request.Context()

	if s.deps.Cache != nil {
		if sig, ok := s.deps.Cache.GetLatestSignal(ctx); ok {
			c.Header("X-Cache", "HIT")
			successResponse(c, sig)
			return
		}
	}

	sig, err := s.deps.Store.LastSignal(ctx)
	if errors.Is(err, database.ErrNotFound) {
		errorResponse(c, http.StatusNotFound, "no signals yet")
		return
	}
	if err != nil {
		s.logger.Error("failed to load latest signal", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to fetch latest signal")
		return
	}

	if s.deps.Cache != nil {
		s.deps.Cache.SetLatestSignal(ctx, sig)
	}
	successResponse(c, sig)
}

func (s *Server) handleGetSignal(c *gin.Context) {
	id := c.Param("id")
	// signal ids are UUIDs; anything else cannot exist
	if _, err := uuid.Parse(id); err != nil {
		errorResponse(c, http.StatusNotFound, "signal not found")
		return
	}

	sig, err := s.deps.Store.GetSignal(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		errorResponse(c, http.StatusNotFound, "signal not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load signal", "signal_id", id, "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to fetch signal")
		return
	}
	successResponse(c, sig)
}

// ============================================================================
// STATS
// ============================================================================

// handleGetStats returns win rates over ?period= (default 24h)
func (s *Server) handleGetStats(c *gin.Context) {
	ctx := c.Request.Context()

	period := defaultStatsPeriod
	if v := c.Query("period"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errorResponse(c, http.StatusBadRequest, "period must be a positive duration such as 24h")
			return
		}
		period = d
	}
	// minute resolution keeps the cache key stable between requests
	since := time.Now().Add(-period).Truncate(time.Minute)

	if s.deps.Cache != nil {
		if stats, ok := s.deps.Cache.GetStats(ctx, since); ok {
			c.Header("X-Cache", "HIT")
			successResponse(c, stats)
			return
		}
	}

	stats, err := s.deps.Store.Stats(ctx, since)
	if err != nil {
		s.logger.Error("failed to compute stats", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	if s.deps.Cache != nil {
		s.deps.Cache.SetStats(ctx, stats)
	}
	successResponse(c, stats)
}

// ============================================================================
// ANALYSIS
// ============================================================================

// handleAnalyzePair runs the full pipeline for one pair without persisting anything
func (s *Server) handleAnalyzePair(c *gin.Context) {
	if s.deps.Analyzer == nil {
		errorResponse(c, http.StatusServiceUnavailable, "analyzer not configured")
		return
	}

	symbol, ok := resolvePair(c.Param("pair"), s.deps.Analyzer.Pairs())
	if !ok {
		errorResponse(c, http.StatusNotFound, "unknown pair: "+c.Param("pair"))
		return
	}
	relaxed := c.Query("relaxed") == "true"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	cand, err := s.deps.Analyzer.Analyze(ctx, symbol, relaxed)
	if errors.Is(err, market.ErrUnknownSymbol) {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Warn("analysis failed", "pair", symbol, "error", err)
		errorResponse(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	successResponse(c, gin.H{
		"symbol":        symbol,
		"accepted":      cand.Accepted(),
		"quality_score": cand.QualityScore(),
		"confidence":    cand.Confidence,
		"stages":        cand.Stages,
		"analysis":      cand.Analysis,
	})
}

// ============================================================================
// MANAGER
// ============================================================================

func (s *Server) handleManagerStatus(c *gin.Context) {
	body := gin.H{
		"websocket_clients": s.hub.GetClientCount(),
		"uptime":            time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.deps.Manager != nil {
		body["manager"] = s.deps.Manager.Status()
	}
	if s.deps.Jobs != nil {
		body["jobs"] = s.deps.Jobs.Status()
	}
	if s.rateLimiter != nil {
		body["rate_limited_clients"] = s.rateLimiter.Clients()
	}
	if s.deps.Cache != nil {
		if stats, ok := s.deps.Cache.BackendStats(); ok {
			body["cache"] = stats
		}
	}
	successResponse(c, body)
}
