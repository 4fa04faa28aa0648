// Package stream pushes coverage reports to clients over Server-Sent Events.
// Clients connect via GET /api/{constellation}/coverage/stream and receive a
// fresh report immediately and then once per interval.
//
// SSE message format:
//
//	data: {"type":"coverage","report":{...}}\n\n
//
// A tick that fails is reported without closing the stream:
//
//	data: {"type":"error","error":"...","code":"no_cache_available"}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval of silence.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/constellation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/coverage"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/httputil"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/metrics"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/tle"
)

// Interval bounds in seconds.
const (
	DefaultInterval = 60
	MinInterval     = 10
	MaxInterval     = 600
)

// Coverer computes one coverage report. *coverage.Service implements it.
type Coverer interface {
	Coverage(ctx context.Context, req coverage.Request) (*coverage.Report, error)
}

// Config holds streaming limits.
type Config struct {
	MaxConcurrentPerIP int           // default 10
	MaxTotal           int           // default 1000
	KeepaliveInterval  time.Duration // default 30s
	TrustProxy         bool
}

// Handler manages SSE streaming connections.
type Handler struct {
	coverer Coverer
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger

	// intervalUnit scales the interval parameter; tests shrink it.
	intervalUnit time.Duration
}

// NewHandler creates a streaming handler.
func NewHandler(coverer Coverer, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		coverer:      coverer,
		config:       config,
		limiter:      newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:       logger.With("component", "stream"),
		intervalUnit: time.Second,
	}
}

// Active returns the number of open streams.
func (h *Handler) Active() int { return h.limiter.active() }

// HandleCoverage serves the SSE coverage stream.
// GET /api/{constellation}/coverage/stream?lat=&lng=&alt=&maxSats=&interval=
func (h *Handler) HandleCoverage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("constellation")
	if _, err := constellation.Lookup(id); err != nil {
		metrics.IncStreamErrors("unknown_constellation")
		httputil.WriteError(w, http.StatusNotFound, httputil.CodeUnknownConstellation, err.Error())
		return
	}

	q := r.URL.Query()
	req, err := coverage.ParseQuery(id, q)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeInvalidParameter, err.Error())
		return
	}

	interval := DefaultInterval
	if v := q.Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < MinInterval || n > MaxInterval {
			httputil.WriteError(w, http.StatusBadRequest, httputil.CodeInvalidParameter,
				fmt.Sprintf("invalid interval parameter, must be %d-%d", MinInterval, MaxInterval))
			return
		}
		interval = n
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, httputil.CodeRateLimited, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"constellation", id,
		"interval_s", interval,
		"user_agent", r.Header.Get("User-Agent"),
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"constellation", id,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, httputil.CodeInternal, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout; client extends a per-write deadline.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(time.Duration(3000+rand.IntN(4000)) * time.Millisecond); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	ctx := r.Context()
	if err := h.tick(ctx, c, req); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(time.Duration(interval) * h.intervalUnit)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := h.tick(ctx, c, req); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// tick computes one report and sends it, or sends an error message when the
// computation fails. Only write failures are returned.
func (h *Handler) tick(ctx context.Context, c *client, req coverage.Request) error {
	report, err := h.coverer.Coverage(ctx, req)
	if err != nil {
		metrics.IncStreamErrors("coverage_error")
		h.logger.Warn("stream coverage failed",
			"remote_ip", c.ip,
			"constellation", req.Constellation,
			"error", err,
		)
		return c.sendJSON(errorMessage{
			Type:  "error",
			Error: err.Error(),
			Code:  errorCode(err),
		})
	}
	return c.sendJSON(coverageMessage{Type: "coverage", Report: report})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, tle.ErrNoCacheAvailable):
		return httputil.CodeNoCacheAvailable
	case errors.Is(err, constellation.ErrUnknown):
		return httputil.CodeUnknownConstellation
	case errors.Is(err, coverage.ErrInvalidRequest):
		return httputil.CodeInvalidParameter
	default:
		return httputil.CodeInternal
	}
}

type coverageMessage struct {
	Type   string           `json:"type"`
	Report *coverage.Report `json:"report"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code"`
}
