// control/server.go
// Author: momentics <momentics@gmail.com>
//
// Optional HTTP endpoint exposing metrics and probes as JSON.

package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsServer serves GET /stats and GET /healthz. It only reads the
// registries and never blocks the relay loop.
type StatsServer struct {
	metrics *MetricsRegistry
	probes  *DebugProbes
	log     *slog.Logger
	router  *gin.Engine
	srv     *http.Server
	ln      net.Listener
	started time.Time
}

// NewStatsServer builds the router. Call Start to begin listening.
func NewStatsServer(metrics *MetricsRegistry, probes *DebugProbes, log *slog.Logger) *StatsServer {
	if log == nil {
		log = slog.Default()
	}
	s := &StatsServer{
		metrics: metrics,
		probes:  probes,
		log:     log,
		started: time.Now(),
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.handleHealth)
	router.GET("/stats", s.handleStats)
	s.router = router
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *StatsServer) Handler() http.Handler { return s.router }

// Start listens on addr and serves in a background goroutine.
func (s *StatsServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("stats server stopped", "error", err)
		}
	}()
	s.log.Info("stats server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *StatsServer) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *StatsServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *StatsServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *StatsServer) handleStats(c *gin.Context) {
	body := gin.H{
		"metrics": s.metrics.GetSnapshot(),
	}
	if updated := s.metrics.Updated(); !updated.IsZero() {
		body["updated"] = updated.UTC().Format(time.RFC3339Nano)
	}
	if s.probes != nil {
		body["probes"] = s.probes.DumpState()
	}
	c.JSON(http.StatusOK, body)
}
