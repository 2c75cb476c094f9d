package server

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/hardening-controller/internal/orchestrator"
	"github.com/danielpatrickdp/hardening-controller/internal/store"
	"github.com/danielpatrickdp/hardening-controller/internal/telemetry"
)

// #region server

// Server exposes the control loop over HTTP. Cycle execution stays
// serialized inside the orchestrator; handlers never touch the world model
// directly.
type Server struct {
	orch        *orchestrator.Orchestrator
	store       *store.Store
	events      *telemetry.Store
	metrics     *Metrics
	environment string
}

// New wires the HTTP surface over an orchestrator and its stores.
func New(orch *orchestrator.Orchestrator, st *store.Store, events *telemetry.Store, environment string) *Server {
	return &Server{
		orch:        orch,
		store:       st,
		events:      events,
		metrics:     NewMetrics(),
		environment: environment,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		v1.POST("/cycles", s.handleRunCycle)
		v1.GET("/cycles", s.handleListCycles)
		v1.GET("/cycles/:decision_id", s.handleTrace)
		v1.POST("/telemetry", s.handleIngestTelemetry)
		v1.GET("/telemetry", s.handleRecentTelemetry)
		v1.GET("/state", s.handleState)
	}

	return r
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	log.Printf("[HTTP] listening on %s", addr)
	return s.Router().Run(addr)
}

// #endregion server

// #region handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRunCycle runs one full control cycle and returns its result. The
// orchestrator serializes concurrent callers.
func (s *Server) handleRunCycle(c *gin.Context) {
	var req struct {
		Environment string `json:"environment"`
	}
	// body is optional; the configured environment is the default
	_ = c.ShouldBindJSON(&req)
	env := req.Environment
	if env == "" {
		env = s.environment
	}

	start := time.Now()
	result, err := s.orch.RunCycle(c.Request.Context(), env)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.observe(result, time.Since(start))
	c.JSON(http.StatusOK, result)
}

func (s *Server) observe(result orchestrator.CycleResult, elapsed time.Duration) {
	s.metrics.CyclesTotal.WithLabelValues(string(result.Status)).Inc()
	s.metrics.CycleSeconds.Observe(elapsed.Seconds())
	s.metrics.RiskScore.Set(result.State.RiskScore)
	if result.Reward.Value > 0 {
		s.metrics.RewardTotal.Add(result.Reward.Value)
	}
	if !result.Gate.Allowed {
		s.metrics.GateDenies.Inc()
	}
}

func (s *Server) handleListCycles(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	cycles, err := s.store.ListCycles(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": cycles})
}

func (s *Server) handleTrace(c *gin.Context) {
	trace, err := s.store.Trace(c.Param("decision_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trace)
}

// handleIngestTelemetry accepts one raw telemetry event, typed or bare.
func (s *Server) handleIngestTelemetry(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	event, err := s.events.Append(raw)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.metrics.TelemetryEvents.Inc()
	c.JSON(http.StatusAccepted, event)
}

func (s *Server) handleRecentTelemetry(c *gin.Context) {
	limit := intQuery(c, "limit", 30)
	events, err := s.events.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// handleState returns the active world model version.
func (s *Server) handleState(c *gin.Context) {
	t, versionID, err := s.store.LoadActiveTwin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version_id": versionID, "world_model": t})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// #endregion handlers
