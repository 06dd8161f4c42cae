// Package server exposes a small admin HTTP surface for a foreground
// supervisor: health, status, metrics and a stop trigger.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/bloomctl/internal/metrics"
	"github.com/loykin/bloomctl/internal/supervisor"
)

// Endpoints:
//   GET  {basePath}/healthz   current lifecycle state
//   GET  {basePath}/status    full status report
//   GET  {basePath}/metrics   Prometheus exposition (when a gatherer is set)
//   POST {basePath}/stop      request a graceful shutdown
// basePath may be empty or start with '/'; no trailing slash.

// Supervised is the part of the supervisor the router reads.
type Supervised interface {
	State() supervisor.State
	Status(ctx context.Context) supervisor.Status
}

type Router struct {
	sup      Supervised
	stop     func()
	gatherer prometheus.Gatherer
	basePath string
}

// NewRouter constructs a Router. stop is invoked by POST /stop; a nil stop
// disables the endpoint.
func NewRouter(sup Supervised, stop func(), g prometheus.Gatherer, basePath string) *Router {
	return &Router{sup: sup, stop: stop, gatherer: g, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealth)
	group.GET("/status", r.handleStatus)
	group.POST("/stop", r.handleStop)
	if r.gatherer != nil {
		group.GET("/metrics", gin.WrapH(metrics.Handler(r.gatherer)))
	}
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type healthResp struct {
	OK    bool             `json:"ok"`
	State supervisor.State `json:"state"`
}

func (r *Router) handleHealth(c *gin.Context) {
	st := r.sup.State()
	code := http.StatusOK
	if st != supervisor.StateRunning {
		code = http.StatusServiceUnavailable
	}
	writeJSON(c, code, healthResp{OK: code == http.StatusOK, State: st})
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.Status(c.Request.Context()))
}

func (r *Router) handleStop(c *gin.Context) {
	if r.stop == nil {
		writeJSON(c, http.StatusNotImplemented, errorResp{Error: "stop is not available"})
		return
	}
	r.stop()
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}
