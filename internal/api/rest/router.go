// Package rest provides the Gin-based control API for the swarm host.
package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/geo/r2"
	"go.uber.org/zap"

	"github.com/tedvkremer/swarmag-website/internal/host"
	"github.com/tedvkremer/swarmag-website/internal/protocol"
	"github.com/tedvkremer/swarmag-website/internal/spatial"
	"github.com/tedvkremer/swarmag-website/internal/storage/local"
	"github.com/tedvkremer/swarmag-website/internal/swarm"
)

// Runner executes fn on the goroutine that owns the flock. Frame is read from
// inside fn and numbers frames the same way the stream and the recorder do.
type Runner interface {
	Do(ctx context.Context, fn func()) error
	Frame() uint64
}

// Server is the REST API server.
type Server struct {
	engine   *gin.Engine
	runner   Runner
	flock    *swarm.Flock
	viewport *host.Viewport
	frames   local.FrameStore
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a REST Server. frames may be nil when recording is disabled.
func New(runner Runner, flock *swarm.Flock, viewport *host.Viewport, frames local.FrameStore, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		runner:   runner,
		flock:    flock,
		viewport: viewport,
		frames:   frames,
		timeout:  2 * time.Second,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// Mount serves h for GET requests on path, for example a websocket endpoint.
func (s *Server) Mount(path string, h http.Handler) {
	s.engine.GET(path, gin.WrapH(h))
}

// registerRoutes sets up the /swarm context path.
func (s *Server) registerRoutes() {
	sw := s.engine.Group("/swarm")
	{
		sw.GET("/state", s.state)
		sw.POST("/target", s.setTarget)
		sw.POST("/resize", s.resize)
		sw.POST("/start", s.start)
		sw.POST("/stop", s.stop)
		sw.POST("/toggle", s.toggle)
		sw.GET("/neighbours", s.neighbours)
	}

	rec := sw.Group("/recording")
	{
		rec.GET("", s.recordingRange)
		rec.GET("/:frame", s.recordingFrame)
	}
}

// do runs fn on the flock goroutine, answering 503 when the loop is gone.
func (s *Server) do(c *gin.Context, fn func()) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()
	if err := s.runner.Do(ctx, fn); err != nil {
		s.logger.Warn("Swarm command not run", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return false
	}
	return true
}

type stateResponse struct {
	Running bool           `json:"running"`
	Ticks   uint64         `json:"ticks"`
	Frame   protocol.Frame `json:"frame"`
}

func (s *Server) snapshot() stateResponse {
	return stateResponse{
		Running: s.flock.Running(),
		Ticks:   s.flock.Ticks(),
		Frame:   host.Capture(s.runner.Frame(), s.flock, s.viewport),
	}
}

func (s *Server) state(c *gin.Context) {
	var resp stateResponse
	if !s.do(c, func() { resp = s.snapshot() }) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) setTarget(c *gin.Context) {
	var body protocol.Press
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.do(c, func() { s.flock.SetTarget(body.X, body.Y) }) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": protocol.Point{X: body.X, Y: body.Y}})
}

func (s *Server) resize(c *gin.Context) {
	var body protocol.Resize
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.W <= 0 || body.H <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width and height must be positive"})
		return
	}
	if !s.do(c, func() { s.viewport.Resize(body.W, body.H) }) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"width": body.W, "height": body.H})
}

func (s *Server) start(c *gin.Context) {
	var err error
	if !s.do(c, func() { err = s.flock.Start() }) {
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, swarm.ErrNotInitialized) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true})
}

func (s *Server) stop(c *gin.Context) {
	if !s.do(c, s.flock.Stop) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": false})
}

func (s *Server) toggle(c *gin.Context) {
	var running bool
	if !s.do(c, func() {
		s.flock.Toggle()
		running = s.flock.Running()
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": running})
}

func (s *Server) neighbours(c *gin.Context) {
	var (
		points []r2.Point
		bounds spatial.Bounds
	)
	if !s.do(c, func() {
		bounds = s.flock.Bounds()
		for _, a := range s.flock.Agents() {
			points = append(points, a.Position())
		}
	}) {
		return
	}

	agents := make([]protocol.Point, len(points))
	for i, p := range points {
		agents[i] = protocol.Point{X: p.X, Y: p.Y}
	}
	c.JSON(http.StatusOK, gin.H{
		"agents":     agents,
		"neighbours": spatial.Neighbours(points, bounds),
	})
}

func (s *Server) recordingFrame(c *gin.Context) {
	if s.frames == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording disabled"})
		return
	}
	n, err := strconv.ParseUint(c.Param("frame"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frame number"})
		return
	}
	fr, err := s.frames.Get(n)
	if errors.Is(err, local.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, fr)
}

func (s *Server) recordingRange(c *gin.Context) {
	if s.frames == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording disabled"})
		return
	}
	from, err := strconv.ParseUint(c.DefaultQuery("from", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	to, err := strconv.ParseUint(c.DefaultQuery("to", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}
	frames, err := s.frames.Range(from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if frames == nil {
		frames = []protocol.Frame{}
	}
	c.JSON(http.StatusOK, gin.H{"frames": frames})
}
