// Package server exposes the port bus to the browser over HTTP.
//
// The front-end publishes on an inbound port with POST /ports/{port} and listens to
// every outbound port on the Server-Sent Events stream GET /ports/events.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/etnz/apnee/config"
	"github.com/etnz/apnee/logger"
	"github.com/etnz/apnee/ports"
)

const (
	// maxPayload bounds the size of an inbound message.
	maxPayload = 10 << 20
	// subscriberBuffer is the number of outbound messages an event stream may lag behind.
	subscriberBuffer = 16
	shutdownTimeout  = 5 * time.Second
)

// ReadyEvent is the first event of every stream, sent once the stream is subscribed.
const ReadyEvent = "ready"

// Server is the HTTP host of a bus.
type Server struct {
	bus    *ports.Bus
	cfg    *config.Config
	engine *gin.Engine

	// ctx is the context inbound messages are handled with.
	ctx context.Context

	// mu guards closed, wg counts the inbound messages in flight.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates the server for a started bus.
func New(cfg *config.Config, bus *ports.Bus) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		bus:    bus,
		cfg:    cfg,
		engine: gin.New(),
		ctx:    context.Background(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(logger.Middleware())
	s.engine.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/ports", s.listPorts)
	s.engine.GET("/ports/events", s.events)
	s.engine.POST("/ports/:port", s.publish)

	if cfg.StaticDir != "" {
		s.engine.Static("/app", cfg.StaticDir)
		s.engine.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, "/app/")
		})
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) listPorts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"inbound": s.bus.Ports()})
}

func (s *Server) publish(c *gin.Context) {
	port := c.Param("port")
	if !s.bus.Has(port) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown port %q", port)})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) > maxPayload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("null")
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is not valid JSON"})
		return
	}

	msg := ports.Message{ID: uuid.NewString(), Port: port, Payload: body}
	if !s.track() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	}
	go func() {
		defer s.wg.Done()
		if err := s.bus.Dispatch(s.ctx, msg); err != nil {
			logrus.WithError(err).WithField("port", port).Error("dispatch failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"id": msg.ID})
}

// track registers one more inbound message in flight, unless the server stopped
// accepting them.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// drain stops accepting inbound messages and waits for those in flight.
func (s *Server) drain() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) events(c *gin.Context) {
	out, cancel := s.bus.Subscribe(subscriberBuffer)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Render(-1, sse.Event{Event: ReadyEvent, Data: "null"})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-out:
			if !ok {
				return false
			}
			c.Render(-1, sse.Event{Id: msg.ID, Event: msg.Port, Data: string(msg.Payload)})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is cancelled, then shuts down gracefully. Requests,
// event streams and inbound messages in flight are handled with a context derived
// from ctx.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.ctx = ctx
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()
	logrus.WithField("addr", l.Addr().String()).Info("serving")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.drain()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logrus.Info("server stopped")
	return nil
}
