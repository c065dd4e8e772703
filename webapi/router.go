package webapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	iface "SegTrackServer/interface"
	"SegTrackServer/logger"
	"SegTrackServer/monitor"
	"SegTrackServer/sessions"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type API struct {
	Manager     *sessions.Manager
	IdleTimeout time.Duration
}

type openRequest struct {
	Description string `json:"description"`
}

// statusOf maps session errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sessions.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, sessions.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, iface.ErrInvalidFrame):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		monitor.HTTPTotal.Inc()
		logger.Log().Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// NewRouter builds the HTTP and websocket routes.
func NewRouter(api *API) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/api/sessions", api.open)
	r.GET("/api/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": api.Manager.All()})
	})
	r.GET("/api/sessions/:id", func(c *gin.Context) {
		s, err := api.Manager.Get(c.Param("id"))
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": s.Info()})
	})
	r.POST("/api/sessions/:id/process", api.process)
	r.POST("/api/sessions/:id/reset", func(c *gin.Context) {
		if err := api.Manager.Reset(c.Param("id")); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": "Session reset"})
	})
	r.POST("/api/sessions/:id/release", func(c *gin.Context) {
		if err := api.Manager.Release(c.Param("id")); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": "Session released"})
	})
	r.GET("/ws/:id", api.stream)
	return r
}

func (api *API) open(c *gin.Context) {
	var req openRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	s, err := api.Manager.Open(req.Description)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionID": s.ID,
		"wsURL":     fmt.Sprintf("ws://%s/ws/%s", c.Request.Host, s.ID),
		"timeoutMs": api.IdleTimeout.Milliseconds(),
	})
}

func (api *API) process(c *gin.Context) {
	var frame iface.Frame
	if err := c.ShouldBindJSON(&frame); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := frame.Validate(); err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	preview, _ := strconv.ParseBool(c.Query("preview"))
	res, err := api.Manager.Process(c.Request.Context(), c.Param("id"), frame, preview)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

// Start serves handler on port in the background.
func Start(port int, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}
	go func() {
		logger.Log().Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("HTTP server stopped", zap.Error(err))
		}
	}()
	return srv
}
