// Package api exposes the interpreter and the document store over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/antibyte/chayakada/pkg/auth"
	"github.com/antibyte/chayakada/pkg/configuration"
	"github.com/antibyte/chayakada/pkg/interpreter"
	"github.com/antibyte/chayakada/pkg/logger"
	"github.com/antibyte/chayakada/pkg/storage"
)

// Server holds the dependencies of the HTTP handlers
type Server struct {
	interp          *interpreter.Interpreter
	files           *storage.FileStore
	ws              http.Handler
	maxSourceBytes  int
	normalizeSource bool
}

// NewServer creates the HTTP API. ws serves /ws and may be nil.
func NewServer(interp *interpreter.Interpreter, files *storage.FileStore, ws http.Handler) *Server {
	return &Server{
		interp:          interp,
		files:           files,
		ws:              ws,
		maxSourceBytes:  configuration.GetInt("Interpreter", "max_source_kb", 64) * 1024,
		normalizeSource: configuration.GetBool("Interpreter", "normalize_source", true),
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors(), auth.OptionalSession())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/run", s.handleRun)

	files := r.Group("/files")
	files.POST("/create", s.handleCreateFile)
	files.GET("/list/:session_id", s.handleListFiles)
	files.GET("/:id", s.handleGetFile)
	files.PUT("/:id", s.handleUpdateFile)
	files.DELETE("/:id", s.handleDeleteFile)
	files.POST("/:id/run", s.handleRunFile)

	authGroup := r.Group("/api/auth")
	authGroup.POST("/session", auth.HandleCreateSession)
	authGroup.GET("/validate", auth.HandleTokenValidation)
	authGroup.POST("/logout", auth.HandleLogout)

	if s.ws != nil {
		r.GET("/ws", gin.WrapH(s.ws))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found"})
	})

	return r
}

// cors allows every origin, like the browser playground expects
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			logger.Error(logger.AreaAPI, "%s %s -> %d (%v) %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start), c.Errors.String())
			return
		}
		logger.Info(logger.AreaAPI, "%s %s -> %d (%v) from %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start), c.ClientIP())
	}
}
