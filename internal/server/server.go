package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"base-distance/internal/calculator"
	"base-distance/internal/config"
	"base-distance/internal/geocode"
	"base-distance/internal/jobs"
	"base-distance/internal/metrics"
	"base-distance/internal/pipeline"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sessionName = "basedist"

// Server serves the upload/run/download API around one shared orchestrator.
type Server struct {
	config       config.Config
	jobs         *jobs.Store
	orchestrator *pipeline.Orchestrator
	adapter      *geocode.Adapter
	router       *gin.Engine

	// busy is held from an accepted /run until its job finishes
	busy atomic.Bool
}

// NewServer wires routes. adapter may be nil, in which case address mode is refused.
func NewServer(config config.Config, orchestrator *pipeline.Orchestrator, adapter *geocode.Adapter) (*Server, error) {
	for _, dir := range []string{config.UploadDir, config.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	server := &Server{
		config:       config,
		jobs:         jobs.NewStore(),
		orchestrator: orchestrator,
		adapter:      adapter,
	}
	server.setupRouter()
	return server, nil
}

func (server *Server) Handler() http.Handler { return server.router }

func (server *Server) setupRouter() {
	if !server.config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	secret := server.config.SessionSecret
	if secret == "" {
		secret = uuid.New().String()
		log.Warn().Msg("SESSION_SECRET not set, sessions will not survive a restart")
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/login", server.login)
	r.GET("/logout", server.logout)

	authorized := r.Group("/")
	authorized.Use(server.authRequired)
	{
		authorized.POST("/run", server.run)
		authorized.GET("/logs", server.jobLogs)
		authorized.GET("/status", server.jobStatus)
		authorized.GET("/closest", server.closest)
		authorized.GET("/groups", server.groups)
		authorized.GET("/download-result/:filename", server.downloadResult)
	}

	server.router = r
}

func errorResponse(msg string) gin.H {
	return gin.H{"ok": false, "error": msg}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

// authRequired is a no-op when no login password is configured.
func (server *Server) authRequired(c *gin.Context) {
	if server.config.LoginPass == "" {
		c.Next()
		return
	}
	session := sessions.Default(c)
	if session.Get("user") == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("login required"))
		return
	}
	c.Next()
}

func (server *Server) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	if server.config.LoginPass == "" || username != server.config.LoginUser || password != server.config.LoginPass {
		c.JSON(http.StatusUnauthorized, errorResponse("invalid username or password"))
		return
	}

	session := sessions.Default(c)
	session.Set("user", username)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (server *Server) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (server *Server) jobLogs(c *gin.Context) {
	job := server.jobs.Get(c.Query("job_id"))
	if job == nil {
		c.JSON(http.StatusNotFound, errorResponse("job not found"))
		return
	}
	snap := job.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"logs":     snap.Logs,
		"status":   snap.Status,
		"progress": snap.Progress,
	})
}

func (server *Server) jobStatus(c *gin.Context) {
	job := server.jobs.Get(c.Query("job_id"))
	if job == nil {
		c.JSON(http.StatusNotFound, errorResponse("job not found"))
		return
	}
	snap := job.Snapshot()
	res := gin.H{
		"ok":     true,
		"status": snap.Status,
		"error":  snap.Error,
	}
	if snap.Result != nil {
		res["result"] = snap.Result
	}
	c.JSON(http.StatusOK, res)
}

func (server *Server) closest(c *gin.Context) {
	assignments, err := server.orchestrator.Resolve()
	if err != nil {
		server.resolveError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "assignments": assignments})
}

func (server *Server) groups(c *gin.Context) {
	assignments, err := server.orchestrator.Resolve()
	if err != nil {
		server.resolveError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "groups": calculator.GroupByBase(assignments)})
}

func (server *Server) resolveError(c *gin.Context, err error) {
	if errors.Is(err, calculator.ErrEmptyMatrix) {
		c.JSON(http.StatusConflict, errorResponse("please calculate distances first"))
		return
	}
	c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
}

func (server *Server) downloadResult(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	target := filepath.Join(server.config.OutputDir, filename)
	if _, err := os.Stat(target); err != nil {
		c.JSON(http.StatusNotFound, errorResponse("file not found"))
		return
	}
	c.FileAttachment(target, filename)
}
