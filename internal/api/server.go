package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lraide/domain/core"
	"lraide/internal"
	apperrors "lraide/internal/errors"
	"lraide/internal/metrics"
	"lraide/internal/session"
	"lraide/ports"
)

// maxUploadBytes bounds dataset uploads.
const maxUploadBytes = 32 << 20

// Server exposes the session registry over HTTP/JSON with an SSE change
// stream for the renderer.
type Server struct {
	router    *gin.Engine
	registry  *session.Registry
	snapshots ports.SnapshotRepository
	metrics   *metrics.Metrics
	hub       *SSEHub
	logger    *internal.Logger
}

// Deps are the collaborators of a Server. Snapshots and Metrics are optional.
type Deps struct {
	Registry  *session.Registry
	Snapshots ports.SnapshotRepository
	Metrics   *metrics.Metrics
	Logger    *internal.Logger
}

// NewServer builds the router and registers every route.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	s := &Server{
		router:    gin.New(),
		registry:  deps.Registry,
		snapshots: deps.Snapshots,
		metrics:   deps.Metrics,
		hub:       NewSSEHub(logger),
		logger:    logger.WithComponent("api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the SSE hub serving the change streams.
func (s *Server) Hub() *SSEHub { return s.hub }

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
}

// requestLogger logs each request at DEBUG and records it in the request
// counter under its route pattern.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if s.metrics != nil {
			s.metrics.RecordRequest(route, status)
		}
		s.logger.Debug("%s %s -> %d (%s)", c.Request.Method, route, status, time.Since(start))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")
	api.GET("/events", s.handleRegistryEvents)

	sessions := api.Group("/sessions")
	sessions.GET("", s.handleListSessions)
	sessions.POST("", s.handleCreateSession)
	sessions.GET("/active", s.handleActiveSession)

	one := sessions.Group("/:id")
	one.GET("", s.handleGetSession)
	one.DELETE("", s.handleCloseSession)
	one.PUT("/name", s.handleRename)
	one.POST("/activate", s.handleActivate)
	one.POST("/fork", s.handleFork)
	one.PUT("/tab", s.handleSetTab)
	one.GET("/events", s.handleSessionEvents)

	one.GET("/table", s.handleGetTable)
	one.PUT("/cells", s.handleSetCell)
	one.POST("/rows", s.handleAddRow)
	one.POST("/rows/delete", s.handleDeleteRows)
	one.POST("/rows/delete-included", s.handleDeleteIncludedRows)
	one.PUT("/rows/:row/included", s.handleToggleRow)
	one.POST("/inclusion/all", s.handleSelectAll)
	one.POST("/inclusion/none", s.handleSelectNone)
	one.POST("/columns", s.handleAddColumn)
	one.PUT("/columns/:column", s.handleRenameColumn)
	one.DELETE("/columns/:column", s.handleDeleteColumn)

	one.PUT("/fields", s.handleSetFields)
	one.POST("/plot", s.handlePlot)
	one.GET("/fit", s.handleGetFit)
	one.DELETE("/fit", s.handleClearFit)
	one.GET("/report", s.handleReport)

	one.POST("/viewport/pan", s.handlePan)
	one.POST("/viewport/zoom", s.handleZoom)
	one.POST("/viewport/zoom-in", s.handleZoomIn)
	one.POST("/viewport/zoom-out", s.handleZoomOut)
	one.POST("/viewport/reset", s.handleResetView)
	one.PUT("/viewport/tool", s.handleSetTool)
	one.PUT("/viewport/domains", s.handleSetDomains)
	one.POST("/viewport/box-select", s.handleBoxSelect)
	one.PUT("/highlight", s.handleHighlight)
	one.DELETE("/highlight", s.handleClearHighlight)

	one.GET("/export", s.handleExport)
	one.POST("/snapshots", s.handleSaveSnapshot)
	api.POST("/import", s.handleImport)
	api.GET("/snapshots", s.handleListSnapshots)
	api.GET("/snapshots/:key", s.handleGetSnapshot)
	api.DELETE("/snapshots/:key", s.handleDeleteSnapshot)
	api.POST("/snapshots/:key/restore", s.handleRestoreSnapshot)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"sessions":    s.registry.Len(),
		"sse_clients": s.hub.ClientCount(),
	})
}

// respondError writes err with the HTTP status of its code. Server-side
// failures are logged; client errors are not.
func (s *Server) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"code":  apperrors.GetCode(err),
	})
}

// bind decodes the JSON body into dst, answering 400 on failure.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, apperrors.InvalidInput("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// lookup resolves the :id path parameter.
func (s *Server) lookup(c *gin.Context) (*session.Session, bool) {
	sess, err := s.registry.Get(core.SessionID(c.Param("id")))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return sess, true
}

// respondView answers with the session's current state, or with err if the
// mutation was rejected.
func (s *Server) respondView(c *gin.Context, sess *session.Session, err error) {
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

// mutate runs op against the addressed session and answers with its view.
func (s *Server) mutate(c *gin.Context, op func(*session.Session) error) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	s.respondView(c, sess, op(sess))
}
