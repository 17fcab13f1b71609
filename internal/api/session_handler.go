package api

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lraide/adapters/importer"
	"lraide/domain/core"
	"lraide/domain/dataset"
	"lraide/domain/snapshot"
	apperrors "lraide/internal/errors"
	"lraide/internal/session"
)

type createSessionRequest struct {
	Name  string        `json:"name"`
	Table dataset.Table `json:"table"`
}

type sessionSummary struct {
	ID       core.SessionID `json:"id"`
	Name     string         `json:"name"`
	RowCount int            `json:"row_count"`
	IsFitted bool           `json:"is_fitted"`
	ForkOf   core.SessionID `json:"fork_of,omitempty"`
	Active   bool           `json:"active"`
}

func (s *Server) handleListSessions(c *gin.Context) {
	var activeID core.SessionID
	if a := s.registry.Active(); a != nil {
		activeID = a.ID()
	}
	out := make([]sessionSummary, 0, s.registry.Len())
	for _, sess := range s.registry.List() {
		v := sess.View()
		out = append(out, sessionSummary{
			ID:       v.ID,
			Name:     v.Name,
			RowCount: v.RowCount,
			IsFitted: v.IsFitted,
			ForkOf:   v.ForkOf,
			Active:   v.ID == activeID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "active": activeID})
}

// handleCreateSession opens a session from a multipart upload ("file" field,
// CSV/TSV/XLSX) or from a JSON table body.
func (s *Server) handleCreateSession(c *gin.Context) {
	var (
		name string
		data *dataset.Dataset
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		name, data, err = s.readUpload(c)
	} else {
		var req createSessionRequest
		if !s.bind(c, &req) {
			return
		}
		name = req.Name
		data, err = dataset.FromTable(req.Table)
		if err != nil {
			err = apperrors.InvalidInput(err.Error())
		}
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	if name == "" {
		name = "Untitled"
	}
	sess := s.registry.Create(name, data)
	c.JSON(http.StatusCreated, sess.View())
}

func (s *Server) readUpload(c *gin.Context) (string, *dataset.Dataset, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, apperrors.InvalidInput("missing upload field \"file\"")
	}
	reader, err := importer.ForFile(header.Filename, s.logger)
	if err != nil {
		return "", nil, err
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, apperrors.Wrap(err, "open upload")
	}
	defer f.Close()

	data, err := reader.Read(c.Request.Context(), f)
	if err != nil {
		return "", nil, err
	}
	name := c.PostForm("name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}
	return name, data, nil
}

func (s *Server) handleActiveSession(c *gin.Context) {
	sess := s.registry.Active()
	if sess == nil {
		s.respondError(c, apperrors.NotFound("active session"))
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleCloseSession(c *gin.Context) {
	if err := s.registry.Close(core.SessionID(c.Param("id"))); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleActivate(c *gin.Context) {
	id := core.SessionID(c.Param("id"))
	if err := s.registry.SetActive(id); err != nil {
		s.respondError(c, err)
		return
	}
	s.mutate(c, func(*session.Session) error { return nil })
}

func (s *Server) handleRename(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error {
		sess.Rename(req.Name)
		return nil
	})
}

// handleFork answers with the new simulation session.
func (s *Server) handleFork(c *gin.Context) {
	fork, err := s.registry.Fork(core.SessionID(c.Param("id")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fork.View())
}

func (s *Server) handleSetTab(c *gin.Context) {
	var req struct {
		Tab snapshot.Tab `json:"tab" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.SetActiveTab(req.Tab) })
}

func (s *Server) handleGetTable(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.View().Dataset.Table())
}

type setCellRequest struct {
	Row    *int          `json:"row" binding:"required"`
	Column string        `json:"column" binding:"required"`
	Value  dataset.Value `json:"value"`
}

func (s *Server) handleSetCell(c *gin.Context) {
	var req setCellRequest
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error {
		return sess.SetCell(*req.Row, req.Column, req.Value)
	})
}

func (s *Server) handleAddRow(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	row := sess.AddRow()
	c.JSON(http.StatusCreated, gin.H{"row": row, "view": sess.View()})
}

func (s *Server) handleDeleteRows(c *gin.Context) {
	var req struct {
		Indices []int `json:"indices" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.DeleteRows(req.Indices) })
}

func (s *Server) handleDeleteIncludedRows(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error { return sess.DeleteIncludedRows() })
}

func (s *Server) handleToggleRow(c *gin.Context) {
	row, err := strconv.Atoi(c.Param("row"))
	if err != nil {
		s.respondError(c, apperrors.InvalidInput("row must be an integer"))
		return
	}
	var req struct {
		Included *bool `json:"included" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.ToggleRow(row, *req.Included) })
}

func (s *Server) handleSelectAll(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error {
		sess.SelectAll()
		return nil
	})
}

func (s *Server) handleSelectNone(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error {
		sess.SelectNone()
		return nil
	})
}

func (s *Server) handleAddColumn(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.AddColumn(req.Name) })
}

func (s *Server) handleRenameColumn(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.RenameColumn(c.Param("column"), req.Name) })
}

func (s *Server) handleDeleteColumn(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error { return sess.DeleteColumn(c.Param("column")) })
}

func (s *Server) handleSetFields(c *gin.Context) {
	var req struct {
		Independent string `json:"independent_field"`
		Dependent   string `json:"dependent_field"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.SetFields(req.Independent, req.Dependent) })
}

func (s *Server) handlePlot(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error { return sess.Plot() })
}

func (s *Server) handleClearFit(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error {
		sess.ClearFit()
		return nil
	})
}

// handleGetFit answers with the fit status and, when present, the result.
func (s *Server) handleGetFit(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	v := sess.View()
	c.JSON(http.StatusOK, gin.H{
		"state": v.FitState,
		"code":  v.ErrorCode,
		"error": v.Error,
		"fit":   v.Fit,
	})
}
