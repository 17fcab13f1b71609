package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lraide/domain/snapshot"
	apperrors "lraide/internal/errors"
	"lraide/internal/report"
	"lraide/internal/session"
)

// maxSnapshotBytes bounds imported snapshot bodies.
const maxSnapshotBytes = 64 << 20

func (s *Server) handleExport(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	payload, err := sess.ExportJSON()
	if err != nil {
		s.respondError(c, apperrors.InternalError("failed to encode snapshot: "+err.Error()))
		return
	}
	if c.Query("download") != "" {
		c.Header("Content-Disposition", `attachment; filename="`+string(sess.ID())+`.json"`)
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// handleImport restores a session, and its simulation, from a snapshot body.
func (s *Server) handleImport(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSnapshotBytes))
	if err != nil {
		s.respondError(c, apperrors.InvalidInput("unreadable body"))
		return
	}
	s.importPayload(c, body)
}

func (s *Server) importPayload(c *gin.Context, payload []byte) {
	snap, err := session.DecodeSnapshot(payload)
	if err != nil {
		s.respondError(c, err)
		return
	}
	sess, err := s.registry.Import(snap)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess.View())
}

func (s *Server) requireSnapshots(c *gin.Context) bool {
	if s.snapshots == nil {
		s.respondError(c, apperrors.New(apperrors.CodeStorageError, "snapshot storage is not configured"))
		return false
	}
	return true
}

// handleSaveSnapshot stores the session's snapshot. The optional "key" field
// names the record; it defaults to the session id and export time.
func (s *Server) handleSaveSnapshot(c *gin.Context) {
	if !s.requireSnapshots(c) {
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}
	if strings.ContainsAny(req.Key, `/\ `) {
		s.respondError(c, apperrors.InvalidInput("snapshot key must not contain slashes or spaces"))
		return
	}
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	rec, err := session.NewRecord(req.Key, sess.Export())
	if err != nil {
		s.respondError(c, apperrors.Wrap(err, "encode snapshot"))
		return
	}
	if err := s.snapshots.Save(c.Request.Context(), rec); err != nil {
		s.respondError(c, apperrors.StorageError("save snapshot", err))
		return
	}
	s.logger.Info("saved snapshot %s for session %s (%s)", rec.Key, rec.SessionID, rec.Fingerprint.Short())
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleListSnapshots(c *gin.Context) {
	if !s.requireSnapshots(c) {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(c, apperrors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	recs, err := s.snapshots.List(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, apperrors.StorageError("list snapshots", err))
		return
	}
	if recs == nil {
		recs = []*snapshot.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": recs})
}

func (s *Server) handleGetSnapshot(c *gin.Context) {
	if !s.requireSnapshots(c) {
		return
	}
	rec, err := s.snapshots.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", rec.Payload)
}

func (s *Server) handleDeleteSnapshot(c *gin.Context) {
	if !s.requireSnapshots(c) {
		return
	}
	if err := s.snapshots.Delete(c.Request.Context(), c.Param("key")); err != nil {
		s.respondError(c, apperrors.StorageError("delete snapshot", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRestoreSnapshot(c *gin.Context) {
	if !s.requireSnapshots(c) {
		return
	}
	rec, err := s.snapshots.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.importPayload(c, rec.Payload)
}

// handleReport renders the analysis report as markdown (default), html or
// text, chosen by the "format" query parameter.
func (s *Server) handleReport(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	rep, err := report.FromView(sess.View())
	if err != nil {
		s.respondError(c, apperrors.WithCode(apperrors.CodeValidationError, err))
		return
	}
	switch c.DefaultQuery("format", "markdown") {
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(rep.Markdown()))
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", rep.HTML())
	case "text", "txt":
		c.String(http.StatusOK, rep.Text())
	default:
		s.respondError(c, apperrors.UnsupportedFormat(c.Query("format")))
	}
}
