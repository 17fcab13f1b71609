package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lraide/domain/regression"
	"lraide/domain/viewport"
	apperrors "lraide/internal/errors"
	"lraide/internal/session"
	geometry "lraide/internal/viewport"
)

func (s *Server) handlePan(c *gin.Context) {
	var req struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.PanBy(req.DX, req.DY) })
}

func (s *Server) handleZoom(c *gin.Context) {
	var req struct {
		Factor float64           `json:"factor" binding:"required"`
		About  *regression.Point `json:"about"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.ZoomBy(req.Factor, req.About) })
}

func (s *Server) handleZoomIn(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error { return sess.ZoomIn() })
}

func (s *Server) handleZoomOut(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error { return sess.ZoomOut() })
}

func (s *Server) handleResetView(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error {
		sess.ResetView()
		return nil
	})
}

func (s *Server) handleSetTool(c *gin.Context) {
	var req struct {
		Tool viewport.Tool `json:"tool"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.SetTool(req.Tool) })
}

// handleSetDomains takes {"x_domain": "auto" | [min, max], "y_domain": ...}.
// An omitted axis keeps its current domain.
func (s *Server) handleSetDomains(c *gin.Context) {
	var req struct {
		X *viewport.Domain `json:"x_domain"`
		Y *viewport.Domain `json:"y_domain"`
	}
	if !s.bind(c, &req) {
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.UpdateDomains(req.X, req.Y) })
}

type boxSelectRequest struct {
	X0 *float64 `json:"x0" binding:"required"`
	Y0 *float64 `json:"y0" binding:"required"`
	X1 *float64 `json:"x1" binding:"required"`
	Y1 *float64 `json:"y1" binding:"required"`
}

// handleBoxSelect answers with the matched rows and the updated view.
func (s *Server) handleBoxSelect(c *gin.Context) {
	var req boxSelectRequest
	if !s.bind(c, &req) {
		return
	}
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	matched := sess.BoxSelect(geometry.NewRect(*req.X0, *req.Y0, *req.X1, *req.Y1))
	c.JSON(http.StatusOK, gin.H{"matched": matched, "view": sess.View()})
}

func (s *Server) handleHighlight(c *gin.Context) {
	var req struct {
		Indices []int `json:"indices"`
	}
	if !s.bind(c, &req) {
		return
	}
	if len(req.Indices) == 0 {
		s.respondError(c, apperrors.InvalidInput("indices must not be empty"))
		return
	}
	s.mutate(c, func(sess *session.Session) error { return sess.HighlightRows(req.Indices) })
}

func (s *Server) handleClearHighlight(c *gin.Context) {
	s.mutate(c, func(sess *session.Session) error {
		sess.ClearHighlight()
		return nil
	})
}
