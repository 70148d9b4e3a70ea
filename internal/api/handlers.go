package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seanankenbruck/twin-query/internal/auth"
	"github.com/seanankenbruck/twin-query/internal/errors"
	"github.com/seanankenbruck/twin-query/internal/history"
)

const (
	defaultHistoryLimit = 20
	defaultAuditLimit   = 50
)

// QueryRequest is the body of POST /api/v1/query
type QueryRequest struct {
	Question string `json:"question"`
}

func respondError(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), errors.Response(err))
}

// handleQuery always answers 200 once the body parses. Pipeline failures
// are reported in the answer's diagnostics.
func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewInvalidInputError("request body", err.Error()))
		return
	}

	answer := s.opts.Session.ProcessQuery(c.Request.Context(), req.Question)
	c.JSON(http.StatusOK, answer)
}

func (s *Server) handleSchema(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Session.Snapshot())
}

func userID(c *gin.Context) string {
	if id, ok := auth.GetCurrentUserID(c); ok {
		return id
	}
	return history.AnonymousUser
}

func limitParam(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.NewInvalidInputError("limit", "must be a positive integer")
	}
	return n, nil
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.opts.History == nil {
		respondError(c, errors.NewBackendUnavailableError("history"))
		return
	}

	limit, err := limitParam(c, defaultHistoryLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := s.opts.History.Recent(c.Request.Context(), userID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	if s.opts.History == nil {
		respondError(c, errors.NewBackendUnavailableError("history"))
		return
	}

	if err := s.opts.History.Clear(c.Request.Context(), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAudit(c *gin.Context) {
	if s.opts.Audit == nil {
		respondError(c, errors.NewBackendUnavailableError("audit"))
		return
	}

	limit, err := limitParam(c, defaultAuditLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	rows, err := s.opts.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"answers": rows,
		"count":   len(rows),
	})
}
