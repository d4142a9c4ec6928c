package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/antibyte/chayakada/pkg/auth"
	"github.com/antibyte/chayakada/pkg/interpreter"
	"github.com/antibyte/chayakada/pkg/logger"
	"github.com/antibyte/chayakada/pkg/storage"
)

// RunRequest is the body of POST /run
type RunRequest struct {
	Code string `json:"mlm_code"`
}

// RunResponse is returned by the run endpoints
type RunResponse struct {
	ID     string `json:"id,omitempty"`
	Output string `json:"output"`
}

func (s *Server) handleRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	output, err := s.execute(req.Code)
	if err != nil {
		abortWithDetail(c, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	c.JSON(http.StatusOK, RunResponse{Output: output})
}

// execute runs one program with the configured size limit and normalization
func (s *Server) execute(code string) (string, error) {
	if err := interpreter.CheckSourceSize(code, s.maxSourceBytes); err != nil {
		return "", err
	}
	if s.normalizeSource {
		code = interpreter.NormalizeSource(code)
	}
	result := s.interp.Execute(code)
	logger.Debug(logger.AreaAPI, "Program ran %d statements with %d errors", result.Dispatched, len(result.Errors))
	return result.Output, nil
}

func (s *Server) handleCreateFile(c *gin.Context) {
	var req storage.FileCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = auth.SessionIDFromContext(c.Request.Context())
	}
	if s.normalizeSource {
		req.Content = interpreter.NormalizeSource(req.Content)
	}

	id, err := s.files.Create(c.Request.Context(), req)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) handleGetFile(c *gin.Context) {
	f, err := s.files.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) handleListFiles(c *gin.Context) {
	files, err := s.files.ListBySession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) handleUpdateFile(c *gin.Context) {
	var req storage.FileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Content != nil && s.normalizeSource {
		normalized := interpreter.NormalizeSource(*req.Content)
		req.Content = &normalized
	}

	f, err := s.files.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) handleDeleteFile(c *gin.Context) {
	if err := s.files.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.storageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRunFile(c *gin.Context) {
	f, err := s.files.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storageError(c, err)
		return
	}

	output, err := s.execute(f.Content)
	if err != nil {
		abortWithDetail(c, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	c.JSON(http.StatusOK, RunResponse{ID: f.ID, Output: output})
}

// storageError maps store errors to HTTP responses
func (s *Server) storageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrFileNotFound):
		abortWithDetail(c, http.StatusNotFound, "File not found")
	case errors.Is(err, storage.ErrInvalidFilename),
		errors.Is(err, storage.ErrInvalidSessionID),
		errors.Is(err, storage.ErrNothingToUpdate):
		abortWithDetail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrContentTooLarge):
		abortWithDetail(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, storage.ErrQuotaExceeded):
		abortWithDetail(c, http.StatusConflict, err.Error())
	default:
		c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
