package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/playground"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

// MaxImportSize bounds an uploaded file.
const MaxImportSize = 4 << 20

type filesView struct {
	Active     id.FileID        `json:"active"`
	Generation uint64           `json:"generation"`
	Files      []workspace.File `json:"files"`
}

func viewFiles(s *playground.Session) filesView {
	return filesView{Active: s.Active().ID, Generation: s.Generation(), Files: s.Files()}
}

// AddFileRequest creates an empty file of the given kind.
type AddFileRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// UpdateFileRequest replaces a file's content.
type UpdateFileRequest struct {
	Content *string `json:"content"`
}

// RenameFileRequest changes a file's display name.
type RenameFileRequest struct {
	Name string `json:"name"`
}

// ListFiles returns the workspace files in collection order
func (h *Handlers) ListFiles(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewFiles(s))
}

// AddFile creates and selects an empty file
func (h *Handlers) AddFile(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req AddFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind is required"})
		return
	}
	k, err := workspace.ParseKind(req.Kind)
	if err != nil {
		h.fail(c, err)
		return
	}

	f, err := s.AddFile(c.Request.Context(), k)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// UpdateFile replaces a file's content and reloads the preview
func (h *Handlers) UpdateFile(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	if err := s.Edit(c.Request.Context(), id.FileID(c.Param("fid")), *req.Content); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewFiles(s))
}

// RenameFile changes a file's display name
func (h *Handlers) RenameFile(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req RenameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.RenameFile(c.Request.Context(), id.FileID(c.Param("fid")), req.Name); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewFiles(s))
}

// DeleteFile removes a file
func (h *Handlers) DeleteFile(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.DeleteFile(c.Request.Context(), id.FileID(c.Param("fid"))); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewFiles(s))
}

// SelectFile makes a file the active one
func (h *Handlers) SelectFile(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Select(c.Request.Context(), id.FileID(c.Param("fid"))); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewFiles(s))
}

// Import adds the multipart "file" upload to the workspace
func (h *Handlers) Import(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
		return
	}
	if header.Size > MaxImportSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
		return
	}

	src, err := header.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, MaxImportSize))
	if err != nil {
		h.fail(c, err)
		return
	}

	f, err := s.Import(c.Request.Context(), header.Filename, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}
