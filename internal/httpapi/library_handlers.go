package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"kbagent/internal/store"
)

type libraryRequest struct {
	Name                string   `json:"name" binding:"required"`
	Description         string   `json:"description"`
	LibraryType         string   `json:"library_type"`
	OwnerType           string   `json:"owner_type"`
	Tags                []string `json:"tags"`
	RootPath            string   `json:"root_path"`
	ContextWindowTokens int      `json:"context_window_tokens"`
}

// handleListLibraries implements GET /kb/libraries.
func (s *Server) handleListLibraries(c *gin.Context) {
	libs, err := s.store.ListLibraries(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		s.handleErr(c, err, "could not list libraries")
		return
	}
	c.JSON(http.StatusOK, libs)
}

// handleCreateLibrary implements POST /kb/libraries.
func (s *Server) handleCreateLibrary(c *gin.Context) {
	var req libraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "name is required")
		return
	}
	ownerType := req.OwnerType
	if ownerType == "" {
		ownerType = "private"
	}
	libraryType := req.LibraryType
	if libraryType == "" {
		libraryType = "general"
	}
	userID := c.GetString("userID")
	var ownerID *string
	if ownerType == "private" {
		ownerID = &userID
	}
	lib, err := s.store.CreateLibrary(c.Request.Context(), store.Library{
		Name: req.Name, Description: req.Description, LibraryType: libraryType,
		OwnerType: ownerType, OwnerID: ownerID, Tags: req.Tags, RootPath: req.RootPath,
		ContextWindowTokens: req.ContextWindowTokens,
	})
	if err != nil {
		s.handleErr(c, err, "could not create library")
		return
	}
	c.JSON(http.StatusCreated, lib)
}

// handleGetLibrary implements GET /kb/libraries/{id}. Private libraries are
// readable only by their owner or an admin, per spec.md §3.
func (s *Server) handleGetLibrary(c *gin.Context) {
	lib, ok := s.loadLibraryWithAccess(c, c.Param("id"), false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, lib)
}

// handleUpdateLibrary implements PUT /kb/libraries/{id}: delete-and-recreate
// is not appropriate here (it would orphan files/chunks), so this updates in
// place via a dedicated statement. Shared libraries may only be mutated by
// admins; private libraries only by their owner or an admin (spec.md §3).
func (s *Server) handleUpdateLibrary(c *gin.Context) {
	var req libraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "name is required")
		return
	}
	id := c.Param("id")
	if _, ok := s.loadLibraryWithAccess(c, id, true); !ok {
		return
	}
	if _, err := s.store.DB.ExecContext(c.Request.Context(),
		`UPDATE libraries SET name = $1, description = $2, tags = $3, context_window_tokens = $4, updated_at = NOW() WHERE id = $5`,
		req.Name, req.Description, pq.Array(req.Tags), req.ContextWindowTokens, id); err != nil {
		s.handleErr(c, err, "could not update library")
		return
	}
	lib, err := s.store.GetLibrary(c.Request.Context(), id)
	if err != nil {
		s.handleErr(c, err, "could not reload library")
		return
	}
	c.JSON(http.StatusOK, lib)
}

// handleDeleteLibrary implements DELETE /kb/libraries/{id}, gated by the
// same ownership rule as update (spec.md §3).
func (s *Server) handleDeleteLibrary(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.loadLibraryWithAccess(c, id, true); !ok {
		return
	}
	if err := s.store.DeleteLibrary(c.Request.Context(), id); err != nil {
		s.handleErr(c, err, "could not delete library")
		return
	}
	c.Status(http.StatusNoContent)
}
