// Ingestion handlers implement spec.md §6's directory-sync, index-rebuild,
// and task-status routes. Both long-running operations are queued as an
// IngestionTask and then run in a detached goroutine so the HTTP request
// returns immediately with a pollable task id, matching spec.md §7's
// "ingestion tasks record failure on the task row rather than failing the
// HTTP request after the task was accepted."
package httpapi

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"kbagent/internal/apperrors"
)

type syncDirectoryRequest struct {
	LibraryID string `json:"library_id" binding:"required"`
	Path      string `json:"path" binding:"required"`
}

// handleSyncDirectory implements POST /kb/files/sync-directory. The
// supplied path is resolved under cfg.KBSyncRoot; an escaping path is
// rejected per spec.md §3's library root_path invariant, applied here to
// the sync target too.
func (s *Server) handleSyncDirectory(c *gin.Context) {
	var req syncDirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "library_id and path are required")
		return
	}

	if _, ok := s.loadLibraryWithAccess(c, req.LibraryID, true); !ok {
		return
	}

	resolved, err := resolveUnder(s.cfg.KBSyncRoot, req.Path)
	if err != nil {
		s.handleErr(c, err, "path escapes the configured sync root")
		return
	}

	userID := c.GetString("userID")
	task, err := s.store.CreateIngestionTask(c.Request.Context(), "sync_directory", req.LibraryID, &userID)
	if err != nil {
		s.handleErr(c, err, "could not create ingestion task")
		return
	}

	go s.pipeline.RunSyncDirectory(context.Background(), task.ID, req.LibraryID, resolved)

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID})
}

type indexRebuildRequest struct {
	LibraryID string `json:"library_id" binding:"required"`
}

// handleIndexRebuild implements POST /kb/index/rebuild: re-chunks and
// re-embeds every file already registered to the library.
func (s *Server) handleIndexRebuild(c *gin.Context) {
	var req indexRebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "library_id is required")
		return
	}
	if _, ok := s.loadLibraryWithAccess(c, req.LibraryID, true); !ok {
		return
	}

	userID := c.GetString("userID")
	task, err := s.store.CreateIngestionTask(c.Request.Context(), "rebuild_index", req.LibraryID, &userID)
	if err != nil {
		s.handleErr(c, err, "could not create ingestion task")
		return
	}

	go s.pipeline.RunRebuildIndex(context.Background(), task.ID, req.LibraryID)

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID})
}

type taskView struct {
	ID           string `json:"id"`
	TaskType     string `json:"task_type"`
	Status       string `json:"status"`
	LibraryID    string `json:"library_id"`
	ErrorMessage string `json:"error_message,omitempty"`
	Detail       any    `json:"detail"`
}

// handleGetTask implements GET /kb/tasks/{id}.
func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.store.GetIngestionTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleErr(c, err, "task not found")
		return
	}
	c.JSON(http.StatusOK, taskView{
		ID: task.ID, TaskType: task.TaskType, Status: task.Status, LibraryID: task.LibraryID,
		ErrorMessage: task.ErrorMessage, Detail: task.Detail,
	})
}

// resolveUnder joins root and rel, then rejects the result if it does not
// stay beneath root — spec.md §3's "root_path must resolve beneath the
// configured storage root" invariant, reused here for KB_SYNC_ROOT.
func resolveUnder(root, rel string) (string, error) {
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", apperrors.Wrap(err, "resolve sync root")
	}
	candidate, err := filepath.Abs(filepath.Join(root, rel))
	if err != nil {
		return "", apperrors.Wrap(err, "resolve sync path")
	}
	if candidate != cleanRoot && !strings.HasPrefix(candidate, cleanRoot+string(filepath.Separator)) {
		return "", apperrors.Wrapf(apperrors.ErrValidation, "path %q escapes sync root %q", rel, root)
	}
	return candidate, nil
}
