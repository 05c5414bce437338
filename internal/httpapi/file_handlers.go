// File handlers implement spec.md §6's /kb/files* routes: listing a
// library's files, accepting a multipart upload that triggers immediate
// indexing, and deleting a file (whose chunks cascade, per spec.md §3)
// followed by a graph rebuild.
package httpapi

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kbagent/internal/ingest"
	"kbagent/internal/store"
)

type fileView struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	FileType  string `json:"file_type"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func toFileView(f store.KnowledgeFile) fileView {
	return fileView{
		ID: f.ID, Filename: f.Filename, FileType: f.FileType, Status: f.Status,
		CreatedAt: f.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// handleListFiles implements GET /kb/libraries/{id}/files, gated by the
// same library read-access rule as handleGetLibrary (spec.md §3).
func (s *Server) handleListFiles(c *gin.Context) {
	if _, ok := s.loadLibraryWithAccess(c, c.Param("id"), false); !ok {
		return
	}
	files, err := s.store.ListLibraryFiles(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleErr(c, err, "could not list files")
		return
	}
	out := make([]fileView, len(files))
	for i, f := range files {
		out[i] = toFileView(f)
	}
	c.JSON(http.StatusOK, out)
}

// handleUploadFile implements POST /kb/files/upload (multipart): writes the
// upload under cfg.StorageRoot/<library_id>/, queues an "upload"
// IngestionTask, and runs the pipeline synchronously per spec.md §6 ("Upload
// one file; triggers immediate index + graph rebuild"). The task row still
// exists so the client can poll /kb/tasks/{id} the same way it would for an
// async sync-directory run.
func (s *Server) handleUploadFile(c *gin.Context) {
	libraryID := c.PostForm("library_id")
	if libraryID == "" {
		respondWithClientError(c, http.StatusBadRequest, "library_id is required")
		return
	}
	if _, ok := s.loadLibraryWithAccess(c, libraryID, true); !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "file is required")
		return
	}

	destDir := filepath.Join(s.cfg.StorageRoot, libraryID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		s.handleErr(c, err, "could not prepare storage directory")
		return
	}
	safeName := ingest.SanitizeFilename(filepath.Base(header.Filename))
	destPath := filepath.Join(destDir, uuid.New().String()+"_"+safeName)
	if err := c.SaveUploadedFile(header, destPath); err != nil {
		s.handleErr(c, err, "could not save uploaded file")
		return
	}

	userID := c.GetString("userID")
	task, err := s.store.CreateIngestionTask(c.Request.Context(), "upload", libraryID, &userID)
	if err != nil {
		s.handleErr(c, err, "could not create ingestion task")
		return
	}

	s.pipeline.RunUpload(c.Request.Context(), task.ID, libraryID, destPath)

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID})
}

// handleDeleteFile implements DELETE /kb/files/{id}: deletes the file (its
// chunks cascade, per spec.md §3) then rebuilds the library's graph. Gated
// by the owning library's write-access rule, since the file itself carries
// no ownership of its own.
func (s *Server) handleDeleteFile(c *gin.Context) {
	id := c.Param("id")
	file, err := s.store.GetKnowledgeFile(c.Request.Context(), id)
	if err != nil {
		s.handleErr(c, err, "file not found")
		return
	}
	if _, ok := s.loadLibraryWithAccess(c, file.LibraryID, true); !ok {
		return
	}
	if err := s.store.DeleteKnowledgeFile(c.Request.Context(), id); err != nil {
		s.handleErr(c, err, "could not delete file")
		return
	}
	if _, err := s.builder.Rebuild(c.Request.Context(), file.LibraryID); err != nil {
		s.logger.Error("graph rebuild after file delete failed", zap.String("library_id", file.LibraryID), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}
