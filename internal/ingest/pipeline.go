// Pipeline orchestration for C3: directory sync, single-file upload, and
// full-library reindex, each driving an IngestionTask through
// queued->running->completed|failed and finishing with a graph rebuild.
//
// Grounded on original_source/kb_service.py's sync_directory/upload/
// rebuild_index handlers for the overall shape (discover files, hash,
// chunk, embed, persist, rebuild graph, stamp task detail), adapted onto
// this repo's internal/store + internal/graph + internal/embedding
// packages instead of the original's direct SQLAlchemy session calls.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"kbagent/internal/apperrors"
	"kbagent/internal/graph"
	"kbagent/internal/store"
)

// Embedder is the subset of internal/embedding.Service the pipeline needs,
// kept as an interface so this package doesn't pull in the embedding
// package's remote-HTTP dependency chain.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline runs ingestion tasks to completion.
type Pipeline struct {
	store    *store.Store
	embedder Embedder
	builder  *graph.Builder
	logger   *zap.Logger
}

// NewPipeline constructs an ingestion Pipeline.
func NewPipeline(s *store.Store, embedder Embedder, builder *graph.Builder, logger *zap.Logger) *Pipeline {
	return &Pipeline{store: s, embedder: embedder, builder: builder, logger: logger}
}

// supportedExtensions mirrors spec.md §3's KnowledgeFile.file_type enum
// (txt, md, csv) plus an extra pdf entry.
var supportedExtensions = map[string]string{
	".txt": "txt",
	".md":  "md",
	".csv": "csv",
	".pdf": "pdf",
}

// RunSyncDirectory walks root (recursively), ingesting every file whose
// extension is in supportedExtensions, then rebuilds the library's graph.
// Task status is stamped at each phase; a per-file failure is logged and
// skipped rather than aborting the whole walk, matching spec.md §7's
// "partial ingestion failures do not abort the batch" note.
func (p *Pipeline) RunSyncDirectory(ctx context.Context, taskID, libraryID, root string) {
	if err := p.store.MarkRunning(ctx, taskID); err != nil {
		p.logger.Error("mark ingestion task running failed", zap.String("task_id", taskID), zap.Error(err))
	}

	var total, indexed int
	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		fileType, ok := supportedExtensions[ext]
		if !ok {
			return nil
		}
		total++
		if err := p.ingestFile(ctx, libraryID, path, fileType); err != nil {
			p.logger.Warn("ingest file failed, skipping", zap.String("path", path), zap.Error(err))
			return nil
		}
		indexed++
		return nil
	})
	if err != nil {
		p.fail(ctx, taskID, fmt.Errorf("walk sync directory: %w", err))
		return
	}

	result, err := p.builder.Rebuild(ctx, libraryID)
	if err != nil {
		p.fail(ctx, taskID, fmt.Errorf("rebuild graph: %w", err))
		return
	}

	detail := store.IngestionDetail{
		DirectoryPath: root, TotalFiles: total, IndexedFiles: indexed,
		GraphNodes: result.NodeCount, GraphEdges: result.EdgeCount,
	}
	if err := p.store.MarkCompleted(ctx, taskID, detail); err != nil {
		p.logger.Error("mark ingestion task completed failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

// RunUpload ingests a single file already written to disk at path (the
// caller is responsible for placing the uploaded bytes there) and rebuilds
// the library's graph afterward.
func (p *Pipeline) RunUpload(ctx context.Context, taskID, libraryID, path string) {
	if err := p.store.MarkRunning(ctx, taskID); err != nil {
		p.logger.Error("mark ingestion task running failed", zap.String("task_id", taskID), zap.Error(err))
	}

	ext := strings.ToLower(filepath.Ext(path))
	fileType, ok := supportedExtensions[ext]
	if !ok {
		p.fail(ctx, taskID, apperrors.Wrapf(apperrors.ErrValidation, "unsupported file type %q", ext))
		return
	}

	if err := p.ingestFile(ctx, libraryID, path, fileType); err != nil {
		p.fail(ctx, taskID, err)
		return
	}

	result, err := p.builder.Rebuild(ctx, libraryID)
	if err != nil {
		p.fail(ctx, taskID, fmt.Errorf("rebuild graph: %w", err))
		return
	}

	detail := store.IngestionDetail{FileCount: 1, GraphNodes: result.NodeCount, GraphEdges: result.EdgeCount}
	if err := p.store.MarkCompleted(ctx, taskID, detail); err != nil {
		p.logger.Error("mark ingestion task completed failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

// RunRebuildIndex re-chunks and re-embeds every file already registered to
// libraryID (content unchanged on disk, but e.g. chunk_size/overlap or the
// embedding backend changed), then rebuilds the graph.
func (p *Pipeline) RunRebuildIndex(ctx context.Context, taskID, libraryID string) {
	if err := p.store.MarkRunning(ctx, taskID); err != nil {
		p.logger.Error("mark ingestion task running failed", zap.String("task_id", taskID), zap.Error(err))
	}

	files, err := p.store.ListLibraryFiles(ctx, libraryID)
	if err != nil {
		p.fail(ctx, taskID, fmt.Errorf("list library files: %w", err))
		return
	}

	var indexed int
	for _, f := range files {
		if err := p.ingestFile(ctx, libraryID, f.Filepath, f.FileType); err != nil {
			p.logger.Warn("reindex file failed, skipping", zap.String("path", f.Filepath), zap.Error(err))
			continue
		}
		indexed++
	}

	result, err := p.builder.Rebuild(ctx, libraryID)
	if err != nil {
		p.fail(ctx, taskID, fmt.Errorf("rebuild graph: %w", err))
		return
	}

	detail := store.IngestionDetail{
		TotalFiles: len(files), IndexedFiles: indexed,
		GraphNodes: result.NodeCount, GraphEdges: result.EdgeCount,
	}
	if err := p.store.MarkCompleted(ctx, taskID, detail); err != nil {
		p.logger.Error("mark ingestion task completed failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

// ingestFile reads, chunks, embeds, and persists one file: content hash,
// upsert the KnowledgeFile row, chunk the extracted text, embed every
// chunk, and replace the file's chunk set atomically.
func (p *Pipeline) ingestFile(ctx context.Context, libraryID, path, fileType string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var text string
	switch fileType {
	case "md":
		text = MarkdownToPlainText(raw)
	case "pdf":
		text, err = ExtractPDFText(path)
		if err != nil {
			return fmt.Errorf("extract pdf text: %w", err)
		}
	default:
		text = string(raw)
	}

	hash := contentHash(raw)
	filename := filepath.Base(path)
	file, err := p.store.UpsertKnowledgeFile(ctx, libraryID, filename, path, fileType, hash)
	if err != nil {
		return fmt.Errorf("upsert knowledge file: %w", err)
	}

	pieces := ChunkText(text, DefaultChunkSize, DefaultOverlap)
	if len(pieces) == 0 {
		return p.store.InsertChunks(ctx, file.ID, libraryID, nil)
	}

	vectors, err := p.embedder.EmbedTexts(ctx, pieces)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	chunks := make([]store.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = store.Chunk{
			LibraryID:  libraryID,
			FileID:     file.ID,
			ChunkIndex: i,
			Content:    piece,
			Embedding:  vectors[i],
			Metadata:   map[string]string{"file_name": filename},
		}
	}

	return p.store.InsertChunks(ctx, file.ID, libraryID, chunks)
}

func (p *Pipeline) fail(ctx context.Context, taskID string, err error) {
	p.logger.Error("ingestion task failed", zap.String("task_id", taskID), zap.Error(err))
	if markErr := p.store.MarkFailed(ctx, taskID, err.Error()); markErr != nil {
		p.logger.Error("mark ingestion task failed failed", zap.String("task_id", taskID), zap.Error(markErr))
	}
}

func contentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
