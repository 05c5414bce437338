package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// UpsertKnowledgeFile matches original_source/kb_service._upsert_knowledge_file:
// update-in-place on (library_id, filepath) collision, otherwise insert.
func (s *Store) UpsertKnowledgeFile(ctx context.Context, libraryID, filename, filepath, fileType, contentHash string) (*KnowledgeFile, error) {
	var f KnowledgeFile
	err := s.DB.QueryRowContext(ctx,
		`SELECT id FROM knowledge_files WHERE library_id = $1 AND filepath = $2`,
		libraryID, filepath,
	).Scan(&f.ID)

	if err == nil {
		_, err = s.DB.ExecContext(ctx,
			`UPDATE knowledge_files SET content_hash = $1, status = 'indexed', updated_at = NOW() WHERE id = $2`,
			contentHash, f.ID)
		if err != nil {
			return nil, fmt.Errorf("update knowledge file: %w", err)
		}
		return s.GetKnowledgeFile(ctx, f.ID)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("lookup knowledge file: %w", err)
	}

	f = KnowledgeFile{
		ID: uuid.New().String(), LibraryID: libraryID, Filename: filename,
		Filepath: filepath, FileType: fileType, ContentHash: contentHash, Status: "indexed",
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO knowledge_files (id, library_id, filename, filepath, file_type, content_hash, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		f.ID, f.LibraryID, f.Filename, f.Filepath, f.FileType, f.ContentHash, f.Status)
	if err != nil {
		return nil, fmt.Errorf("insert knowledge file: %w", err)
	}
	return &f, nil
}

// GetKnowledgeFile loads a single file row.
func (s *Store) GetKnowledgeFile(ctx context.Context, id string) (*KnowledgeFile, error) {
	var f KnowledgeFile
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, library_id, filename, filepath, file_type, content_hash, status, created_at, updated_at
		 FROM knowledge_files WHERE id = $1`, id,
	).Scan(&f.ID, &f.LibraryID, &f.Filename, &f.Filepath, &f.FileType, &f.ContentHash, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListLibraryFiles lists every file in a library, newest first.
func (s *Store) ListLibraryFiles(ctx context.Context, libraryID string) ([]KnowledgeFile, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, library_id, filename, filepath, file_type, content_hash, status, created_at, updated_at
		 FROM knowledge_files WHERE library_id = $1 ORDER BY updated_at DESC`, libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KnowledgeFile
	for rows.Next() {
		var f KnowledgeFile
		if err := rows.Scan(&f.ID, &f.LibraryID, &f.Filename, &f.Filepath, &f.FileType, &f.ContentHash, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteKnowledgeFile removes a file; its chunks cascade per spec.md §3's
// "deleting a file deletes its chunks" invariant.
func (s *Store) DeleteKnowledgeFile(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM knowledge_files WHERE id = $1`, id)
	return err
}
