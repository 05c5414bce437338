// Chunk store operators (C3), grounded on database/rag_documents.go's
// upsert/search shape but backed by a genuine pgvector column and the
// `<=>` cosine-distance operator instead of the teacher's unused
// pgvector-go import / REAL[] array workaround.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// VectorHit is one row from the cosine-distance rank query.
type VectorHit struct {
	Chunk      Chunk
	FileName   string
	Similarity float64 // sim = max(0, 1 - distance), per spec.md §4.3
}

// InsertChunks replaces every chunk of a file atomically: delete-then-insert
// within a single transaction, matching spec.md §4.3's "re-indexing a file
// deletes its prior chunks atomically, then inserts the new set."
func (s *Store) InsertChunks(ctx context.Context, fileID, libraryID string, chunks []Chunk) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk replace tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, library_id, file_id, chunk_index, content, embedding, metadata)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		vec := pgvector.NewVector(c.Embedding)
		if _, err := stmt.ExecContext(ctx, id, libraryID, fileID, c.ChunkIndex, c.Content, vec, metaJSON); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit()
}

// VectorSearch ranks chunks across libraryIDs by cosine distance to query,
// per spec.md §4.3 operator 1.
func (s *Store) VectorSearch(ctx context.Context, libraryIDs []string, query []float32, limit int) ([]VectorHit, error) {
	if len(libraryIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(query)
	rows, err := s.DB.QueryContext(ctx,
		`SELECT c.id, c.library_id, c.file_id, c.chunk_index, c.content, c.metadata, f.filename,
		        (c.embedding <=> $1) AS distance
		 FROM chunks c
		 JOIN knowledge_files f ON f.id = c.file_id
		 WHERE c.library_id = ANY($2)
		 ORDER BY c.embedding <=> $1
		 LIMIT $3`,
		vec, libraryIDsArray(libraryIDs), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []VectorHit
	for rows.Next() {
		var hit VectorHit
		var metaJSON []byte
		var distance float64
		if err := rows.Scan(&hit.Chunk.ID, &hit.Chunk.LibraryID, &hit.Chunk.FileID, &hit.Chunk.ChunkIndex,
			&hit.Chunk.Content, &metaJSON, &hit.FileName, &distance); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		_ = json.Unmarshal(metaJSON, &hit.Chunk.Metadata)
		hit.Similarity = 1 - distance
		if hit.Similarity < 0 {
			hit.Similarity = 0
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

// SubstringHit is one row from the substring OR-filter.
type SubstringHit struct {
	Chunk    Chunk
	FileName string
}

// SubstringSearch returns chunks whose content contains ANY of terms
// (case-insensitive), bounded by limit, per spec.md §4.3 operator 2.
func (s *Store) SubstringSearch(ctx context.Context, libraryIDs []string, terms []string, limit int) ([]SubstringHit, error) {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if len([]rune(t)) >= 2 {
			cleaned = append(cleaned, t)
		}
	}
	if len(libraryIDs) == 0 || len(cleaned) == 0 || limit <= 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := []interface{}{libraryIDsArray(libraryIDs)}
	sb.WriteString(`SELECT c.id, c.library_id, c.file_id, c.chunk_index, c.content, c.metadata, f.filename
	                 FROM chunks c JOIN knowledge_files f ON f.id = c.file_id
	                 WHERE c.library_id = ANY($1) AND (`)
	for i, term := range cleaned {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		args = append(args, "%"+term+"%")
		fmt.Fprintf(&sb, "c.content ILIKE $%d", len(args))
	}
	sb.WriteString(") LIMIT ")
	args = append(args, limit)
	fmt.Fprintf(&sb, "$%d", len(args))

	rows, err := s.DB.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()

	var out []SubstringHit
	for rows.Next() {
		var hit SubstringHit
		var metaJSON []byte
		if err := rows.Scan(&hit.Chunk.ID, &hit.Chunk.LibraryID, &hit.Chunk.FileID, &hit.Chunk.ChunkIndex,
			&hit.Chunk.Content, &metaJSON, &hit.FileName); err != nil {
			return nil, fmt.Errorf("scan substring hit: %w", err)
		}
		_ = json.Unmarshal(metaJSON, &hit.Chunk.Metadata)
		out = append(out, hit)
	}
	return out, rows.Err()
}

// ListChunksByLibrary returns every chunk of a library ordered by file id,
// then chunk index,
// used by the graph rebuilder to scan chunk content for entities/relations.
func (s *Store) ListChunksByLibrary(ctx context.Context, libraryID string) ([]Chunk, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, library_id, file_id, chunk_index, content
		 FROM chunks WHERE library_id = $1 ORDER BY file_id, chunk_index`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by library: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.LibraryID, &c.FileID, &c.ChunkIndex, &c.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func libraryIDsArray(ids []string) []string {
	// pq/pgx both accept []string for ANY($n) against a uuid[] cast at the
	// driver level when the column is UUID and the parameter is text[];
	// Postgres coerces text->uuid element-wise.
	return ids
}
