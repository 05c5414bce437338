package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateLibrary inserts a new library, grounded on original_source's
// kb_service.create_library. Ownership/role checks for read/update/delete
// live in internal/httpapi's loadLibraryWithAccess, not here — this is pure
// persistence.
func (s *Store) CreateLibrary(ctx context.Context, lib Library) (*Library, error) {
	lib.ID = uuid.New().String()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO libraries (id, name, description, library_type, owner_type, owner_id, tags, root_path, context_window_tokens)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		lib.ID, lib.Name, lib.Description, lib.LibraryType, lib.OwnerType, lib.OwnerID,
		pq.Array(lib.Tags), lib.RootPath, nonZeroOr(lib.ContextWindowTokens, 131072),
	)
	if err != nil {
		return nil, fmt.Errorf("create library: %w", err)
	}
	return &lib, nil
}

// ListLibraries returns libraries visible to userID: all shared libraries
// plus the user's own private ones, per spec.md §3's Library invariant.
func (s *Store) ListLibraries(ctx context.Context, userID string) ([]Library, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, description, library_type, owner_type, owner_id, tags, root_path,
		        retrieval_profile_id, context_window_tokens, created_at, updated_at
		 FROM libraries
		 WHERE owner_type = 'shared' OR (owner_type = 'private' AND owner_id = $1)
		 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	var out []Library
	for rows.Next() {
		var l Library
		var ownerID, profileID sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.LibraryType, &l.OwnerType, &ownerID,
			pq.Array(&l.Tags), &l.RootPath, &profileID, &l.ContextWindowTokens, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		if ownerID.Valid {
			l.OwnerID = &ownerID.String
		}
		if profileID.Valid {
			l.RetrievalProfileID = &profileID.String
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLibrary loads a single library by id.
func (s *Store) GetLibrary(ctx context.Context, id string) (*Library, error) {
	var l Library
	var ownerID, profileID sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, description, library_type, owner_type, owner_id, tags, root_path,
		        retrieval_profile_id, context_window_tokens, created_at, updated_at
		 FROM libraries WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.Description, &l.LibraryType, &l.OwnerType, &ownerID,
		pq.Array(&l.Tags), &l.RootPath, &profileID, &l.ContextWindowTokens, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if ownerID.Valid {
		l.OwnerID = &ownerID.String
	}
	if profileID.Valid {
		l.RetrievalProfileID = &profileID.String
	}
	return &l, nil
}

// DeleteLibrary removes a library; ON DELETE CASCADE takes care of files,
// chunks, entities and relations per spec.md §3's ownership/cascade rule.
func (s *Store) DeleteLibrary(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM libraries WHERE id = $1`, id)
	return err
}

func nonZeroOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
