// Package store is the Postgres persistence layer for every entity in
// spec.md §3. It is grounded on the teacher's database/db.go for the
// sql.Open("pgx", ...)/idempotent-schema idiom, generalized from the
// teacher's chat-session schema to the full library/chunk/graph/profile
// schema this spec requires, and on database/rag_documents.go for the
// chunk-store query shapes (now backed by a real pgvector column instead
// of a REAL[] array).
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store wraps the raw connection pool. All higher-level query methods hang
// off this type across the store_*.go-style files in this package.
type Store struct {
	DB *sql.DB
}

// Open connects to Postgres via the pgx stdlib driver, matching the
// teacher's sql.Open("pgx", connStr) call.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{DB: db}, nil
}

// EnsureSchema creates every table idempotently and adds columns the
// original release may be missing, per spec.md §6 "Persistence" paragraph.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS libraries (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			library_type TEXT NOT NULL DEFAULT 'general',
			owner_type TEXT NOT NULL,
			owner_id UUID REFERENCES users(id) ON DELETE SET NULL,
			tags TEXT[] DEFAULT '{}'::TEXT[],
			root_path TEXT NOT NULL,
			retrieval_profile_id UUID,
			context_window_tokens INT NOT NULL DEFAULT 131072,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_files (
			id UUID PRIMARY KEY,
			library_id UUID NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			filepath TEXT NOT NULL,
			file_type TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'indexed',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			CONSTRAINT uq_library_filepath UNIQUE (library_id, filepath)
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			library_id UUID NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			file_id UUID NOT NULL REFERENCES knowledge_files(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(1536),
			metadata JSONB DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_entities (
			id UUID PRIMARY KEY,
			library_id UUID NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			display_name TEXT NOT NULL,
			entity_type TEXT NOT NULL DEFAULT 'concept',
			frequency INT NOT NULL DEFAULT 0,
			aliases TEXT[] DEFAULT '{}'::TEXT[],
			metadata JSONB DEFAULT '{}'::jsonb,
			CONSTRAINT uq_library_entity_name UNIQUE (library_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_relations (
			id UUID PRIMARY KEY,
			library_id UUID NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			source_entity_id UUID NOT NULL REFERENCES knowledge_entities(id) ON DELETE CASCADE,
			target_entity_id UUID NOT NULL REFERENCES knowledge_entities(id) ON DELETE CASCADE,
			relation_type TEXT NOT NULL,
			weight INT NOT NULL DEFAULT 1,
			evidence TEXT[] DEFAULT '{}'::TEXT[],
			CONSTRAINT uq_relation UNIQUE (library_id, source_entity_id, target_entity_id, relation_type)
		)`,
		`CREATE TABLE IF NOT EXISTS retrieval_profiles (
			id UUID PRIMARY KEY,
			profile_key TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			profile_type TEXT NOT NULL,
			description TEXT,
			config JSONB NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			is_builtin BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_by UUID REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS provider_configs (
			id UUID PRIMARY KEY,
			owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			provider_kind TEXT NOT NULL,
			base_url TEXT NOT NULL,
			api_key_encrypted TEXT NOT NULL,
			default_model TEXT NOT NULL,
			context_window_tokens INT NOT NULL DEFAULT 131072,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT DEFAULT '',
			provider_config_id UUID REFERENCES provider_configs(id) ON DELETE SET NULL,
			library_id UUID REFERENCES libraries(id) ON DELETE SET NULL,
			retrieval_profile_id UUID REFERENCES retrieval_profiles(id) ON DELETE SET NULL,
			show_citations BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			citations JSONB DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ingestion_tasks (
			id UUID PRIMARY KEY,
			task_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'queued',
			library_id UUID NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			created_by UUID REFERENCES users(id) ON DELETE SET NULL,
			detail JSONB DEFAULT '{}'::jsonb,
			error_message TEXT,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	// Idempotent column additions for deployments that predate a field,
	// matching spec.md §6: "missing columns on existing tables
	// (retrieval_profile_id, library_type, context_window_tokens) must be
	// added idempotently."
	alters := []string{
		`ALTER TABLE libraries ADD COLUMN IF NOT EXISTS retrieval_profile_id UUID`,
		`ALTER TABLE libraries ADD COLUMN IF NOT EXISTS library_type TEXT NOT NULL DEFAULT 'general'`,
		`ALTER TABLE libraries ADD COLUMN IF NOT EXISTS context_window_tokens INT NOT NULL DEFAULT 131072`,
		`ALTER TABLE chat_sessions ADD COLUMN IF NOT EXISTS retrieval_profile_id UUID`,
	}
	for _, stmt := range alters {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("alter statement failed: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_chunks_library ON chunks(library_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_library ON knowledge_entities(library_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_library ON knowledge_relations(library_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_source ON knowledge_relations(source_entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_target ON knowledge_relations(target_entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session_created ON chat_messages(session_id, created_at)`,
	}
	for _, stmt := range indexes {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("index statement failed: %w", err)
		}
	}

	// The trigram index speeds up the substring OR-filter (C3) but is not
	// load-bearing for correctness; skip it quietly if pg_trgm is
	// unavailable on this Postgres install rather than failing startup.
	if _, err := s.DB.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS pg_trgm`); err == nil {
		_, _ = s.DB.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_content_trgm ON chunks USING gin (content gin_trgm_ops)`)
	}

	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}
