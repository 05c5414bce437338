// Chat session/message persistence (C9), grounded on the teacher's
// database/db.go chat-session schema, generalized with library/profile
// scoping and a typed Citations column instead of the teacher's bare
// session-only chat history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CreateSession starts a new chat session for a user.
func (s *Store) CreateSession(ctx context.Context, sess ChatSession) (*ChatSession, error) {
	sess.ID = uuid.New().String()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, provider_config_id, library_id, retrieval_profile_id, show_citations)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sess.ID, sess.UserID, sess.Title, sess.ProviderConfigID, sess.LibraryID, sess.RetrievalProfileID, sess.ShowCitations,
	)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}
	return &sess, nil
}

// GetSession loads a single session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*ChatSession, error) {
	var sess ChatSession
	var providerID, libraryID, profileID sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, title, provider_config_id, library_id, retrieval_profile_id, show_citations, created_at, updated_at
		 FROM chat_sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Title, &providerID, &libraryID, &profileID, &sess.ShowCitations, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if providerID.Valid {
		sess.ProviderConfigID = &providerID.String
	}
	if libraryID.Valid {
		sess.LibraryID = &libraryID.String
	}
	if profileID.Valid {
		sess.RetrievalProfileID = &profileID.String
	}
	return &sess, nil
}

// ListSessions lists a user's chat sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]ChatSession, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, title, provider_config_id, library_id, retrieval_profile_id, show_citations, created_at, updated_at
		 FROM chat_sessions WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []ChatSession
	for rows.Next() {
		var sess ChatSession
		var providerID, libraryID, profileID sql.NullString
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &providerID, &libraryID, &profileID,
			&sess.ShowCitations, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if providerID.Valid {
			sess.ProviderConfigID = &providerID.String
		}
		if libraryID.Valid {
			sess.LibraryID = &libraryID.String
		}
		if profileID.Valid {
			sess.RetrievalProfileID = &profileID.String
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session; its messages cascade.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	return err
}

// TouchSession bumps updated_at, called after each appended message.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = NOW() WHERE id = $1`, id)
	return err
}

// AppendMessage inserts one message (user, assistant, or system) with its
// citation records, per spec.md §4.9's "best-effort persistence" note: this
// call is expected to be made even when the stream above it was cancelled.
func (s *Store) AppendMessage(ctx context.Context, msg ChatMessage) (*ChatMessage, error) {
	msg.ID = uuid.New().String()
	citationsJSON, err := json.Marshal(msg.Citations)
	if err != nil {
		return nil, fmt.Errorf("marshal citations: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, citations) VALUES ($1,$2,$3,$4,$5)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, citationsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	_ = s.TouchSession(ctx, msg.SessionID)
	return &msg, nil
}

// ListMessages returns a session's messages in chronological order, per
// spec.md §4.8's context-window assembly input.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, session_id, role, content, citations, created_at
		 FROM chat_messages WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var citationsJSON []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &citationsJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(citationsJSON) > 0 {
			if err := json.Unmarshal(citationsJSON, &m.Citations); err != nil {
				return nil, fmt.Errorf("unmarshal citations: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
