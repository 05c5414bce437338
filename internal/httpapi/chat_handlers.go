// Chat handlers implement spec.md §6's /chat/sessions* routes: session
// CRUD and message send (JSON or SSE depending on stream=true), wiring a
// provider config + retrieval profile into an internal/chatreply.TurnRequest
// and dispatching to the non-streaming or streaming orchestrator path.
//
// SSE framing is grounded on web/services/stream_service.go's
// WriteSSEData helper (`data: <json>\n\n` plus an explicit Flush per
// frame), generalized from that file's chunk/done vocabulary to the
// delta/done event types spec.md §6 names.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kbagent/internal/chatreply"
	"kbagent/internal/llm"
	"kbagent/internal/retrievalprofile"
	"kbagent/internal/store"
)

type sessionView struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	ProviderConfigID   *string `json:"provider_config_id,omitempty"`
	LibraryID          *string `json:"library_id,omitempty"`
	RetrievalProfileID *string `json:"retrieval_profile_id,omitempty"`
	ShowCitations      bool    `json:"show_citations"`
}

func toSessionView(sess store.ChatSession) sessionView {
	return sessionView{
		ID: sess.ID, Title: sess.Title, ProviderConfigID: sess.ProviderConfigID,
		LibraryID: sess.LibraryID, RetrievalProfileID: sess.RetrievalProfileID, ShowCitations: sess.ShowCitations,
	}
}

type createSessionRequest struct {
	Title              string  `json:"title"`
	ProviderConfigID   *string `json:"provider_config_id"`
	LibraryID          *string `json:"library_id"`
	RetrievalProfileID *string `json:"retrieval_profile_id"`
	ShowCitations      *bool   `json:"show_citations"`
}

// handleCreateSession implements POST /chat/sessions.
func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid session payload")
		return
	}
	title := req.Title
	if title == "" {
		title = "New chat"
	}
	showCitations := true
	if req.ShowCitations != nil {
		showCitations = *req.ShowCitations
	}
	sess, err := s.store.CreateSession(c.Request.Context(), store.ChatSession{
		UserID: c.GetString("userID"), Title: title, ProviderConfigID: req.ProviderConfigID,
		LibraryID: req.LibraryID, RetrievalProfileID: req.RetrievalProfileID, ShowCitations: showCitations,
	})
	if err != nil {
		s.handleErr(c, err, "could not create chat session")
		return
	}
	c.JSON(http.StatusCreated, toSessionView(*sess))
}

// handleListSessions implements GET /chat/sessions.
func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.store.ListSessions(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		s.handleErr(c, err, "could not list chat sessions")
		return
	}
	out := make([]sessionView, len(sessions))
	for i, sess := range sessions {
		out[i] = toSessionView(sess)
	}
	c.JSON(http.StatusOK, out)
}

// handleDeleteSession implements DELETE /chat/sessions/{id}: messages
// cascade, per spec.md §3.
func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.store.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		s.handleErr(c, err, "could not delete chat session")
		return
	}
	c.Status(http.StatusNoContent)
}

type updateSessionRequest struct {
	Title         *string `json:"title"`
	ShowCitations *bool   `json:"show_citations"`
}

// handleUpdateSession implements PATCH /chat/sessions/{id}.
func (s *Server) handleUpdateSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "invalid session payload")
		return
	}
	id := c.Param("id")
	sess, err := s.store.GetSession(c.Request.Context(), id)
	if err != nil {
		s.handleErr(c, err, "chat session not found")
		return
	}
	if req.Title != nil {
		sess.Title = *req.Title
	}
	if req.ShowCitations != nil {
		sess.ShowCitations = *req.ShowCitations
	}
	if _, err := s.store.DB.ExecContext(c.Request.Context(),
		`UPDATE chat_sessions SET title = $1, show_citations = $2, updated_at = NOW() WHERE id = $3`,
		sess.Title, sess.ShowCitations, id); err != nil {
		s.handleErr(c, err, "could not update chat session")
		return
	}
	c.JSON(http.StatusOK, toSessionView(*sess))
}

// handleListMessages implements GET /chat/sessions/{id}/messages.
func (s *Server) handleListMessages(c *gin.Context) {
	messages, err := s.store.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleErr(c, err, "could not list chat messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
	Stream  bool   `json:"stream"`
	Rerank  bool   `json:"rerank"`
}

// handleSendMessage implements POST /chat/sessions/{id}/messages, returning
// JSON for a unary call or an SSE stream when stream=true, per spec.md §6.
func (s *Server) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "content is required")
		return
	}

	sess, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleErr(c, err, "chat session not found")
		return
	}

	turnReq, err := s.buildTurnRequest(c, *sess, req.Content, req.Rerank)
	if err != nil {
		s.handleErr(c, err, "could not prepare chat turn")
		return
	}

	if !req.Stream {
		result, err := s.orchestrator.RunTurn(c.Request.Context(), *turnReq)
		if err != nil {
			s.handleErr(c, err, "could not process chat message")
			return
		}
		c.JSON(http.StatusOK, gin.H{"content": result.Content, "citations": result.Citations})
		return
	}

	s.streamTurn(c, *turnReq)
}

// buildTurnRequest resolves the session's provider config and retrieval
// profile into a chatreply.TurnRequest, matching spec.md §4.9's preamble
// ("build a context-budgeted prompt... within a given model context
// window").
func (s *Server) buildTurnRequest(c *gin.Context, sess store.ChatSession, content string, rerank bool) (*chatreply.TurnRequest, error) {
	ctx := c.Request.Context()

	profileCfg, err := retrievalprofile.Resolve(ctx, s.store, sess.RetrievalProfileID)
	if err != nil {
		return nil, err
	}

	contextWindow := s.cfg.ContextWindowTokens
	maxTokens := 2048
	var client *llm.Client
	if sess.ProviderConfigID != nil {
		provider, err := s.store.GetProviderConfig(ctx, *sess.ProviderConfigID)
		if err != nil {
			return nil, err
		}
		apiKey, err := s.secretsCodec.Decrypt(provider.APIKeyEncrypted)
		if err != nil {
			return nil, err
		}
		if provider.ContextWindowTokens > 0 {
			contextWindow = provider.ContextWindowTokens
		}
		client = llm.New(llm.Config{
			BaseURL: provider.BaseURL, APIKey: apiKey, Model: provider.DefaultModel,
			RequestTimeout: s.cfg.RequestTimeoutSeconds,
		}, s.logger)
	} else {
		client = llm.New(llm.Config{RequestTimeout: s.cfg.RequestTimeoutSeconds}, s.logger)
	}

	return &chatreply.TurnRequest{
		Session: sess, UserMessage: content, Profile: profileCfg,
		ContextWindow: contextWindow, MaxTokens: maxTokens, LLM: client, Rerank: rerank,
	}, nil
}

// streamTurn drives the SSE response for a streaming chat turn: each event
// is written as a bare `data: <json>\n\n` line per spec.md §6's frame
// format (no `event:` line), matching
// web/services/stream_service.go's WriteSSEData helper generalized from a
// mutex-guarded single writer to the single-producer channel shape
// internal/chatreply.Orchestrator already returns.
func (s *Server) streamTurn(c *gin.Context, req chatreply.TurnRequest) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	events := make(chan chatreply.StreamEvent)
	go s.orchestrator.RunTurnStreaming(c.Request.Context(), req, events)

	c.Stream(func(w gin.ResponseWriter) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("marshal stream event failed", zap.Error(err))
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		w.Flush()
		return true
	})
}
