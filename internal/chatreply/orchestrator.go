// Package chatreply implements C9: the non-streaming and streaming reply
// orchestrators that sit between the HTTP surface and the retrieval
// engine/LLM adapters.
//
// Grounded on agent/agent.go's turn loop (save message -> build context ->
// call model -> persist reply) for the overall shape, generalized with the
// hybrid retrieval + context-window assembly steps spec.md §4.9 inserts
// between "save user message" and "call adapter.chat", and on
// llmclient/client.go's streaming idiom for the delta-channel shape
// internal/llm.Client.ChatStream already returns.
package chatreply

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kbagent/internal/contextwindow"
	"kbagent/internal/hybrid"
	"kbagent/internal/llm"
	"kbagent/internal/retrievalprofile"
	"kbagent/internal/store"
)

// noHitMessage is the deterministic guidance emitted when libraries were
// selected but the engine returned no hits, per spec.md §4.9's "never falls
// back to a generic LLM answer" rule.
const noHitMessage = "抱歉，我在已选择的知识库中没有找到与您的问题直接相关的内容。建议您尝试：换一种说法或使用别名重新提问；确认相关文件已上传并完成索引；或对知识库执行重建索引后再试。"

const streamInterruptedDelta = "[回复中断，请重试]"

// Orchestrator assembles and dispatches one chat turn.
type Orchestrator struct {
	store  *store.Store
	engine *hybrid.Engine
	logger *zap.Logger
}

// New constructs a chat Orchestrator.
func New(s *store.Store, engine *hybrid.Engine, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{store: s, engine: engine, logger: logger}
}

// TurnRequest bundles the per-message inputs the orchestrator needs beyond
// what's already on the ChatSession row.
type TurnRequest struct {
	Session       store.ChatSession
	UserMessage   string
	Profile       retrievalprofile.Config
	ContextWindow int
	MaxTokens     int
	LLM           *llm.Client
	Rerank        bool
}

// TurnResult is the non-streaming reply.
type TurnResult struct {
	Content   string
	Citations []store.Citation
}

// RunTurn executes the non-streaming path of spec.md §4.9.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if _, err := o.store.AppendMessage(ctx, store.ChatMessage{
		SessionID: req.Session.ID, Role: "user", Content: req.UserMessage,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	hits, history, err := o.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Session.LibraryID != nil && len(hits) == 0 {
		if _, err := o.store.AppendMessage(ctx, store.ChatMessage{
			SessionID: req.Session.ID, Role: "assistant", Content: noHitMessage,
		}); err != nil {
			o.logger.Error("persist no-hit message failed", zap.Error(err))
		}
		return &TurnResult{Content: noHitMessage}, nil
	}

	if req.Rerank && len(hits) > 0 {
		hits = o.rerank(ctx, req.LLM, req.UserMessage, hits)
	}

	budget := contextwindow.ComputeBudget(req.ContextWindow, req.MaxTokens, history, req.UserMessage, req.Profile.SummaryIntentEnabled)
	trimmedHits := contextwindow.TrimHits(hits, budget, req.Profile.SummaryIntentEnabled)
	messages := buildPrompt(trimmedHits, contextwindow.TrimHistory(history, 24), req.UserMessage)

	content, err := req.LLM.Chat(ctx, messages, nil)
	if err != nil {
		o.logger.Warn("chat completion failed, degrading to templated reply", zap.Error(err))
		content = degradedReply(trimmedHits)
	}

	citations := toCitations(trimmedHits, req.Session.ShowCitations)
	if _, err := o.store.AppendMessage(ctx, store.ChatMessage{
		SessionID: req.Session.ID, Role: "assistant", Content: content, Citations: citations,
	}); err != nil {
		o.logger.Error("persist assistant message failed", zap.Error(err))
	}

	return &TurnResult{Content: content, Citations: citations}, nil
}

// StreamEvent is one frame the HTTP layer serializes as an SSE `data: ` line.
type StreamEvent struct {
	Type      string            `json:"type"`
	Delta     string            `json:"delta,omitempty"`
	Citations []store.Citation  `json:"citations,omitempty"`
	Error     *string           `json:"error"`
}

// RunTurnStreaming executes the streaming path of spec.md §4.9, sending
// `delta` frames as they arrive and a final `done` frame once the adapter
// stream ends. The assistant message is persisted best-effort even if the
// caller's context is cancelled mid-stream.
func (o *Orchestrator) RunTurnStreaming(ctx context.Context, req TurnRequest, out chan<- StreamEvent) {
	defer close(out)

	if _, err := o.store.AppendMessage(ctx, store.ChatMessage{
		SessionID: req.Session.ID, Role: "user", Content: req.UserMessage,
	}); err != nil {
		o.logger.Error("persist user message failed", zap.Error(err))
	}

	hits, history, err := o.retrieve(ctx, req)
	if err != nil {
		errMsg := err.Error()
		out <- StreamEvent{Type: "done", Error: &errMsg}
		return
	}

	if req.Session.LibraryID != nil && len(hits) == 0 {
		out <- StreamEvent{Type: "delta", Delta: noHitMessage}
		if _, err := o.store.AppendMessage(ctx, store.ChatMessage{
			SessionID: req.Session.ID, Role: "assistant", Content: noHitMessage,
		}); err != nil {
			o.logger.Error("persist no-hit message failed", zap.Error(err))
		}
		out <- StreamEvent{Type: "done", Citations: nil, Error: nil}
		return
	}

	if req.Rerank && len(hits) > 0 {
		hits = o.rerank(ctx, req.LLM, req.UserMessage, hits)
	}

	budget := contextwindow.ComputeBudget(req.ContextWindow, req.MaxTokens, history, req.UserMessage, req.Profile.SummaryIntentEnabled)
	trimmedHits := contextwindow.TrimHits(hits, budget, req.Profile.SummaryIntentEnabled)
	messages := buildPrompt(trimmedHits, contextwindow.TrimHistory(history, 24), req.UserMessage)

	deltas, err := req.LLM.ChatStream(ctx, messages, nil)
	if err != nil {
		o.logger.Warn("chat stream start failed, degrading to templated reply", zap.Error(err))
		content := degradedReply(trimmedHits)
		out <- StreamEvent{Type: "delta", Delta: content}
		citations := toCitations(trimmedHits, req.Session.ShowCitations)
		if _, persistErr := o.store.AppendMessage(ctx, store.ChatMessage{
			SessionID: req.Session.ID, Role: "assistant", Content: content, Citations: citations,
		}); persistErr != nil {
			o.logger.Error("persist degraded reply failed", zap.Error(persistErr))
		}
		out <- StreamEvent{Type: "done", Citations: citations, Error: nil}
		return
	}

	var full string
	var streamErr error
	for delta := range deltas {
		full += delta
		select {
		case out <- StreamEvent{Type: "delta", Delta: delta}:
		case <-ctx.Done():
			streamErr = ctx.Err()
		}
	}
	if full == "" && streamErr == nil {
		streamErr = fmt.Errorf("stream interrupted")
	}
	if full == "" {
		out <- StreamEvent{Type: "delta", Delta: streamInterruptedDelta}
	}

	citations := toCitations(trimmedHits, req.Session.ShowCitations)
	if full != "" {
		persistCtx := context.WithoutCancel(ctx)
		if _, err := o.store.AppendMessage(persistCtx, store.ChatMessage{
			SessionID: req.Session.ID, Role: "assistant", Content: full, Citations: citations,
		}); err != nil {
			o.logger.Error("persist streamed assistant message failed", zap.Error(err))
		}
	}

	var errMsg *string
	if streamErr != nil {
		msg := streamErr.Error()
		errMsg = &msg
	}
	out <- StreamEvent{Type: "done", Citations: citations, Error: errMsg}
}

func (o *Orchestrator) retrieve(ctx context.Context, req TurnRequest) ([]hybrid.Hit, []contextwindow.HistoryMessage, error) {
	prior, err := o.store.ListMessages(ctx, req.Session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list prior messages: %w", err)
	}

	history := make([]contextwindow.HistoryMessage, 0, len(prior))
	var historyContext []string
	for _, m := range prior {
		history = append(history, contextwindow.HistoryMessage{Role: m.Role, Content: m.Content})
		if m.Role == "user" {
			historyContext = append(historyContext, m.Content)
		}
	}
	if n := len(historyContext); n > 2 {
		historyContext = historyContext[n-2:]
	}

	if req.Session.LibraryID == nil {
		return nil, history, nil
	}

	hits, err := o.engine.Search(ctx, hybrid.Request{
		LibraryIDs:     []string{*req.Session.LibraryID},
		Query:          req.UserMessage,
		TopK:           8,
		HistoryContext: historyContext,
		Profile:        req.Profile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("hybrid search: %w", err)
	}
	return hits, history, nil
}

// rerank reorders hits by an adapter-provided relevance score, falling back
// to the original order if the rerank call fails.
func (o *Orchestrator) rerank(ctx context.Context, client *llm.Client, query string, hits []hybrid.Hit) []hybrid.Hit {
	docs := make([]string, len(hits))
	for i, h := range hits {
		docs[i] = h.Snippet
	}
	scores, err := client.Rerank(ctx, query, docs)
	if err != nil {
		o.logger.Warn("rerank failed, keeping original order", zap.Error(err))
		return hits
	}
	reordered := make([]hybrid.Hit, len(hits))
	copy(reordered, hits)
	for i := range reordered {
		reordered[i].Score = scores[i]
	}
	for i := 1; i < len(reordered); i++ {
		for j := i; j > 0 && reordered[j].Score > reordered[j-1].Score; j-- {
			reordered[j], reordered[j-1] = reordered[j-1], reordered[j]
		}
	}
	return reordered
}

// degradedReply builds the deterministic local templated reply spec.md §7
// requires when an adapter chat call fails: it echoes the retrieved
// snippets rather than surfacing an error to the user.
func degradedReply(hits []hybrid.Hit) string {
	if len(hits) == 0 {
		return "抱歉，当前无法连接到语言模型服务，请稍后重试。"
	}
	reply := "当前语言模型服务不可用，以下是根据检索到的参考资料整理的内容：\n\n"
	for i, h := range hits {
		reply += fmt.Sprintf("[%d] 来源: %s\n%s\n\n", i+1, h.FileName, h.Snippet)
	}
	return reply
}

// noLibrarySystemPrompt is the fixed system prompt spec.md §9 requires when
// the user selected no library: preserved as-is from the normative
// implementation rather than reworded, so the turn still goes through the
// LLM on general knowledge instead of silently producing an empty system
// message.
const noLibrarySystemPrompt = "你是企业知识助手。在未选择知识库时，可直接基于模型能力回答用户问题。"

func buildPrompt(hits []hybrid.Hit, history []contextwindow.HistoryMessage, query string) []llm.Message {
	messages := make([]llm.Message, 0, len(hits)+len(history)+2)

	if len(hits) > 0 {
		var sb string
		sb = "以下是知识库中检索到的相关内容，请据此回答用户问题：\n\n"
		for i, h := range hits {
			sb += fmt.Sprintf("[%d] 来源: %s\n%s\n\n", i+1, h.FileName, h.Snippet)
		}
		messages = append(messages, llm.Message{Role: "system", Content: sb})
	} else {
		messages = append(messages, llm.Message{Role: "system", Content: noLibrarySystemPrompt})
	}

	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	messages = append(messages, llm.Message{Role: "user", Content: query})
	return messages
}

func toCitations(hits []hybrid.Hit, show bool) []store.Citation {
	if !show {
		return nil
	}
	out := make([]store.Citation, len(hits))
	for i, h := range hits {
		out[i] = store.Citation{
			LibraryID: h.LibraryID, FileID: h.FileID, FileName: h.FileName,
			ChunkID: h.ChunkID, Score: h.Score, Snippet: h.Snippet,
			Source: h.Source, MatchedEntities: h.MatchedEntities,
		}
	}
	return out
}
