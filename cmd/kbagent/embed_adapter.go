package main

import (
	"context"

	"go.uber.org/zap"

	"kbagent/internal/config"
	"kbagent/internal/llm"
)

// embeddingRemoteCaller adapts internal/llm.Client to
// internal/embedding.RemoteCaller, pointed at the dedicated
// EMBEDDING_ENDPOINT_URL/EMBEDDING_API_KEY pair rather than a chat
// ProviderConfig's credentials, per spec.md §6's separate embedding env
// vars.
type embeddingRemoteCaller struct {
	client *llm.Client
}

func (e *embeddingRemoteCaller) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return e.client.Embed(ctx, model, texts)
}

// newEmbeddingRemoteCaller builds the remote caller used by the embedding
// service's "remote" backend; it is only actually invoked when
// EMBEDDING_BACKEND=remote, so a zero-value BaseURL is harmless for the
// default hash backend.
func newEmbeddingRemoteCaller(cfg *config.Config, logger *zap.Logger) *embeddingRemoteCaller {
	client := llm.New(llm.Config{
		BaseURL:        cfg.EmbeddingEndpointURL,
		APIKey:         cfg.EmbeddingAPIKey,
		Model:          cfg.EmbeddingModelName,
		RequestTimeout: cfg.RequestTimeoutSeconds,
	}, logger)
	return &embeddingRemoteCaller{client: client}
}
