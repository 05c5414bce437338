package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kbagent/internal/apperrors"
	"kbagent/internal/llm"
	"kbagent/internal/secrets"
	"kbagent/internal/store"
)

type providerView struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	ProviderKind        string `json:"provider_kind"`
	BaseURL             string `json:"base_url"`
	MaskedAPIKey        string `json:"masked_api_key"`
	DefaultModel        string `json:"default_model"`
	ContextWindowTokens int    `json:"context_window_tokens"`
}

func toProviderView(p store.ProviderConfig, codec *secrets.Codec) providerView {
	plain, err := codec.Decrypt(p.APIKeyEncrypted)
	masked := "****"
	if err == nil {
		masked = secrets.MaskSecret(plain)
	}
	return providerView{
		ID: p.ID, Name: p.Name, ProviderKind: p.ProviderKind, BaseURL: p.BaseURL,
		MaskedAPIKey: masked, DefaultModel: p.DefaultModel, ContextWindowTokens: p.ContextWindowTokens,
	}
}

// handleListProviders implements GET /providers.
func (s *Server) handleListProviders(c *gin.Context) {
	providers, err := s.store.ListProviderConfigs(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		s.handleErr(c, err, "could not list providers")
		return
	}
	out := make([]providerView, len(providers))
	for i, p := range providers {
		out[i] = toProviderView(p, s.secretsCodec)
	}
	c.JSON(http.StatusOK, out)
}

type providerRequest struct {
	Name                string `json:"name" binding:"required"`
	ProviderKind        string `json:"provider_kind" binding:"required"`
	BaseURL             string `json:"base_url" binding:"required"`
	APIKey              string `json:"api_key"`
	DefaultModel        string `json:"default_model"`
	ContextWindowTokens int    `json:"context_window_tokens"`
}

// handleCreateProvider implements POST /providers.
func (s *Server) handleCreateProvider(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "name, provider_kind and base_url are required")
		return
	}
	encrypted, err := s.secretsCodec.Encrypt(req.APIKey)
	if err != nil {
		s.handleErr(c, err, "could not encrypt api key")
		return
	}
	created, err := s.store.CreateProviderConfig(c.Request.Context(), store.ProviderConfig{
		OwnerID: c.GetString("userID"), Name: req.Name, ProviderKind: req.ProviderKind,
		BaseURL: req.BaseURL, APIKeyEncrypted: encrypted, DefaultModel: req.DefaultModel,
		ContextWindowTokens: req.ContextWindowTokens,
	})
	if err != nil {
		s.handleErr(c, err, "could not create provider")
		return
	}
	c.JSON(http.StatusCreated, toProviderView(*created, s.secretsCodec))
}

// handleUpdateProvider implements PUT /providers/{id}. Provider configs are
// owner-scoped (see ListProviderConfigs); only the owner or an admin may
// update one, closing the gap where any authenticated user could overwrite
// another user's stored credentials by guessing/enumerating its id.
func (s *Server) handleUpdateProvider(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "name, provider_kind and base_url are required")
		return
	}
	id := c.Param("id")
	existing, ok := s.loadProviderWithAccess(c, id)
	if !ok {
		return
	}
	encrypted, err := s.secretsCodec.Encrypt(req.APIKey)
	if err != nil {
		s.handleErr(c, err, "could not encrypt api key")
		return
	}
	if err := s.store.UpdateProviderConfig(c.Request.Context(), id, existing.OwnerID, req.Name, req.BaseURL, encrypted, req.DefaultModel, req.ContextWindowTokens); err != nil {
		s.handleErr(c, err, "could not update provider")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// handleDeleteProvider implements DELETE /providers/{id}, gated by the same
// owner-or-admin rule as update.
func (s *Server) handleDeleteProvider(c *gin.Context) {
	id := c.Param("id")
	existing, ok := s.loadProviderWithAccess(c, id)
	if !ok {
		return
	}
	if err := s.store.DeleteProviderConfig(c.Request.Context(), id, existing.OwnerID); err != nil {
		s.handleErr(c, err, "could not delete provider")
		return
	}
	c.Status(http.StatusNoContent)
}

// loadProviderWithAccess loads id and enforces owner-or-admin access to it,
// writing the HTTP error response and returning ok=false otherwise.
func (s *Server) loadProviderWithAccess(c *gin.Context, id string) (*store.ProviderConfig, bool) {
	existing, err := s.store.GetProviderConfig(c.Request.Context(), id)
	if err != nil {
		s.handleErr(c, err, "provider not found")
		return nil, false
	}
	if existing.OwnerID != c.GetString("userID") && c.GetString("role") != "admin" {
		s.handleErr(c, apperrors.ErrPermission, "you do not have access to this provider")
		return nil, false
	}
	return existing, true
}

type validateModelRequest struct {
	BaseURL string `json:"base_url" binding:"required"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model" binding:"required"`
}

// handleValidateModel implements POST /models/validate: a one-shot chat call
// against the candidate provider to confirm the model name/credentials work.
func (s *Server) handleValidateModel(c *gin.Context) {
	var req validateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "base_url and model are required")
		return
	}
	client := llm.New(llm.Config{BaseURL: req.BaseURL, APIKey: req.APIKey, Model: req.Model, MaxRetries: 1}, s.logger)
	_, err := client.Chat(c.Request.Context(), []llm.Message{{Role: "user", Content: "ping"}}, nil)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
