// Profile handlers implement spec.md §6's /settings/retrieval-profiles
// CRUD routes (C6), enforcing "built-ins may not be deleted" and clamping
// any admin-submitted config to the documented ranges before it is stored.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"kbagent/internal/apperrors"
	"kbagent/internal/retrievalprofile"
	"kbagent/internal/store"
)

type profileView struct {
	ID          string                 `json:"id"`
	ProfileKey  string                 `json:"profile_key"`
	Name        string                 `json:"name"`
	ProfileType string                 `json:"profile_type"`
	Description string                 `json:"description"`
	Config      map[string]interface{} `json:"config"`
	IsDefault   bool                   `json:"is_default"`
	IsBuiltin   bool                   `json:"is_builtin"`
	IsActive    bool                   `json:"is_active"`
}

func toProfileView(p store.RetrievalProfile) profileView {
	return profileView{
		ID: p.ID, ProfileKey: p.ProfileKey, Name: p.Name, ProfileType: p.ProfileType,
		Description: p.Description, Config: p.Config, IsDefault: p.IsDefault,
		IsBuiltin: p.IsBuiltin, IsActive: p.IsActive,
	}
}

// handleListProfiles implements GET /settings/retrieval-profiles.
func (s *Server) handleListProfiles(c *gin.Context) {
	profiles, err := s.store.ListProfiles(c.Request.Context())
	if err != nil {
		s.handleErr(c, err, "could not list retrieval profiles")
		return
	}
	out := make([]profileView, len(profiles))
	for i, p := range profiles {
		out[i] = toProfileView(p)
	}
	c.JSON(http.StatusOK, out)
}

type profileRequest struct {
	ProfileKey  string                 `json:"profile_key" binding:"required"`
	Name        string                 `json:"name" binding:"required"`
	ProfileType string                 `json:"profile_type"`
	Description string                 `json:"description"`
	Config      map[string]interface{} `json:"config"`
}

// handleCreateProfile implements POST /settings/retrieval-profiles
// (admin-only, per §6). profile_key collisions are a ValidationError, per
// spec.md §7.
func (s *Server) handleCreateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "profile_key and name are required")
		return
	}
	clamped, err := clampConfigMap(req.Config)
	if err != nil {
		s.handleErr(c, err, "could not parse profile config")
		return
	}
	created, err := s.store.CreateProfile(c.Request.Context(), store.RetrievalProfile{
		ProfileKey: req.ProfileKey, Name: req.Name, ProfileType: req.ProfileType,
		Description: req.Description, Config: clamped, IsActive: true,
	})
	if err != nil {
		s.handleErr(c, err, "could not create retrieval profile (profile_key may already exist)")
		return
	}
	c.JSON(http.StatusCreated, toProfileView(*created))
}

// handleUpdateProfile implements PUT /settings/retrieval-profiles/{id}
// (admin-only). Built-in profiles may have their config overridden but the
// row itself is never deleted, per spec.md §4.6.
func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "name is required")
		return
	}
	clamped, err := clampConfigMap(req.Config)
	if err != nil {
		s.handleErr(c, err, "could not parse profile config")
		return
	}
	id := c.Param("id")
	if err := s.store.UpdateProfile(c.Request.Context(), id, req.Name, req.Description, clamped); err != nil {
		s.handleErr(c, err, "could not update retrieval profile")
		return
	}
	updated, err := s.store.GetProfile(c.Request.Context(), id)
	if err != nil {
		s.handleErr(c, err, "could not reload retrieval profile")
		return
	}
	c.JSON(http.StatusOK, toProfileView(*updated))
}

// handleDeleteProfile implements DELETE /settings/retrieval-profiles/{id}
// (admin-only): built-ins may not be deleted, per spec.md §3.
func (s *Server) handleDeleteProfile(c *gin.Context) {
	id := c.Param("id")
	existing, err := s.store.GetProfile(c.Request.Context(), id)
	if err != nil {
		s.handleErr(c, err, "retrieval profile not found")
		return
	}
	if existing.IsBuiltin {
		s.handleErr(c, apperrors.Wrapf(apperrors.ErrValidation, "profile %q is built-in and cannot be deleted", existing.ProfileKey), "built-in profiles cannot be deleted")
		return
	}
	if err := s.store.DeleteProfile(c.Request.Context(), id); err != nil {
		s.handleErr(c, err, "could not delete retrieval profile")
		return
	}
	c.Status(http.StatusNoContent)
}

// clampConfigMap round-trips a client-submitted config map through
// retrievalprofile.Config so every field is bounded to its documented
// min/max before being persisted, matching build_runtime_retrieval_config's
// clamp-on-write behavior.
func clampConfigMap(raw map[string]interface{}) (map[string]interface{}, error) {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, apperrors.Wrap(err, "marshal profile config")
	}
	var cfg retrievalprofile.Config
	if err := json.Unmarshal(encoded, &cfg); err != nil {
		return nil, apperrors.Wrap(err, "unmarshal profile config")
	}
	cfg = cfg.Clamp()
	clampedJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "marshal clamped profile config")
	}
	var out map[string]interface{}
	if err := json.Unmarshal(clampedJSON, &out); err != nil {
		return nil, apperrors.Wrap(err, "unmarshal clamped profile config")
	}
	return out, nil
}
