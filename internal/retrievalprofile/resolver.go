package retrievalprofile

import (
	"context"
	"encoding/json"
	"fmt"

	"kbagent/internal/store"
)

// EnsureDefaultProfiles inserts the five built-in profiles if they are
// missing, matching retrieval_profile_service.ensure_default_profiles
// (called once at startup so a fresh database always has usable profiles).
func EnsureDefaultProfiles(ctx context.Context, s *store.Store) error {
	existing, err := s.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list existing profiles: %w", err)
	}
	byKey := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		byKey[p.ProfileKey] = struct{}{}
	}

	for _, b := range Builtins() {
		if _, ok := byKey[b.Key]; ok {
			continue
		}
		cfgMap, err := toMap(b.Config)
		if err != nil {
			return fmt.Errorf("encode builtin profile %s: %w", b.Key, err)
		}
		_, err = s.CreateProfile(ctx, store.RetrievalProfile{
			ProfileKey: b.Key, Name: b.Name, ProfileType: b.ProfileType,
			Description: b.Description, Config: cfgMap,
			IsDefault: b.IsDefault, IsBuiltin: true, IsActive: true,
		})
		if err != nil {
			return fmt.Errorf("create builtin profile %s: %w", b.Key, err)
		}
	}
	return nil
}

// Resolve loads a profile's config by id and clamps it, falling back to the
// system default profile when id is nil, matching
// retrieval_profile_service.get_profile_config_by_id's optional-id behavior.
func Resolve(ctx context.Context, s *store.Store, profileID *string) (Config, error) {
	var row *store.RetrievalProfile
	var err error
	if profileID != nil && *profileID != "" {
		row, err = s.GetProfile(ctx, *profileID)
	} else {
		row, err = s.GetDefaultProfile(ctx)
	}
	if err != nil {
		return Config{}, fmt.Errorf("resolve retrieval profile: %w", err)
	}

	var cfg Config
	raw, err := json.Marshal(row.Config)
	if err != nil {
		return Config{}, fmt.Errorf("marshal stored profile config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal stored profile config: %w", err)
	}
	return cfg.Clamp(), nil
}

func toMap(cfg Config) (map[string]interface{}, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
