// Provider-config persistence, the SPEC_FULL.md-supplemented entity behind
// the §6 /providers routes. Grounded on llmclient/client.go's provider
// selection shape, with API keys always stored through internal/secrets.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"kbagent/internal/apperrors"
)

// requireRowsAffected returns apperrors.ErrNotFound when an owner-scoped
// UPDATE/DELETE touched zero rows, which happens either because the id
// doesn't exist or because it belongs to a different owner — both cases the
// caller should treat the same way (no information leak about which).
func requireRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CreateProviderConfig inserts a new provider configuration. apiKeyEncrypted
// must already be produced by secrets.Codec.Encrypt — this package never
// touches plaintext keys.
func (s *Store) CreateProviderConfig(ctx context.Context, p ProviderConfig) (*ProviderConfig, error) {
	p.ID = uuid.New().String()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO provider_configs (id, owner_id, name, provider_kind, base_url, api_key_encrypted, default_model, context_window_tokens)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.OwnerID, p.Name, p.ProviderKind, p.BaseURL, p.APIKeyEncrypted, p.DefaultModel, nonZeroOr(p.ContextWindowTokens, 131072),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider config: %w", err)
	}
	return &p, nil
}

// GetProviderConfig loads a single provider config by id.
func (s *Store) GetProviderConfig(ctx context.Context, id string) (*ProviderConfig, error) {
	var p ProviderConfig
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, owner_id, name, provider_kind, base_url, api_key_encrypted, default_model, context_window_tokens
		 FROM provider_configs WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.ProviderKind, &p.BaseURL, &p.APIKeyEncrypted, &p.DefaultModel, &p.ContextWindowTokens)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProviderConfigs lists every provider config owned by a user.
func (s *Store) ListProviderConfigs(ctx context.Context, ownerID string) ([]ProviderConfig, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, owner_id, name, provider_kind, base_url, api_key_encrypted, default_model, context_window_tokens
		 FROM provider_configs WHERE owner_id = $1 ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list provider configs: %w", err)
	}
	defer rows.Close()

	var out []ProviderConfig
	for rows.Next() {
		var p ProviderConfig
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.ProviderKind, &p.BaseURL, &p.APIKeyEncrypted, &p.DefaultModel, &p.ContextWindowTokens); err != nil {
			return nil, fmt.Errorf("scan provider config: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProviderConfig overwrites a provider config's mutable fields.
// ownerID scopes the statement to the config's owner (`WHERE id = $1 AND
// owner_id = $2`) as a persistence-layer backstop behind the handler's own
// ownership check; apperrors.ErrNotFound is returned when the row doesn't
// exist or belongs to a different owner, so a guessed/enumerated id can't be
// used to overwrite someone else's provider config.
func (s *Store) UpdateProviderConfig(ctx context.Context, id, ownerID, name, baseURL, apiKeyEncrypted, defaultModel string, contextWindowTokens int) error {
	result, err := s.DB.ExecContext(ctx,
		`UPDATE provider_configs SET name = $1, base_url = $2, api_key_encrypted = $3, default_model = $4, context_window_tokens = $5
		 WHERE id = $6 AND owner_id = $7`,
		name, baseURL, apiKeyEncrypted, defaultModel, nonZeroOr(contextWindowTokens, 131072), id, ownerID)
	if err != nil {
		return fmt.Errorf("update provider config: %w", err)
	}
	return requireRowsAffected(result)
}

// DeleteProviderConfig removes a provider config owned by ownerID. See
// UpdateProviderConfig for why the owner scope lives in the query itself.
func (s *Store) DeleteProviderConfig(ctx context.Context, id, ownerID string) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM provider_configs WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	return requireRowsAffected(result)
}
