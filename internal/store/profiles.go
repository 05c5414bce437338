// Retrieval-profile persistence (C6), grounded on
// retrieval_profile_service.py's CRUD functions (list_profiles,
// get_profile_or_404, create_profile, update_profile, delete_profile).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"kbagent/internal/apperrors"
)

// CreateProfile inserts a new retrieval profile, mirroring
// retrieval_profile_service.create_profile.
func (s *Store) CreateProfile(ctx context.Context, p RetrievalProfile) (*RetrievalProfile, error) {
	p.ID = uuid.New().String()
	cfgJSON, err := json.Marshal(p.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal profile config: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO retrieval_profiles (id, profile_key, name, profile_type, description, config, is_default, is_builtin, is_active, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.ProfileKey, p.Name, p.ProfileType, p.Description, cfgJSON, p.IsDefault, p.IsBuiltin, p.IsActive, p.CreatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: profile_key %q already exists", apperrors.ErrValidation, p.ProfileKey)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &p, nil
}

// ListProfiles returns every active profile, matching
// retrieval_profile_service.list_profiles.
func (s *Store) ListProfiles(ctx context.Context) ([]RetrievalProfile, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, profile_key, name, profile_type, description, config, is_default, is_builtin, is_active, created_by
		 FROM retrieval_profiles WHERE is_active = TRUE ORDER BY is_builtin DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []RetrievalProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetProfile loads a single profile by id, matching
// retrieval_profile_service.get_profile_or_404.
func (s *Store) GetProfile(ctx context.Context, id string) (*RetrievalProfile, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, profile_key, name, profile_type, description, config, is_default, is_builtin, is_active, created_by
		 FROM retrieval_profiles WHERE id = $1`, id)
	return scanProfileRow(row)
}

// GetDefaultProfile returns the profile marked is_default, matching
// retrieval_profile_service.get_default_profile.
func (s *Store) GetDefaultProfile(ctx context.Context) (*RetrievalProfile, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, profile_key, name, profile_type, description, config, is_default, is_builtin, is_active, created_by
		 FROM retrieval_profiles WHERE is_default = TRUE LIMIT 1`)
	return scanProfileRow(row)
}

// UpdateProfile overwrites a profile's mutable fields, matching
// retrieval_profile_service.update_profile (built-in profiles' config may
// still be overridden at runtime but the row itself is never deleted).
func (s *Store) UpdateProfile(ctx context.Context, id string, name, description string, config map[string]interface{}) error {
	cfgJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal profile config: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`UPDATE retrieval_profiles SET name = $1, description = $2, config = $3 WHERE id = $4`,
		name, description, cfgJSON, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// DeleteProfile removes a non-builtin profile, matching
// retrieval_profile_service.delete_profile's builtin-protection rule: the
// statement itself skips rows with is_builtin set, so deleting a built-in
// profile is a silent no-op here.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM retrieval_profiles WHERE id = $1 AND is_builtin = FALSE`, id)
	return err
}

type profileRow interface {
	Scan(dest ...interface{}) error
}

func scanProfile(rows *sql.Rows) (*RetrievalProfile, error) {
	return scanProfileRow(rows)
}

func scanProfileRow(row profileRow) (*RetrievalProfile, error) {
	var p RetrievalProfile
	var cfgJSON []byte
	var createdBy sql.NullString
	if err := row.Scan(&p.ID, &p.ProfileKey, &p.Name, &p.ProfileType, &p.Description, &cfgJSON,
		&p.IsDefault, &p.IsBuiltin, &p.IsActive, &createdBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfgJSON, &p.Config); err != nil {
		return nil, fmt.Errorf("unmarshal profile config: %w", err)
	}
	if createdBy.Valid {
		p.CreatedBy = &createdBy.String
	}
	return &p, nil
}
