// Knowledge-graph persistence (C4), grounded on graph/edges.go's
// query-and-scan idiom, generalized from stat_edges/session scoping to
// library-scoped knowledge_entities/knowledge_relations.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UpsertEntity inserts a new entity or bumps the frequency/aliases of an
// existing one on (library_id, name) collision, matching
// graph_service.extract_entities_from_text's incremental-count behavior.
func (s *Store) UpsertEntity(ctx context.Context, libraryID, name, displayName, entityType string, aliases []string) (*KnowledgeEntity, error) {
	var e KnowledgeEntity
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, frequency FROM knowledge_entities WHERE library_id = $1 AND name = $2`,
		libraryID, name,
	).Scan(&e.ID, &e.Frequency)

	if err == nil {
		_, err = s.DB.ExecContext(ctx,
			`UPDATE knowledge_entities
			 SET frequency = frequency + 1,
			     aliases = ARRAY(SELECT DISTINCT unnest(aliases || $2::text[]))
			 WHERE id = $1`,
			e.ID, pq.Array(aliases))
		if err != nil {
			return nil, fmt.Errorf("bump entity frequency: %w", err)
		}
		return s.GetEntity(ctx, e.ID)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("lookup entity: %w", err)
	}

	e = KnowledgeEntity{
		ID: uuid.New().String(), LibraryID: libraryID, Name: name,
		DisplayName: displayName, EntityType: entityType, Frequency: 1, Aliases: aliases,
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO knowledge_entities (id, library_id, name, display_name, entity_type, frequency, aliases)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.LibraryID, e.Name, e.DisplayName, e.EntityType, e.Frequency, pq.Array(e.Aliases))
	if err != nil {
		return nil, fmt.Errorf("insert entity: %w", err)
	}
	return &e, nil
}

// GetEntity loads a single entity row.
func (s *Store) GetEntity(ctx context.Context, id string) (*KnowledgeEntity, error) {
	var e KnowledgeEntity
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, library_id, name, display_name, entity_type, frequency, aliases
		 FROM knowledge_entities WHERE id = $1`, id,
	).Scan(&e.ID, &e.LibraryID, &e.Name, &e.DisplayName, &e.EntityType, &e.Frequency, pq.Array(&e.Aliases))
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// FindEntityByName looks up an entity by its normalized name within a
// library, used by alias resolution during relation mining.
func (s *Store) FindEntityByName(ctx context.Context, libraryID, name string) (*KnowledgeEntity, error) {
	var e KnowledgeEntity
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, library_id, name, display_name, entity_type, frequency, aliases
		 FROM knowledge_entities WHERE library_id = $1 AND name = $2`, libraryID, name,
	).Scan(&e.ID, &e.LibraryID, &e.Name, &e.DisplayName, &e.EntityType, &e.Frequency, pq.Array(&e.Aliases))
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEntities returns every entity in a library, matching
// graph_service.get_library_graph_snapshot's node list.
func (s *Store) ListEntities(ctx context.Context, libraryID string) ([]KnowledgeEntity, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, library_id, name, display_name, entity_type, frequency, aliases
		 FROM knowledge_entities WHERE library_id = $1 ORDER BY frequency DESC`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeEntity
	for rows.Next() {
		var e KnowledgeEntity
		if err := rows.Scan(&e.ID, &e.LibraryID, &e.Name, &e.DisplayName, &e.EntityType, &e.Frequency, pq.Array(&e.Aliases)); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertRelation inserts a relation or bumps its weight/evidence on
// collision, matching graph_service.extract_relations_from_text's
// canonical-ordering + co-occurrence accumulation.
func (s *Store) UpsertRelation(ctx context.Context, libraryID, sourceID, targetID, relationType string, evidence []string) error {
	var existingID string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id FROM knowledge_relations
		 WHERE library_id = $1 AND source_entity_id = $2 AND target_entity_id = $3 AND relation_type = $4`,
		libraryID, sourceID, targetID, relationType,
	).Scan(&existingID)

	if err == nil {
		_, err = s.DB.ExecContext(ctx,
			`UPDATE knowledge_relations
			 SET weight = weight + 1,
			     evidence = ARRAY(SELECT DISTINCT unnest(evidence || $2::text[]))[1:5]
			 WHERE id = $1`,
			existingID, pq.Array(evidence))
		if err != nil {
			return fmt.Errorf("bump relation weight: %w", err)
		}
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("lookup relation: %w", err)
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO knowledge_relations (id, library_id, source_entity_id, target_entity_id, relation_type, weight, evidence)
		 VALUES ($1,$2,$3,$4,$5,1,$6)`,
		uuid.New().String(), libraryID, sourceID, targetID, relationType, pq.Array(evidence))
	if err != nil {
		return fmt.Errorf("insert relation: %w", err)
	}
	return nil
}

// ListRelations returns every relation in a library, matching
// graph_service.get_library_graph_snapshot's edge list.
func (s *Store) ListRelations(ctx context.Context, libraryID string) ([]KnowledgeRelation, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, library_id, source_entity_id, target_entity_id, relation_type, weight, evidence
		 FROM knowledge_relations WHERE library_id = $1 ORDER BY weight DESC`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeRelation
	for rows.Next() {
		var r KnowledgeRelation
		if err := rows.Scan(&r.ID, &r.LibraryID, &r.SourceEntityID, &r.TargetEntityID, &r.RelationType, &r.Weight, pq.Array(&r.Evidence)); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// NeighborsOf returns the entities directly connected to entityID in either
// direction, used by the graph query-expansion channel (C5).
func (s *Store) NeighborsOf(ctx context.Context, libraryID, entityID string) ([]KnowledgeEntity, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT e.id, e.library_id, e.name, e.display_name, e.entity_type, e.frequency, e.aliases
		 FROM knowledge_entities e
		 JOIN knowledge_relations r
		   ON (r.source_entity_id = e.id AND r.target_entity_id = $2)
		   OR (r.target_entity_id = e.id AND r.source_entity_id = $2)
		 WHERE e.library_id = $1`,
		libraryID, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("neighbors of entity: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeEntity
	for rows.Next() {
		var e KnowledgeEntity
		if err := rows.Scan(&e.ID, &e.LibraryID, &e.Name, &e.DisplayName, &e.EntityType, &e.Frequency, pq.Array(&e.Aliases)); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertEntityWithFrequency inserts an entity with a known final frequency,
// used by the graph rebuilder which tallies occurrences in memory (matching
// graph_service.rebuild_library_graph's entity_counter) before a single
// write per entity rather than one UPDATE per occurrence.
func (s *Store) InsertEntityWithFrequency(ctx context.Context, libraryID, name, displayName, entityType string, frequency int, aliases []string) (*KnowledgeEntity, error) {
	e := KnowledgeEntity{
		ID: uuid.New().String(), LibraryID: libraryID, Name: name,
		DisplayName: displayName, EntityType: entityType, Frequency: frequency, Aliases: aliases,
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO knowledge_entities (id, library_id, name, display_name, entity_type, frequency, aliases)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.LibraryID, e.Name, e.DisplayName, e.EntityType, e.Frequency, pq.Array(e.Aliases))
	if err != nil {
		return nil, fmt.Errorf("insert entity with frequency: %w", err)
	}
	return &e, nil
}

// InsertRelationWithWeight inserts a relation with a known final
// weight/evidence set, the rebuilder's counterpart to
// InsertEntityWithFrequency.
func (s *Store) InsertRelationWithWeight(ctx context.Context, libraryID, sourceID, targetID, relationType string, weight int, evidence []string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO knowledge_relations (id, library_id, source_entity_id, target_entity_id, relation_type, weight, evidence)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.New().String(), libraryID, sourceID, targetID, relationType, weight, pq.Array(evidence))
	if err != nil {
		return fmt.Errorf("insert relation with weight: %w", err)
	}
	return nil
}

// RebuildLibraryGraph deletes every entity and relation for a library,
// matching graph_service.rebuild_library_graph's delete-then-rebuild
// sequence (relations cascade via FK, so deleting entities is sufficient).
func (s *Store) RebuildLibraryGraph(ctx context.Context, libraryID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM knowledge_entities WHERE library_id = $1`, libraryID)
	if err != nil {
		return fmt.Errorf("clear library graph: %w", err)
	}
	return nil
}
