package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kbagent/internal/store"
)

// entityAccum mirrors graph_service.rebuild_library_graph's entity_counter
// dict: one display name plus running frequency per normalized key.
type entityAccum struct {
	displayName string
	frequency   int
}

type relationKey struct {
	source, target, relationType string
}

type relationAccum struct {
	weight   int
	evidence []string
}

// Builder rebuilds a library's knowledge graph from its chunks, matching
// graph_service.rebuild_library_graph's delete-then-recount-then-insert
// sequence.
type Builder struct {
	store  *store.Store
	logger *zap.Logger
}

// NewBuilder constructs a graph Builder bound to a store and logger.
func NewBuilder(s *store.Store, logger *zap.Logger) *Builder {
	return &Builder{store: s, logger: logger}
}

// RebuildResult summarizes what the rebuild produced, feeding directly into
// an IngestionDetail record.
type RebuildResult struct {
	NodeCount  int
	EdgeCount  int
	ChunkCount int
}

// Rebuild clears the library's prior graph and recomputes it from every
// chunk currently stored for that library.
func (b *Builder) Rebuild(ctx context.Context, libraryID string) (*RebuildResult, error) {
	if err := b.store.RebuildLibraryGraph(ctx, libraryID); err != nil {
		return nil, fmt.Errorf("clear prior graph: %w", err)
	}

	chunks, err := b.store.ListChunksByLibrary(ctx, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list chunks for graph rebuild: %w", err)
	}

	entityCounter := make(map[string]*entityAccum)
	relationCounter := make(map[relationKey]*relationAccum)

	for _, chunk := range chunks {
		for _, displayName := range ExtractEntities(chunk.Content, 20) {
			norm := NormalizeEntity(displayName)
			if norm == "" {
				continue
			}
			if acc, ok := entityCounter[norm]; ok {
				acc.frequency++
			} else {
				entityCounter[norm] = &entityAccum{displayName: displayName, frequency: 1}
			}
		}

		for _, rel := range ExtractRelations(chunk.Content) {
			sourceNorm := NormalizeEntity(rel.Source)
			targetNorm := NormalizeEntity(rel.Target)
			if _, ok := entityCounter[sourceNorm]; !ok {
				continue
			}
			if _, ok := entityCounter[targetNorm]; !ok {
				continue
			}
			key := relationKey{sourceNorm, targetNorm, rel.RelationType}
			if acc, ok := relationCounter[key]; ok {
				acc.weight++
				if len(acc.evidence) < 3 {
					if !containsString(acc.evidence, rel.Evidence) {
						acc.evidence = append(acc.evidence, rel.Evidence)
					}
				}
			} else {
				relationCounter[key] = &relationAccum{weight: 1, evidence: []string{rel.Evidence}}
			}
		}
	}

	result := &RebuildResult{ChunkCount: len(chunks)}
	if len(entityCounter) == 0 {
		return result, nil
	}

	entityIDs := make(map[string]string, len(entityCounter))
	for norm, acc := range entityCounter {
		entity, err := b.store.InsertEntityWithFrequency(ctx, libraryID, norm, acc.displayName, entityType(norm), acc.frequency, nil)
		if err != nil {
			b.logger.Warn("insert graph entity failed", zap.String("entity", norm), zap.Error(err))
			continue
		}
		entityIDs[norm] = entity.ID
		result.NodeCount++
	}

	for key, acc := range relationCounter {
		sourceID, ok := entityIDs[key.source]
		if !ok {
			continue
		}
		targetID, ok := entityIDs[key.target]
		if !ok {
			continue
		}
		if err := b.store.InsertRelationWithWeight(ctx, libraryID, sourceID, targetID, key.relationType, acc.weight, acc.evidence); err != nil {
			b.logger.Warn("insert graph relation failed", zap.Error(err))
			continue
		}
		result.EdgeCount++
	}

	return result, nil
}

// entityType is a coarse guess used only as display metadata: CJK surfaces
// that pass the surname gate are tagged "person", everything else "concept".
func entityType(norm string) string {
	runes := []rune(norm)
	if len(runes) >= 2 && len(runes) <= 4 {
		if _, ok := commonSurnames[runes[0]]; ok {
			return "person"
		}
	}
	return "concept"
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
