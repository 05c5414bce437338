// Graph handlers implement spec.md §6's graph snapshot/rebuild routes,
// exposing internal/graph.Builder and internal/store's entity/relation
// listings as the node/edge JSON payload the admin UI renders.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kbagent/internal/store"
)

type graphNode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	EntityType  string   `json:"entity_type"`
	Frequency   int      `json:"frequency"`
	Aliases     []string `json:"aliases"`
}

type graphEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	RelationType string `json:"relation_type"`
	Weight       int    `json:"weight"`
}

type graphSnapshot struct {
	Nodes []graphNode `json:"nodes"`
	Edges []graphEdge `json:"edges"`
}

func toGraphNode(e store.KnowledgeEntity) graphNode {
	return graphNode{ID: e.ID, Name: e.Name, DisplayName: e.DisplayName, EntityType: e.EntityType, Frequency: e.Frequency, Aliases: e.Aliases}
}

func toGraphEdge(r store.KnowledgeRelation) graphEdge {
	return graphEdge{ID: r.ID, Source: r.SourceEntityID, Target: r.TargetEntityID, RelationType: r.RelationType, Weight: r.Weight}
}

// handleGraphSnapshot implements GET /kb/libraries/{id}/graph?limit_nodes&limit_edges,
// gated by the same library read-access rule as handleGetLibrary (spec.md §3).
func (s *Server) handleGraphSnapshot(c *gin.Context) {
	libraryID := c.Param("id")
	if _, ok := s.loadLibraryWithAccess(c, libraryID, false); !ok {
		return
	}
	limitNodes := parseLimit(c.Query("limit_nodes"), 200)
	limitEdges := parseLimit(c.Query("limit_edges"), 400)

	entities, err := s.store.ListEntities(c.Request.Context(), libraryID)
	if err != nil {
		s.handleErr(c, err, "could not load graph nodes")
		return
	}
	relations, err := s.store.ListRelations(c.Request.Context(), libraryID)
	if err != nil {
		s.handleErr(c, err, "could not load graph edges")
		return
	}

	if len(entities) > limitNodes {
		entities = entities[:limitNodes]
	}
	if len(relations) > limitEdges {
		relations = relations[:limitEdges]
	}

	snapshot := graphSnapshot{Nodes: make([]graphNode, len(entities)), Edges: make([]graphEdge, len(relations))}
	for i, e := range entities {
		snapshot.Nodes[i] = toGraphNode(e)
	}
	for i, r := range relations {
		snapshot.Edges[i] = toGraphEdge(r)
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleGraphRebuild implements POST /kb/libraries/{id}/graph/rebuild: runs
// the rebuild synchronously (it is already a single bounded pass over the
// library's chunks, per spec.md §4.4) and returns the resulting counts.
// Rebuilding mutates the library's graph, so it is gated by write access
// (spec.md §3: shared libraries may only be mutated by admins).
func (s *Server) handleGraphRebuild(c *gin.Context) {
	if _, ok := s.loadLibraryWithAccess(c, c.Param("id"), true); !ok {
		return
	}
	result, err := s.builder.Rebuild(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleErr(c, err, "could not rebuild graph")
		return
	}
	c.JSON(http.StatusOK, gin.H{"node_count": result.NodeCount, "edge_count": result.EdgeCount})
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
