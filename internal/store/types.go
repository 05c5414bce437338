package store

import "time"

// User mirrors spec.md §3's User entity, plus the password_hash field
// SPEC_FULL.md adds so /auth/login has something to check (spec.md treats
// auth as external but this repo implements a minimal version of it).
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string // "admin" | "user"
	Active       bool
	CreatedAt    time.Time
}

// Library mirrors spec.md §3's Library entity.
type Library struct {
	ID                  string
	Name                string
	Description         string
	LibraryType         string // general | novel_story | enterprise_docs | scientific_paper | humanities_paper
	OwnerType           string // private | shared
	OwnerID             *string
	Tags                []string
	RootPath            string
	RetrievalProfileID  *string
	ContextWindowTokens int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// KnowledgeFile mirrors spec.md §3's KnowledgeFile entity.
type KnowledgeFile struct {
	ID          string
	LibraryID   string
	Filename    string
	Filepath    string
	FileType    string // txt | md | csv | pdf
	ContentHash string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk mirrors spec.md §3's Chunk entity.
type Chunk struct {
	ID         string
	LibraryID  string
	FileID     string
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   map[string]string
	CreatedAt  time.Time
}

// KnowledgeEntity mirrors spec.md §3's KnowledgeEntity entity.
type KnowledgeEntity struct {
	ID          string
	LibraryID   string
	Name        string // normalized
	DisplayName string // raw surface
	EntityType  string
	Frequency   int
	Aliases     []string
}

// KnowledgeRelation mirrors spec.md §3's KnowledgeRelation entity.
type KnowledgeRelation struct {
	ID             string
	LibraryID      string
	SourceEntityID string
	TargetEntityID string
	RelationType   string // is_a | contains | depends_on | causes | co_occurs
	Weight         int
	Evidence       []string
}

// RetrievalProfile mirrors spec.md §3's RetrievalProfile entity.
type RetrievalProfile struct {
	ID          string
	ProfileKey  string
	Name        string
	ProfileType string
	Description string
	Config      map[string]interface{}
	IsDefault   bool
	IsBuiltin   bool
	IsActive    bool
	CreatedBy   *string
}

// ProviderConfig is SPEC_FULL.md's supplemented entity backing the §6
// /providers routes.
type ProviderConfig struct {
	ID                  string
	OwnerID             string
	Name                string
	ProviderKind        string
	BaseURL             string
	APIKeyEncrypted     string
	DefaultModel        string
	ContextWindowTokens int
}

// ChatSession mirrors spec.md §3's ChatSession entity.
type ChatSession struct {
	ID                 string
	UserID             string
	Title              string
	ProviderConfigID   *string
	LibraryID          *string
	RetrievalProfileID *string
	ShowCitations      bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Citation is the per-hit record attached to an assistant ChatMessage, per
// spec.md §4.9 "Citation record".
type Citation struct {
	LibraryID       string   `json:"library_id"`
	FileID          string   `json:"file_id"`
	FileName        string   `json:"file_name"`
	ChunkID         string   `json:"chunk_id"`
	Score           float64  `json:"score"`
	Snippet         string   `json:"snippet"`
	Source          string   `json:"source"`
	MatchedEntities []string `json:"matched_entities"`
}

// ChatMessage mirrors spec.md §3's ChatMessage entity.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      string // system | user | assistant
	Content   string
	Citations []Citation
	CreatedAt time.Time
}

// IngestionDetail is the narrow, typed replacement for the generic
// "detail" JSON blob spec.md §3 leaves unstructured — addressing §9's
// "JSON-as-data-model leakage" note for this one record type.
type IngestionDetail struct {
	DirectoryPath string `json:"directory_path,omitempty"`
	TotalFiles    int    `json:"total_files,omitempty"`
	IndexedFiles  int    `json:"indexed_files,omitempty"`
	GraphNodes    int    `json:"graph_nodes,omitempty"`
	GraphEdges    int    `json:"graph_edges,omitempty"`
	FileCount     int    `json:"file_count,omitempty"`
}

// IngestionTask mirrors spec.md §3's IngestionTask entity.
type IngestionTask struct {
	ID           string
	TaskType     string // sync_directory | upload | rebuild_index
	Status       string // queued | running | completed | failed
	LibraryID    string
	CreatedBy    *string
	Detail       IngestionDetail
	ErrorMessage string
	StartedAt    *time.Time
	FinishedAt   *time.Time
	CreatedAt    time.Time
}
