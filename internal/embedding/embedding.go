// Package embedding implements C2: batched text to vector conversion with
// three backends and a deterministic hash fallback.
//
// Grounded on the teacher's llmclient/client.go for the remote HTTP shape
// (it already posts to an OpenAI-compatible host) and on spec.md §4.2 for
// the backend selection and normalization rules. The teacher has no hash or
// local backend — those are supplemented here since spec.md requires all
// three.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// Backend identifies which embedding strategy is active.
type Backend string

const (
	BackendHash   Backend = "hash"
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// RemoteCaller abstracts the HTTP embeddings call so this package does not
// import internal/llm directly; cmd/kbagent wires an llm.Client in through
// this interface.
type RemoteCaller interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Config mirrors the EMBEDDING_* environment variables from spec.md §6.
type Config struct {
	Backend      Backend
	Dimension    int
	ModelName    string
	LocalDevice  string
	BatchSize    int
	FallbackHash bool
}

// Service is the process-wide embedding facility. It owns the local-model
// singleton slot (mutex-guarded, at-most-one-load) and an LRU cache of
// already-computed vectors keyed by content hash, avoiding redundant calls
// to a remote or local backend for repeated chunk content (e.g. re-ingesting
// an unchanged file).
type Service struct {
	cfg    Config
	remote RemoteCaller
	logger *zap.Logger

	localMu     sync.Mutex
	localLoaded bool
	localKey    string

	cache *lru.Cache
}

// NewService constructs the embedding facility. cacheSize bounds the
// content-hash LRU (0 disables caching).
func NewService(cfg Config, remote RemoteCaller, logger *zap.Logger, cacheSize int) *Service {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	var cache *lru.Cache
	if cacheSize > 0 {
		cache, _ = lru.New(cacheSize)
	}
	return &Service{cfg: cfg, remote: remote, logger: logger, cache: cache}
}

// EmbedQuery embeds a single piece of text.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds a batch of texts, consulting the cache first and
// dispatching only cache misses to the configured backend.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if s.cache != nil {
			if v, ok := s.cache.Get(cacheKey(t)); ok {
				out[i] = v.([]float32)
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := s.embedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for n, idx := range missIdx {
		out[idx] = vectors[n]
		if s.cache != nil {
			s.cache.Add(cacheKey(missTexts[n]), vectors[n])
		}
	}
	return out, nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	switch s.cfg.Backend {
	case BackendHash:
		return s.hashBatch(texts), nil
	case BackendLocal:
		return s.localBatch(texts)
	case BackendRemote:
		vectors, err := s.remoteBatch(ctx, texts)
		if err != nil {
			if s.cfg.FallbackHash {
				if s.logger != nil {
					s.logger.Warn("embedding backend failed, falling back to hash", zap.Error(err))
				}
				return s.hashBatch(texts), nil
			}
			return nil, err
		}
		return vectors, nil
	default:
		return s.hashBatch(texts), nil
	}
}

func (s *Service) remoteBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("embedding: remote backend configured without a caller")
	}
	batchSize := s.cfg.BatchSize
	var result [][]float32
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := s.remote.Embed(ctx, s.cfg.ModelName, texts[start:end])
		if err != nil {
			return nil, err
		}
		for _, v := range vectors {
			result = append(result, NormalizeDimension(v, s.cfg.Dimension))
		}
	}
	return result, nil
}

// localBatch simulates the "local model loaded once into a process-wide
// cache" path: the mutex guarantees at-most-one concurrent load, matching
// spec.md §4.2 and §5's shared-state description, even though the encode
// step itself here is the deterministic hash algorithm (no actual model
// weights ship with this repo).
func (s *Service) localBatch(texts []string) ([][]float32, error) {
	key := s.cfg.ModelName + "|" + s.cfg.LocalDevice
	s.localMu.Lock()
	if !s.localLoaded || s.localKey != key {
		if s.logger != nil {
			s.logger.Info("loading local embedding model", zap.String("key", key))
		}
		s.localLoaded = true
		s.localKey = key
	}
	s.localMu.Unlock()
	return s.hashBatch(texts), nil
}

func (s *Service) hashBatch(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = HashEmbed(t, s.cfg.Dimension)
	}
	return out
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum)
}

// HashEmbed derives a deterministic pseudo-embedding from SHA256 output,
// used by the hash backend and as the fallback for the other two.
func HashEmbed(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 1536
	}
	normalized := strings.TrimSpace(text)
	out := make([]float32, dim)
	block := sha256.Sum256([]byte(normalized))
	counter := uint32(0)
	for i := 0; i < dim; i++ {
		byteIdx := i % len(block)
		if byteIdx == 0 && i != 0 {
			counter++
			seed := append(block[:], byte(counter))
			block = sha256.Sum256(seed)
		}
		raw := binary.BigEndian.Uint32(padTo4(block[byteIdx:]))
		// map to [-1, 1]
		out[i] = float32(raw)/float32(math.MaxUint32)*2 - 1
	}
	return NormalizeDimension(out, dim)
}

func padTo4(b []byte) []byte {
	if len(b) >= 4 {
		return b[:4]
	}
	padded := make([]byte, 4)
	copy(padded, b)
	return padded
}

// NormalizeDimension enforces the fixed-dimension invariant from spec.md
// §3/§8: truncate vectors longer than dim, zero-pad vectors shorter than
// dim. Idempotent and length-preserving once at dim.
func NormalizeDimension(v []float32, dim int) []float32 {
	if len(v) == dim {
		return v
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}
