package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Open-Course-Factory/ocf-material-worker/pkg/logger"
	"github.com/Open-Course-Factory/ocf-material-worker/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config contient les paramètres de découpage et de recherche
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	FetchK       int
	MMRLambda    float64
	// MaxFallbackChunks borne la liste dégradée (0 = illimitée); les plus anciens sont évincés
	MaxFallbackChunks int
}

// DefaultConfig retourne la configuration par défaut
func DefaultConfig() Config {
	return Config{
		ChunkSize:         1000,
		ChunkOverlap:      150,
		TopK:              6,
		FetchK:            20,
		MMRLambda:         0.5,
		MaxFallbackChunks: 50000,
	}
}

const dedupePrefixLen = 128

// Store indexe les documents et retrouve les chunks pertinents.
// Toute défaillance du backend vectoriel se traduit par un avertissement.
type Store struct {
	index       VectorIndex
	cfg         Config
	initWarning string
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time

	mu       sync.RWMutex
	fallback []Chunk
}

// NewStore crée le store; index peut être nil (mode dégradé permanent)
func NewStore(index VectorIndex, cfg Config, initWarning string, m *metrics.Metrics, log *zap.Logger) (*Store, error) {
	if err := ValidateChunking(cfg.ChunkSize, cfg.ChunkOverlap); err != nil {
		return nil, err
	}
	return &Store{
		index:       index,
		cfg:         cfg,
		initWarning: initWarning,
		metrics:     m,
		logger:      logger.OrNop(log).Named("rag"),
		now:         time.Now,
	}, nil
}

// InitWarning retourne l'avertissement de démarrage, vide si aucun
func (s *Store) InitWarning() string {
	return s.initWarning
}

// NewDocumentID génère un identifiant de document doc-<hex>
func (s *Store) NewDocumentID() string {
	return "doc-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Index découpe le texte, conserve les chunks dans la liste dégradée puis
// tente de les indexer dans le backend. Retourne 0 sans erreur pour un texte vide.
func (s *Store) Index(ctx context.Context, userID, documentID, filename, fileType, text string) (int, []string, error) {
	var warnings []string

	parts, err := SplitText(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return 0, nil, err
	}
	if len(parts) == 0 {
		return 0, nil, nil
	}

	now := s.now().UTC()
	chunks := make([]Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = Chunk{
			ID:         ChunkID(documentID, i),
			UserID:     userID,
			DocumentID: documentID,
			Filename:   filename,
			FileType:   fileType,
			Index:      i,
			Text:       part,
			UploadedAt: now,
			Source:     ChunkSource,
		}
	}

	s.appendFallback(chunks)

	if s.index == nil {
		warnings = append(warnings, "RAG vectorstore unavailable; using in-memory fallback.")
	} else if err := s.index.Index(ctx, chunks); err != nil {
		s.logger.Warn("Store.Index: vector index failed", zap.String("document_id", documentID), zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("RAG indexing fallback to memory: %s", shortError(err)))
	}

	s.logger.Debug("Store.Index: document indexed",
		zap.String("document_id", documentID), zap.Int("chunks", len(chunks)))
	return len(chunks), warnings, nil
}

// Retrieve exécute une recherche MMR par requête, fusionne et déduplique.
// Se replie sur le classement par mots-clés si le backend est absent ou en erreur.
func (s *Store) Retrieve(ctx context.Context, userID, documentID string, queries []string) ([]Chunk, []string) {
	var warnings []string
	if len(queries) == 0 {
		return nil, nil
	}

	if s.index == nil {
		chunks := s.fallbackRetrieve(userID, documentID, queries)
		if len(chunks) == 0 {
			warnings = append(warnings, "RAG retrieval returned no chunks from fallback memory.")
		}
		return chunks, warnings
	}

	opts := SearchOptions{
		UserID:     userID,
		DocumentID: documentID,
		K:          s.cfg.TopK,
		FetchK:     s.cfg.FetchK,
		Lambda:     s.cfg.MMRLambda,
	}

	var collected []Chunk
	for _, query := range queries {
		found, err := s.index.Search(ctx, query, opts)
		if err != nil {
			s.logger.Warn("Store.Retrieve: vector search failed", zap.String("document_id", documentID), zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("RAG retrieval failed; fallback to memory: %s", shortError(err)))
			return s.fallbackRetrieve(userID, documentID, queries), warnings
		}
		collected = append(collected, found...)
	}

	deduped := dedupeChunks(scopeChunks(collected, userID, documentID))
	if len(deduped) > 0 {
		return deduped, warnings
	}

	warnings = append(warnings, "RAG retrieval returned no chunks.")
	if fallback := s.fallbackRetrieve(userID, documentID, queries); len(fallback) > 0 {
		return fallback, warnings
	}
	return nil, warnings
}

func (s *Store) appendFallback(chunks []Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fallback = append(s.fallback, chunks...)
	if limit := s.cfg.MaxFallbackChunks; limit > 0 && len(s.fallback) > limit {
		trimmed := make([]Chunk, limit)
		copy(trimmed, s.fallback[len(s.fallback)-limit:])
		s.fallback = trimmed
	}
}

// fallbackRetrieve classe les chunks du document par nombre de termes distincts
// présents; à score égal, le plus petit index de séquence passe devant.
func (s *Store) fallbackRetrieve(userID, documentID string, queries []string) []Chunk {
	s.mu.RLock()
	var candidates []Chunk
	for _, c := range s.fallback {
		if c.UserID == userID && c.DocumentID == documentID {
			candidates = append(candidates, c)
		}
	}
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return nil
	}
	s.metrics.RetrievalFallback()

	ranked := RankByKeywords(candidates, queries)
	limit := s.cfg.TopK
	if limit < 1 {
		limit = 1
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// RankByKeywords trie les chunks par score décroissant puis par index croissant
func RankByKeywords(chunks []Chunk, queries []string) []Chunk {
	terms := queryTerms(queries)

	type scored struct {
		score int
		chunk Chunk
	}
	items := make([]scored, len(chunks))
	for i, c := range chunks {
		text := strings.ToLower(c.Text)
		score := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		items[i] = scored{score: score, chunk: c}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].chunk.Index < items[j].chunk.Index
	})

	out := make([]Chunk, len(items))
	for i, it := range items {
		out[i] = it.chunk
	}
	return out
}

func queryTerms(queries []string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, term := range strings.Fields(strings.Join(queries, " ")) {
		if utf8.RuneCountInString(term) < 3 {
			continue
		}
		term = strings.ToLower(term)
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

// scopeChunks écarte tout chunk hors du (user, document) demandé
func scopeChunks(chunks []Chunk, userID, documentID string) []Chunk {
	out := chunks[:0:0]
	for _, c := range chunks {
		if c.UserID == userID && c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out
}

func dedupeChunks(chunks []Chunk) []Chunk {
	seen := make(map[string]struct{}, len(chunks))
	var out []Chunk
	for _, c := range chunks {
		key := c.ID
		if key == "" {
			key = prefixRunes(c.Text, dedupePrefixLen)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func prefixRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// shortError compacte un message d'erreur à 260 caractères
func shortError(err error) string {
	compact := NormalizeWhitespace(err.Error())
	if utf8.RuneCountInString(compact) <= 260 {
		return compact
	}
	return prefixRunes(compact, 257) + "..."
}
