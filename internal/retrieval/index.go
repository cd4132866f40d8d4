package retrieval

import (
	"fmt"
	"sort"
	"sync"

	"research-chatbot/internal/model"
)

// Entry is one indexed chunk with its embedding and display metadata.
type Entry struct {
	ChunkID       uint
	DocumentID    string
	DocumentTitle string
	Text          string
	Vector        []float32
}

// ScoredChunk is one retrieval hit. Score is cosine similarity in [-1, 1].
type ScoredChunk struct {
	ChunkID       uint    `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// Result is an ordered, threshold-filtered, top-k-truncated sequence of hits.
type Result struct {
	Chunks []ScoredChunk `json:"chunks"`
}

func (r Result) Empty() bool { return len(r.Chunks) == 0 }

// Index is a brute-force in-memory vector index over the chunk store.
// Reads see a consistent snapshot; ReplaceAll swaps the whole entry slice
// under the write lock so in-flight searches never observe a half-updated
// index.
type Index struct {
	dimension int

	mu      sync.RWMutex
	entries []Entry
}

func NewIndex(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}
	return &Index{dimension: dimension}, nil
}

func (ix *Index) Dimension() int { return ix.dimension }

func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// ReplaceAll atomically replaces the index contents with the given entries.
func (ix *Index) ReplaceAll(entries []Entry) error {
	snapshot := make([]Entry, 0, len(entries))
	seen := make(map[uint]bool, len(entries))
	for _, e := range entries {
		if len(e.Vector) != ix.dimension {
			return fmt.Errorf("chunk %d: vector dimension mismatch: got %d, expected %d",
				e.ChunkID, len(e.Vector), ix.dimension)
		}
		if seen[e.ChunkID] {
			return fmt.Errorf("duplicate chunk id %d in index load", e.ChunkID)
		}
		seen[e.ChunkID] = true
		snapshot = append(snapshot, e)
	}

	ix.mu.Lock()
	ix.entries = snapshot
	ix.mu.Unlock()
	return nil
}

// Search scores every entry against the query vector, filters out entries
// below threshold, then truncates to k. Filtering happens before truncation
// so a low-scoring tail can never displace hits above the threshold.
func (ix *Index) Search(query []float32, k int, threshold float64) ([]ScoredChunk, error) {
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), ix.dimension)
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scored := make([]ScoredChunk, 0, len(ix.entries))
	for _, e := range ix.entries {
		score := CosineSimilarity(query, e.Vector)
		if score < threshold {
			continue
		}
		scored = append(scored, ScoredChunk{
			ChunkID:       e.ChunkID,
			DocumentID:    e.DocumentID,
			DocumentTitle: e.DocumentTitle,
			Text:          e.Text,
			Score:         score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// EntriesFromChunks converts stored chunks into index entries. titles maps
// document id to title for citation display.
func EntriesFromChunks(chunks []model.Chunk, titles map[string]string) []Entry {
	entries := make([]Entry, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		entries = append(entries, Entry{
			ChunkID:       c.ID,
			DocumentID:    c.DocumentID,
			DocumentTitle: titles[c.DocumentID],
			Text:          c.Text,
			Vector:        c.EmbeddingVector(),
		})
	}
	return entries
}
