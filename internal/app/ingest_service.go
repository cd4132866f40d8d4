package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"research-chatbot/internal/metrics"
	"research-chatbot/internal/model"
	"research-chatbot/internal/repository"
	"research-chatbot/internal/retrieval"
)

const embedBatchSize = 16

// BatchEmbedder embeds many texts in one round trip, preserving input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// PreEmbeddedChunk is an ingestion input whose embedding was computed by the
// caller, bypassing the embedding API.
type PreEmbeddedChunk struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

type IngestSummary struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Chunks     int    `json:"chunks"`
	Replaced   bool   `json:"replaced"`
}

// IngestService owns the document pipeline: chunk, embed, persist, and swap
// the in-memory index. Re-ingesting a document id replaces its chunks rather
// than accumulating duplicates.
type IngestService struct {
	documents *repository.DocumentRepository
	chunks    *repository.ChunkRepository
	index     *retrieval.Index
	embedder  BatchEmbedder
	chunkSize int
	overlap   int
	log       *zap.Logger
}

func NewIngestService(
	documents *repository.DocumentRepository,
	chunks *repository.ChunkRepository,
	index *retrieval.Index,
	embedder BatchEmbedder,
	chunkSize, overlap int,
	log *zap.Logger,
) *IngestService {
	return &IngestService{
		documents: documents,
		chunks:    chunks,
		index:     index,
		embedder:  embedder,
		chunkSize: chunkSize,
		overlap:   overlap,
		log:       log,
	}
}

// IngestText splits the text into overlapping chunks, embeds them, and
// replaces the document's stored chunks. An empty documentID gets a fresh id.
func (s *IngestService) IngestText(ctx context.Context, documentID, title, sourceType, text string) (*IngestSummary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: document text is empty", ErrInvalidInput)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: document title is required", ErrInvalidInput)
	}

	spans := retrieval.ChunkText(text, s.chunkSize, s.overlap)
	// whitespace-only spans carry no evidence and cannot be embedded
	kept := spans[:0]
	for _, span := range spans {
		if strings.TrimSpace(span.Text) == "" {
			continue
		}
		kept = append(kept, span)
	}
	spans = kept
	if len(spans) == 0 {
		return nil, fmt.Errorf("%w: chunking produced no spans", ErrInvalidInput)
	}

	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = span.Text
	}
	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document chunks: %w", err)
	}

	chunks := make([]model.Chunk, len(spans))
	now := time.Now()
	for i, span := range spans {
		chunks[i] = model.Chunk{
			Ordinal:     span.Ordinal,
			Text:        span.Text,
			StartOffset: span.StartOffset,
			CharLength:  span.CharLength,
			CreatedAt:   now,
		}
		chunks[i].SetEmbedding(vectors[i])
	}

	return s.store(ctx, documentID, title, sourceType, chunks)
}

// IngestChunks stores caller-chunked, caller-embedded content. Every
// embedding must match the index dimension.
func (s *IngestService) IngestChunks(ctx context.Context, documentID, title, sourceType string, input []PreEmbeddedChunk) (*IngestSummary, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: document title is required", ErrInvalidInput)
	}
	if len(input) == 0 {
		return nil, fmt.Errorf("%w: no chunks provided", ErrInvalidInput)
	}

	chunks := make([]model.Chunk, len(input))
	now := time.Now()
	offset := 0
	for i, in := range input {
		if strings.TrimSpace(in.Text) == "" {
			return nil, fmt.Errorf("%w: chunk %d has empty text", ErrInvalidInput, i)
		}
		if len(in.Embedding) != s.index.Dimension() {
			return nil, fmt.Errorf("%w: chunk %d embedding has dimension %d, expected %d",
				ErrInvalidInput, i, len(in.Embedding), s.index.Dimension())
		}
		chunks[i] = model.Chunk{
			Ordinal:     i,
			Text:        in.Text,
			StartOffset: offset,
			CharLength:  len([]rune(in.Text)),
			CreatedAt:   now,
		}
		chunks[i].SetEmbedding(in.Embedding)
		offset += len([]rune(in.Text))
	}

	return s.store(ctx, documentID, title, sourceType, chunks)
}

func (s *IngestService) store(ctx context.Context, documentID, title, sourceType string, chunks []model.Chunk) (*IngestSummary, error) {
	replaced := false
	if documentID == "" {
		documentID = uuid.NewString()
	} else {
		existing, err := s.documents.GetByID(documentID)
		if err != nil {
			return nil, err
		}
		replaced = existing != nil
	}
	if sourceType == "" {
		sourceType = "text"
	}

	doc := &model.Document{
		ID:         documentID,
		Title:      title,
		SourceType: sourceType,
		CreatedAt:  time.Now(),
	}
	if err := s.documents.Upsert(doc); err != nil {
		return nil, err
	}

	for i := range chunks {
		chunks[i].DocumentID = documentID
	}
	if err := s.chunks.ReplaceForDocument(documentID, chunks); err != nil {
		return nil, err
	}

	if err := s.ReloadIndex(ctx); err != nil {
		return nil, fmt.Errorf("reload index after ingest: %w", err)
	}

	s.log.Info("document ingested",
		zap.String("document_id", documentID),
		zap.String("title", title),
		zap.Int("chunks", len(chunks)),
		zap.Bool("replaced", replaced),
	)
	return &IngestSummary{
		DocumentID: documentID,
		Title:      title,
		Chunks:     len(chunks),
		Replaced:   replaced,
	}, nil
}

func (s *IngestService) DeleteDocument(ctx context.Context, documentID string) error {
	doc, err := s.documents.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: document %s", ErrInvalidInput, documentID)
	}

	if err := s.chunks.DeleteByDocumentID(documentID); err != nil {
		return err
	}
	if err := s.documents.Delete(documentID); err != nil {
		return err
	}
	return s.ReloadIndex(ctx)
}

func (s *IngestService) ListDocuments(ctx context.Context) ([]model.Document, error) {
	return s.documents.List()
}

// ReloadIndex rebuilds the in-memory index from the chunk store in one
// atomic swap.
func (s *IngestService) ReloadIndex(ctx context.Context) error {
	chunks, err := s.chunks.ListAll()
	if err != nil {
		return err
	}
	docs, err := s.documents.List()
	if err != nil {
		return err
	}

	titles := make(map[string]string, len(docs))
	for _, d := range docs {
		titles[d.ID] = d.Title
	}

	if err := s.index.ReplaceAll(retrieval.EntriesFromChunks(chunks, titles)); err != nil {
		return fmt.Errorf("swap index contents: %w", err)
	}
	metrics.IndexSize.Set(float64(len(chunks)))
	return nil
}

func (s *IngestService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch starting at %d: %w", start, err)
		}
		vectors = append(vectors, batch...)
	}

	for i, vec := range vectors {
		if len(vec) != s.index.Dimension() {
			return nil, fmt.Errorf("chunk %d: embedding dimension %d does not match index dimension %d",
				i, len(vec), s.index.Dimension())
		}
	}
	return vectors, nil
}
