// Package index provides the embedding-based chunk store. It wraps an
// embedded chromem-go collection: append-only adds, cosine similarity
// search, delete by source document.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"sopgraph/internal/models"
)

// Config holds chunk index settings.
type Config struct {
	// Dir is the persistence directory. Empty means in-memory only.
	Dir        string
	Collection string
}

// Index is the chunk store. Writes are append-only: re-adding a chunk with
// the same text creates a new entry, never an update.
type Index struct {
	db  *chromem.DB
	col *chromem.Collection
	log *slog.Logger
}

// New opens (or creates) the chunk index. The embedding function is used
// both at add time and for query embedding; embeddings are computed once
// per chunk and immutable afterwards.
func New(cfg Config, embed chromem.EmbeddingFunc, log *slog.Logger) (*Index, error) {
	if log == nil {
		log = slog.Default()
	}

	var db *chromem.DB
	var err error
	if cfg.Dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Dir, false)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
	}

	name := cfg.Collection
	if name == "" {
		name = "sop_documents"
	}
	col, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}

	return &Index{db: db, col: col, log: log}, nil
}

// Add indexes the given chunks and returns the number added. Each chunk
// must carry a globally unique id; the caller builds ids from source,
// ordinal and insertion timestamp so re-ingesting a source appends rather
// than updates.
func (ix *Index) Add(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == "" {
			return 0, fmt.Errorf("chunk without id (source %s ordinal %d)", c.SourceDocID, c.OrdinalIndex)
		}
		meta := models.ChunkMeta{
			Source:      c.SourceDocID,
			Ordinal:     c.OrdinalIndex,
			FileType:    c.FileType,
			Section:     c.SectionLabel,
			StepIDs:     c.StepIDs,
			Steps:       c.Extracted.Steps,
			StepCount:   len(c.Extracted.Steps),
			SafetyCount: len(c.Extracted.SafetyNotes),
			SafetyNotes: c.Extracted.SafetyNotes,
		}
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: c.Embedding,
			Metadata:  encodeMeta(meta),
		})
	}

	if err := ix.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("add documents: %w", err)
	}

	ix.log.Info("chunks indexed", "added", len(docs), "total", ix.col.Count())
	return len(docs), nil
}

// Search returns the top-k chunks for the query, ordered by descending
// relevance score (cosine similarity, clamped to [0,1]). k is clamped to
// [0, count]; k <= 0 or an empty index yields an empty result, not an
// error. where optionally restricts by metadata (e.g. source).
func (ix *Index) Search(ctx context.Context, query string, k int, where map[string]string) ([]models.RetrievalResult, error) {
	total := ix.col.Count()
	if k > total {
		k = total
	}
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	results, err := ix.col.Query(ctx, query, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	out := make([]models.RetrievalResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.RetrievalResult{
			ChunkID:        r.ID,
			Text:           r.Content,
			Metadata:       decodeMeta(r.Metadata),
			RelevanceScore: clampScore(r.Similarity),
		})
	}
	return out, nil
}

// clampScore bounds a cosine similarity to [0,1]. Float error in the
// underlying dot product can push it slightly past either end.
func clampScore(similarity float32) float64 {
	score := float64(similarity)
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// DeleteBySource removes every chunk of a source document and returns the
// number deleted.
func (ix *Index) DeleteBySource(ctx context.Context, source string) (int, error) {
	before := ix.col.Count()
	if err := ix.col.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
		return 0, fmt.Errorf("delete by source %s: %w", source, err)
	}
	deleted := before - ix.col.Count()
	ix.log.Info("chunks deleted", "source", source, "deleted", deleted)
	return deleted, nil
}

// Count returns the number of indexed chunks.
func (ix *Index) Count() int {
	return ix.col.Count()
}

const listSep = "\x1f"

// encodeMeta flattens ChunkMeta into chromem's string metadata. The step
// id list and safety notes use a unit separator so note text survives.
func encodeMeta(m models.ChunkMeta) map[string]string {
	meta := map[string]string{
		"source":       m.Source,
		"ordinal":      strconv.Itoa(m.Ordinal),
		"step_count":   strconv.Itoa(m.StepCount),
		"safety_count": strconv.Itoa(m.SafetyCount),
	}
	if m.FileType != "" {
		meta["file_type"] = m.FileType
	}
	if m.Section != "" {
		meta["section"] = m.Section
	}
	if len(m.StepIDs) > 0 {
		meta["step_ids"] = strings.Join(m.StepIDs, listSep)
	}
	if len(m.Steps) > 0 {
		meta["steps"] = strings.Join(m.Steps, listSep)
	}
	if len(m.SafetyNotes) > 0 {
		meta["safety_notes"] = strings.Join(m.SafetyNotes, listSep)
	}
	return meta
}

func decodeMeta(meta map[string]string) models.ChunkMeta {
	m := models.ChunkMeta{
		Source:   meta["source"],
		FileType: meta["file_type"],
		Section:  meta["section"],
	}
	m.Ordinal, _ = strconv.Atoi(meta["ordinal"])
	m.StepCount, _ = strconv.Atoi(meta["step_count"])
	m.SafetyCount, _ = strconv.Atoi(meta["safety_count"])
	if v := meta["step_ids"]; v != "" {
		m.StepIDs = strings.Split(v, listSep)
	}
	if v := meta["steps"]; v != "" {
		m.Steps = strings.Split(v, listSep)
	}
	if v := meta["safety_notes"]; v != "" {
		m.SafetyNotes = strings.Split(v, listSep)
	}
	return m
}
