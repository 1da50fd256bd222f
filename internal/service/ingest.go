// Package service wires the chunk index, graph store, retriever and
// navigator into the ingestion and query operations the CLI exposes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sopgraph/internal/graph"
	"sopgraph/internal/index"
	"sopgraph/internal/metrics"
	"sopgraph/internal/models"
)

// IngestService turns processed chunk records into indexed chunks and a
// graph procedure.
type IngestService struct {
	index   *index.Index
	graph   graph.Store
	metrics *metrics.Collector
	log     *slog.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(idx *index.Index, store graph.Store, collector *metrics.Collector, log *slog.Logger) *IngestService {
	if log == nil {
		log = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &IngestService{index: idx, graph: store, metrics: collector, log: log}
}

// IngestResult summarizes one document ingestion.
type IngestResult struct {
	Source      string `json:"source"`
	ProcedureID string `json:"procedure_id"`
	ChunksAdded int    `json:"chunks_added"`
	Steps       int    `json:"steps"`
	// GraphStored is false when the graph backend rejected the procedure;
	// the chunks are still indexed and retrieval degrades to semantic-only.
	GraphStored bool `json:"graph_stored"`
}

// Ingest validates the chunk records, indexes them and merges one
// procedure (one step per chunk) into the graph. Chunk ids embed the
// insertion timestamp, so re-ingesting a source appends new entries
// instead of updating old ones.
func (s *IngestService) Ingest(ctx context.Context, source string, records []models.ChunkRecord) (IngestResult, error) {
	if source == "" {
		return IngestResult{}, fmt.Errorf("source required")
	}
	if len(records) == 0 {
		return IngestResult{}, fmt.Errorf("no chunk records for %s", source)
	}
	for i, rec := range records {
		if rec.Text == "" {
			return IngestResult{}, fmt.Errorf("chunk record %d of %s has empty text", i, source)
		}
	}

	start := time.Now()
	procID := uuid.NewString()
	now := time.Now()

	chunks := make([]models.Chunk, 0, len(records))
	steps := make([]models.Step, 0, len(records))
	for i, rec := range records {
		stepID := fmt.Sprintf("%s_step_%d", procID, i)
		chunkID := fmt.Sprintf("%s_%d_%d", source, rec.ChunkID, now.UnixNano())

		chunks = append(chunks, models.Chunk{
			ID:           chunkID,
			Text:         rec.Text,
			SourceDocID:  source,
			FileType:     rec.FileType,
			OrdinalIndex: rec.ChunkID,
			Size:         rec.ChunkSize,
			SectionLabel: rec.Section,
			Extracted: models.Extracted{
				Steps:       rec.Steps,
				Tools:       rec.Tools,
				Materials:   rec.Materials,
				SafetyNotes: rec.SafetyNotes,
				Concepts:    rec.Concepts,
				Definitions: rec.Definitions,
				Figures:     rec.Figures,
			},
			StepIDs: []string{stepID},
			AddedAt: now,
		})
		steps = append(steps, models.Step{
			ID:          stepID,
			Order:       i + 1,
			Description: rec.Text,
			ChunkID:     chunkID,
			Tools:       models.EntityRefs("tool", rec.Tools),
			Materials:   models.EntityRefs("material", rec.Materials),
			SafetyNotes: rec.SafetyNotes,
			Concepts:    models.EntityRefs("concept", rec.Concepts),
			Definitions: rec.Definitions,
		})
	}

	added, err := s.index.Add(ctx, chunks)
	if err != nil {
		return IngestResult{}, fmt.Errorf("index chunks for %s: %w", source, err)
	}

	result := IngestResult{
		Source:      source,
		ProcedureID: procID,
		ChunksAdded: added,
		Steps:       len(steps),
	}

	proc := models.Procedure{
		ID:          procID,
		Title:       titleFromSource(source),
		SourceDocID: source,
		CreatedAt:   now,
		Steps:       steps,
	}
	if err := s.graph.IngestProcedure(ctx, proc); err != nil {
		// Chunks are already searchable; losing the graph only costs the
		// KG filter stage.
		s.log.Error("graph ingest failed, procedure not stored", "source", source, "error", err)
	} else {
		result.GraphStored = true
	}

	s.metrics.RecordTiming(metrics.OpIngest, time.Since(start))
	s.log.Info("document ingested", "source", source, "chunks", added, "graph_stored", result.GraphStored)
	return result, nil
}

func titleFromSource(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DeleteSource removes a source document from both backends and returns
// the number of chunks deleted.
func (s *IngestService) DeleteSource(ctx context.Context, source string) (int, error) {
	deleted, err := s.index.DeleteBySource(ctx, source)
	if err != nil {
		return 0, err
	}
	if err := s.graph.DeleteBySource(ctx, source); err != nil {
		return deleted, fmt.Errorf("delete %s from graph: %w", source, err)
	}
	return deleted, nil
}
