// Package retriever orchestrates semantic search, entity extraction and
// graph lookups into a ranked answer context. The fallback chain always
// prefers returning something over returning nothing: graph-grounded
// evidence when available, raw semantic results otherwise.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sopgraph/internal/graph"
	"sopgraph/internal/metrics"
	"sopgraph/internal/models"
)

// SearchIndex is the chunk index surface the retriever depends on.
type SearchIndex interface {
	Search(ctx context.Context, query string, k int, where map[string]string) ([]models.RetrievalResult, error)
}

// EntityExtractor turns a query into candidate entity strings. It never
// fails; at worst it returns an empty set.
type EntityExtractor interface {
	Extract(ctx context.Context, query string) []string
}

// Retriever runs the answer-context chain.
type Retriever struct {
	index        SearchIndex
	extractor    EntityExtractor
	graph        graph.Store
	metrics      *metrics.Collector
	log          *slog.Logger
	stageTimeout time.Duration
}

// New creates a retriever. stageTimeout bounds each backend call; zero
// disables the bound.
func New(index SearchIndex, extractor EntityExtractor, store graph.Store, collector *metrics.Collector, log *slog.Logger, stageTimeout time.Duration) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Retriever{
		index:        index,
		extractor:    extractor,
		graph:        store,
		metrics:      collector,
		log:          log,
		stageTimeout: stageTimeout,
	}
}

// AnswerContext retrieves the ranked context for a query. The stages run
// strictly in order; each fallback only fires when the prior stage came up
// empty. Filtering never re-sorts: the surviving items keep the descending
// relevance order the semantic search produced.
func (r *Retriever) AnswerContext(ctx context.Context, query string, k int, where map[string]string) (models.ContextResult, error) {
	res := models.ContextResult{Stage: models.StageSemantic}

	semantic, err := r.searchSemantic(ctx, query, k, where)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// A timed-out stage yields an empty result; the chain continues.
			res.Degraded = append(res.Degraded, "semantic search timed out")
			semantic = nil
		} else {
			// Embedding is the primary ranking signal; without it there is
			// nothing to fall back to.
			return models.ContextResult{}, fmt.Errorf("semantic search: %w", err)
		}
	}
	res.Results = semantic

	res.Entities = r.extractEntities(ctx, query)
	if len(res.Entities) == 0 {
		r.record(res, len(semantic))
		return res, nil
	}

	stepIDs, matches := r.lookupGraph(ctx, res.Entities, &res)
	if len(stepIDs) == 0 {
		r.record(res, len(semantic))
		return res, nil
	}

	if kgFiltered := filterBySteps(semantic, stepIDs, matches); len(kgFiltered) > 0 {
		res.Results = kgFiltered
		res.Stage = models.StageKGFiltered
		r.record(res, len(semantic))
		return res, nil
	}

	if overlap := filterByOverlap(semantic, res.Entities); len(overlap) > 0 {
		res.Results = overlap
		res.Stage = models.StageSemanticOverlap
		r.record(res, len(semantic))
		return res, nil
	}

	// Original relevance ordering wins over "no results".
	res.Results = semantic
	res.Stage = models.StageSemanticFinal
	r.record(res, len(semantic))
	return res, nil
}

func (r *Retriever) searchSemantic(ctx context.Context, query string, k int, where map[string]string) ([]models.RetrievalResult, error) {
	ctx, cancel := r.stageContext(ctx)
	defer cancel()

	start := time.Now()
	results, err := r.index.Search(ctx, query, k, where)
	r.metrics.RecordTiming(metrics.OpSemanticSearch, time.Since(start))
	if err != nil {
		return nil, err
	}
	r.log.Debug("semantic search complete", "query_len", len(query), "results", len(results))
	return results, nil
}

func (r *Retriever) extractEntities(ctx context.Context, query string) []string {
	ctx, cancel := r.stageContext(ctx)
	defer cancel()

	start := time.Now()
	entities := r.extractor.Extract(ctx, query)
	r.metrics.RecordTiming(metrics.OpEntityExtract, time.Since(start))
	return entities
}

// lookupGraph resolves each entity to graph steps. A failed lookup for one
// entity counts as no match for that entity; the remaining entities still
// run. Only total unavailability marks the result degraded.
func (r *Retriever) lookupGraph(ctx context.Context, entities []string, res *models.ContextResult) (map[string]bool, []models.EntityMatch) {
	ctx, cancel := r.stageContext(ctx)
	defer cancel()

	stepIDs := make(map[string]bool)
	var matches []models.EntityMatch
	degraded := false

	start := time.Now()
	for _, entity := range entities {
		stepMatches, err := r.graph.FindStepsForEntity(ctx, entity)
		if err != nil {
			r.log.Warn("graph lookup failed, treating as no match", "entity", entity, "error", err)
			degraded = true
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			continue
		}
		if len(stepMatches) == 0 {
			continue
		}

		em := models.EntityMatch{Entity: entity, MatchKind: stepMatches[0].MatchKind}
		relSeen := make(map[string]bool)
		idSeen := make(map[string]bool)
		for _, m := range stepMatches {
			if !idSeen[m.Step.ID] {
				idSeen[m.Step.ID] = true
				em.StepIDs = append(em.StepIDs, m.Step.ID)
				stepIDs[m.Step.ID] = true
			}
			if !relSeen[m.RelType] {
				relSeen[m.RelType] = true
				em.RelTypes = append(em.RelTypes, m.RelType)
			}
		}
		matches = append(matches, em)
	}
	r.metrics.RecordTiming(metrics.OpGraphLookup, time.Since(start))

	if degraded {
		res.Degraded = append(res.Degraded, "graph backend unavailable")
	}
	r.log.Debug("graph lookup complete", "entities", len(entities), "matched_entities", len(matches), "step_ids", len(stepIDs))
	return stepIDs, matches
}

// filterBySteps keeps results whose chunk metadata references a relevant
// step, annotated with the entity-match summary.
func filterBySteps(semantic []models.RetrievalResult, stepIDs map[string]bool, matches []models.EntityMatch) []models.RetrievalResult {
	var out []models.RetrievalResult
	for _, item := range semantic {
		if !referencesAny(item.Metadata.StepIDs, stepIDs) {
			continue
		}
		item.KGContext = &models.KGContext{Enhanced: true, Matches: matches}
		out = append(out, item)
	}
	return out
}

func referencesAny(ids []string, set map[string]bool) bool {
	for _, id := range ids {
		if set[id] {
			return true
		}
	}
	return false
}

// filterByOverlap keeps results whose text mentions any extracted entity,
// annotated as a semantic (non-graph) match.
func filterByOverlap(semantic []models.RetrievalResult, entities []string) []models.RetrievalResult {
	lowered := make([]string, len(entities))
	for i, e := range entities {
		lowered[i] = strings.ToLower(e)
	}

	var out []models.RetrievalResult
	for _, item := range semantic {
		text := strings.ToLower(item.Text)
		for _, e := range lowered {
			if e != "" && strings.Contains(text, e) {
				item.KGContext = &models.KGContext{SemanticOnly: true}
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func (r *Retriever) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.stageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.stageTimeout)
}

func (r *Retriever) record(res models.ContextResult, semanticCount int) {
	r.metrics.RecordRetrieval(string(res.Stage), len(res.Entities), semanticCount, len(res.Results), len(res.Degraded) > 0)
	r.log.Info("answer context resolved",
		"stage", res.Stage,
		"entities", len(res.Entities),
		"semantic_results", semanticCount,
		"final_results", len(res.Results),
		"degraded", res.Degraded,
	)
}
