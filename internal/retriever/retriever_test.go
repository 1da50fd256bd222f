package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sopgraph/internal/graph"
	"sopgraph/internal/models"
)

type stubIndex struct {
	results []models.RetrievalResult
	err     error
}

func (s *stubIndex) Search(context.Context, string, int, map[string]string) ([]models.RetrievalResult, error) {
	return s.results, s.err
}

type stubExtractor struct {
	entities []string
}

func (s *stubExtractor) Extract(context.Context, string) []string {
	return s.entities
}

type failingStore struct{}

func (failingStore) IngestProcedure(context.Context, models.Procedure) error { return nil }
func (failingStore) FindStepsForEntity(context.Context, string) ([]graph.StepMatch, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) ListProcedures(context.Context) ([]models.Procedure, error) { return nil, nil }
func (failingStore) DeleteBySource(context.Context, string) error               { return nil }
func (failingStore) Stats(context.Context) (graph.Stats, error)                 { return graph.Stats{}, nil }
func (failingStore) Close(context.Context) error                                { return nil }

func semanticResults() []models.RetrievalResult {
	return []models.RetrievalResult{
		{ChunkID: "manual_0_1", Text: "Loosen the lug nuts before lifting.", RelevanceScore: 0.9,
			Metadata: models.ChunkMeta{Source: "manual.pdf", StepIDs: []string{"manual_step_1"}}},
		{ChunkID: "manual_1_2", Text: "Use the wrench to remove each nut.", RelevanceScore: 0.8,
			Metadata: models.ChunkMeta{Source: "manual.pdf", StepIDs: []string{"manual_step_2"}}},
		{ChunkID: "manual_2_3", Text: "Mount the spare and lower the vehicle.", RelevanceScore: 0.7,
			Metadata: models.ChunkMeta{Source: "manual.pdf"}},
	}
}

// wrenchGraph ingests a 3-step procedure where only step 2 requires the
// tool "Wrench".
func wrenchGraph(t *testing.T) *graph.MemoryStore {
	t.Helper()
	store := graph.NewMemoryStore()
	err := store.IngestProcedure(context.Background(), models.Procedure{
		ID:          "manual_proc",
		Title:       "Wheel Replacement",
		SourceDocID: "manual.pdf",
		Steps: []models.Step{
			{ID: "manual_step_1", Order: 1, Description: "Loosen the lug nuts", ChunkID: "manual_0_1"},
			{ID: "manual_step_2", Order: 2, Description: "Remove each nut", ChunkID: "manual_1_2",
				Tools: []models.EntityRef{{Name: "Wrench", Kind: "tool"}}},
			{ID: "manual_step_3", Order: 3, Description: "Mount the spare", ChunkID: "manual_2_3"},
		},
	})
	require.NoError(t, err)
	return store
}

func newRetriever(index SearchIndex, extractor EntityExtractor, store graph.Store) *Retriever {
	return New(index, extractor, store, nil, nil, time.Second)
}

func TestZeroEntitiesReturnsRawSemantic(t *testing.T) {
	semantic := semanticResults()
	r := newRetriever(&stubIndex{results: semantic}, &stubExtractor{}, wrenchGraph(t))

	res, err := r.AnswerContext(context.Background(), "how does this work", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StageSemantic, res.Stage)
	assert.Equal(t, semantic, res.Results)
	assert.Empty(t, res.Entities)
	for _, item := range res.Results {
		assert.Nil(t, item.KGContext)
	}
}

func TestNoGraphMatchReturnsRawSemantic(t *testing.T) {
	semantic := semanticResults()
	r := newRetriever(&stubIndex{results: semantic}, &stubExtractor{entities: []string{"oscilloscope"}}, wrenchGraph(t))

	res, err := r.AnswerContext(context.Background(), "oscilloscope settings", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StageSemantic, res.Stage)
	assert.Equal(t, semantic, res.Results)
	assert.Equal(t, []string{"oscilloscope"}, res.Entities)
}

func TestKGFilterRestrictsToMatchedStep(t *testing.T) {
	r := newRetriever(&stubIndex{results: semanticResults()}, &stubExtractor{entities: []string{"Wrench"}}, wrenchGraph(t))

	res, err := r.AnswerContext(context.Background(), "What tool do I need?", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StageKGFiltered, res.Stage)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "manual_1_2", res.Results[0].ChunkID)
	require.NotNil(t, res.Results[0].KGContext)
	assert.True(t, res.Results[0].KGContext.Enhanced)
	require.Len(t, res.Results[0].KGContext.Matches, 1)
	assert.Equal(t, "Wrench", res.Results[0].KGContext.Matches[0].Entity)
	assert.Equal(t, []string{"manual_step_2"}, res.Results[0].KGContext.Matches[0].StepIDs)
	assert.Equal(t, []string{graph.RelRequiresTool}, res.Results[0].KGContext.Matches[0].RelTypes)
}

func TestKGFilterPreservesRelevanceOrder(t *testing.T) {
	// Both surviving chunks reference matched steps; their original
	// descending-score order must survive the filter untouched.
	semantic := []models.RetrievalResult{
		{ChunkID: "c_high", RelevanceScore: 0.95, Metadata: models.ChunkMeta{StepIDs: []string{"manual_step_2"}}},
		{ChunkID: "c_mid", RelevanceScore: 0.60, Metadata: models.ChunkMeta{StepIDs: []string{"manual_step_4"}}},
		{ChunkID: "c_low", RelevanceScore: 0.40, Metadata: models.ChunkMeta{StepIDs: []string{"manual_step_2"}}},
	}
	r := newRetriever(&stubIndex{results: semantic}, &stubExtractor{entities: []string{"Wrench"}}, wrenchGraph(t))

	res, err := r.AnswerContext(context.Background(), "wrench", 5, nil)
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	assert.Equal(t, "c_high", res.Results[0].ChunkID)
	assert.Equal(t, "c_low", res.Results[1].ChunkID)
}

func TestSemanticOverlapFallback(t *testing.T) {
	// Graph matches step 2, but no semantic chunk references it. One chunk
	// text mentions "wrench", so the overlap pass keeps exactly that one.
	semantic := []models.RetrievalResult{
		{ChunkID: "other_0_1", Text: "General workshop overview.", RelevanceScore: 0.9,
			Metadata: models.ChunkMeta{Source: "other.md"}},
		{ChunkID: "other_1_2", Text: "Keep a torque wrench within reach.", RelevanceScore: 0.8,
			Metadata: models.ChunkMeta{Source: "other.md"}},
	}
	r := newRetriever(&stubIndex{results: semantic}, &stubExtractor{entities: []string{"Wrench"}}, wrenchGraph(t))

	res, err := r.AnswerContext(context.Background(), "wrench storage", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StageSemanticOverlap, res.Stage)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "other_1_2", res.Results[0].ChunkID)
	require.NotNil(t, res.Results[0].KGContext)
	assert.False(t, res.Results[0].KGContext.Enhanced)
	assert.True(t, res.Results[0].KGContext.SemanticOnly)
}

func TestFinalFallbackReturnsRawSemantic(t *testing.T) {
	// Graph matches, but neither step references nor text overlap survive.
	semantic := []models.RetrievalResult{
		{ChunkID: "other_0_1", Text: "General workshop overview.", RelevanceScore: 0.9,
			Metadata: models.ChunkMeta{Source: "other.md"}},
	}
	r := newRetriever(&stubIndex{results: semantic}, &stubExtractor{entities: []string{"Wrench"}}, wrenchGraph(t))

	res, err := r.AnswerContext(context.Background(), "unrelated", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StageSemanticFinal, res.Stage)
	assert.Equal(t, semantic, res.Results)
	assert.Nil(t, res.Results[0].KGContext)
}

func TestGraphUnavailableDegradesToSemantic(t *testing.T) {
	semantic := semanticResults()
	r := newRetriever(&stubIndex{results: semantic}, &stubExtractor{entities: []string{"Wrench"}}, failingStore{})

	res, err := r.AnswerContext(context.Background(), "wrench", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StageSemantic, res.Stage)
	assert.Equal(t, semantic, res.Results)
	assert.Contains(t, res.Degraded, "graph backend unavailable")
}

func TestSemanticSearchErrorIsFatal(t *testing.T) {
	r := newRetriever(&stubIndex{err: errors.New("embedding service down")}, &stubExtractor{}, graph.NewMemoryStore())

	_, err := r.AnswerContext(context.Background(), "anything", 5, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "semantic search")
}

func TestEmptySemanticWithEntitiesStaysEmpty(t *testing.T) {
	r := newRetriever(&stubIndex{}, &stubExtractor{entities: []string{"Wrench"}}, wrenchGraph(t))

	res, err := r.AnswerContext(context.Background(), "wrench", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, models.StageSemanticFinal, res.Stage)
}
