package index

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sopgraph/internal/models"
)

// hashEmbedding builds a deterministic bag-of-words embedding so tests run
// without a model server. Shared vocabulary means shared direction, which
// is all similarity ranking needs.
func hashEmbedding(dim int) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dim)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			vec[h.Sum32()%uint32(dim)] += 1
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm == 0 {
			vec[0] = 1
			norm = 1
		}
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
		return vec, nil
	}
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New(Config{Collection: "test"}, hashEmbedding(64), nil)
	require.NoError(t, err)
	return ix
}

func chunk(id, source string, ordinal int, text string) models.Chunk {
	return models.Chunk{
		ID:           id,
		Text:         text,
		SourceDocID:  source,
		OrdinalIndex: ordinal,
	}
}

func TestAddAndSearch(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	c1 := chunk("manual_0_1", "manual.pdf", 0, "tighten the brake cable with a torque wrench")
	c1.StepIDs = []string{"manual_step_1", "manual_step_2"}
	c1.Extracted.SafetyNotes = []string{"Wear eye protection", "Disconnect power first"}

	c2 := chunk("manual_1_2", "manual.pdf", 1, "paint the frame and let it dry overnight")
	c3 := chunk("guide_0_3", "guide.md", 0, "inflate the tire to the recommended pressure")

	n, err := ix.Add(ctx, []models.Chunk{c1, c2, c3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, ix.Count())

	results, err := ix.Search(ctx, "brake cable torque wrench", 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "manual_0_1", results[0].ChunkID)
	assert.Greater(t, results[0].RelevanceScore, results[1].RelevanceScore)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.0)
		assert.LessOrEqual(t, r.RelevanceScore, 1.0)
	}

	meta := results[0].Metadata
	assert.Equal(t, "manual.pdf", meta.Source)
	assert.Equal(t, 0, meta.Ordinal)
	assert.Equal(t, []string{"manual_step_1", "manual_step_2"}, meta.StepIDs)
	assert.Equal(t, []string{"Wear eye protection", "Disconnect power first"}, meta.SafetyNotes)
	assert.Equal(t, 2, meta.SafetyCount)
}

func TestAddIsAppendOnly(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	// Same source, same ordinal, same text. Distinct ids mean distinct
	// entries: re-ingesting never updates in place.
	_, err := ix.Add(ctx, []models.Chunk{chunk("manual_0_100", "manual.pdf", 0, "replace the filter")})
	require.NoError(t, err)
	_, err = ix.Add(ctx, []models.Chunk{chunk("manual_0_200", "manual.pdf", 0, "replace the filter")})
	require.NoError(t, err)

	assert.Equal(t, 2, ix.Count())

	results, err := ix.Search(ctx, "replace the filter", 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestAddRejectsMissingID(t *testing.T) {
	ix := newTestIndex(t)
	_, err := ix.Add(context.Background(), []models.Chunk{chunk("", "manual.pdf", 0, "some text")})
	assert.Error(t, err)
}

func TestSearchClampsK(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	results, err := ix.Search(ctx, "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = ix.Add(ctx, []models.Chunk{
		chunk("a_0_1", "a.md", 0, "first chunk text"),
		chunk("a_1_2", "a.md", 1, "second chunk text"),
	})
	require.NoError(t, err)

	results, err = ix.Search(ctx, "chunk text", 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = ix.Search(ctx, "chunk text", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-0.25))
	assert.Equal(t, 1.0, clampScore(1.0000001))
	assert.InDelta(t, 0.73, clampScore(0.73), 1e-6)
}

func TestSearchWithSourceFilter(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	_, err := ix.Add(ctx, []models.Chunk{
		chunk("a_0_1", "a.md", 0, "calibrate the sensor array"),
		chunk("b_0_2", "b.md", 0, "calibrate the sensor array"),
	})
	require.NoError(t, err)

	results, err := ix.Search(ctx, "calibrate sensor", 2, map[string]string{"source": "b.md"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b_0_2", results[0].ChunkID)
}

func TestDeleteBySource(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	_, err := ix.Add(ctx, []models.Chunk{
		chunk("a_0_1", "a.md", 0, "alpha content"),
		chunk("a_1_2", "a.md", 1, "more alpha content"),
		chunk("b_0_3", "b.md", 0, "beta content"),
	})
	require.NoError(t, err)

	deleted, err := ix.DeleteBySource(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 1, ix.Count())

	results, err := ix.Search(ctx, "alpha content", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b_0_3", results[0].ChunkID)
}
