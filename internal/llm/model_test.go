package llm

import (
	"strings"
	"testing"

	"sopgraph/internal/models"
)

func TestFormatContext(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		got := formatContext(nil)
		if got != "No relevant context found." {
			t.Errorf("formatContext(nil) = %q", got)
		}
	})

	t.Run("numbered documents with source and relevance", func(t *testing.T) {
		docs := []models.RetrievalResult{
			{ChunkID: "manual_0_1", Text: "Loosen the lug nuts.", RelevanceScore: 0.91, Metadata: models.ChunkMeta{Source: "manual.pdf"}},
			{ChunkID: "manual_1_2", Text: "Jack up the vehicle.", RelevanceScore: 0.84, Metadata: models.ChunkMeta{Source: "manual.pdf"}},
		}
		got := formatContext(docs)
		for _, want := range []string{
			"[Document 1] Source: manual.pdf (Chunk manual_0_1, Relevance: 0.91)",
			"Loosen the lug nuts.",
			"[Document 2]",
			"Jack up the vehicle.",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("formatContext missing %q in:\n%s", want, got)
			}
		}
	})
}

func TestBuildUserMessage(t *testing.T) {
	msg := buildUserMessage("How do I remove the wheel?", []models.RetrievalResult{
		{ChunkID: "c1", Text: "Remove the wheel.", RelevanceScore: 0.8, Metadata: models.ChunkMeta{Source: "manual.pdf"}},
	})
	if !strings.Contains(msg, "User Query: How do I remove the wheel?") {
		t.Errorf("user message missing query:\n%s", msg)
	}
	if !strings.Contains(msg, "Context from SOP documents:") {
		t.Errorf("user message missing context header:\n%s", msg)
	}
}

func TestTrimHistory(t *testing.T) {
	long := make([]Turn, historyLimit+4)
	for i := range long {
		long[i] = Turn{Role: "user", Content: strings.Repeat("x", i+1)}
	}

	got := trimHistory(long)
	if len(got) != historyLimit {
		t.Fatalf("trimHistory() kept %d turns, want %d", len(got), historyLimit)
	}
	// The most recent turns survive.
	if got[len(got)-1].Content != long[len(long)-1].Content {
		t.Errorf("trimHistory dropped the newest turn")
	}

	short := []Turn{{Role: "user", Content: "hi"}}
	if len(trimHistory(short)) != 1 {
		t.Errorf("trimHistory modified a short history")
	}
}

func TestSources(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, nil},
		{"dedupes preserving order", []string{"a.pdf", "b.md", "a.pdf"}, []string{"a.pdf", "b.md"}},
		{"skips blank", []string{"", "a.pdf"}, []string{"a.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := make([]models.RetrievalResult, len(tt.in))
			for i, s := range tt.in {
				docs[i] = models.RetrievalResult{Metadata: models.ChunkMeta{Source: s}}
			}
			got := sources(docs)
			if len(got) != len(tt.want) {
				t.Fatalf("sources() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sources()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
