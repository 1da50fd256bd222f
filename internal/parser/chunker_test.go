package parser

import (
	"strings"
	"testing"
)

func TestSplitShortDocumentIsSingleSegment(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "plain paragraph",
			content: "# Wheel Replacement\n\nLoosen the lug nuts before lifting.",
		},
		{
			name:    "headings only",
			content: "# Title\n\n## Section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ParseMarkdown(tt.content)
			segs := Split(doc, DefaultChunkConfig())
			if len(segs) != 1 {
				t.Fatalf("Split() = %d segments, want 1", len(segs))
			}
			if segs[0].Ordinal != 0 {
				t.Errorf("Ordinal = %d, want 0", segs[0].Ordinal)
			}
		})
	}
}

func TestSplitBySections(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Hydraulic Pump Service\n\n")
	b.WriteString("## Preparation\n\n")
	b.WriteString(strings.Repeat("Depressurize the system before opening any fitting. ", 8))
	b.WriteString("\n\n## Disassembly\n\n")
	b.WriteString(strings.Repeat("Remove the housing bolts in a cross pattern. ", 8))

	doc := ParseMarkdown(b.String())
	cfg := DefaultChunkConfig()
	cfg.Threshold = 100
	cfg.Overlap = 0

	segs := Split(doc, cfg)
	if len(segs) != 2 {
		t.Fatalf("Split() = %d segments, want 2", len(segs))
	}
	if !strings.Contains(segs[0].Section, "Preparation") {
		t.Errorf("segment 0 section = %q, want Preparation path", segs[0].Section)
	}
	if !strings.Contains(segs[1].Section, "Disassembly") {
		t.Errorf("segment 1 section = %q, want Disassembly path", segs[1].Section)
	}
	for i, seg := range segs {
		if seg.Ordinal != i {
			t.Errorf("segment %d ordinal = %d", i, seg.Ordinal)
		}
	}
}

func TestSplitRespectsMaxSize(t *testing.T) {
	sentence := "Tighten each bolt to the specified torque value. "
	doc := &MarkdownDoc{Content: strings.Repeat(sentence, 60)}

	cfg := DefaultChunkConfig()
	cfg.Threshold = 100
	cfg.Overlap = 0

	segs := Split(doc, cfg)
	if len(segs) < 2 {
		t.Fatalf("Split() = %d segments, want several", len(segs))
	}
	for i, seg := range segs {
		if len(seg.Text) > cfg.MaxSize+cfg.TargetSize {
			t.Errorf("segment %d has %d chars", i, len(seg.Text))
		}
	}
}

func TestSplitOverlapCarriesPreviousTail(t *testing.T) {
	long := strings.Repeat("Inspect the seal for wear and replace if scored. ", 8)
	content := "## A\n\n" + long + "\n\n## B\n\n" + long

	cfg := DefaultChunkConfig()
	cfg.Threshold = 100
	cfg.Overlap = 40

	segs := Split(ParseMarkdown(content), cfg)
	if len(segs) < 2 {
		t.Fatalf("Split() = %d segments, want at least 2", len(segs))
	}
	tail := segs[0].Text[len(segs[0].Text)-20:]
	if !strings.Contains(segs[1].Text, strings.TrimSpace(tail)) {
		t.Errorf("segment 1 does not start with the tail of segment 0")
	}
}

func TestSplitTextPlain(t *testing.T) {
	segs := SplitText("Check the oil level.\n\nTop up if below the mark.", DefaultChunkConfig())
	if len(segs) != 1 {
		t.Fatalf("SplitText() = %d segments, want 1", len(segs))
	}
	if segs[0].Section != "" {
		t.Errorf("plain text segment has section %q", segs[0].Section)
	}
}
