package parser

import (
	"strings"
	"unicode"
)

// Segment is one chunk of document text.
type Segment struct {
	Text    string
	Ordinal int
	Section string // heading path of the section this text came from
}

// ChunkConfig defines splitting parameters.
type ChunkConfig struct {
	// Threshold: only split if content exceeds this length
	Threshold int
	// TargetSize: ideal segment size
	TargetSize int
	// MinSize: smaller sections merge with their predecessor
	MinSize int
	// MaxSize: larger segments split at paragraph or sentence boundaries
	MaxSize int
	// Overlap: character overlap carried from the previous segment
	Overlap int
}

// DefaultChunkConfig mirrors the common 1000/200 splitter settings.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Threshold:  1500,
		TargetSize: 800,
		MinSize:    200,
		MaxSize:    1000,
		Overlap:    200,
	}
}

// Split cuts a document into segments. Section boundaries win over
// paragraph boundaries, paragraphs over sentences. Short documents come
// back as a single segment.
func Split(doc *MarkdownDoc, cfg ChunkConfig) []Segment {
	if len(doc.Content) <= cfg.Threshold {
		return []Segment{{Text: strings.TrimSpace(doc.Content)}}
	}
	if len(doc.Sections) > 0 {
		return splitSectionwise(doc.Sections, cfg)
	}
	return renumber(splitParagraphs(doc.Content, "", cfg))
}

// SplitText cuts plain (non-markdown) text into segments.
func SplitText(text string, cfg ChunkConfig) []Segment {
	if len(text) <= cfg.Threshold {
		return []Segment{{Text: strings.TrimSpace(text)}}
	}
	return renumber(splitParagraphs(text, "", cfg))
}

func splitSectionwise(sections []Section, cfg ChunkConfig) []Segment {
	var segs []Segment
	for _, sec := range sections {
		if sec.Content == "" {
			continue
		}
		if len(sec.Content) <= cfg.MaxSize {
			if len(sec.Content) >= cfg.MinSize || len(segs) == 0 {
				segs = append(segs, Segment{Text: sec.Content, Section: sec.Path})
			} else {
				// Tiny section, merge into the previous segment.
				segs[len(segs)-1].Text += "\n\n" + sec.Content
			}
			continue
		}
		segs = append(segs, splitParagraphs(sec.Content, sec.Path, cfg)...)
	}
	return renumber(applyOverlap(segs, cfg.Overlap))
}

func splitParagraphs(content, section string, cfg ChunkConfig) []Segment {
	var segs []Segment
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, Segment{Text: strings.TrimSpace(cur.String()), Section: section})
			cur.Reset()
		}
	}

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if cur.Len()+len(para) > cfg.MaxSize {
			flush()
		}

		if len(para) > cfg.MaxSize {
			for _, piece := range splitSentences(para, cfg.TargetSize) {
				segs = append(segs, Segment{Text: piece, Section: section})
			}
			continue
		}

		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return segs
}

// splitSentences packs sentences into pieces of roughly targetSize.
func splitSentences(text string, targetSize int) []string {
	var pieces []string
	var cur strings.Builder

	for _, sentence := range sentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if cur.Len()+len(sentence) > targetSize && cur.Len() > 0 {
			pieces = append(pieces, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(sentence)
	}
	if cur.Len() > 0 {
		pieces = append(pieces, strings.TrimSpace(cur.String()))
	}
	return pieces
}

func sentences(text string) []string {
	var out []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				// Skip abbreviations like "Dr."
				if i > 1 && unicode.IsUpper(runes[i-1]) {
					continue
				}
				out = append(out, cur.String())
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// applyOverlap prefixes each segment with the tail of its predecessor,
// cut at a word boundary.
func applyOverlap(segs []Segment, overlap int) []Segment {
	if overlap <= 0 || len(segs) <= 1 {
		return segs
	}
	out := make([]Segment, len(segs))
	copy(out, segs)
	for i := 1; i < len(out); i++ {
		prev := out[i-1].Text
		if len(prev) <= overlap {
			continue
		}
		tail := prev[len(prev)-overlap:]
		if spaceIdx := strings.LastIndex(tail, " "); spaceIdx > 0 {
			tail = tail[spaceIdx+1:]
		}
		out[i].Text = tail + " " + out[i].Text
	}
	return out
}

func renumber(segs []Segment) []Segment {
	for i := range segs {
		segs[i].Ordinal = i
	}
	return segs
}
