package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"sopgraph/internal/extract"
	"sopgraph/internal/models"
)

var (
	numberedStepRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	letteredStepRe = regexp.MustCompile(`^\s*[a-z][.)]\s+(.+)$`)
	bulletStepRe   = regexp.MustCompile(`^\s*[-*•]\s+(.+)$`)

	safetyRe = regexp.MustCompile(`(?i)^\s*(?:[>*-]\s*)*(?:warning|caution|danger|safety|hazard|risk|important|critical|essential)[:\s]\s*(.+)$`)

	definitionRe = regexp.MustCompile(`^\s*\*{0,2}([A-Z][A-Za-z0-9 /-]{1,40})\*{0,2}\s*[:—]\s+(.{10,})$`)
)

// ProcessFile reads a document and turns it into chunk records. Markdown
// and plain text are split here; .json files are taken as pre-built
// records (the output of an external processor).
func ProcessFile(path string) ([]models.ChunkRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	source := filepath.Base(path)

	switch ext {
	case ".json":
		var records []models.ChunkRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode chunk records from %s: %w", path, err)
		}
		for i := range records {
			if records[i].Source == "" {
				records[i].Source = source
			}
		}
		return records, nil
	case ".md", ".markdown":
		doc := ParseMarkdown(string(data))
		return Process(source, "md", Split(doc, DefaultChunkConfig())), nil
	case ".txt", "":
		return Process(source, "txt", SplitText(string(data), DefaultChunkConfig())), nil
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .md, .txt or .json)", ext)
	}
}

// Process builds one chunk record per segment, extracting step lines,
// safety notes and lexicon entities from the segment text.
func Process(source, fileType string, segs []Segment) []models.ChunkRecord {
	records := make([]models.ChunkRecord, 0, len(segs))
	for _, seg := range segs {
		if seg.Text == "" {
			continue
		}
		records = append(records, models.ChunkRecord{
			Text:        seg.Text,
			ChunkID:     seg.Ordinal,
			Source:      source,
			FileType:    fileType,
			ChunkSize:   len(seg.Text),
			Section:     seg.Section,
			Steps:       ExtractSteps(seg.Text),
			SafetyNotes: ExtractSafetyNotes(seg.Text),
			Tools:       extract.Tools(seg.Text),
			Materials:   extract.Materials(seg.Text),
			Definitions: extractDefinitions(seg.Text),
		})
	}
	return records
}

// ExtractSteps returns the step-like lines of text: numbered, lettered
// or bulleted instructions, in order.
func ExtractSteps(text string) []string {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		for _, re := range []*regexp.Regexp{numberedStepRe, letteredStepRe, bulletStepRe} {
			if m := re.FindStringSubmatch(line); m != nil {
				steps = append(steps, strings.TrimSpace(m[1]))
				break
			}
		}
	}
	return steps
}

// ExtractSafetyNotes returns lines flagged with a safety keyword
// (warning, caution, danger and similar).
func ExtractSafetyNotes(text string) []string {
	var notes []string
	for _, line := range strings.Split(text, "\n") {
		if m := safetyRe.FindStringSubmatch(line); m != nil {
			notes = append(notes, strings.TrimSpace(m[1]))
		}
	}
	return notes
}

func extractDefinitions(text string) []models.Definition {
	var defs []models.Definition
	for _, line := range strings.Split(text, "\n") {
		if safetyRe.MatchString(line) {
			continue
		}
		if m := definitionRe.FindStringSubmatch(line); m != nil {
			defs = append(defs, models.Definition{
				Term:       strings.TrimSpace(m[1]),
				Definition: strings.TrimSpace(m[2]),
			})
		}
	}
	return defs
}
