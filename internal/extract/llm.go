package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LLMBackend implements NERBackend using a langchaingo model. The model
// is asked for a newline-separated list of domain entities; anything that
// does not look like a list line is discarded.
type LLMBackend struct {
	model llms.Model
}

// NewLLMBackend wraps a langchaingo model as a linguistic extractor.
func NewLLMBackend(model llms.Model) *LLMBackend {
	return &LLMBackend{model: model}
}

const nerPrompt = `Extract the domain entities (tools, materials, equipment, concepts, proper nouns) mentioned in the text below.
Return one entity per line, nothing else. Return nothing if there are none.

Text: %s`

// ExtractEntities asks the model for entities mentioned in the text.
func (b *LLMBackend) ExtractEntities(ctx context.Context, text string) ([]string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, b.model, fmt.Sprintf(nerPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("ner generate: %w", err)
	}

	var entities []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		entities = append(entities, line)
	}
	return entities, nil
}
