package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"sopgraph/internal/config"
	"sopgraph/internal/models"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// historyLimit caps how many conversation turns go into the prompt.
const historyLimit = 6

// Turn is one prior conversation message.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Answer is the synthesizer's output plus the sources it was grounded on.
type Answer struct {
	Text        string   `json:"text"`
	Sources     []string `json:"sources"`
	ContextUsed bool     `json:"context_used"`
	Model       string   `json:"model"`
}

// Model wraps a langchaingo chat model for answer synthesis.
type Model struct {
	llm       llms.Model
	modelName string
}

// NewModel creates a chat model based on configuration. Groq speaks the
// OpenAI wire protocol, so it reuses the openai client with a base URL.
func NewModel(cfg config.Config) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("Groq API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.GroqAPIKey),
			openai.WithModel(cfg.LLMModel),
			openai.WithBaseURL(groqBaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("create groq model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
	}, nil
}

// Generate generates text based on a prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response, nil
}

// Model returns the chat model name.
func (m *Model) Model() string {
	return m.modelName
}

// LLM returns the underlying langchaingo model, for callers that build
// their own prompts.
func (m *Model) LLM() llms.Model {
	return m.llm
}

const systemPrompt = `You are an expert SOP (Standard Operating Procedure) assistant. Your role is to:

1. Help users understand and follow SOP procedures step by step
2. Provide clear, safety-focused explanations based on the provided context
3. Answer questions about specific steps or procedures accurately
4. Maintain a professional but approachable tone
5. Always prioritize safety and accuracy over speed

Guidelines:
- Use ONLY the provided context to answer questions
- If asked about a step, explain it clearly with timing and safety considerations
- Highlight any safety warnings, cautions, or critical points
- If information is not in the context, clearly state "I don't have that information in the provided documents"
- Keep responses concise but comprehensive
- Use bullet points or numbered lists for multi-step explanations
- Include relevant document sources when citing information
- If multiple documents provide conflicting information, mention this discrepancy

Remember: Safety is paramount. Never guess or improvise safety-critical information.`

// SynthesizeAnswer turns the ranked context and recent conversation turns
// into a natural-language answer. Only the last few turns are sent.
func (m *Model) SynthesizeAnswer(ctx context.Context, query string, docs []models.RetrievalResult, history []Turn) (Answer, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
	}

	for _, turn := range trimHistory(history) {
		role := llms.ChatMessageTypeHuman
		if turn.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}

	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, buildUserMessage(query, docs)))

	response, err := m.llm.GenerateContent(ctx, messages)
	if err != nil {
		return Answer{}, fmt.Errorf("synthesize answer: %w", err)
	}
	if len(response.Choices) == 0 {
		return Answer{}, fmt.Errorf("no response choices")
	}

	return Answer{
		Text:        response.Choices[0].Content,
		Sources:     sources(docs),
		ContextUsed: len(docs) > 0,
		Model:       m.modelName,
	}, nil
}

func trimHistory(history []Turn) []Turn {
	if len(history) > historyLimit {
		return history[len(history)-historyLimit:]
	}
	return history
}

func buildUserMessage(query string, docs []models.RetrievalResult) string {
	return fmt.Sprintf(`Context from SOP documents:
%s

User Query: %s

Please provide a helpful and accurate response based on the SOP context above. If the query is about a specific step or procedure, explain it clearly and mention any safety considerations. If the information is not available in the context, please state that clearly.`, formatContext(docs), query)
}

func formatContext(docs []models.RetrievalResult) string {
	if len(docs) == 0 {
		return "No relevant context found."
	}
	var b strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&b, "[Document %d] Source: %s (Chunk %s, Relevance: %.2f)\n%s\n\n",
			i+1, doc.Metadata.Source, doc.ChunkID, doc.RelevanceScore, doc.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func sources(docs []models.RetrievalResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, doc := range docs {
		if doc.Metadata.Source == "" || seen[doc.Metadata.Source] {
			continue
		}
		seen[doc.Metadata.Source] = true
		out = append(out, doc.Metadata.Source)
	}
	return out
}
