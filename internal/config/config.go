// Package config holds runtime configuration loaded from the environment,
// optionally overlaid from a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM/embedding backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
)

// Config holds all configuration values.
type Config struct {
	// Chunk index
	VectorDir  string `yaml:"vector_dir"`
	Collection string `yaml:"collection"`

	// Graph backend. Empty URI selects the in-memory graph store.
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPass     string `yaml:"neo4j_pass"`
	Neo4jDatabase string `yaml:"neo4j_database"`

	// Session store. Empty addr selects the in-memory store.
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	// Embedding
	EmbedProvider  Provider `yaml:"embed_provider"`
	EmbedModel     string   `yaml:"embed_model"`
	EmbedDimension int      `yaml:"embed_dimension"`

	// Answer synthesis
	LLMProvider  Provider `yaml:"llm_provider"`
	LLMModel     string   `yaml:"llm_model"`
	OllamaHost   string   `yaml:"ollama_host"`
	OpenAIAPIKey string   `yaml:"openai_api_key"`
	GroqAPIKey   string   `yaml:"groq_api_key"`

	// Retrieval
	TopK         int           `yaml:"top_k"`
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables. If SOPGRAPH_CONFIG
// names a YAML file, its values overlay the env-derived ones.
func Load() (Config, error) {
	cfg := Config{
		VectorDir:  getEnv("SOPGRAPH_VECTOR_DIR", "./vector_db"),
		Collection: getEnv("SOPGRAPH_COLLECTION", "sop_documents"),

		Neo4jURI:      getEnv("NEO4J_URI", ""),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPass:     getEnv("NEO4J_PASS", ""),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", ""),

		RedisAddr: getEnv("SOPGRAPH_REDIS_ADDR", ""),
		RedisDB:   getEnvInt("SOPGRAPH_REDIS_DB", 0),

		EmbedProvider:  Provider(getEnv("SOPGRAPH_EMBED_PROVIDER", string(ProviderOllama))),
		EmbedModel:     getEnv("SOPGRAPH_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("SOPGRAPH_EMBED_DIMENSION", 384),

		LLMProvider:  Provider(getEnv("SOPGRAPH_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:     getEnv("SOPGRAPH_LLM_MODEL", "llama3.1"),
		OllamaHost:   getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GroqAPIKey:   getEnv("GROQ_API_KEY", ""),

		TopK:         getEnvInt("SOPGRAPH_TOP_K", 5),
		StageTimeout: getEnvDuration("SOPGRAPH_STAGE_TIMEOUT", 15*time.Second),

		LogFile:  getEnv("SOPGRAPH_LOG_FILE", "/tmp/sopgraph.log"),
		LogLevel: parseLogLevel(getEnv("SOPGRAPH_LOG_LEVEL", "INFO")),
	}

	if path := os.Getenv("SOPGRAPH_CONFIG"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

// overlayFile applies non-zero values from a YAML file on top of cfg.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	merge(cfg, file)
	return nil
}

func merge(dst *Config, src Config) {
	if src.VectorDir != "" {
		dst.VectorDir = src.VectorDir
	}
	if src.Collection != "" {
		dst.Collection = src.Collection
	}
	if src.Neo4jURI != "" {
		dst.Neo4jURI = src.Neo4jURI
	}
	if src.Neo4jUser != "" {
		dst.Neo4jUser = src.Neo4jUser
	}
	if src.Neo4jPass != "" {
		dst.Neo4jPass = src.Neo4jPass
	}
	if src.Neo4jDatabase != "" {
		dst.Neo4jDatabase = src.Neo4jDatabase
	}
	if src.RedisAddr != "" {
		dst.RedisAddr = src.RedisAddr
	}
	if src.RedisDB != 0 {
		dst.RedisDB = src.RedisDB
	}
	if src.EmbedProvider != "" {
		dst.EmbedProvider = src.EmbedProvider
	}
	if src.EmbedModel != "" {
		dst.EmbedModel = src.EmbedModel
	}
	if src.EmbedDimension != 0 {
		dst.EmbedDimension = src.EmbedDimension
	}
	if src.LLMProvider != "" {
		dst.LLMProvider = src.LLMProvider
	}
	if src.LLMModel != "" {
		dst.LLMModel = src.LLMModel
	}
	if src.OllamaHost != "" {
		dst.OllamaHost = src.OllamaHost
	}
	if src.OpenAIAPIKey != "" {
		dst.OpenAIAPIKey = src.OpenAIAPIKey
	}
	if src.GroqAPIKey != "" {
		dst.GroqAPIKey = src.GroqAPIKey
	}
	if src.TopK != 0 {
		dst.TopK = src.TopK
	}
	if src.StageTimeout != 0 {
		dst.StageTimeout = src.StageTimeout
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
