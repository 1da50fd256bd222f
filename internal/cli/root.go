// Package cli provides the command-line interface for sopgraph.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sopgraph/internal/config"
	"sopgraph/internal/extract"
	"sopgraph/internal/graph"
	"sopgraph/internal/index"
	"sopgraph/internal/llm"
	"sopgraph/internal/metrics"
	"sopgraph/internal/navigator"
	"sopgraph/internal/retriever"
	"sopgraph/internal/service"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	sessionID string

	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	collector  = metrics.NewCollector()

	// Backends, wired in PersistentPreRunE
	graphStore graph.Store
	sessions   navigator.SessionStore
	redisStore *navigator.RedisSessionStore

	// Lazy-initialized LLM components
	embedder *llm.Embedder
	model    *llm.Model
	idx      *index.Index
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sopgraph",
	Short: "SOP retrieval engine with knowledge-graph filtering",
	Long: `Sopgraph answers questions about Standard Operating Procedures.

Documents are indexed as embedding chunks and as a procedure graph
(steps, tools, materials, safety notes). Queries run a semantic search
first and then narrow the results through the graph; an active procedure
session adds step-by-step navigation on top.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)

		ctx := context.Background()

		if cfg.Neo4jURI != "" {
			graphStore, err = graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
				URI:      cfg.Neo4jURI,
				User:     cfg.Neo4jUser,
				Password: cfg.Neo4jPass,
				Database: cfg.Neo4jDatabase,
			}, logger)
			if err != nil {
				return fmt.Errorf("connect to neo4j: %w", err)
			}
		} else {
			graphStore = graph.NewMemoryStore()
		}

		if cfg.RedisAddr != "" {
			redisStore, err = navigator.NewRedisSessionStore(ctx, cfg.RedisAddr, cfg.RedisDB)
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			sessions = redisStore
		} else {
			sessions = navigator.NewMemorySessionStore()
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if graphStore != nil {
			if err := graphStore.Close(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close graph store: %v\n", err)
			}
		}
		if redisStore != nil {
			if err := redisStore.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close redis: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// getIndex opens the chunk index, creating the embedder on first use.
func getIndex(ctx context.Context) (*index.Index, error) {
	if idx != nil {
		return idx, nil
	}
	var err error
	embedder, err = llm.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	idx, err = index.New(index.Config{
		Dir:        cfg.VectorDir,
		Collection: cfg.Collection,
	}, embedder.EmbeddingFunc(), logger)
	if err != nil {
		return nil, fmt.Errorf("open chunk index: %w", err)
	}
	return idx, nil
}

// getModel creates the chat model on first use.
func getModel() (*llm.Model, error) {
	if model != nil {
		return model, nil
	}
	var err error
	model, err = llm.NewModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	return model, nil
}

// getQueryService wires the full query path. withModel selects whether
// answers are synthesized or only retrieved.
func getQueryService(ctx context.Context, withModel bool, topK int) (*service.QueryService, error) {
	ix, err := getIndex(ctx)
	if err != nil {
		return nil, err
	}

	var synth service.Synthesizer
	var ner extract.NERBackend
	if withModel {
		m, err := getModel()
		if err != nil {
			return nil, err
		}
		synth = m
		ner = extract.NewLLMBackend(m.LLM())
	}

	if topK <= 0 {
		topK = cfg.TopK
	}
	r := retriever.New(ix, extract.New(ner, logger), graphStore, collector, logger, cfg.StageTimeout)
	nav := navigator.New(ix, sessions, logger)
	return service.NewQueryService(r, nav, synth, collector, logger, topK), nil
}

func getNavigator(ctx context.Context) (*navigator.Navigator, error) {
	ix, err := getIndex(ctx)
	if err != nil {
		return nil, err
	}
	return navigator.New(ix, sessions, logger), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "navigation session id")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(guideCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statsCmd)
}
