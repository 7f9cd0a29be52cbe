package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"askdb/internal/agent"
	"askdb/internal/config"
	"askdb/internal/logging"
	"askdb/internal/oracle"
	"askdb/internal/retrieval"
	"askdb/internal/store"
)

var (
	cfgFile string
	verbose bool

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "askdb",
	Short: "askdb answers analytic questions over a Northwind-style database",
	Long: `askdb is a hybrid question-answering pipeline over a SQLite analytics
database and a markdown document corpus.

A question is routed to a strategy (rag, sql, or hybrid), supporting
passages are retrieved, constraints are extracted, SQL is generated and
normalized, executed with a bounded repair loop, and the result is
synthesized into a typed answer with an explanation, a confidence
score, and citations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Initialize(logger)

		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "askdb.yaml", "path to config file")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(schemaCmd)
}

func buildOracle(ctx context.Context) (oracle.Oracle, error) {
	switch cfg.LLM.Provider {
	case "rule":
		return oracle.NewRule(), nil
	case "gemini", "":
		return oracle.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// buildAgent assembles the pipeline from the loaded config. The store
// is returned alongside the agent so commands can query it directly;
// the returned cleanup closes it.
func buildAgent(ctx context.Context) (*agent.Agent, *store.Store, func(), error) {
	opts := []retrieval.Option{retrieval.WithTopK(cfg.Corpus.TopK)}
	if cfg.Corpus.CacheTTL != "" {
		ttl, err := time.ParseDuration(cfg.Corpus.CacheTTL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse corpus cache_ttl: %w", err)
		}
		opts = append(opts, retrieval.WithCacheTTL(ttl))
	}

	ret, err := retrieval.New(cfg.Corpus.Dir, opts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build retriever: %w", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	orc, err := buildOracle(ctx)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	a, err := agent.New(ctx, ret, st, orc, cfg.Corpus.TopK, cfg.Repair.MaxAttempts)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return a, st, func() { _ = st.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
