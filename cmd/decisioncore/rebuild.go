package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/aptmgmt/decisioncore/pkg/config"
	"github.com/aptmgmt/decisioncore/pkg/environment"
	"github.com/aptmgmt/decisioncore/pkg/kb/embed"
	"github.com/aptmgmt/decisioncore/pkg/kb/loader"
	"github.com/aptmgmt/decisioncore/pkg/kb/store"
	"github.com/aptmgmt/decisioncore/pkg/modelprovider"
)

// newRebuildCmd loads the knowledge base, embeds every chunk, and publishes
// a new generation to both the vector store and the in-memory keyword
// index, per spec.md §4.1's atomic write-new-then-swap rebuild semantics.
func newRebuildCmd(loadConfig func() (config.Config, error), getLogger func() *slog.Logger) *cobra.Command {
	var kbPath string
	var watch bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "rebuild the vector store and keyword index from the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := getLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if kbPath == "" {
				kbPath = cfg.KnowledgeBasePath
			}

			env := environment.NewDefaultProvider()
			llm, err := modelprovider.New(modelprovider.Config{
				Type:           cfg.ModelProvider,
				Model:          cfg.LLMModelID,
				EmbeddingModel: cfg.EmbeddingModelID,
			}, env, logger)
			if err != nil {
				return fmt.Errorf("building model provider: %w", err)
			}

			loaderCfg := loader.Config{ChunkSizeChars: cfg.ChunkSizeChars, ChunkOverlapChars: cfg.ChunkOverlapChars}
			loadResult, err := loader.LoadDir(kbPath, loaderCfg, logger)
			if err != nil {
				return fmt.Errorf("loading knowledge base %q: %w", kbPath, err)
			}

			embedder := embed.New(llm, logger)
			embedCtx, cancel := context.WithTimeout(ctx, cfg.EmbeddingTimeout())
			defer cancel()
			embedded, err := embedder.EmbedChunks(embedCtx, loadResult.Chunks)
			if err != nil {
				return fmt.Errorf("embedding chunks: %w", err)
			}

			vectors, err := store.Open(cfg.VectorStorePath, logger)
			if err != nil {
				return fmt.Errorf("opening vector store: %w", err)
			}
			defer vectors.Close()

			if err := vectors.Rebuild(ctx, embedded); err != nil {
				return fmt.Errorf("publishing new vector-store generation: %w", err)
			}

			keywords, err := store.NewKeywordIndex(logger)
			if err != nil {
				return fmt.Errorf("building keyword index: %w", err)
			}
			defer keywords.Close()
			if err := keywords.Rebuild(ctx, embedded); err != nil {
				return fmt.Errorf("publishing new keyword-index generation: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt: %d documents, %d chunks (%d skipped, %d failed)\n",
				len(loadResult.Documents), len(embedded), len(loadResult.Skipped), len(loadResult.Failed))

			if !watch {
				return nil
			}

			closer, err := vectors.Watch(ctx, kbPath, loaderCfg, embedder, 2*time.Second)
			if err != nil {
				return fmt.Errorf("starting knowledge-base watcher: %w", err)
			}
			defer closer.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %q for changes; incremental reindex on each change\n", kbPath)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&kbPath, "kb", "", "path to the knowledge-base directory (defaults to the config's knowledge_base_path)")
	cmd.Flags().BoolVar(&watch, "watch", false, "after rebuilding, watch the knowledge-base directory and incrementally reindex changed files")

	return cmd
}
