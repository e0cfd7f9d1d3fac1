package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aptmgmt/decisioncore/pkg/config"
	"github.com/aptmgmt/decisioncore/pkg/kb/loader"
)

// newIngestCmd validates a knowledge-base directory and reports what would
// be chunked, without touching the vector store or calling an embedding
// model. Useful for checking a new policy drop before running rebuild.
func newIngestCmd(loadConfig func() (config.Config, error), getLogger func() *slog.Logger) *cobra.Command {
	var kbPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "validate a knowledge-base directory and report chunk counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if kbPath == "" {
				kbPath = cfg.KnowledgeBasePath
			}

			loaderCfg := loader.Config{ChunkSizeChars: cfg.ChunkSizeChars, ChunkOverlapChars: cfg.ChunkOverlapChars}
			result, err := loader.LoadDir(kbPath, loaderCfg, getLogger())
			if err != nil {
				return fmt.Errorf("loading knowledge base %q: %w", kbPath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "documents: %d\nchunks: %d\nskipped (no front matter): %d\nfailed (missing metadata): %d\n",
				len(result.Documents), len(result.Chunks), len(result.Skipped), len(result.Failed))
			for path, failErr := range result.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s: %v\n", path, failErr)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&kbPath, "kb", "", "path to the knowledge-base directory (defaults to the config's knowledge_base_path)")

	return cmd
}
