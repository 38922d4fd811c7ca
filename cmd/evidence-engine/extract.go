// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/extract"
	"github.com/pdiddy/evidence-engine/internal/knowledge"
	"github.com/pdiddy/evidence-engine/internal/records"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract <input.json>...",
	Short: "Normalize collected records into a structured evidence corpus",
	Long: `Extract reads collector output (ClinicalTrials.gov studies, PubMed
articles, or generic record lists), normalizes every record into the
structured evidence schema, and writes the corpus as JSON (or YAML for a
.yaml destination).

Malformed records are skipped and counted; missing fields are never errors.
With --store the corpus is also archived in the knowledge database.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	def := types.ParseSource(cfg.Extract.DefaultSource)
	batch, err := records.LoadAll(ctx, args, def)
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run-id")
	if runID == "" {
		runID = uuid.NewString()
	}
	queries, _ := cmd.Flags().GetStringSlice("query")

	res := extract.Extract(batch.Records, extract.Options{
		RunID:       runID,
		CollectedAt: time.Now().UTC(),
		Queries:     append(queries, batch.Queries...),
	})
	if res.Skipped > 0 {
		log.Warn("skipped malformed records", zap.Int("skipped", res.Skipped))
	}

	if err := records.WriteCorpus(cfg.Extract.Out, res.Corpus); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "extracted %d items from %d records (%d skipped)\n",
		res.Corpus.Len(), len(batch.Records), res.Skipped)
	for _, src := range []types.Source{types.SourceClinicalTrials, types.SourcePubMed, types.SourceOther} {
		if n := res.Corpus.Meta.SourceCounts[src]; n > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", src, n)
		}
	}
	fmt.Fprintf(w, "wrote %s (run %s)\n", cfg.Extract.Out, runID)

	if store, _ := cmd.Flags().GetBool("store"); store {
		ks, err := knowledge.NewStore(cfg.Knowledge)
		if err != nil {
			return err
		}
		defer ks.Close()
		if _, err := ks.SaveCorpus(ctx, res.Corpus, w); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	extractCmd.Flags().String("out", "", "corpus destination (default outputs/structured_evidence.json)")
	extractCmd.Flags().String("source", "", "source tag for records without provenance (clinicaltrials, pubmed, other)")
	extractCmd.Flags().String("run-id", "", "run identifier (default: a new UUID)")
	extractCmd.Flags().StringSlice("query", nil, "search expression used by the collectors (repeatable)")
	extractCmd.Flags().Bool("store", false, "also archive the corpus in the knowledge database")

	bindFlag("extract.out", extractCmd.Flags().Lookup("out"))
	bindFlag("extract.default_source", extractCmd.Flags().Lookup("source"))

	rootCmd.AddCommand(extractCmd)
}
