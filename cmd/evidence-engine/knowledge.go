// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/knowledge"
	"github.com/pdiddy/evidence-engine/internal/records"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the evidence archive (store, runs, duplicates, search, export)",
	Long: `Knowledge manages a local SQLite archive of evidence corpora from past
extraction runs. Archived runs can be searched, exported, and checked for
identifiers that were collected more than once.`,
}

// --- store subcommand ---

var knowledgeStoreCmd = &cobra.Command{
	Use:   "store [corpus.json]...",
	Short: "Archive evidence corpora",
	Long: `Store reads corpora written by extract and archives them under their run
IDs. Storing a run again replaces its items. With no arguments the extract
output is stored.`,
	RunE: runKnowledgeStore,
}

func runKnowledgeStore(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if len(args) == 0 {
		args = []string{cfg.Extract.Out}
	}

	store, err := knowledge.NewStore(cfg.Knowledge)
	if err != nil {
		return err
	}
	defer store.Close()

	w := cmd.OutOrStdout()
	total := 0
	for _, path := range args {
		corpus, err := records.ReadCorpus(path)
		if err != nil {
			return err
		}
		sum, err := store.SaveCorpus(ctx, corpus, w)
		if err != nil {
			return fmt.Errorf("storing %s: %w", path, err)
		}
		total += sum.Items
	}
	fmt.Fprintf(w, "\nstored: %d run(s), %d item(s)\n", len(args), total)
	return nil
}

// --- runs subcommand ---

var knowledgeRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := knowledge.NewStore(cfg.Knowledge)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Runs(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(w, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs archived.")
			return nil
		}
		fmt.Fprintf(w, "%-36s  %-20s  %6s  %s\n", "Run", "Collected", "Items", "Queries")
		fmt.Fprintln(w, strings.Repeat("-", 90))
		for _, r := range runs {
			collected := ""
			if !r.CollectedAt.IsZero() {
				collected = r.CollectedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%-36s  %-20s  %6d  %s\n", r.RunID, collected, r.Items, strings.Join(r.Queries, "; "))
		}
		return nil
	},
}

// --- duplicates subcommand ---

var knowledgeDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List identifiers archived more than once",
	Long: `Duplicates lists trial and article identifiers that occur more than once
in the archive, within one run or across runs. Nothing is merged; the list
is for review.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := knowledge.NewStore(cfg.Knowledge)
		if err != nil {
			return err
		}
		defer store.Close()

		dups, err := store.Duplicates(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if dups == nil {
				dups = []knowledge.ArchivedDuplicate{}
			}
			return writeJSON(w, dups)
		}
		if len(dups) == 0 {
			fmt.Fprintln(w, "No duplicate identifiers.")
			return nil
		}
		for _, d := range dups {
			locs := make([]string, len(d.Occurrences))
			for i, o := range d.Occurrences {
				locs[i] = fmt.Sprintf("%s#%d", o.RunID, o.RecordIndex)
			}
			fmt.Fprintf(w, "%-14s  %d  %s\n", d.Identifier, len(d.Occurrences), strings.Join(locs, ", "))
		}
		fmt.Fprintf(w, "\n%d duplicate identifier(s)\n", len(dups))
		return nil
	},
}

// --- search subcommand ---

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search archived evidence",
	Long: `Search matches archived evidence by substring (title, snippet,
intervention, population) and by filters. Results are ordered strongest
study design first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := searchOptsFromFlags(cmd, args)
		if err != nil {
			return err
		}
		if opts.IsEmpty() {
			return fmt.Errorf("query or filter required: provide a search query, --source, --min-strength, or --run")
		}

		store, err := knowledge.NewStore(cfg.Knowledge)
		if err != nil {
			return err
		}
		defer store.Close()

		hits, err := store.Search(cmd.Context(), opts)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return formatSearchOutput(cmd.OutOrStdout(), hits, asJSON)
	},
}

func formatSearchOutput(w io.Writer, hits []knowledge.Hit, asJSON bool) error {
	if asJSON {
		if hits == nil {
			hits = []knowledge.Hit{}
		}
		return writeJSON(w, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-14s  %-22s  %-20s  %s\n", "Rank", "Identifier", "Design", "Intervention", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for i, h := range hits {
		ident := h.Identifier
		if ident == "" {
			ident = "-"
		}
		fmt.Fprintf(w, "%-4d  %-14s  %-22s  %-20s  %s\n",
			i+1, clip(ident, 14), h.StrengthRank, clip(h.Intervention, 20), clip(h.Title, 44))
	}
	fmt.Fprintf(w, "\n%d results\n", len(hits))
	return nil
}

// --- export subcommand ---

var knowledgeExportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export archived evidence to YAML or JSON",
	Long: `Export writes archived evidence (all of it, or the subset matching the
same filters as search) to --out. A .json destination gets JSON, anything
else YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := searchOptsFromFlags(cmd, args)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")

		store, err := knowledge.NewStore(cfg.Knowledge)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Export(cmd.Context(), out, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", n, out)
		return nil
	},
}

// --- shared helpers ---

func searchOptsFromFlags(cmd *cobra.Command, args []string) (knowledge.SearchOptions, error) {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}
	source, _ := cmd.Flags().GetString("source")
	minStrength, _ := cmd.Flags().GetInt("min-strength")
	runID, _ := cmd.Flags().GetString("run")
	limit, _ := cmd.Flags().GetInt("limit")

	if minStrength < 0 || minStrength > int(types.StrengthRandomized) {
		return knowledge.SearchOptions{}, fmt.Errorf("--min-strength must be between 0 and %d", types.StrengthRandomized)
	}
	opts := knowledge.SearchOptions{
		Query:       queryText,
		MinStrength: types.StrengthRank(minStrength),
		RunID:       runID,
		MaxResults:  limit,
	}
	if source != "" {
		opts.Source = types.ParseSource(source)
	}
	return opts, nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "substring to search for")
	cmd.Flags().String("source", "", "filter by source (clinicaltrials, pubmed, other)")
	cmd.Flags().Int("min-strength", 0, "minimum strength rank (0-3)")
	cmd.Flags().String("run", "", "filter by run ID")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	knowledgeCmd.PersistentFlags().String("db", "", "archive database (default knowledge/evidence.db)")
	knowledgeCmd.PersistentFlags().Int("max-results", 0, "default result limit")
	bindFlag("knowledge.db_path", knowledgeCmd.PersistentFlags().Lookup("db"))
	bindFlag("knowledge.max_results", knowledgeCmd.PersistentFlags().Lookup("max-results"))

	knowledgeRunsCmd.Flags().Bool("json", false, "output as JSON")
	knowledgeDuplicatesCmd.Flags().Bool("json", false, "output as JSON")

	addFilterFlags(knowledgeSearchCmd)
	knowledgeSearchCmd.Flags().Int("limit", 0, "maximum number of results")
	knowledgeSearchCmd.Flags().Bool("json", false, "output results as JSON")

	addFilterFlags(knowledgeExportCmd)
	knowledgeExportCmd.Flags().String("out", "knowledge/export.yaml", "export destination (.yaml or .json)")

	knowledgeCmd.AddCommand(knowledgeStoreCmd)
	knowledgeCmd.AddCommand(knowledgeRunsCmd)
	knowledgeCmd.AddCommand(knowledgeDuplicatesCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
