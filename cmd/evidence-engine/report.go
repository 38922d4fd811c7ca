// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/aggregate"
	"github.com/pdiddy/evidence-engine/internal/cache"
	"github.com/pdiddy/evidence-engine/internal/records"
	"github.com/pdiddy/evidence-engine/internal/report"
	"github.com/pdiddy/evidence-engine/internal/synth"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a provenance-annotated report from an evidence corpus",
	Long: `Report aggregates a structured evidence corpus by intervention and renders a
Markdown report plus a JSON metadata sidecar. Both files are replaced
atomically.

With --use-llm the configured backend writes a short synthesis paragraph.
When no real model answers (no credential, offline stub, or a failed call)
a deterministic paragraph is used instead.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	in, _ := cmd.Flags().GetString("in")
	if in == "" {
		in = cfg.Extract.Out
	}
	corpus, err := records.ReadCorpus(in)
	if err != nil {
		return err
	}

	tmpl, err := report.LoadTemplate(cfg.Report.Template)
	if err != nil {
		return err
	}

	tally, sample := aggregate.Aggregate(corpus, cfg.Report.TopN)

	var draft *report.Draft
	if cfg.Report.UseLLM {
		applyBackendFlags(cmd, &cfg.Backend)
		draft = synthesize(ctx, corpus.Len(), tally)
	}

	doc, err := report.New().Render(corpus, tally, sample, tmpl, draft)
	if err != nil {
		return err
	}
	if err := report.Write(doc, cfg.Report.Out, cfg.Report.Meta); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "report: %d items, %d topics, draft by %s\n",
		doc.Meta.ItemCount, len(tally.Entries), doc.Meta.DraftModel)
	if n := len(doc.Meta.DuplicateIdentifiers); n > 0 {
		fmt.Fprintf(w, "warning: %d identifier(s) appear more than once\n", n)
	}
	fmt.Fprintf(w, "wrote %s and %s\n", cfg.Report.Out, cfg.Report.Meta)
	return nil
}

// synthesize asks the backend for a draft. Any failure is logged and leaves
// the report on its deterministic paragraph.
func synthesize(ctx context.Context, items int, tally types.TopicTally) *report.Draft {
	runner, _, err := newRunner(cfg.Backend)
	if err != nil {
		log.Warn("synthesis disabled", zap.Error(err))
		return nil
	}

	c, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		log.Warn("synthesis cache unavailable, continuing without it", zap.Error(err))
		c = cache.NewNoOp()
	}
	defer c.Close()

	s := &synth.Synthesizer{
		Backend:   runner,
		Cache:     c,
		Model:     cfg.Backend.Model,
		MaxTokens: cfg.Report.MaxLLMTokens,
		Logger:    log,
	}
	draft, err := s.Draft(ctx, items, tally)
	if err != nil {
		log.Warn("synthesis failed, using deterministic paragraph", zap.Error(err))
		return nil
	}
	return draft
}

func init() {
	reportCmd.Flags().String("in", "", "corpus to report on (default: the extract output)")
	reportCmd.Flags().String("template", "", "Markdown template with section placeholders")
	reportCmd.Flags().String("out", "", "report destination (default outputs/final_report.md)")
	reportCmd.Flags().String("meta", "", "metadata sidecar destination (default outputs/final_report.json)")
	reportCmd.Flags().Int("top-n", 0, "number of topics to list (default 10)")
	reportCmd.Flags().Bool("use-llm", false, "ask the backend for a synthesis paragraph")
	reportCmd.Flags().Int("max-llm-tokens", 0, "token bound for the synthesis reply")
	reportCmd.Flags().String("model", "", "model for the synthesis call")

	bindFlag("report.template", reportCmd.Flags().Lookup("template"))
	bindFlag("report.out", reportCmd.Flags().Lookup("out"))
	bindFlag("report.meta", reportCmd.Flags().Lookup("meta"))
	bindFlag("report.top_n", reportCmd.Flags().Lookup("top-n"))
	bindFlag("report.use_llm", reportCmd.Flags().Lookup("use-llm"))
	bindFlag("report.max_llm_tokens", reportCmd.Flags().Lookup("max-llm-tokens"))

	rootCmd.AddCommand(reportCmd)
}
