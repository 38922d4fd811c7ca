// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders an evidence corpus and its tallies into a
// disclaimer-annotated Markdown document plus a JSON metadata sidecar.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/evidence-engine/internal/aggregate"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Disclaimer is included verbatim in every report and its metadata.
const Disclaimer = "Safety disclaimer: This report is informational only. It is NOT clinical guidance. " +
	"All model-generated text or automated summaries are labelled as model-drafts and " +
	"require human review and verification of identifiers (DOI, NCT) and outcome measures."

// TimeLayout formats the render timestamp: UTC ISO-8601 with microseconds.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FallbackModel is recorded as draft_model when no model draft was supplied.
const FallbackModel = "deterministic-fallback"

// UnknownModel labels a draft whose producing model was not reported.
const UnknownModel = "unknown-model"

// fallbackTopics bounds the topic labels named in the fallback paragraph.
const fallbackTopics = 5

// Draft is model-written synthesis text and the model that produced it.
type Draft struct {
	Text  string
	Model string
}

// Renderer produces ReportDocuments. Now is the clock; it is read once per
// Render call.
type Renderer struct {
	Now func() time.Time
}

// New returns a Renderer using the wall clock.
func New() *Renderer {
	return &Renderer{Now: time.Now}
}

type provenanceRow struct {
	Source string
	Count  int
}

// Render builds the report text and metadata from one corpus snapshot.
// When draft is nil or blank, a deterministic paragraph built from the item
// count and top topics takes its place.
func (r *Renderer) Render(corpus types.EvidenceCorpus, tally types.TopicTally, sample []types.StructuredEvidence, tmpl Template, draft *Draft) (types.ReportDocument, error) {
	now := time.Now
	if r != nil && r.Now != nil {
		now = r.Now
	}
	generatedAt := now().UTC().Format(TimeLayout)

	top := tally.Top()
	provenance := aggregate.ProvenanceCounts(corpus)
	duplicates := aggregate.DuplicateIdentifiers(corpus)

	model := FallbackModel
	draftSection := struct{ Model, Text string }{Text: FallbackParagraph(corpus.Len(), tally)}
	if draft != nil && strings.TrimSpace(draft.Text) != "" {
		model = draft.Model
		if strings.TrimSpace(model) == "" {
			model = UnknownModel
		}
		draftSection.Model = model
		draftSection.Text = strings.TrimSpace(draft.Text)
	}

	renders := []struct {
		placeholder string
		tmpl        *template.Template
		data        any
	}{
		{PlaceholderExecutiveSummary, executiveSummaryTmpl, map[string]any{
			"GeneratedAt": generatedAt,
			"Disclaimer":  Disclaimer,
			"ItemCount":   corpus.Len(),
			"Top":         top,
		}},
		{PlaceholderMethods, methodsTmpl, map[string]any{
			"Queries": corpus.Meta.Queries,
		}},
		{PlaceholderResults, resultsTmpl, map[string]any{
			"ItemCount": corpus.Len(),
			"Top":       top,
			"Sample":    sample,
		}},
		{PlaceholderModelDraft, modelDraftTmpl, draftSection},
		{PlaceholderAppendix, appendixTmpl, map[string]any{
			"Provenance": provenanceRows(provenance),
			"Skipped":    corpus.Meta.SkippedRecords,
			"Duplicates": duplicates,
		}},
	}

	sections := make(map[string]string, len(renders))
	for _, s := range renders {
		var buf bytes.Buffer
		if err := s.tmpl.Execute(&buf, s.data); err != nil {
			return types.ReportDocument{}, fmt.Errorf("rendering %s section: %w", s.tmpl.Name(), err)
		}
		sections[s.placeholder] = buf.String()
	}

	text := tmpl.fill(sections)
	text += fmt.Sprintf("\n\n---\nReport generated by evidence-engine on %s (UTC).\n", generatedAt)

	return types.ReportDocument{
		Text: text,
		Meta: types.ReportMetadata{
			GeneratedAt:          generatedAt,
			ItemCount:            corpus.Len(),
			TopTopics:            tally.TopLabels(),
			ProvenanceCounts:     provenance,
			Disclaimer:           Disclaimer,
			DuplicateIdentifiers: duplicates,
			DraftModel:           model,
			RunID:                corpus.Meta.RunID,
		},
	}, nil
}

// FallbackParagraph is the synthesis text used when no model draft exists.
// It depends only on the item count and the tally.
func FallbackParagraph(itemCount int, tally types.TopicTally) string {
	top := tally.Top()
	if len(top) > fallbackTopics {
		top = top[:fallbackTopics]
	}
	names := make([]string, len(top))
	for i, e := range top {
		names[i] = e.Label
	}
	list := strings.Join(names, ", ")
	if list == "" {
		list = "no clear interventions"
	}
	return fmt.Sprintf("Automated (deterministic) summary: The collected evidence contains %d items. "+
		"Automatically extracted top topics include: %s. Outputs are draft-level and require human review "+
		"for interpretation, validation of identifiers, and to avoid clinical recommendations.", itemCount, list)
}

// provenanceRows orders counts by count, then source name.
func provenanceRows(counts map[string]int) []provenanceRow {
	rows := make([]provenanceRow, 0, len(counts))
	for src, n := range counts {
		rows = append(rows, provenanceRow{Source: src, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Source < rows[j].Source
	})
	return rows
}
