// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract normalizes raw trial and abstract records into
// StructuredEvidence. Extraction is heuristic and pure: it reads no clock,
// environment or files, and per-record defects never fail the batch.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rivo/uniseg"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// SnippetMax is the snippet length in grapheme clusters, before the ellipsis.
const SnippetMax = 200

const ellipsis = "..."

// Field lookup orders. The first key holding non-empty text wins.
var (
	identifierKeys   = []string{"NCTId", "nct_id", "pmid", "PMID", "identifier", "id"}
	titleKeys        = []string{"BriefTitle", "OfficialTitle", "title"}
	populationKeys   = []string{"Condition", "condition", "population"}
	statusKeys       = []string{"OverallStatus", "status"}
	snippetKeys      = []string{"snippet", "abstract", "BriefSummary", "summary", "DetailedDescription", "outcome_snippet"}
	interventionKeys = []string{"intervention", "drug", "InterventionName", "interventions"}
	sampleSizeKeys   = []string{"EnrollmentCount", "enrollment", "sample_size"}
)

// outcomeKeyGroups are tried in order; keys within a group are combined.
var outcomeKeyGroups = [][]string{
	{"PrimaryOutcomeMeasure", "SecondaryOutcomeMeasure"},
	{"outcome_measures"},
	{"outcomes"},
}

var (
	randomizedRe = regexp.MustCompile(`(?i)randomi[sz]ed|\brcts?\b`)
	cohortRe     = regexp.MustCompile(`(?i)cohort|observational`)
	caseReportRe = regexp.MustCompile(`(?i)case\s+report`)

	outcomeRe = regexp.MustCompile(`(?i)(?:primary|secondary)\s+(?:outcomes?|endpoints?)\s*:\s*([^.;\n]+)|outcome\s+measures?\s*:\s*([^.;\n]+)`)
	sampleRe  = regexp.MustCompile(`(?i)\b(\d{1,5})\s+(?:participants|subjects|people|patients|volunteers)\b`)
)

// Options carries the run-level metadata stamped on the corpus. The caller
// supplies the run identifier and timestamp so extraction stays pure.
type Options struct {
	RunID       string
	CollectedAt time.Time
	Queries     []string
}

// Result is the outcome of one extraction run.
type Result struct {
	Corpus types.EvidenceCorpus

	// Skipped counts records whose payload was not a JSON object.
	Skipped int
}

// Extract converts records into an EvidenceCorpus in input order.
func Extract(records []types.RawRecord, opts Options) Result {
	res := Result{
		Corpus: types.EvidenceCorpus{
			Meta: types.CorpusMeta{
				RunID:        opts.RunID,
				CollectedAt:  opts.CollectedAt.UTC(),
				Queries:      append([]string(nil), opts.Queries...),
				SourceCounts: map[types.Source]int{},
			},
			Items: []types.StructuredEvidence{},
		},
	}

	for i, r := range records {
		ev, ok := Record(r, i)
		if !ok {
			res.Skipped++
			continue
		}
		res.Corpus.Items = append(res.Corpus.Items, ev)
		res.Corpus.Meta.SourceCounts[ev.Source]++
	}
	res.Corpus.Meta.SkippedRecords = res.Skipped
	return res
}

// Record derives StructuredEvidence from one record. It reports false when
// the payload is not a mapping.
func Record(r types.RawRecord, index int) (types.StructuredEvidence, bool) {
	if !r.IsObject() {
		return types.StructuredEvidence{}, false
	}

	src := r.Source
	if src == "" {
		src = types.SourceOther
	}

	title := collapse(r.Lookup(titleKeys...).Text())
	body := collapse(r.Lookup(snippetKeys...).Text())
	if body == "" {
		body = title
	}
	status := r.Lookup(statusKeys...).Text()

	return types.StructuredEvidence{
		Source:          src,
		Identifier:      r.Lookup(identifierKeys...).Text(),
		Title:           title,
		Intervention:    Intervention(r, title, body),
		Population:      population(r),
		OutcomeMeasures: outcomes(r, title, body),
		Status:          status,
		Snippet:         Truncate(body, SnippetMax),
		SampleSize:      sampleSize(r, title, body),
		StrengthRank:    Strength(status, body),
		RecordIndex:     index,
	}, true
}

// Intervention applies the fixed priority: an explicit intervention field,
// then the first known keyword in the title, then in the snippet text,
// then the empty string.
func Intervention(r types.RawRecord, title, snippet string) string {
	if v := r.Lookup(interventionKeys...).Text(); v != "" {
		return v
	}
	if kw, ok := FindKeyword(title); ok {
		return kw
	}
	if kw, ok := FindKeyword(snippet); ok {
		return kw
	}
	return ""
}

// Strength scans status and snippet for design keywords. Randomized is
// checked first, then cohort or observational, then case report.
func Strength(status, snippet string) types.StrengthRank {
	text := status + " " + snippet
	switch {
	case randomizedRe.MatchString(text):
		return types.StrengthRandomized
	case cohortRe.MatchString(text):
		return types.StrengthCohort
	case caseReportRe.MatchString(text):
		return types.StrengthCaseReport
	default:
		return types.StrengthUnspecified
	}
}

// Truncate cuts s to at most limit grapheme clusters and appends "..." when
// anything was removed. Clusters are never split.
func Truncate(s string, limit int) string {
	g := uniseg.NewGraphemes(s)
	n := 0
	for g.Next() {
		n++
		if n > limit {
			from, _ := g.Positions()
			return strings.TrimRightFunc(s[:from], unicode.IsSpace) + ellipsis
		}
	}
	return s
}

func population(r types.RawRecord) string {
	for _, k := range populationKeys {
		if texts := r.Field(k).Texts(); len(texts) > 0 {
			return strings.Join(texts, "; ")
		}
	}
	return ""
}

func outcomes(r types.RawRecord, title, body string) []string {
	for _, group := range outcomeKeyGroups {
		var out []string
		for _, k := range group {
			out = append(out, r.Field(k).Texts()...)
		}
		if len(out) > 0 {
			return out
		}
	}

	out := []string{}
	seen := map[string]bool{}
	for _, m := range outcomeRe.FindAllStringSubmatch(title+"\n"+body, -1) {
		phrase := strings.TrimSpace(m[1] + m[2])
		if phrase == "" || seen[phrase] {
			continue
		}
		seen[phrase] = true
		out = append(out, phrase)
	}
	return out
}

func sampleSize(r types.RawRecord, title, body string) int {
	for _, k := range sampleSizeKeys {
		if n, ok := r.Field(k).Int(); ok && n > 0 {
			return n
		}
	}
	for _, text := range []string{title, body} {
		if m := sampleRe.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return 0
}

// collapse replaces whitespace runs with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
