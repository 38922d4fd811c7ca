// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rivo/uniseg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func rec(src types.Source, payload string) types.RawRecord {
	return types.RawRecord{Source: src, Payload: json.RawMessage(payload)}
}

// mixedCorpus is two trials followed by two abstracts, as the collectors
// write them by default.
func mixedCorpus() []types.RawRecord {
	return []types.RawRecord{
		rec(types.SourceClinicalTrials, `{"NCTId":["NCT0001"],"BriefTitle":["Metformin in Aging Adults"],"InterventionName":["Metformin"],"Condition":["Aging","Frailty"],"OverallStatus":["Recruiting"],"EnrollmentCount":["120"]}`),
		rec(types.SourceClinicalTrials, `{"NCTId":["NCT0002"],"BriefTitle":["Rapamycin and Immune Function"],"InterventionName":["Rapamycin"],"OverallStatus":["Completed"]}`),
		rec(types.SourcePubMed, `{"pmid":"3001","title":"A randomized trial of nicotinamide riboside","abstract":"In this randomized, double-blind study of 60 participants, supplementation raised NAD levels."}`),
		rec(types.SourcePubMed, `{"pmid":"3002","title":"Physical activity in older adults","abstract":"A 12-week supervised exercise program. Primary outcome: gait speed."}`),
	}
}

func TestExtract_MixedCorpus(t *testing.T) {
	collected := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := Extract(mixedCorpus(), Options{RunID: "run-1", CollectedAt: collected, Queries: []string{"aging"}})

	require.Equal(t, 0, res.Skipped)
	items := res.Corpus.Items
	require.Len(t, items, 4)

	assert.Equal(t, "run-1", res.Corpus.Meta.RunID)
	assert.Equal(t, collected, res.Corpus.Meta.CollectedAt)
	assert.Equal(t, []string{"aging"}, res.Corpus.Meta.Queries)
	assert.Equal(t, map[types.Source]int{types.SourceClinicalTrials: 2, types.SourcePubMed: 2}, res.Corpus.Meta.SourceCounts)

	// Order follows input: trials before abstracts.
	assert.Equal(t, []string{"NCT0001", "NCT0002", "3001", "3002"}, identifiers(items))
	for i, it := range items {
		assert.Equal(t, i, it.RecordIndex)
	}

	assert.Equal(t, "Metformin", items[0].Intervention)
	assert.Equal(t, "Aging; Frailty", items[0].Population)
	assert.Equal(t, "Recruiting", items[0].Status)
	assert.Equal(t, 120, items[0].SampleSize)
	assert.Equal(t, "Metformin in Aging Adults", items[0].Snippet, "snippet falls back to title")

	assert.Equal(t, "Rapamycin", items[1].Intervention)

	assert.Equal(t, "Nicotinamide", items[2].Intervention)
	assert.Equal(t, types.StrengthRandomized, items[2].StrengthRank)
	assert.Equal(t, 60, items[2].SampleSize)

	assert.Equal(t, "Exercise", items[3].Intervention)
	assert.Equal(t, []string{"gait speed"}, items[3].OutcomeMeasures)
	assert.Equal(t, types.StrengthUnspecified, items[3].StrengthRank)
}

func TestExtract_PermutationInvariant(t *testing.T) {
	in := mixedCorpus()
	reversed := make([]types.RawRecord, len(in))
	for i, r := range in {
		reversed[len(in)-1-i] = r
	}

	a := Extract(in, Options{}).Corpus.Items
	b := Extract(reversed, Options{}).Corpus.Items

	// Content is a function of each record alone; only RecordIndex tracks
	// input position.
	strip := func(items []types.StructuredEvidence) map[string]types.StructuredEvidence {
		m := map[string]types.StructuredEvidence{}
		for _, it := range items {
			it.RecordIndex = 0
			m[it.Identifier] = it
		}
		return m
	}
	assert.Equal(t, strip(a), strip(b))
}

func TestExtract_SkipsMalformed(t *testing.T) {
	in := []types.RawRecord{
		rec(types.SourcePubMed, `{"pmid":"1","title":"Fasting study"}`),
		rec(types.SourcePubMed, `"just a string"`),
		rec(types.SourcePubMed, `[1,2,3]`),
		rec(types.SourcePubMed, `{not json`),
		rec(types.SourcePubMed, `{"pmid":"2"}`),
	}
	res := Extract(in, Options{})
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, 3, res.Corpus.Meta.SkippedRecords)
	require.Len(t, res.Corpus.Items, 2)
	assert.Equal(t, 0, res.Corpus.Items[0].RecordIndex)
	assert.Equal(t, 4, res.Corpus.Items[1].RecordIndex)
}

func TestExtract_EmptyInput(t *testing.T) {
	res := Extract(nil, Options{})
	assert.Equal(t, 0, res.Corpus.Len())
	assert.NotNil(t, res.Corpus.Items)
}

func TestRecord_MissingFields(t *testing.T) {
	ev, ok := Record(rec("", `{}`), 7)
	require.True(t, ok)
	assert.Equal(t, types.SourceOther, ev.Source)
	assert.Equal(t, "", ev.Identifier)
	assert.Equal(t, "", ev.Title)
	assert.Equal(t, "", ev.Intervention)
	assert.Equal(t, "", ev.Population)
	assert.Empty(t, ev.OutcomeMeasures)
	assert.Equal(t, "", ev.Snippet)
	assert.Equal(t, types.StrengthUnspecified, ev.StrengthRank)
	assert.Equal(t, 7, ev.RecordIndex)

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"identifier":null`)
}

func TestIntervention_Priority(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"explicit intervention field", `{"intervention":"Placebo","title":"Metformin trial"}`, "Placebo"},
		{"drug field", `{"drug":"Dasatinib","title":"Metformin trial"}`, "Dasatinib"},
		{"list field takes first", `{"InterventionName":["Acarbose","Placebo"]}`, "Acarbose"},
		{"empty explicit falls through", `{"intervention":"","title":"metformin and frailty"}`, "Metformin"},
		{"title keyword before snippet keyword", `{"title":"Rapamycin dosing","abstract":"metformin was also given"}`, "Rapamycin"},
		{"snippet keyword", `{"title":"Healthy aging study","abstract":"participants followed a diet"}`, "Diet"},
		{"earliest keyword in text", `{"title":"Exercise versus metformin"}`, "Exercise"},
		{"two-word phrase wins at same position", `{"title":"Caloric restriction in primates"}`, "Caloric restriction"},
		{"whole words only", `{"title":"Drugstore survey of dietary habits"}`, ""},
		{"no keyword", `{"title":"Longevity observational cohort"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Record(rec(types.SourcePubMed, tt.payload), 0)
			require.True(t, ok)
			assert.Equal(t, tt.want, ev.Intervention)
		})
	}
}

func TestStrength(t *testing.T) {
	tests := []struct {
		status, snippet string
		want            types.StrengthRank
	}{
		{"", "A randomized controlled trial", types.StrengthRandomized},
		{"", "A RANDOMISED trial", types.StrengthRandomized},
		{"", "Results of an RCT in mice", types.StrengthRandomized},
		{"", "Pooled analysis of RCTs in older adults", types.StrengthRandomized},
		{"", "an RCT-based design", types.StrengthRandomized},
		{"", "A prospective cohort", types.StrengthCohort},
		{"", "Observational follow-up", types.StrengthCohort},
		{"", "Case report of a patient", types.StrengthCaseReport},
		{"", "Nothing relevant", types.StrengthUnspecified},
		{"", "an rctangle is not a word", types.StrengthUnspecified},
		{"Observational", "randomized subgroup", types.StrengthRandomized},
		{"", "cohort with a case report appendix", types.StrengthCohort},
	}
	for _, tt := range tests {
		t.Run(tt.snippet, func(t *testing.T) {
			assert.Equal(t, tt.want, Strength(tt.status, tt.snippet))
		})
	}
}

func TestStrength_Ordering(t *testing.T) {
	rand := Strength("", "randomized")
	cohort := Strength("", "cohort")
	neither := Strength("", "plain text")
	assert.Greater(t, rand, cohort)
	assert.Greater(t, cohort, neither)
}

func TestTruncate(t *testing.T) {
	short := "short text"
	assert.Equal(t, short, Truncate(short, SnippetMax))

	exact := strings.Repeat("a", SnippetMax)
	assert.Equal(t, exact, Truncate(exact, SnippetMax))

	long := strings.Repeat("b", SnippetMax+50)
	got := Truncate(long, SnippetMax)
	assert.Equal(t, strings.Repeat("b", SnippetMax)+"...", got)
}

func TestTruncate_GraphemeSafe(t *testing.T) {
	// Family emoji is one grapheme made of several code points.
	family := "\U0001F468\u200d\U0001F469\u200d\U0001F467"
	s := strings.Repeat(family, 5)
	got := Truncate(s, 3)
	assert.Equal(t, strings.Repeat(family, 3)+"...", got)
	assert.Equal(t, 6, uniseg.GraphemeClusterCount(got))
}

func TestRecord_SnippetCollapsesWhitespace(t *testing.T) {
	ev, ok := Record(rec(types.SourcePubMed, `{"abstract":"line one\n\n   line   two\t"}`), 0)
	require.True(t, ok)
	assert.Equal(t, "line one line two", ev.Snippet)
}

func TestRecord_Outcomes(t *testing.T) {
	ev, ok := Record(rec(types.SourceClinicalTrials, `{"PrimaryOutcomeMeasure":["HbA1c"],"SecondaryOutcomeMeasure":["Grip strength","Gait"]}`), 0)
	require.True(t, ok)
	assert.Equal(t, []string{"HbA1c", "Grip strength", "Gait"}, ev.OutcomeMeasures)

	ev, ok = Record(rec(types.SourcePubMed, `{"outcomes":"mortality"}`), 0)
	require.True(t, ok)
	assert.Equal(t, []string{"mortality"}, ev.OutcomeMeasures)
}

func TestFindKeyword(t *testing.T) {
	kw, ok := FindKeyword("Effects of NAD+ precursors")
	require.True(t, ok)
	assert.Equal(t, "NAD", kw)

	kw, ok = FindKeyword("intermittent   fasting and sleep")
	require.True(t, ok)
	assert.Equal(t, "Intermittent fasting", kw)

	_, ok = FindKeyword("")
	assert.False(t, ok)

	assert.True(t, HasKeyword("a senolytic cocktail"))
	assert.False(t, HasKeyword("sleep hygiene"))
}

func identifiers(items []types.StructuredEvidence) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Identifier
	}
	return out
}
