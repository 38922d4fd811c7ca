// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/extract"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func corpus(items ...types.StructuredEvidence) types.EvidenceCorpus {
	for i := range items {
		items[i].RecordIndex = i
	}
	return types.EvidenceCorpus{Items: items}
}

func TestAggregate_PlaceboScenario(t *testing.T) {
	c := corpus(
		types.StructuredEvidence{Source: types.SourceClinicalTrials, Identifier: "NCT1", Intervention: "Placebo", Title: "Placebo arm"},
		types.StructuredEvidence{Source: types.SourceClinicalTrials, Identifier: "NCT2", Title: "Longevity observational cohort"},
	)

	tally, sample := Aggregate(c, 10)

	assert.Equal(t, 1, tally.Count("Placebo"))
	assert.Equal(t, 1, tally.Count("Longevity observational cohort"))
	assert.Len(t, tally.Entries, 2)
	assert.Len(t, sample, 2)
}

func TestAggregate_CaseSensitiveKeys(t *testing.T) {
	// "Metformin" and "metformin" are separate buckets; this is intended.
	c := corpus(
		types.StructuredEvidence{Identifier: "a", Intervention: "Metformin"},
		types.StructuredEvidence{Identifier: "b", Intervention: "metformin"},
		types.StructuredEvidence{Identifier: "c", Intervention: "Metformin"},
	)
	tally, _ := Aggregate(c, 0)

	require.Len(t, tally.Entries, 2)
	assert.Equal(t, types.TopicEntry{Label: "Metformin", Count: 2, Identifiers: []string{"a", "c"}}, tally.Entries[0])
	assert.Equal(t, types.TopicEntry{Label: "metformin", Count: 1, Identifiers: []string{"b"}}, tally.Entries[1])
}

func TestAggregate_FirstSeenOrderAndTop(t *testing.T) {
	c := corpus(
		types.StructuredEvidence{Identifier: "1", Intervention: "Diet"},
		types.StructuredEvidence{Identifier: "2", Intervention: "Exercise"},
		types.StructuredEvidence{Identifier: "3", Intervention: "Exercise"},
		types.StructuredEvidence{Identifier: "4", Intervention: "Fasting"},
		types.StructuredEvidence{Identifier: "5", Intervention: "Diet"},
	)
	tally, _ := Aggregate(c, 2)

	labels := make([]string, len(tally.Entries))
	for i, e := range tally.Entries {
		labels[i] = e.Label
	}
	assert.Equal(t, []string{"Diet", "Exercise", "Fasting"}, labels)

	// Ties keep first-seen order.
	assert.Equal(t, []string{"Diet", "Exercise"}, tally.TopLabels())
}

func TestAggregate_SampleFirstFiveInCorpusOrder(t *testing.T) {
	var items []types.StructuredEvidence
	for i := range 8 {
		rank := types.StrengthUnspecified
		if i == 7 {
			rank = types.StrengthRandomized
		}
		items = append(items, types.StructuredEvidence{Identifier: string(rune('a' + i)), StrengthRank: rank})
	}
	_, sample := Aggregate(corpus(items...), 10)

	require.Len(t, sample, SampleSize)
	for i, s := range sample {
		assert.Equal(t, i, s.RecordIndex)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	c := corpus(
		types.StructuredEvidence{Identifier: "1", Title: "Senolytic therapy; dosing study; exercise arm"},
		types.StructuredEvidence{Intervention: "Rapamycin"},
		types.StructuredEvidence{Identifier: "3", Title: "Sleep and aging: a review"},
	)

	t1, s1 := Aggregate(c, 5)
	t2, s2 := Aggregate(c, 5)

	b1, err := json.Marshal(struct {
		T types.TopicTally
		S []types.StructuredEvidence
	}{t1, s1})
	require.NoError(t, err)
	b2, err := json.Marshal(struct {
		T types.TopicTally
		S []types.StructuredEvidence
	}{t2, s2})
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		item types.StructuredEvidence
		want []string
	}{
		{
			name: "intervention wins",
			item: types.StructuredEvidence{Intervention: "Acarbose", Title: "Metformin study"},
			want: []string{"Acarbose"},
		},
		{
			name: "keyword segments from title and snippet",
			item: types.StructuredEvidence{Title: "Senolytic therapy; dosing study; exercise arm", Snippet: "daily fasting window"},
			want: []string{"Senolytic therapy", "exercise arm", "daily fasting window"},
		},
		{
			name: "fallback first title segment",
			item: types.StructuredEvidence{Title: "Sleep and aging: a review"},
			want: []string{"Sleep and aging"},
		},
		{
			name: "fallback splits on dash",
			item: types.StructuredEvidence{Title: "Frailty index - a follow-up"},
			want: []string{"Frailty index"},
		},
		{
			name: "fallback capped at eight words",
			item: types.StructuredEvidence{Title: "one two three four five six seven eight nine ten"},
			want: []string{"one two three four five six seven eight"},
		},
		{
			name: "fallback uses snippet when title empty",
			item: types.StructuredEvidence{Snippet: "Sleep quality outcomes"},
			want: []string{"Sleep quality outcomes"},
		},
		{
			name: "nothing to key on",
			item: types.StructuredEvidence{},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keys(tt.item))
		})
	}
}

func TestKeys_NarrativeCap(t *testing.T) {
	it := types.StructuredEvidence{Title: "diet a; diet b; diet c; diet d; diet e; diet f; diet g"}
	assert.Len(t, Keys(it), maxNarrativeKeys)
}

func TestRef(t *testing.T) {
	assert.Equal(t, "NCT9", Ref(types.StructuredEvidence{Identifier: "NCT9"}))
	assert.Equal(t, "record:3", Ref(types.StructuredEvidence{RecordIndex: 3}))
}

func TestProvenanceAndDuplicates_MixedCorpus(t *testing.T) {
	raw := []types.RawRecord{
		{Source: types.SourceClinicalTrials, Payload: json.RawMessage(`{"NCTId":["NCT1"],"BriefTitle":["Metformin trial"],"InterventionName":["Metformin"]}`)},
		{Source: types.SourceClinicalTrials, Payload: json.RawMessage(`{"NCTId":["NCT2"],"BriefTitle":["Rapamycin trial"],"InterventionName":["Rapamycin"]}`)},
		{Source: types.SourcePubMed, Payload: json.RawMessage(`{"pmid":"11","title":"Trial","abstract":"A randomized trial."}`)},
		{Source: types.SourcePubMed, Payload: json.RawMessage(`{"pmid":"NCT1","title":"Walking","abstract":"supervised exercise for adults"}`)},
	}
	c := extract.Extract(raw, extract.Options{}).Corpus

	assert.Equal(t, map[string]int{"clinicaltrials": 2, "pubmed": 2}, ProvenanceCounts(c))

	_, sample := Aggregate(c, 10)
	require.Len(t, sample, 4)
	assert.Equal(t, types.SourceClinicalTrials, sample[0].Source)
	assert.Equal(t, types.SourceClinicalTrials, sample[1].Source)
	assert.Equal(t, types.SourcePubMed, sample[2].Source)
	assert.Equal(t, types.SourcePubMed, sample[3].Source)

	dups := DuplicateIdentifiers(c)
	require.Len(t, dups, 1)
	assert.Equal(t, "NCT1", dups[0].Identifier)
	assert.Equal(t, []int{0, 3}, dups[0].RecordIndexes)
}

func TestDuplicateIdentifiers_IgnoresEmpty(t *testing.T) {
	c := corpus(types.StructuredEvidence{}, types.StructuredEvidence{})
	assert.Empty(t, DuplicateIdentifiers(c))
}
