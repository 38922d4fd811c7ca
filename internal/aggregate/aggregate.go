// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate computes topic and provenance tallies over an evidence
// corpus and picks the report sample.
//
// Topic keys are case-sensitive: "Metformin" and "metformin" are counted
// separately. Records without an intervention contribute keys taken from
// their title and snippet text.
package aggregate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/evidence-engine/internal/extract"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

const (
	// SampleSize is the number of leading corpus items included in a report.
	SampleSize = 5

	maxNarrativeKeys = 5
	maxFallbackWords = 8
)

var titleSplitRe = regexp.MustCompile(`;|:| - `)

// Aggregate builds the topic tally and selects the sample. The result is a
// pure function of the corpus.
func Aggregate(corpus types.EvidenceCorpus, topN int) (types.TopicTally, []types.StructuredEvidence) {
	tally := types.TopicTally{Entries: []types.TopicEntry{}, TopN: topN}
	pos := map[string]int{}

	for _, it := range corpus.Items {
		ref := Ref(it)
		for _, key := range Keys(it) {
			i, ok := pos[key]
			if !ok {
				i = len(tally.Entries)
				pos[key] = i
				tally.Entries = append(tally.Entries, types.TopicEntry{Label: key})
			}
			e := &tally.Entries[i]
			e.Count++
			if !contains(e.Identifiers, ref) {
				e.Identifiers = append(e.Identifiers, ref)
			}
		}
	}

	n := min(SampleSize, len(corpus.Items))
	sample := make([]types.StructuredEvidence, n)
	copy(sample, corpus.Items[:n])
	return tally, sample
}

// Keys returns the tally keys an item contributes.
func Keys(it types.StructuredEvidence) []string {
	if it.Intervention != "" {
		return []string{it.Intervention}
	}

	// extract.Intervention already claims any keyword in title or body, so
	// this branch only sees corpora written by other tools or edited by hand.
	var keys []string
	for _, text := range []string{it.Title, it.Snippet} {
		for _, seg := range strings.Split(text, ";") {
			seg = strings.TrimSpace(seg)
			if seg == "" || !extract.HasKeyword(seg) || contains(keys, seg) {
				continue
			}
			keys = append(keys, seg)
			if len(keys) == maxNarrativeKeys {
				return keys
			}
		}
	}
	if len(keys) > 0 {
		return keys
	}

	for _, text := range []string{it.Title, it.Snippet} {
		for _, seg := range titleSplitRe.Split(text, -1) {
			words := strings.Fields(seg)
			if len(words) == 0 {
				continue
			}
			if len(words) > maxFallbackWords {
				words = words[:maxFallbackWords]
			}
			return []string{strings.Join(words, " ")}
		}
	}
	return nil
}

// Ref is the traceability reference for an item: its identifier, or
// "record:<index>" when it has none.
func Ref(it types.StructuredEvidence) string {
	if it.Identifier != "" {
		return it.Identifier
	}
	return fmt.Sprintf("record:%d", it.RecordIndex)
}

// ProvenanceCounts counts items per source tag.
func ProvenanceCounts(corpus types.EvidenceCorpus) map[string]int {
	counts := map[string]int{}
	for _, it := range corpus.Items {
		counts[string(it.Source)]++
	}
	return counts
}

// DuplicateIdentifiers lists identifiers carried by more than one item, in
// first-seen order. Items are reported, not merged.
func DuplicateIdentifiers(corpus types.EvidenceCorpus) []types.Duplicate {
	idx := map[string][]int{}
	var order []string
	for _, it := range corpus.Items {
		if it.Identifier == "" {
			continue
		}
		if _, ok := idx[it.Identifier]; !ok {
			order = append(order, it.Identifier)
		}
		idx[it.Identifier] = append(idx[it.Identifier], it.RecordIndex)
	}

	dups := []types.Duplicate{}
	for _, id := range order {
		if len(idx[id]) > 1 {
			dups = append(dups, types.Duplicate{Identifier: id, RecordIndexes: idx[id]})
		}
	}
	return dups
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
