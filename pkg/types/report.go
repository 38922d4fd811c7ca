// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sort"

// TopicEntry is one tally bucket.
type TopicEntry struct {
	// Label is the topic or intervention text, case preserved.
	Label string `json:"label" yaml:"label"`

	Count int `json:"count" yaml:"count"`

	// Identifiers lists the contributing evidence identifiers in first-seen
	// order, without repeats.
	Identifiers []string `json:"identifiers" yaml:"identifiers"`
}

// TopicTally maps topic labels to occurrence counts. Entries are kept in
// first-seen order.
type TopicTally struct {
	Entries []TopicEntry `json:"entries" yaml:"entries"`

	// TopN bounds the result of Top. Zero or negative means unbounded.
	TopN int `json:"top_n" yaml:"top_n"`
}

// Count returns the count for label, or zero.
func (t TopicTally) Count(label string) int {
	for _, e := range t.Entries {
		if e.Label == label {
			return e.Count
		}
	}
	return 0
}

// Top returns up to TopN entries ordered by count, highest first. Equal
// counts keep first-seen order.
func (t TopicTally) Top() []TopicEntry {
	top := make([]TopicEntry, len(t.Entries))
	copy(top, t.Entries)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Count > top[j].Count
	})
	if t.TopN > 0 && len(top) > t.TopN {
		top = top[:t.TopN]
	}
	return top
}

// TopLabels returns the labels of Top in order.
func (t TopicTally) TopLabels() []string {
	top := t.Top()
	labels := make([]string, len(top))
	for i, e := range top {
		labels[i] = e.Label
	}
	return labels
}

// ReportMetadata is the sidecar record written next to a rendered report.
type ReportMetadata struct {
	// GeneratedAt is the render timestamp, UTC ISO-8601 with microseconds.
	GeneratedAt string `json:"generated_at" yaml:"generated_at"`

	ItemCount int `json:"item_count" yaml:"item_count"`

	// TopTopics is ordered by count, highest first.
	TopTopics []string `json:"top_topics" yaml:"top_topics"`

	ProvenanceCounts map[string]int `json:"provenance_counts" yaml:"provenance_counts"`

	Disclaimer string `json:"disclaimer" yaml:"disclaimer"`

	DuplicateIdentifiers []Duplicate `json:"duplicate_identifiers" yaml:"duplicate_identifiers"`

	// DraftModel names the model that wrote the synthesis section, or
	// "deterministic-fallback".
	DraftModel string `json:"draft_model" yaml:"draft_model"`

	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// ReportDocument is a rendered report and its metadata, produced together
// from one corpus snapshot.
type ReportDocument struct {
	Text string         `json:"text" yaml:"text"`
	Meta ReportMetadata `json:"meta" yaml:"meta"`
}
