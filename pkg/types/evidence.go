// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// StrengthRank is an ordinal estimate of study-design rigor derived from
// design keywords. Higher is stronger.
type StrengthRank int

const (
	StrengthUnspecified StrengthRank = 0
	StrengthCaseReport  StrengthRank = 1
	StrengthCohort      StrengthRank = 2
	StrengthRandomized  StrengthRank = 3
)

// String returns the design label for the rank.
func (r StrengthRank) String() string {
	switch r {
	case StrengthRandomized:
		return "randomized-controlled"
	case StrengthCohort:
		return "cohort/observational"
	case StrengthCaseReport:
		return "case-report"
	default:
		return "unspecified"
	}
}

// StructuredEvidence is the normalized unit derived from exactly one RawRecord.
type StructuredEvidence struct {
	// Source is the provenance tag carried over from the RawRecord.
	Source Source `json:"source" yaml:"source"`

	// Identifier is the NCT id or PMID. Empty when the record had none;
	// serialized as null. Not unique across a corpus or across runs.
	Identifier string `json:"-" yaml:"identifier,omitempty"`

	Title        string `json:"title" yaml:"title"`
	Intervention string `json:"intervention" yaml:"intervention"`
	Population   string `json:"population" yaml:"population"`

	// OutcomeMeasures keeps source order.
	OutcomeMeasures []string `json:"outcome_measures" yaml:"outcome_measures"`

	Status  string `json:"status" yaml:"status"`
	Snippet string `json:"snippet" yaml:"snippet"`

	// SampleSize is the enrollment count or a participant count found in
	// the text. Zero when unknown.
	SampleSize int `json:"sample_size,omitempty" yaml:"sample_size,omitempty"`

	StrengthRank StrengthRank `json:"strength_rank" yaml:"strength_rank"`

	// RecordIndex is the position of the originating RawRecord in the
	// extraction input.
	RecordIndex int `json:"record_index" yaml:"record_index"`
}

// evidenceJSON mirrors StructuredEvidence with a nullable identifier.
type evidenceJSON struct {
	Identifier *string `json:"identifier"`
	evidenceAlias
}

type evidenceAlias StructuredEvidence

// MarshalJSON writes an absent identifier as null.
func (e StructuredEvidence) MarshalJSON() ([]byte, error) {
	out := evidenceJSON{evidenceAlias: evidenceAlias(e)}
	if e.Identifier != "" {
		id := e.Identifier
		out.Identifier = &id
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts a null or missing identifier.
func (e *StructuredEvidence) UnmarshalJSON(data []byte) error {
	var in evidenceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = StructuredEvidence(in.evidenceAlias)
	if in.Identifier != nil {
		e.Identifier = *in.Identifier
	}
	return nil
}

// CorpusMeta describes one extraction run.
type CorpusMeta struct {
	// RunID identifies the extraction run (a UUID assigned by the caller).
	RunID string `json:"run_id" yaml:"run_id"`

	// CollectedAt is when the run was performed, in UTC.
	CollectedAt time.Time `json:"collected_at" yaml:"collected_at"`

	// Queries lists the search expressions the collectors used.
	Queries []string `json:"queries" yaml:"queries"`

	// SourceCounts counts corpus items per source.
	SourceCounts map[Source]int `json:"source_counts" yaml:"source_counts"`

	// SkippedRecords counts malformed input records that were dropped.
	SkippedRecords int `json:"skipped_records" yaml:"skipped_records"`
}

// EvidenceCorpus is the ordered output of one extraction run. It is not
// modified after creation.
type EvidenceCorpus struct {
	Meta  CorpusMeta           `json:"meta" yaml:"meta"`
	Items []StructuredEvidence `json:"items" yaml:"items"`
}

// Len returns the number of evidence items.
func (c EvidenceCorpus) Len() int {
	return len(c.Items)
}

// Duplicate reports an identifier shared by more than one evidence item.
type Duplicate struct {
	Identifier    string `json:"identifier" yaml:"identifier"`
	RecordIndexes []int  `json:"record_indexes" yaml:"record_indexes"`
}
