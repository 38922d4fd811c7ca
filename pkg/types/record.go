// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the evidence-engine pipeline:
// raw source records, normalized evidence, aggregation and report output,
// conversation turns, and configuration.
package types

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Source identifies where a raw record was collected from.
type Source string

const (
	SourceClinicalTrials Source = "clinicaltrials"
	SourcePubMed         Source = "pubmed"
	SourceOther          Source = "other"
)

// ParseSource normalizes a provenance tag as written by collectors
// (e.g. "clinicaltrials.gov", "PubMed") to a Source. Unknown tags map to
// SourceOther; the empty string stays empty so callers can apply a default.
func ParseSource(s string) Source {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "clinicaltrials", "clinicaltrials.gov", "ctgov", "trials":
		return SourceClinicalTrials
	case "pubmed", "ncbi", "articles":
		return SourcePubMed
	default:
		return SourceOther
	}
}

// RawRecord is one externally fetched metadata object (a trial or an
// abstract) tagged with its source. The payload is kept exactly as retrieved.
type RawRecord struct {
	Source  Source          `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

// IsObject reports whether the payload is a JSON mapping. Anything else is
// a malformed record.
func (r RawRecord) IsObject() bool {
	return gjson.ValidBytes(r.Payload) && gjson.ParseBytes(r.Payload).IsObject()
}

// Field returns the payload value stored under key. A missing key yields a
// Field whose Present method reports false; reading never fails.
func (r RawRecord) Field(key string) Field {
	if !r.IsObject() {
		return Field{}
	}
	return Field{res: gjson.GetBytes(r.Payload, gjson.Escape(key))}
}

// Lookup returns the first field among keys that holds non-empty text.
func (r RawRecord) Lookup(keys ...string) Field {
	for _, k := range keys {
		if f := r.Field(k); f.Text() != "" {
			return f
		}
	}
	return Field{}
}

// Field is an optional payload value. The zero Field is absent.
type Field struct {
	res gjson.Result
}

// Present reports whether the key existed in the payload (even if null).
func (f Field) Present() bool {
	return f.res.Exists()
}

// Text returns the field as trimmed text. For lists it returns the first
// non-empty element, matching the ClinicalTrials study-fields layout where
// every value is wrapped in an array.
func (f Field) Text() string {
	if !f.res.Exists() || f.res.Type == gjson.Null {
		return ""
	}
	if f.res.IsArray() {
		for _, el := range f.res.Array() {
			if s := strings.TrimSpace(el.String()); s != "" && !el.IsObject() && !el.IsArray() {
				return s
			}
		}
		return ""
	}
	if f.res.IsObject() {
		return ""
	}
	return strings.TrimSpace(f.res.String())
}

// Texts returns every non-empty scalar element of a list field, or the
// single scalar value as a one-element slice.
func (f Field) Texts() []string {
	if !f.res.Exists() || f.res.Type == gjson.Null {
		return nil
	}
	if !f.res.IsArray() {
		if s := f.Text(); s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, el := range f.res.Array() {
		if el.IsObject() || el.IsArray() {
			continue
		}
		if s := strings.TrimSpace(el.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Int returns the field as an integer and whether it held a usable number.
// Numeric strings ("120") are accepted since collectors often emit them.
func (f Field) Int() (int, bool) {
	s := f.Text()
	if s == "" {
		return 0, false
	}
	r := gjson.Parse(s)
	if r.Type != gjson.Number {
		return 0, false
	}
	n := r.Int()
	if float64(n) != r.Float() {
		return 0, false
	}
	return int(n), true
}
