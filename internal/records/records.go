// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records loads collector output files into RawRecords.
//
// Accepted layouts:
//
//	{"provenance": {"source": ..., "query": ...}, "studies": [...]}
//	{"provenance": {...}, "articles": [...]}
//	{"records": [...]}
//	{"StudyFieldsResponse": {"StudyFields": [...]}}
//	[...]
//
// The source tag comes from provenance.source, else the envelope key, else
// the element's own "source" field, else the caller's default.
package records

import (
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// envelope maps a list key to the source it implies.
type envelope struct {
	path   string
	source types.Source
}

var envelopes = []envelope{
	{"studies", types.SourceClinicalTrials},
	{"StudyFieldsResponse.StudyFields", types.SourceClinicalTrials},
	{"articles", types.SourcePubMed},
	{"records", ""},
}

// File is the parsed content of one input file.
type File struct {
	Path    string
	Records []types.RawRecord

	// Query is provenance.query when present.
	Query string
}

// Batch is the combined content of several input files, in argument order.
type Batch struct {
	Records []types.RawRecord
	Queries []string
}

// Parse decodes one collector output document. Elements that are not JSON
// objects are kept so the extractor can count them as skipped.
func Parse(data []byte, def types.Source) (File, error) {
	if !gjson.ValidBytes(data) {
		return File{}, fmt.Errorf("%w: not valid JSON", failure.ErrMalformedInput)
	}
	root := gjson.ParseBytes(data)

	var f File
	switch {
	case root.IsArray():
		f.Records = collect(root, "", def)
	case root.IsObject():
		prov := types.ParseSource(root.Get("provenance.source").String())
		f.Query = root.Get("provenance.query").String()
		found := false
		for _, env := range envelopes {
			list := root.Get(env.path)
			if !list.IsArray() {
				continue
			}
			src := prov
			if src == "" {
				src = env.source
			}
			f.Records = append(f.Records, collect(list, src, def)...)
			found = true
		}
		if !found {
			return File{}, fmt.Errorf("%w: no studies, articles or records list", failure.ErrMalformedInput)
		}
	default:
		return File{}, fmt.Errorf("%w: top level must be an object or array", failure.ErrMalformedInput)
	}
	return f, nil
}

func collect(list gjson.Result, forced, def types.Source) []types.RawRecord {
	var out []types.RawRecord
	list.ForEach(func(_, el gjson.Result) bool {
		src := forced
		if src == "" && el.IsObject() {
			src = types.ParseSource(el.Get("source").String())
		}
		if src == "" {
			src = def
		}
		out = append(out, types.RawRecord{Source: src, Payload: []byte(el.Raw)})
		return true
	})
	return out
}

// Load reads and parses one file.
func Load(path string, def types.Source) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data, def)
	if err != nil {
		return File{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// LoadAll reads the given files concurrently and concatenates their records
// in argument order. The first failure cancels the rest.
func LoadAll(ctx context.Context, paths []string, def types.Source) (Batch, error) {
	files := make([]File, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := Load(p, def)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}

	var b Batch
	for _, f := range files {
		b.Records = append(b.Records, f.Records...)
		if f.Query != "" {
			b.Queries = append(b.Queries, f.Query)
		}
	}
	return b, nil
}
