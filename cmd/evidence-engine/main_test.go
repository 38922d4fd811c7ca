// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/backend"
	"github.com/pdiddy/evidence-engine/internal/report"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

const trialsInput = `{
  "provenance": {"source": "clinicaltrials.gov", "query": "metformin aging"},
  "studies": [
    {"NCTId": ["NCT01"], "BriefTitle": ["Metformin in older adults"], "OverallStatus": ["COMPLETED"],
     "BriefSummary": ["A randomized placebo-controlled trial of metformin."], "Condition": ["Aging"]},
    {"NCTId": ["NCT02"], "BriefTitle": ["Rapamycin cohort"], "BriefSummary": ["An observational cohort."]}
  ]
}`

const articlesInput = `{"articles": [
  {"pmid": "111", "title": "Case report: NAD supplementation", "abstract": "We describe a case report."},
  {"pmid": "111", "title": "Case report: NAD supplementation (duplicate)", "abstract": "Duplicate entry."},
  "not an object"
]}`

// run executes the CLI with args against the config in dir.
func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	base := []string{"--config", filepath.Join(dir, "evidence-engine.yaml"), "--secrets-dir", filepath.Join(dir, "secrets")}
	rootCmd.SetArgs(append(base, args...))
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestPipelineOffline(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	cfgBody := "log_level: error\n" +
		"extract:\n  out: " + filepath.Join(dir, "out", "structured_evidence.json") + "\n" +
		"report:\n  out: " + filepath.Join(dir, "out", "final_report.md") + "\n" +
		"  meta: " + filepath.Join(dir, "out", "final_report.json") + "\n" +
		"knowledge:\n  db_path: " + filepath.Join(dir, "kb", "evidence.db") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evidence-engine.yaml"), []byte(cfgBody), 0o644))

	trials := filepath.Join(dir, "trials.json")
	articles := filepath.Join(dir, "articles.json")
	require.NoError(t, os.WriteFile(trials, []byte(trialsInput), 0o644))
	require.NoError(t, os.WriteFile(articles, []byte(articlesInput), 0o644))

	t.Run("version", func(t *testing.T) {
		assert.Contains(t, run(t, dir, "version"), "evidence-engine dev")
	})

	t.Run("extract", func(t *testing.T) {
		out := run(t, dir, "extract", trials, articles, "--run-id", "run-1", "--store")
		assert.Contains(t, out, "extracted 4 items from 5 records (1 skipped)")
		assert.Contains(t, out, "stored run run-1 (4 items)")

		data, err := os.ReadFile(filepath.Join(dir, "out", "structured_evidence.json"))
		require.NoError(t, err)
		var corpus types.EvidenceCorpus
		require.NoError(t, json.Unmarshal(data, &corpus))
		assert.Equal(t, "run-1", corpus.Meta.RunID)
		assert.Equal(t, []string{"metformin aging"}, corpus.Meta.Queries)
		assert.Equal(t, 1, corpus.Meta.SkippedRecords)
		require.Len(t, corpus.Items, 4)
		assert.Equal(t, "Metformin", corpus.Items[0].Intervention)
		assert.Equal(t, types.StrengthRandomized, corpus.Items[0].StrengthRank)
	})

	t.Run("report with llm falls back offline", func(t *testing.T) {
		out := run(t, dir, "report", "--use-llm")
		assert.Contains(t, out, "report: 4 items")
		assert.Contains(t, out, "draft by "+report.FallbackModel)
		assert.Contains(t, out, "1 identifier(s) appear more than once")

		text, err := os.ReadFile(filepath.Join(dir, "out", "final_report.md"))
		require.NoError(t, err)
		assert.Contains(t, string(text), report.Disclaimer)

		var meta types.ReportMetadata
		data, err := os.ReadFile(filepath.Join(dir, "out", "final_report.json"))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &meta))
		assert.Equal(t, 4, meta.ItemCount)
		assert.Equal(t, report.FallbackModel, meta.DraftModel)
	})

	t.Run("knowledge", func(t *testing.T) {
		out := run(t, dir, "knowledge", "duplicates")
		assert.Contains(t, out, "111")
		assert.Contains(t, out, "run-1#2, run-1#3")

		out = run(t, dir, "knowledge", "search", "metformin")
		assert.Contains(t, out, "NCT01")
		assert.Contains(t, out, "1 results")

		out = run(t, dir, "knowledge", "runs")
		assert.Contains(t, out, "run-1")
	})

	t.Run("send offline", func(t *testing.T) {
		out := run(t, dir, "send", "--json", "hello", "there")
		var got sendOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, backend.StubModel, got.ModelUsed)
		assert.Equal(t, string(backend.ModeOffline), got.Variant)
		assert.Equal(t, backend.StubReply("hello there"), got.Text)
	})
}
