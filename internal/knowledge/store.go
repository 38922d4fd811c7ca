// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge archives evidence corpora from successive extraction
// runs in SQLite so that identifiers repeated across runs can be listed and
// past evidence searched.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

const defaultMaxResults = 20

// Store manages the evidence archive database.
type Store struct {
	db         *sql.DB
	maxResults int
	now        func() time.Time
}

// NewStore opens or creates the archive at cfg.DBPath and creates the
// schema if it does not exist.
func NewStore(cfg types.KnowledgeConfig) (*Store, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, failure.Configf("knowledge db_path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, maxResults: maxResults, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			collected_at TEXT,
			stored_at TEXT NOT NULL,
			queries TEXT,
			source_counts TEXT,
			skipped_records INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS evidence (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			record_index INTEGER NOT NULL,
			source TEXT NOT NULL,
			identifier TEXT,
			title TEXT,
			intervention TEXT,
			population TEXT,
			outcome_measures TEXT,
			status TEXT,
			snippet TEXT,
			sample_size INTEGER,
			strength_rank INTEGER NOT NULL,
			UNIQUE(run_id, record_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_identifier ON evidence(identifier)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_source ON evidence(source)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// StoreSummary reports what SaveCorpus wrote.
type StoreSummary struct {
	RunID    string
	Items    int
	Replaced bool
}

// SaveCorpus archives corpus under its run ID. Saving the same run again
// replaces its items. A corpus without a run ID gets a fresh one.
func (s *Store) SaveCorpus(ctx context.Context, corpus types.EvidenceCorpus, w io.Writer) (StoreSummary, error) {
	runID := corpus.Meta.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	summary := StoreSummary{RunID: runID, Items: corpus.Len()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM runs WHERE id = ?`, runID).Scan(&existing); err != nil {
		return summary, fmt.Errorf("checking run: %w", err)
	}
	if existing > 0 {
		summary.Replaced = true
		if _, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE run_id = ?`, runID); err != nil {
			return summary, fmt.Errorf("deleting old evidence: %w", err)
		}
	}

	queriesJSON, _ := json.Marshal(corpus.Meta.Queries)
	countsJSON, _ := json.Marshal(corpus.Meta.SourceCounts)
	collected := ""
	if !corpus.Meta.CollectedAt.IsZero() {
		collected = corpus.Meta.CollectedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, collected_at, stored_at, queries, source_counts, skipped_records)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			collected_at=excluded.collected_at, stored_at=excluded.stored_at,
			queries=excluded.queries, source_counts=excluded.source_counts,
			skipped_records=excluded.skipped_records`,
		runID, collected, s.now().UTC().Format(time.RFC3339Nano),
		string(queriesJSON), string(countsJSON), corpus.Meta.SkippedRecords,
	)
	if err != nil {
		return summary, fmt.Errorf("upserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO evidence (run_id, record_index, source, identifier, title, intervention,
			population, outcome_measures, status, snippet, sample_size, strength_rank)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range corpus.Items {
		outcomesJSON, _ := json.Marshal(it.OutcomeMeasures)
		var ident sql.NullString
		if it.Identifier != "" {
			ident = sql.NullString{String: it.Identifier, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			runID, it.RecordIndex, string(it.Source), ident, it.Title, it.Intervention,
			it.Population, string(outcomesJSON), it.Status, it.Snippet, it.SampleSize, int(it.StrengthRank),
		)
		if err != nil {
			return summary, fmt.Errorf("inserting record %d: %w", it.RecordIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing run: %w", err)
	}

	verb := "stored"
	if summary.Replaced {
		verb = "replaced"
	}
	fmt.Fprintf(w, "%s run %s (%d items)\n", verb, runID, summary.Items)
	return summary, nil
}
