// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// RunInfo describes one archived run.
type RunInfo struct {
	RunID          string    `json:"run_id" yaml:"run_id"`
	CollectedAt    time.Time `json:"collected_at" yaml:"collected_at"`
	Queries        []string  `json:"queries" yaml:"queries"`
	SkippedRecords int       `json:"skipped_records" yaml:"skipped_records"`
	Items          int       `json:"items" yaml:"items"`
}

// Runs lists archived runs, most recently collected first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.collected_at, r.queries, r.skipped_records,
			(SELECT count(*) FROM evidence e WHERE e.run_id = r.id)
		 FROM runs r
		 ORDER BY r.collected_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			ri          RunInfo
			collected   sql.NullString
			queriesJSON sql.NullString
		)
		if err := rows.Scan(&ri.RunID, &collected, &queriesJSON, &ri.SkippedRecords, &ri.Items); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if collected.Valid && collected.String != "" {
			t, err := time.Parse(time.RFC3339Nano, collected.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: collected_at: %w", ri.RunID, err)
			}
			ri.CollectedAt = t
		}
		if queriesJSON.Valid && queriesJSON.String != "" {
			if err := json.Unmarshal([]byte(queriesJSON.String), &ri.Queries); err != nil {
				return nil, fmt.Errorf("run %s: queries: %w", ri.RunID, err)
			}
		}
		runs = append(runs, ri)
	}
	return runs, rows.Err()
}

// Occurrence locates one archived copy of an identifier.
type Occurrence struct {
	RunID       string `json:"run_id" yaml:"run_id"`
	RecordIndex int    `json:"record_index" yaml:"record_index"`
}

// ArchivedDuplicate is an identifier stored more than once, within one run
// or across runs.
type ArchivedDuplicate struct {
	Identifier  string       `json:"identifier" yaml:"identifier"`
	Occurrences []Occurrence `json:"occurrences" yaml:"occurrences"`
}

// Duplicates lists identifiers that occur more than once in the archive,
// ordered by identifier. Items without an identifier are never duplicates.
func (s *Store) Duplicates(ctx context.Context) ([]ArchivedDuplicate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.identifier, e.run_id, e.record_index
		 FROM evidence e
		 JOIN runs r ON r.id = e.run_id
		 WHERE e.identifier IN (
			SELECT identifier FROM evidence
			WHERE identifier IS NOT NULL
			GROUP BY identifier HAVING count(*) > 1
		 )
		 ORDER BY e.identifier, r.collected_at, e.run_id, e.record_index`)
	if err != nil {
		return nil, fmt.Errorf("querying duplicates: %w", err)
	}
	defer rows.Close()

	var dups []ArchivedDuplicate
	for rows.Next() {
		var (
			ident string
			occ   Occurrence
		)
		if err := rows.Scan(&ident, &occ.RunID, &occ.RecordIndex); err != nil {
			return nil, fmt.Errorf("scanning duplicate: %w", err)
		}
		if n := len(dups); n > 0 && dups[n-1].Identifier == ident {
			dups[n-1].Occurrences = append(dups[n-1].Occurrences, occ)
			continue
		}
		dups = append(dups, ArchivedDuplicate{Identifier: ident, Occurrences: []Occurrence{occ}})
	}
	return dups, rows.Err()
}

// SearchOptions holds parameters for archive searches.
type SearchOptions struct {
	// Query is matched as a case-insensitive substring of title, snippet,
	// intervention and population.
	Query string

	Source types.Source

	// MinStrength drops items ranked below it.
	MinStrength types.StrengthRank

	RunID string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the search has no terms or filters.
func (o SearchOptions) IsEmpty() bool {
	return o.Query == "" && o.Source == "" && o.MinStrength == 0 && o.RunID == ""
}

// Hit is an archived evidence item with its run.
type Hit struct {
	types.StructuredEvidence `yaml:",inline"`
	RunID                    string `json:"run_id" yaml:"run_id"`
}

// MarshalJSON keeps the evidence fields flat next to run_id.
func (h Hit) MarshalJSON() ([]byte, error) {
	ev, err := json.Marshal(h.StructuredEvidence)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(ev, &m); err != nil {
		return nil, err
	}
	m["run_id"] = h.RunID
	return json.Marshal(m)
}

// UnmarshalJSON reads the flat form written by MarshalJSON.
func (h *Hit) UnmarshalJSON(data []byte) error {
	if err := h.StructuredEvidence.UnmarshalJSON(data); err != nil {
		return err
	}
	var aux struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	h.RunID = aux.RunID
	return nil
}

// likeEscaper escapes LIKE wildcards in user queries.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search returns archived evidence matching opts, strongest first, then in
// run and record order.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]Hit, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT e.run_id, e.record_index, e.source, e.identifier, e.title, e.intervention,
			e.population, e.outcome_measures, e.status, e.snippet, e.sample_size, e.strength_rank
		FROM evidence e
		JOIN runs r ON r.id = e.run_id
		WHERE 1=1`)

	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + likeEscaper.Replace(q) + "%"
		qb.WriteString(` AND (e.title LIKE ? ESCAPE '\' OR e.snippet LIKE ? ESCAPE '\'
			OR e.intervention LIKE ? ESCAPE '\' OR e.population LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if opts.Source != "" {
		qb.WriteString(` AND e.source = ?`)
		args = append(args, string(opts.Source))
	}
	if opts.MinStrength > 0 {
		qb.WriteString(` AND e.strength_rank >= ?`)
		args = append(args, int(opts.MinStrength))
	}
	if opts.RunID != "" {
		qb.WriteString(` AND e.run_id = ?`)
		args = append(args, opts.RunID)
	}

	qb.WriteString(` ORDER BY e.strength_rank DESC, r.collected_at, e.run_id, e.record_index LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching archive: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h            Hit
			source       string
			ident        sql.NullString
			outcomesJSON sql.NullString
			sampleSize   sql.NullInt64
			rank         int
		)
		if err := rows.Scan(
			&h.RunID, &h.RecordIndex, &source, &ident, &h.Title, &h.Intervention,
			&h.Population, &outcomesJSON, &h.Status, &h.Snippet, &sampleSize, &rank,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		h.Source = types.Source(source)
		h.Identifier = ident.String
		h.SampleSize = int(sampleSize.Int64)
		h.StrengthRank = types.StrengthRank(rank)
		if outcomesJSON.Valid {
			json.Unmarshal([]byte(outcomesJSON.String), &h.OutcomeMeasures)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
