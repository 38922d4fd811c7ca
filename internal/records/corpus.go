// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// WriteCorpus writes corpus to path, as YAML for .yaml/.yml and indented
// JSON otherwise. An existing file is replaced atomically; a missing
// parent directory is created.
func WriteCorpus(path string, corpus types.EvidenceCorpus) error {
	if strings.TrimSpace(path) == "" {
		return failure.Configf("corpus output path is empty")
	}
	if corpus.Items == nil {
		corpus.Items = []types.StructuredEvidence{}
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(corpus)
	} else {
		data, err = json.MarshalIndent(corpus, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadCorpus reads a corpus written by WriteCorpus.
func ReadCorpus(path string) (types.EvidenceCorpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.EvidenceCorpus{}, fmt.Errorf("reading corpus: %w", err)
	}

	var corpus types.EvidenceCorpus
	if isYAML(path) {
		err = yaml.Unmarshal(data, &corpus)
	} else {
		err = json.Unmarshal(data, &corpus)
	}
	if err != nil {
		return types.EvidenceCorpus{}, fmt.Errorf("%w: %s: %v", failure.ErrMalformedInput, path, err)
	}
	return corpus, nil
}
