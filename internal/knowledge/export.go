// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/internal/failure"
)

const exportLimit = 100000

// Export writes archived evidence matching opts to path. The format follows
// the extension: .json for JSON, anything else YAML. The file is replaced
// atomically.
func (s *Store) Export(ctx context.Context, path string, opts SearchOptions) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, failure.Configf("export path is empty")
	}
	opts.MaxResults = exportLimit
	hits, err := s.Search(ctx, opts)
	if err != nil {
		return 0, fmt.Errorf("querying for export: %w", err)
	}
	if hits == nil {
		hits = []Hit{}
	}

	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return 0, fmt.Errorf("marshaling JSON: %w", err)
		}
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(hits)
		if err != nil {
			return 0, fmt.Errorf("marshaling YAML: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating export directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return len(hits), nil
}
