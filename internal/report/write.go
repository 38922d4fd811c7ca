// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Write stores the report text and its metadata sidecar. Both files are
// fully staged in their destination directories before either is renamed
// into place; on a staging failure no existing file is touched. If the
// sidecar cannot be renamed after the report was, the previous report is
// put back.
func Write(doc types.ReportDocument, reportPath, metaPath string) error {
	if err := checkDest(reportPath); err != nil {
		return err
	}
	if err := checkDest(metaPath); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(doc.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report metadata: %w", err)
	}
	meta = append(meta, '\n')

	previous, hadPrevious, err := snapshot(reportPath)
	if err != nil {
		return err
	}

	reportFile, err := stage(reportPath, []byte(doc.Text))
	if err != nil {
		return err
	}
	defer reportFile.Cleanup()

	metaFile, err := stage(metaPath, meta)
	if err != nil {
		return err
	}
	defer metaFile.Cleanup()

	if err := reportFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing %s: %w", reportPath, err)
	}
	if err := metaFile.CloseAtomicallyReplace(); err != nil {
		if rerr := restore(reportPath, previous, hadPrevious); rerr != nil {
			return fmt.Errorf("replacing %s: %w (restoring %s: %v)", metaPath, err, reportPath, rerr)
		}
		return fmt.Errorf("replacing %s: %w", metaPath, err)
	}
	return nil
}

// snapshot reads the file currently at path, if any.
func snapshot(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading existing %s: %w", path, err)
	}
	return data, true, nil
}

// restore puts back the snapshot taken before Write, removing path when
// nothing was there.
func restore(path string, data []byte, existed bool) error {
	if !existed {
		return os.Remove(path)
	}
	return renameio.WriteFile(path, data, 0o644)
}

func stage(path string, data []byte) (*renameio.PendingFile, error) {
	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: staging %s: %v", failure.ErrConfiguration, path, err)
	}
	if _, err := pf.Write(data); err != nil {
		pf.Cleanup()
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	return pf, nil
}

// checkDest requires a non-empty path whose directory already exists.
func checkDest(path string) error {
	if path == "" {
		return failure.Configf("output path is empty")
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return failure.Configf("output directory %s: %v", dir, err)
	}
	if !info.IsDir() {
		return failure.Configf("output directory %s is not a directory", dir)
	}
	return nil
}
