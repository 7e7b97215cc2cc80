package tabular

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"
)

// File name patterns of the run's inputs and outputs.
const (
	MetadataGlob   = "cns_resolucoes_*"
	BackupPrefix   = "textos_pdfs_extraidos_"
	OutputPrefix   = "cns_resolucoes_com_textos_"
	TimestampFmt   = "20060102_150405"
	backupSuffix   = ".csv"
	workbookSuffix = ".xlsx"
)

// Metadata files whose names contain one of these are never picked automatically.
var excludedMetadataMarkers = []string{"teste", "com_textos", "temp"}

// metadataExts are the table formats ReadMetadataFile understands.
var metadataExts = []string{".csv", ".xlsx"}

// BackupName is the backup artifact's file name for a run started at ts.
func BackupName(ts time.Time) string {
	return BackupPrefix + ts.Format(TimestampFmt) + backupSuffix
}

// OutputName is the reconciled dataset's file name; ext is ".csv" or ".xlsx".
func OutputName(ts time.Time, ext string) string {
	return OutputPrefix + ts.Format(TimestampFmt) + ext
}

// WorkbookName is OutputName for the spreadsheet copy.
func WorkbookName(ts time.Time) string {
	return OutputName(ts, workbookSuffix)
}

// IsMetadataFile reports whether name looks like a metadata table eligible as run input.
func IsMetadataFile(name string) bool {
	base := strings.ToLower(path.Base(filepath.ToSlash(name)))
	if ok, _ := path.Match(MetadataGlob, base); !ok {
		return false
	}
	if !slices.Contains(metadataExts, path.Ext(base)) {
		return false
	}
	for _, marker := range excludedMetadataMarkers {
		if strings.Contains(base, marker) {
			return false
		}
	}
	return true
}

// ListMetadataFiles returns the candidate metadata files in dir, newest first.
func ListMetadataFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, MetadataGlob))
	if err != nil {
		return nil, err
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var cands []candidate
	for _, m := range matches {
		if !IsMetadataFile(m) {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		cands = append(cands, candidate{path: m, mod: info.ModTime()})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if !cands[i].mod.Equal(cands[j].mod) {
			return cands[i].mod.After(cands[j].mod)
		}
		return cands[i].path > cands[j].path
	})

	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.path
	}
	return out, nil
}

// FindNewestMetadata picks the most recently modified metadata file in dir.
func FindNewestMetadata(dir string) (string, error) {
	files, err := ListMetadataFiles(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no %s.csv or %s.xlsx file found in %s", MetadataGlob, MetadataGlob, dir)
	}
	return files[0], nil
}

// ListOutputs returns previously written backups and reconciled outputs in dir, sorted by name.
func ListOutputs(dir string) ([]string, error) {
	var out []string
	for _, pattern := range []string{BackupPrefix + "*", OutputPrefix + "*"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		out = append(out, m...)
	}
	sort.Strings(out)
	return out, nil
}

// CreateFile writes path through fn. The file appears under its final name only
// once fn and the close have both succeeded.
func CreateFile(path string, fn func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
