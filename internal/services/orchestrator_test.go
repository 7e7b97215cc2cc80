package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/resolutionflow/internal/extract"
	"github.com/Lllllllleong/resolutionflow/internal/models"
	"github.com/Lllllllleong/resolutionflow/internal/tabular"
)

type fakeExtractor struct {
	results map[string]models.ExtractionResult // by base file name
	seen    []string
	onCall  func(n int)
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) models.ExtractionResult {
	f.seen = append(f.seen, filepath.Base(path))
	if f.onCall != nil {
		f.onCall(len(f.seen))
	}
	if r, ok := f.results[filepath.Base(path)]; ok {
		return r
	}
	return models.Failure(string(models.MethodExhausted))
}

type memSink struct {
	names []string
	files map[string][]byte
	fail  map[string]bool
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string][]byte), fail: make(map[string]bool)}
}

func (s *memSink) Put(_ context.Context, name string, write func(w io.Writer) error) (string, error) {
	for prefix := range s.fail {
		if strings.HasPrefix(name, prefix) {
			return "", errors.New("sink unavailable")
		}
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return "", err
	}
	s.names = append(s.names, name)
	s.files[name] = buf.Bytes()
	return "mem://" + name, nil
}

func buildTree(t *testing.T, files map[string]int) string {
	t.Helper()
	root := t.TempDir()
	for rel, size := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte("x"), size), 0o644))
	}
	return root
}

func metadata(rows ...models.MetadataRecord) *tabular.Metadata {
	for i := range rows {
		rows[i].Values = map[string]string{"titulo": rows[i].Title, "ano": rows[i].Year, "link": rows[i].Link}
	}
	return &tabular.Metadata{Header: []string{"titulo", "link", "ano"}, Rows: rows}
}

func fixedClock(o *Orchestrator) {
	o.now = func() time.Time { return time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC) }
}

func TestDiscoverDocuments(t *testing.T) {
	root := buildTree(t, map[string]int{
		"2020/b.pdf":        200,
		"2020/a.PDF":        200,
		"2020/notes.txt":    200,
		"2019/c.pdf":        200,
		"2019/sub/deep.pdf": 200,
		"loose.pdf":         200,
	})

	docs, err := DiscoverDocuments(root)
	require.NoError(t, err)

	var got []string
	for _, d := range docs {
		got = append(got, d.Year+"/"+d.BaseName)
	}
	assert.Equal(t, []string{"2019/c", "2020/a", "2020/b"}, got)
	assert.Equal(t, filepath.Join(root, "2020", "a.PDF"), docs[1].Path)
}

func TestOrchestrator_Run(t *testing.T) {
	root := buildTree(t, map[string]int{
		"2020/Resoluo n 12020.pdf":          500,
		"2017/RES 558 - texto completo.pdf": 500,
		"2018/scan.pdf":                     500,
	})
	ex := &fakeExtractor{results: map[string]models.ExtractionResult{
		"Resoluo n 12020.pdf":          models.Success(models.MethodNative, "Resolução  nº 1\n de 2020"),
		"RES 558 - texto completo.pdf": models.Success(models.MethodLegacy, "texto 558"),
	}}
	sink := newMemSink()
	o := NewOrchestrator(ex, sink, OrchestratorConfig{WriteXLSX: true}, nil)
	fixedClock(o)

	md := metadata(
		models.MetadataRecord{Title: "Resolução nº 1/2020", Year: "2020", Link: "l1"},
		models.MetadataRecord{Title: "RES 558", Year: "2017", Link: "l2"},
		models.MetadataRecord{Title: "Sem arquivo", Year: "2021", Link: "l3"},
	)
	res, err := o.Run(context.Background(), root, md)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.Extraction.Processed)
	assert.Equal(t, 2, res.Extraction.Succeeded)
	assert.Equal(t, 1, res.Extraction.Failed)
	assert.Equal(t, 1, res.Extraction.MethodCounts[models.MethodExhausted])

	require.Len(t, res.Records, 3)
	assert.Equal(t, models.MatchExact, res.Records[0].Match)
	assert.Equal(t, models.MethodNative, res.Records[0].ExtractionMethod)
	assert.Equal(t, models.MatchFuzzy, res.Records[1].Match)
	assert.Equal(t, "texto 558", res.Records[1].Text)
	assert.Equal(t, 9, res.Records[1].TextSize)
	assert.Equal(t, models.TextNotFound, res.Records[2].Text)
	assert.True(t, res.Records[2].HasError)
	assert.Equal(t, 2, res.Reconcile.Matched())

	assert.Equal(t, []string{
		"textos_pdfs_extraidos_20250506_070809.csv",
		"cns_resolucoes_com_textos_20250506_070809.csv",
		"cns_resolucoes_com_textos_20250506_070809.xlsx",
	}, sink.names)
	assert.Equal(t, "mem://textos_pdfs_extraidos_20250506_070809.csv", res.Outputs[0])

	backup, err := csv.NewReader(bytes.NewReader(sink.files[sink.names[0]])).ReadAll()
	require.NoError(t, err)
	require.Len(t, backup, 4)
	assert.Equal(t, "2017_RES 558 - texto completo", backup[1][0])
	assert.Equal(t, "ERROR_ALL_METHODS_FAILED", backup[2][4])
	assert.Equal(t, "0", backup[2][5])

	out, err := csv.NewReader(bytes.NewReader(sink.files[sink.names[1]])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestOrchestrator_KeyCollisionLastWriteWins(t *testing.T) {
	root := buildTree(t, map[string]int{
		"2018/RES 1!.pdf": 500,
		"2018/RES 1.pdf":  500,
	})
	ex := &fakeExtractor{results: map[string]models.ExtractionResult{
		"RES 1!.pdf": models.Success(models.MethodNative, "primeiro"),
		"RES 1.pdf":  models.Success(models.MethodNative, "segundo"),
	}}
	o := NewOrchestrator(ex, newMemSink(), OrchestratorConfig{}, nil)

	res, err := o.Run(context.Background(), root, metadata(models.MetadataRecord{Title: "RES 1", Year: "2018"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"RES 1!.pdf", "RES 1.pdf"}, ex.seen)
	assert.Equal(t, 1, res.Extraction.Collisions)
	require.Len(t, res.Extracted, 1)
	assert.Equal(t, "segundo", res.Records[0].Text)
}

func TestOrchestrator_NoDocuments(t *testing.T) {
	root := buildTree(t, map[string]int{"2020/readme.txt": 10})
	sink := newMemSink()
	o := NewOrchestrator(&fakeExtractor{}, sink, OrchestratorConfig{}, nil)

	_, err := o.Run(context.Background(), root, metadata(models.MetadataRecord{Title: "x", Year: "2020"}))
	assert.ErrorIs(t, err, ErrNoExtractedText)
	assert.Empty(t, sink.names)
}

func TestOrchestrator_CancelledBetweenDocuments(t *testing.T) {
	root := buildTree(t, map[string]int{
		"2020/a.pdf": 500,
		"2020/b.pdf": 500,
		"2020/c.pdf": 500,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex := &fakeExtractor{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	o := NewOrchestrator(ex, newMemSink(), OrchestratorConfig{}, nil)

	_, err := o.Run(ctx, root, metadata())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, ex.seen)
}

func TestOrchestrator_BackupFailureDoesNotStopRun(t *testing.T) {
	root := buildTree(t, map[string]int{"2020/a.pdf": 500})
	ex := &fakeExtractor{results: map[string]models.ExtractionResult{"a.pdf": models.Success(models.MethodNative, "a")}}
	sink := newMemSink()
	sink.fail[tabular.BackupPrefix] = true
	o := NewOrchestrator(ex, sink, OrchestratorConfig{}, nil)

	res, err := o.Run(context.Background(), root, metadata(models.MetadataRecord{Title: "a", Year: "2020"}))
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)
	assert.True(t, strings.HasPrefix(sink.names[0], tabular.OutputPrefix))
}

func TestOrchestrator_TinyFileIsInvalid(t *testing.T) {
	root := buildTree(t, map[string]int{"2016/tiny.pdf": 40})
	o := NewOrchestrator(extract.NewPipeline(extract.Config{}, nil), newMemSink(), OrchestratorConfig{}, nil)

	res, err := o.Run(context.Background(), root, metadata(models.MetadataRecord{Title: "tiny", Year: "2016"}))
	require.NoError(t, err)

	require.Len(t, res.Extracted, 1)
	rec := res.Extracted[0]
	assert.Equal(t, models.MethodInvalid, rec.ExtractionMethod)
	assert.True(t, rec.HasError)
	assert.Equal(t, "ERROR_INVALID_PDF: file too small (40 bytes)", rec.Text)
	assert.Zero(t, rec.TextSize)
	assert.Equal(t, models.MethodInvalid, res.Records[0].ExtractionMethod)
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	loc, err := DirSink{Dir: dir}.Put(context.Background(), "a.csv", func(w io.Writer) error {
		_, err := w.Write([]byte("x,y\n"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.csv"), loc)
	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "x,y\n", string(data))
}

func TestWriteReport(t *testing.T) {
	res := &models.RunResult{
		RunID: "run-1",
		Records: []models.ReconciledRecord{
			{ExtractionMethod: models.MethodNative},
			{ExtractionMethod: models.MethodOCR},
			{HasError: true, Text: models.TextNotFound},
		},
		Outputs: []string{"out.csv"},
	}
	var buf bytes.Buffer
	WriteReport(&buf, res)

	out := buf.String()
	assert.Contains(t, out, "Resolutions with extracted text: 2/3 (66.7%)")
	assert.Contains(t, out, "NATIVE")
	assert.Contains(t, out, "OCR")
	assert.Contains(t, out, "Wrote out.csv")
}
