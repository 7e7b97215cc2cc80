package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	t.Chdir(t.TempDir())
	v := viper.New()
	require.NoError(t, initViper(v, ""))
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "pdfs_cns_resolucoes", cfg.PDFDir)
	assert.Equal(t, ".", cfg.OutDir)
	assert.Equal(t, 0, cfg.MaxPages)
	assert.Equal(t, int64(100), cfg.MinFileSize)
	assert.Equal(t, "tesseract", cfg.OCREngine)
	assert.Equal(t, "por", cfg.OCRLanguage)
	assert.Equal(t, 10, cfg.ProgressEvery)
	assert.False(t, cfg.XLSX)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("TEXTBASE_PDF_DIR", "/data/pdfs")
	t.Setenv("TEXTBASE_OCR_ENGINE", "NONE")
	t.Setenv("TEXTBASE_MAX_PAGES", "5")

	cfg, err := loadConfig(newTestViper(t))
	require.NoError(t, err)
	assert.Equal(t, "/data/pdfs", cfg.PDFDir)
	assert.Equal(t, "none", cfg.OCREngine)
	assert.Equal(t, 5, cfg.MaxPages)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"negative max pages": {"TEXTBASE_MAX_PAGES": "-1"},
		"unknown engine":     {"TEXTBASE_OCR_ENGINE": "abbyy"},
		"vertex no project":  {"TEXTBASE_OCR_ENGINE": "vertex"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, val := range env {
				t.Setenv(k, val)
			}
			_, err := loadConfig(newTestViper(t))
			assert.Error(t, err)
		})
	}
}

func TestInitViper_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "textbase.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("out_dir: /tmp/out\nocr:\n  language: eng\n"), 0o644))

	v := viper.New()
	require.NoError(t, initViper(v, cfgPath))
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.OutDir)
	assert.Equal(t, "eng", cfg.OCRLanguage)

	assert.Error(t, initViper(viper.New(), filepath.Join(dir, "missing.yaml")))
}

func TestWriteStatus(t *testing.T) {
	dir := t.TempDir()
	pdfDir := filepath.Join(dir, "pdfs")
	for _, rel := range []string{"2019/a.pdf", "2020/b.pdf", "2020/c.PDF", "2020/notes.txt"} {
		p := filepath.Join(pdfDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cns_resolucoes_2025.csv"), []byte("titulo,link,ano\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cns_resolucoes_com_textos_20250101_000000.csv"), []byte("x"), 0o644))

	orig := pageCount
	pageCount = func(string) (int, error) { return 3, nil }
	t.Cleanup(func() { pageCount = orig })

	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, Config{PDFDir: pdfDir, CSVDir: dir, OutDir: dir}, true))

	out := buf.String()
	assert.Contains(t, out, "cns_resolucoes_2025.csv (newest)")
	assert.Contains(t, out, "2019: 1 PDFs, 3 pages")
	assert.Contains(t, out, "2020: 2 PDFs, 6 pages")
	assert.Contains(t, out, "total: 3 PDFs")
	assert.Contains(t, out, "cns_resolucoes_com_textos_20250101_000000.csv")
}

func TestWriteStatus_MissingTree(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, Config{PDFDir: filepath.Join(dir, "nope"), CSVDir: dir, OutDir: dir}, false))
	assert.Contains(t, buf.String(), "(missing)")
}

func TestProbeCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TEXTBASE_OCR_ENGINE", "none")

	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"probe"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "ocr engine none: unavailable (ocr disabled)\n", out.String())
}
