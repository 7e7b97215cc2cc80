package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBinaries(t *testing.T, present ...string) {
	t.Helper()
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(name string) (string, error) {
		for _, p := range present {
			if p == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestProbeOCR(t *testing.T) {
	tests := []struct {
		name     string
		engine   string
		vertex   bool
		binaries []string
		want     bool
		reason   string
	}{
		{"tesseract ready", "tesseract", false, []string{"pdftoppm", "tesseract"}, true, ""},
		{"tesseract missing", "tesseract", false, []string{"pdftoppm"}, false, "tesseract not found"},
		{"no rasterizer", "Tesseract", false, []string{"tesseract"}, false, "pdftoppm not found"},
		{"vertex ready", "vertex", true, []string{"pdftoppm"}, true, ""},
		{"vertex unconfigured", "vertex", false, []string{"pdftoppm"}, false, "vertex ai model not configured"},
		{"disabled", "none", true, []string{"pdftoppm", "tesseract"}, false, "ocr disabled"},
		{"unknown", "easyocr", false, []string{"pdftoppm"}, false, "unknown ocr engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBinaries(t, tt.binaries...)
			c := ProbeOCR(tt.engine, tt.vertex)
			assert.Equal(t, tt.want, c.Available)
			if tt.reason != "" {
				assert.Contains(t, c.Reason, tt.reason)
			}
		})
	}
}
