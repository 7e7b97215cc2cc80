package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// OCRResolution is the rasterization resolution in DPI.
const OCRResolution = 300

// Rasterizer renders a single 1-based page of a PDF to a PNG image.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, page, dpi int, outPrefix string) (string, error)
}

// Recognizer turns a page image into text.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// OCRBackend rasterizes each page and runs it through a Recognizer.
type OCRBackend struct {
	Rasterizer Rasterizer
	Recognizer Recognizer
	DPI        int
	// PageCount reports how many pages the document has.
	PageCount func(path string) (int, error)
}

// NewOCRBackend wires pdftoppm rasterization to the given recognizer.
func NewOCRBackend(rec Recognizer) OCRBackend {
	return OCRBackend{
		Rasterizer: PdftoppmRasterizer{},
		Recognizer: rec,
		DPI:        OCRResolution,
		PageCount:  api.PageCountFile,
	}
}

func (OCRBackend) Method() models.Method { return models.MethodOCR }

func (b OCRBackend) TryExtract(ctx context.Context, path string, maxPages int) (string, error) {
	if b.Rasterizer == nil || b.Recognizer == nil {
		return "", fmt.Errorf("ocr backend not configured")
	}
	count, err := b.PageCount(path)
	if err != nil {
		return "", fmt.Errorf("page count: %w", err)
	}
	dpi := b.DPI
	if dpi <= 0 {
		dpi = OCRResolution
	}

	workDir, err := os.MkdirTemp("", "textbase-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	n := pageLimit(count, maxPages)
	pages := make([]string, 0, n)
	for page := 1; page <= n; page++ {
		prefix := filepath.Join(workDir, fmt.Sprintf("page-%05d", page))
		img, err := b.Rasterizer.Rasterize(ctx, path, page, dpi, prefix)
		if err != nil {
			return "", fmt.Errorf("rasterize page %d: %w", page, err)
		}
		text, err := b.Recognizer.Recognize(ctx, img)
		if err != nil {
			return "", fmt.Errorf("recognize page %d: %w", page, err)
		}
		pages = append(pages, text)
	}
	return joinPages(pages), nil
}

// NewRecognizer picks the recognizer for an OCR engine. It returns nil for an
// engine that cannot recognize (none, unknown, or vertex without a model).
func NewRecognizer(engine, language string, model GenerativeModel) Recognizer {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case EngineTesseract:
		return TesseractRecognizer{Language: language}
	case EngineVertex:
		if model != nil {
			return VertexRecognizer{Model: model}
		}
	}
	return nil
}

// PdftoppmRasterizer shells out to poppler's pdftoppm.
type PdftoppmRasterizer struct {
	Binary string // defaults to "pdftoppm"
}

func (r PdftoppmRasterizer) Rasterize(ctx context.Context, pdfPath string, page, dpi int, outPrefix string) (string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	p := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, bin,
		"-f", p, "-l", p,
		"-r", strconv.Itoa(dpi),
		"-png", "-singlefile",
		pdfPath, outPrefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return outPrefix + ".png", nil
}

// TesseractRecognizer runs the tesseract CLI with a fixed language pack.
type TesseractRecognizer struct {
	Binary   string // defaults to "tesseract"
	Language string // e.g. "por"
}

func (t TesseractRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	args := []string{imagePath, "stdout"}
	if t.Language != "" {
		args = append(args, "-l", t.Language)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
