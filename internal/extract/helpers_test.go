package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// buildTextPDF assembles a one-page PDF showing text in Helvetica, with a
// correct cross-reference table.
func buildTextPDF(text string) []byte {
	escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(text)
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + escaped + ") Tj\nET"

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// fakeBackend returns canned output and records every call it receives.
type fakeBackend struct {
	method   models.Method
	text     string
	err      error
	panicVal any
	calls    int
	maxPages []int
}

func (f *fakeBackend) Method() models.Method { return f.method }

func (f *fakeBackend) TryExtract(_ context.Context, _ string, maxPages int) (string, error) {
	f.calls++
	f.maxPages = append(f.maxPages, maxPages)
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	return f.text, f.err
}

type fakeLoader struct {
	pages    int
	err      error
	panicVal any
	calls    int
}

func (f *fakeLoader) PageCount(string) (int, error) {
	f.calls++
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	return f.pages, f.err
}
