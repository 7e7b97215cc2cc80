package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// NativeBackend reads each page's embedded text layer.
type NativeBackend struct{}

func (NativeBackend) Method() models.Method { return models.MethodNative }

func (NativeBackend) TryExtract(_ context.Context, path string, maxPages int) (string, error) {
	var text string
	err := withReader(path, func(r *pdf.Reader) error {
		n := pageLimit(r.NumPage(), maxPages)
		pages := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			page := r.Page(i)
			if page.V.IsNull() {
				continue
			}
			pageText, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			pages = append(pages, pageText)
		}
		text = joinPages(pages)
		return nil
	})
	return text, err
}

// PageCount opens the document and reports how many pages it declares.
// The integrity check uses it as the primary backend's loader.
func (NativeBackend) PageCount(path string) (int, error) {
	var n int
	err := withReader(path, func(r *pdf.Reader) error {
		n = r.NumPage()
		return nil
	})
	return n, err
}

// withReader opens path as a PDF and hands the reader to fn. The file is closed
// before withReader returns, including when fn or the parser panics.
func withReader(path string, fn func(r *pdf.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return err
	}
	return fn(r)
}
