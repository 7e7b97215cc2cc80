package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// BackupColumns is the header of the raw extraction dump.
var BackupColumns = []string{
	"chave", "ano", "nome_arquivo", "caminho_completo",
	"texto", "tamanho_texto", "tem_erro", "metodo_extracao",
}

// ExtractionColumns are appended to the metadata header in the reconciled output.
var ExtractionColumns = []string{"text", "pdf_text_size", "pdf_extraction_error", "extraction_method"}

// WriteBackup dumps the extracted-record index, one row per key.
func WriteBackup(w io.Writer, records []models.ExtractedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BackupColumns); err != nil {
		return fmt.Errorf("failed to write backup header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Key, r.Year, r.BaseName, r.FullPath,
			r.Text, strconv.Itoa(r.TextSize), strconv.FormatBool(r.HasError), string(r.ExtractionMethod),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write backup row %s: %w", r.Key, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// OutputHeader is the metadata header followed by the extraction columns. Metadata
// columns already named like an extraction column are dropped, so a reconciled
// file can be fed back in as metadata.
func OutputHeader(header []string) []string {
	out := make([]string, 0, len(header)+len(ExtractionColumns))
	for _, h := range header {
		if !isExtractionColumn(h) {
			out = append(out, h)
		}
	}
	return append(out, ExtractionColumns...)
}

// OutputRow renders one reconciled record in OutputHeader order.
func OutputRow(header []string, rec models.ReconciledRecord) []string {
	row := make([]string, 0, len(header)+len(ExtractionColumns))
	for _, h := range header {
		if !isExtractionColumn(h) {
			row = append(row, rec.Values[h])
		}
	}
	return append(row,
		rec.Text,
		strconv.Itoa(rec.TextSize),
		strconv.FormatBool(rec.HasError),
		string(rec.ExtractionMethod),
	)
}

// WriteReconciled writes the joined dataset: every metadata column plus the
// extraction columns, one row per metadata row.
func WriteReconciled(w io.Writer, header []string, records []models.ReconciledRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OutputHeader(header)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range records {
		if err := cw.Write(OutputRow(header, rec)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func isExtractionColumn(h string) bool {
	for _, c := range ExtractionColumns {
		if h == c {
			return true
		}
	}
	return false
}
