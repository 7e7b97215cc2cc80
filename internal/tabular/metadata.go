// Package tabular reads the resolution metadata table and writes the run's
// delimited and spreadsheet outputs.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// ErrMissingColumn is returned when the metadata header lacks a required column.
var ErrMissingColumn = errors.New("metadata is missing a required column")

// Accepted header names per field, Portuguese first.
var columnAliases = map[string][]string{
	"title":           {"titulo", "título", "title"},
	"link":            {"link", "url"},
	"year":            {"ano", "year"},
	"description":     {"descricao", "descrição", "description"},
	"tags":            {"tags"},
	"publicationDate": {"data_publicacao", "data_publicação", "publication_date"},
	"publicationTime": {"hora_publicacao", "hora_publicação", "publication_time"},
}

var requiredFields = []string{"title", "link", "year"}

// Metadata is a parsed metadata table. Header keeps the source column order so
// outputs can reproduce it.
type Metadata struct {
	Header []string
	Rows   []models.MetadataRecord
}

// ReadMetadataFile reads a metadata table from a .csv or .xlsx file.
func ReadMetadataFile(path string) (*Metadata, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadMetadataXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()
	return ReadMetadata(f)
}

// ReadMetadata parses a comma-delimited metadata table with a header row.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata csv: %w", err)
	}
	return fromRows(records)
}

// fromRows maps a header row plus data rows onto MetadataRecords.
func fromRows(records [][]string) (*Metadata, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrMissingColumn)
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimPrefix(h, "\ufeff")
		header[i] = strings.TrimSpace(h)
	}

	cols := resolveColumns(header)
	for _, field := range requiredFields {
		if _, ok := cols[field]; !ok {
			return nil, fmt.Errorf("%w: %s (accepted: %s)", ErrMissingColumn, field, strings.Join(columnAliases[field], ", "))
		}
	}

	md := &Metadata{Header: header, Rows: make([]models.MetadataRecord, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		get := func(field string) string {
			i, ok := cols[field]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		values := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				values[h] = rec[i]
			}
		}
		md.Rows = append(md.Rows, models.MetadataRecord{
			Title:           get("title"),
			Link:            get("link"),
			Year:            normalizeYear(get("year")),
			Description:     get("description"),
			Tags:            get("tags"),
			PublicationDate: get("publicationDate"),
			PublicationTime: get("publicationTime"),
			Values:          values,
		})
	}
	return md, nil
}

func resolveColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			for i, h := range header {
				if strings.EqualFold(h, alias) {
					if _, seen := cols[field]; !seen {
						cols[field] = i
					}
				}
			}
		}
	}
	return cols
}

// normalizeYear turns spreadsheet-style "2020.0" into "2020".
func normalizeYear(y string) string {
	if head, tail, ok := strings.Cut(y, "."); ok && strings.Trim(tail, "0") == "" {
		return head
	}
	return y
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
