package matching

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// fuzzyTokens is how many leading title tokens the same-year rule considers.
const fuzzyTokens = 3

// Reconciler left-joins metadata rows to extracted records.
type Reconciler struct {
	logger *slog.Logger
	// locate is swapped in tests to exercise per-row fault recovery.
	locate func(row models.MetadataRecord, idx *index) (string, models.MatchKind)
}

// NewReconciler creates a Reconciler logging through logger (slog.Default when nil).
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger, locate: locate}
}

type index struct {
	records map[string]models.ExtractedRecord
	keys    []string // ascending; fixes the fuzzy scan order
}

func newIndex(records map[string]models.ExtractedRecord) *index {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &index{records: records, keys: keys}
}

// Reconcile produces exactly one row per metadata row, in input order. A row takes
// the record stored under its exact key, else the first record (ascending key order)
// satisfying the fuzzy rule, else the not-found sentinels.
func (r *Reconciler) Reconcile(rows []models.MetadataRecord, records map[string]models.ExtractedRecord) ([]models.ReconciledRecord, models.ReconcileStats) {
	start := time.Now()
	idx := newIndex(records)
	out := make([]models.ReconciledRecord, 0, len(rows))
	stats := models.ReconcileStats{Total: len(rows)}

	for i, row := range rows {
		rec := r.reconcileRow(row, idx)
		switch rec.Match {
		case models.MatchExact:
			stats.Exact++
		case models.MatchFuzzy:
			stats.Fuzzy++
			r.logger.Debug("fuzzy match", "row", i, "title", row.Title, "key", rec.MatchedKey)
		case models.MatchError:
			stats.RowErrors++
			stats.Unmatched++
		default:
			stats.Unmatched++
		}
		out = append(out, rec)
	}

	stats.Duration = time.Since(start)
	r.logger.Info("Reconciliation complete.",
		"rows", stats.Total,
		"exact", stats.Exact,
		"fuzzy", stats.Fuzzy,
		"unmatched", stats.Unmatched,
		"rowErrors", stats.RowErrors,
		"successRate", fmt.Sprintf("%.1f%%", stats.SuccessRate()*100),
	)
	return out, stats
}

func (r *Reconciler) reconcileRow(row models.MetadataRecord, idx *index) (out models.ReconciledRecord) {
	out.MetadataRecord = row
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Failed to reconcile row", "title", row.Title, "year", row.Year, "panic", p)
			out.Text = fmt.Sprintf("%s: %v", models.TextRowError, p)
			out.TextSize = 0
			out.HasError = true
			out.ExtractionMethod = ""
			out.MatchedKey = ""
			out.Match = models.MatchError
		}
	}()

	key, kind := r.locate(row, idx)
	if kind == models.MatchNone {
		out.Text = models.TextNotFound
		out.HasError = true
		out.Match = models.MatchNone
		return out
	}

	rec := idx.records[key]
	out.Text = rec.Text
	out.TextSize = rec.TextSize
	out.HasError = rec.HasError
	out.ExtractionMethod = rec.ExtractionMethod
	out.MatchedKey = key
	out.Match = kind
	return out
}

func locate(row models.MetadataRecord, idx *index) (string, models.MatchKind) {
	key := BuildKey(row.Title, row.Year)
	if _, ok := idx.records[key]; ok {
		return key, models.MatchExact
	}
	if k, ok := fuzzyMatch(row, idx); ok {
		return k, models.MatchFuzzy
	}
	return "", models.MatchNone
}

// fuzzyMatch accepts the first record whose key contains the expected file name
// (or is contained by it), or that shares the row's year and contains one of the
// title's leading tokens in its file name. All comparisons ignore case.
func fuzzyMatch(row models.MetadataRecord, idx *index) (string, bool) {
	expected := strings.ToLower(SanitizeTitle(row.Title, DefaultMaxTitleLen))
	year := strings.TrimSpace(row.Year)

	tokens := strings.Fields(expected)
	if len(tokens) > fuzzyTokens {
		tokens = tokens[:fuzzyTokens]
	}

	for _, key := range idx.keys {
		lowerKey := strings.ToLower(key)
		if strings.Contains(lowerKey, expected) || strings.Contains(expected, lowerKey) {
			return key, true
		}

		rec := idx.records[key]
		if rec.Year != year {
			continue
		}
		name := strings.ToLower(rec.BaseName)
		for _, tok := range tokens {
			if strings.Contains(name, tok) {
				return key, true
			}
		}
	}
	return "", false
}
