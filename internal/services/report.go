package services

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// WriteReport prints the end-of-run summary.
func WriteReport(w io.Writer, res *models.RunResult) {
	total := len(res.Records)
	withText := res.WithText()
	pct := 0.0
	if total > 0 {
		pct = float64(withText) / float64(total) * 100
	}

	fmt.Fprintf(w, "Run %s\n", res.RunID)
	fmt.Fprintf(w, "Documents processed: %d (success %d, failure %d, key collisions %d) in %s\n",
		res.Extraction.Processed, res.Extraction.Succeeded, res.Extraction.Failed,
		res.Extraction.Collisions, res.Extraction.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Metadata rows: %d (exact %d, fuzzy %d, unmatched %d, row errors %d) in %s\n",
		res.Reconcile.Total, res.Reconcile.Exact, res.Reconcile.Fuzzy,
		res.Reconcile.Unmatched, res.Reconcile.RowErrors, res.Reconcile.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Resolutions with extracted text: %d/%d (%.1f%%)\n", withText, total, pct)

	dist := res.MethodDistribution()
	methods := make([]string, 0, len(dist))
	for m := range dist {
		methods = append(methods, string(m))
	}
	sort.Strings(methods)
	if len(methods) > 0 {
		fmt.Fprintln(w, "By extraction method:")
		for _, m := range methods {
			fmt.Fprintf(w, "  %-10s %d\n", m, dist[models.Method(m)])
		}
	}
	for _, out := range res.Outputs {
		fmt.Fprintf(w, "Wrote %s\n", out)
	}
}
