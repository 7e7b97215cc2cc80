package extract

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// minLayoutChars is the trimmed length below which a page is re-read in density mode.
const minLayoutChars = 10

// LayoutBackend rebuilds page text from positioned glyph runs. Runs whose baselines
// differ by at most YTolerance share a line; a horizontal gap wider than XTolerance
// becomes a space. Pages yielding fewer than 10 characters are re-read on a fixed
// character grid of XDensity by YDensity points.
type LayoutBackend struct {
	XTolerance float64
	YTolerance float64
	XDensity   float64
	YDensity   float64
}

// NewLayoutBackend returns a LayoutBackend with the default tolerances.
func NewLayoutBackend() LayoutBackend {
	return LayoutBackend{XTolerance: 3, YTolerance: 3, XDensity: 7.25, YDensity: 13}
}

func (LayoutBackend) Method() models.Method { return models.MethodLayout }

func (b LayoutBackend) TryExtract(_ context.Context, path string, maxPages int) (string, error) {
	var text string
	err := withReader(path, func(r *pdf.Reader) error {
		n := pageLimit(r.NumPage(), maxPages)
		pages := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			page := r.Page(i)
			if page.V.IsNull() {
				continue
			}
			runs := page.Content().Text

			pageText := linesByTolerance(runs, b.XTolerance, b.YTolerance)
			if len(strings.TrimSpace(pageText)) < minLayoutChars {
				pageText = linesByDensity(runs, b.XDensity, b.YDensity)
			}
			pages = append(pages, pageText)
		}
		text = joinPages(pages)
		return nil
	})
	return text, err
}

// sortReadingOrder orders runs top to bottom (PDF y grows upwards), then left to right.
func sortReadingOrder(runs []pdf.Text) []pdf.Text {
	sorted := make([]pdf.Text, 0, len(runs))
	for _, t := range runs {
		if t.S != "" {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})
	return sorted
}

func linesByTolerance(runs []pdf.Text, xTol, yTol float64) string {
	sorted := sortReadingOrder(runs)
	if len(sorted) == 0 {
		return ""
	}

	var lines [][]pdf.Text
	var current []pdf.Text
	lineY := sorted[0].Y
	for _, t := range sorted {
		if math.Abs(t.Y-lineY) > yTol {
			lines = append(lines, current)
			current = nil
			lineY = t.Y
		}
		current = append(current, t)
	}
	lines = append(lines, current)

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		var sb strings.Builder
		for i, t := range line {
			if i > 0 {
				prev := line[i-1]
				if t.X-(prev.X+prev.W) > xTol && !strings.HasSuffix(sb.String(), " ") {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(t.S)
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

func linesByDensity(runs []pdf.Text, xDensity, yDensity float64) string {
	sorted := sortReadingOrder(runs)
	if len(sorted) == 0 || xDensity <= 0 || yDensity <= 0 {
		return ""
	}

	top := sorted[0].Y
	left := sorted[0].X
	for _, t := range sorted {
		left = math.Min(left, t.X)
	}

	rows := make(map[int][]rune)
	maxRow := 0
	for _, t := range sorted {
		row := int(math.Round((top - t.Y) / yDensity))
		col := int(math.Round((t.X - left) / xDensity))
		line := rows[row]
		if col < len(line) {
			col = len(line)
		}
		for len(line) < col {
			line = append(line, ' ')
		}
		rows[row] = append(line, []rune(t.S)...)
		if row > maxRow {
			maxRow = row
		}
	}

	out := make([]string, 0, len(rows))
	for row := 0; row <= maxRow; row++ {
		if line, ok := rows[row]; ok {
			out = append(out, strings.TrimRight(string(line), " "))
		}
	}
	return strings.Join(out, "\n")
}
