package extract

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// Normalize renders a result as stored text. Failures become their error sentinel
// untouched. Successful text is NFKD-decomposed, has every whitespace run collapsed
// to one space and is capped at models.MaxNormalizedRunes runes plus the truncation marker.
func Normalize(r models.ExtractionResult) string {
	if !r.OK() {
		return r.Sentinel()
	}
	text := norm.NFKD.String(r.RawText)
	text = strings.Join(strings.Fields(text), " ")

	if runes := []rune(text); len(runes) > models.MaxNormalizedRunes {
		text = string(runes[:models.MaxNormalizedRunes]) + models.TruncationMarker
	}
	return text
}
