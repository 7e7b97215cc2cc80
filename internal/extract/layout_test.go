package extract

import (
	"context"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinesByTolerance(t *testing.T) {
	runs := []pdf.Text{
		{X: 72, Y: 700, W: 40, S: "Art. 1"},
		{X: 102, Y: 720, W: 20, S: "LUCAO"},
		{X: 72, Y: 720, W: 30, S: "RESO"},
		{X: 130, Y: 721, W: 10, S: "N"},
		{X: 300, Y: 650, W: 0, S: ""},
	}
	assert.Equal(t, "RESOLUCAO N\nArt. 1", linesByTolerance(runs, 3, 3))
}

func TestLinesByTolerance_TighterYSplitsLines(t *testing.T) {
	runs := []pdf.Text{
		{X: 72, Y: 720, W: 10, S: "a"},
		{X: 90, Y: 715, W: 10, S: "b"},
	}
	assert.Equal(t, "a b", linesByTolerance(runs, 3, 6))
	assert.Equal(t, "a\nb", linesByTolerance(runs, 3, 3))
}

func TestLinesByDensity(t *testing.T) {
	runs := []pdf.Text{
		{X: 72, Y: 720, S: "A"},
		{X: 86.5, Y: 720, S: "B"},
		{X: 72, Y: 694, S: "C"},
	}
	assert.Equal(t, "A B\nC", linesByDensity(runs, 7.25, 13))
	assert.Empty(t, linesByDensity(nil, 7.25, 13))
}

func TestNewLayoutBackend_Defaults(t *testing.T) {
	b := NewLayoutBackend()
	assert.Equal(t, 3.0, b.XTolerance)
	assert.Equal(t, 3.0, b.YTolerance)
	assert.Equal(t, 7.25, b.XDensity)
	assert.Equal(t, 13.0, b.YDensity)
}

func TestLayoutBackend_TryExtract(t *testing.T) {
	path := writeFile(t, "res.pdf", buildTextPDF("Hello World from the council"))

	text, err := NewLayoutBackend().TryExtract(context.Background(), path, 0)
	require.NoError(t, err)
	assert.Equal(t, "Hello World from the council", text)
}

func TestLayoutBackend_ShortPageUsesDensityGrid(t *testing.T) {
	// Two characters stay under the 10-character threshold, so the page is
	// re-read on the density grid.
	path := writeFile(t, "short.pdf", buildTextPDF("Oi"))

	text, err := NewLayoutBackend().TryExtract(context.Background(), path, 1)
	require.NoError(t, err)
	assert.Equal(t, "Oi", text)

	// A backend whose grid cannot place any glyph shows the retry result is used.
	b := NewLayoutBackend()
	b.XDensity = 0
	text, err = b.TryExtract(context.Background(), path, 1)
	require.NoError(t, err)
	assert.Empty(t, text)
}
