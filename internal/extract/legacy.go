package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// kerningSpace is the TJ displacement (thousandths of an em) read as a word gap.
const kerningSpace = -200

// LegacyBackend reads text-showing operators straight out of each page's content
// stream. It ignores fonts and encodings, so it is the least faithful text backend.
type LegacyBackend struct{}

func (LegacyBackend) Method() models.Method { return models.MethodLegacy }

func (LegacyBackend) TryExtract(_ context.Context, path string, maxPages int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	n := pageLimit(ctx.PageCount, maxPages)
	pages := make([]string, 0, n)
	for pageNr := 1; pageNr <= n; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", pageNr, err)
		}
		pages = append(pages, textFromContentStream(data))
	}
	return joinPages(pages), nil
}

// textFromContentStream scans a content stream for string operands of the
// Tj, TJ, ' and " operators. Positioning operators become spaces or newlines.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	var operands []string // decoded strings since the last operator
	var array []string    // pieces of the TJ array being read
	inArray := false

	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}
	space := func() {
		if s := sb.String(); s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
			sb.WriteByte(' ')
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '(':
			s, next := readLiteralString(data, i)
			if inArray {
				array = append(array, s)
			} else {
				operands = append(operands, s)
			}
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '<':
			s, next := readHexString(data, i)
			if inArray {
				array = append(array, s)
			} else {
				operands = append(operands, s)
			}
			i = next
		case c == '[':
			inArray = true
			array = array[:0]
			i++
		case c == ']':
			inArray = false
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case isDelimiter(c) || isWhitespace(c):
			i++
		default:
			start := i
			for i < len(data) && !isDelimiter(data[i]) && !isWhitespace(data[i]) {
				i++
			}
			tok := string(data[start:i])
			if inArray {
				// Kerning adjustment inside a TJ array.
				if v, err := strconv.ParseFloat(tok, 64); err == nil && v < kerningSpace {
					array = append(array, " ")
				}
				continue
			}
			switch tok {
			case "Tj":
				for _, s := range operands {
					sb.WriteString(s)
				}
			case "TJ":
				for _, s := range array {
					sb.WriteString(s)
				}
				array = array[:0]
			case "'", "\"":
				newline()
				for _, s := range operands {
					sb.WriteString(s)
				}
			case "T*", "ET":
				newline()
			case "Td", "TD", "Tm":
				space()
			}
			if !isNumber(tok) {
				operands = operands[:0]
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func readLiteralString(data []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := start
	for ; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			switch e := data[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// Line continuation.
			default:
				if e >= '0' && e <= '7' {
					val := 0
					for k := 0; k < 3 && i < len(data) && data[i] >= '0' && data[i] <= '7'; k++ {
						val = val*8 + int(data[i]-'0')
						i++
					}
					i--
					writeStringByte(&sb, byte(val))
				} else {
					writeStringByte(&sb, e)
				}
			}
		case c == '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
		default:
			writeStringByte(&sb, c)
		}
	}
	return sb.String(), i
}

// writeStringByte appends one string byte, read as Latin-1, so escaped and raw
// high bytes decode to the same rune and the result is always valid UTF-8.
func writeStringByte(sb *strings.Builder, c byte) {
	if c < utf8.RuneSelf {
		sb.WriteByte(c)
		return
	}
	sb.WriteRune(rune(c))
}

func readHexString(data []byte, start int) (string, int) {
	end := start + 1
	for end < len(data) && data[end] != '>' {
		end++
	}
	digits := make([]byte, 0, end-start)
	for _, c := range data[start+1 : end] {
		if !isWhitespace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var sb strings.Builder
	for k := 0; k+1 < len(digits); k += 2 {
		v, err := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		if err != nil {
			continue
		}
		if v >= 0x20 {
			sb.WriteRune(rune(v))
		}
	}
	if end < len(data) {
		end++
	}
	return sb.String(), end
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isNumber(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}
