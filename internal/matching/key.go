// Package matching derives join keys from resolution titles and joins metadata
// rows to the text extracted from their downloaded documents.
package matching

import "strings"

// DefaultMaxTitleLen bounds sanitized titles, which double as file names.
const DefaultMaxTitleLen = 100

// UntitledPlaceholder stands in for titles with no usable characters.
const UntitledPlaceholder = "resolucao_sem_titulo"

const allowedPunctuation = "-_.() "

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune(allowedPunctuation, r)
}

// SanitizeTitle reduces a title to the characters allowed in document file names.
// Anything outside ASCII letters, digits, space and "-_.()" is dropped, whitespace
// runs collapse to one space and the result is cut to maxLen bytes.
// It is the single sanitizer used both to name downloaded files and to build join
// keys, and it is idempotent.
func SanitizeTitle(title string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxTitleLen
	}

	var sb strings.Builder
	for _, r := range title {
		if allowed(r) {
			sb.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(sb.String()), " ")
	if len(cleaned) > maxLen {
		cleaned = strings.TrimSpace(cleaned[:maxLen])
	}
	if cleaned == "" {
		if len(UntitledPlaceholder) > maxLen {
			return UntitledPlaceholder[:maxLen]
		}
		return UntitledPlaceholder
	}
	return cleaned
}

// BuildKey returns the composite "{year}_{sanitizedTitle}" join key.
func BuildKey(title, year string) string {
	return strings.TrimSpace(year) + "_" + SanitizeTitle(title, DefaultMaxTitleLen)
}

// FileName returns the name a document for title is downloaded under.
func FileName(title string) string {
	return SanitizeTitle(title, DefaultMaxTitleLen) + ".pdf"
}
