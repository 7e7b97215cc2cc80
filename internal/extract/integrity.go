package extract

import (
	"fmt"
	"os"
	"strings"
)

// DefaultMinFileSize is the smallest byte size a file may have and still be checked.
const DefaultMinFileSize = 100

// Loader reports a document's page count, failing if the document cannot be opened.
type Loader interface {
	PageCount(path string) (int, error)
}

// Verdict is the result of an integrity check.
type Verdict struct {
	Valid  bool
	Reason string
}

// IntegrityChecker rejects files that are too small or cannot be opened by the
// primary backend before any extraction is attempted.
type IntegrityChecker struct {
	Loader      Loader
	MinFileSize int64
}

// NewIntegrityChecker checks with the native backend's loader.
func NewIntegrityChecker(minSize int64) IntegrityChecker {
	if minSize <= 0 {
		minSize = DefaultMinFileSize
	}
	return IntegrityChecker{Loader: NativeBackend{}, MinFileSize: minSize}
}

// Check never panics: parser faults are classified like any other open error.
func (c IntegrityChecker) Check(path string) (v Verdict) {
	info, err := os.Stat(path)
	if err != nil {
		return Verdict{Reason: fmt.Sprintf("cannot stat file: %v", err)}
	}
	if info.Size() < c.MinFileSize {
		return Verdict{Reason: fmt.Sprintf("file too small (%d bytes)", info.Size())}
	}

	defer func() {
		if p := recover(); p != nil {
			v = Verdict{Reason: classifyOpenError(fmt.Sprint(p))}
		}
	}()

	pages, err := c.Loader.PageCount(path)
	if err != nil {
		return Verdict{Reason: classifyOpenError(err.Error())}
	}
	if pages == 0 {
		return Verdict{Reason: "document has no pages"}
	}
	return Verdict{Valid: true}
}

// missingRootPhrases identify a document whose trailer names no catalog.
// A bare "root" would also match paths such as /root/...
var missingRootPhrases = []string{"no /root", "missing /root", "/root object", "no root object"}

func classifyOpenError(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, missingRootPhrases):
		return "corrupted file (missing /Root object)"
	case strings.Contains(lower, "not a pdf"):
		return "not a valid PDF file"
	}
	if r := []rune(msg); len(r) > 100 {
		msg = string(r[:100])
	}
	return "verification error: " + msg
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
