package models

import (
	"strings"
	"time"
)

// Method tags how a document's text was obtained. Success tags name the backend
// that produced the text; failure tags name the reason the file yielded nothing.
type Method string

const (
	MethodNative Method = "NATIVE"
	MethodLayout Method = "LAYOUT"
	MethodLegacy Method = "LEGACY"
	MethodOCR    Method = "OCR"

	MethodInvalid   Method = "INVALID_PDF"
	MethodExhausted Method = "ALL_METHODS_FAILED"
)

// Sentinel text values written in place of document text.
const (
	ErrorPrefix        = "ERROR_"
	TextNotFound       = "PDF_NOT_FOUND"
	TextRowError       = "ERROR_ROW_PROCESSING"
	TruncationMarker   = "... [TEXTO_TRUNCADO]"
	MaxNormalizedRunes = 50000
)

// DocumentFile is a downloaded document discovered under <root>/<year>/<file>.
type DocumentFile struct {
	Year     string
	BaseName string // file name without extension
	Path     string
}

// ExtractionResult is the single outcome of running a document through the
// extraction chain. Exactly one of Success/Failure holds.
type ExtractionResult struct {
	Method  Method
	RawText string // set on success
	Reason  string // set on failure, e.g. "INVALID_PDF: document has no pages"
}

// Success builds a successful result tagged with the producing backend.
func Success(method Method, text string) ExtractionResult {
	return ExtractionResult{Method: method, RawText: text}
}

// Failure builds a failed result. The method tag is the part of the reason
// before the first colon.
func Failure(reason string) ExtractionResult {
	tag, _, _ := strings.Cut(reason, ":")
	return ExtractionResult{Method: Method(strings.TrimSpace(tag)), Reason: reason}
}

// OK reports whether a backend produced text.
func (r ExtractionResult) OK() bool {
	return r.Reason == ""
}

// Sentinel returns the error text stored for a failed result.
func (r ExtractionResult) Sentinel() string {
	return ErrorPrefix + r.Reason
}

// Tagged renders the result the way it appears in logs: "SUCCESS_NATIVE: ..." or "ERROR_...".
func (r ExtractionResult) Tagged() string {
	if !r.OK() {
		return r.Sentinel()
	}
	return "SUCCESS_" + string(r.Method) + ": " + r.RawText
}

// ExtractedRecord is the normalized per-file row, indexed by Key.
type ExtractedRecord struct {
	Key              string
	Year             string
	BaseName         string
	FullPath         string
	Text             string
	TextSize         int
	HasError         bool
	ExtractionMethod Method
}

// MetadataRecord is one row of the externally produced metadata table.
// Values keeps every column of the source row so it can be written back untouched.
type MetadataRecord struct {
	Title           string
	Link            string
	Year            string
	Description     string
	Tags            string
	PublicationDate string
	PublicationTime string
	Values          map[string]string
}

// DownloadLink converts a "/view" page link into the direct file download link.
func (m MetadataRecord) DownloadLink() string {
	if strings.Contains(m.Link, "/view") {
		return strings.Replace(m.Link, "/view", "/@@download/file", 1)
	}
	return m.Link
}

// MatchKind records how a metadata row found its document.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
	MatchNone  MatchKind = "none"
	MatchError MatchKind = "error"
)

// ReconciledRecord is a metadata row joined with its document text.
type ReconciledRecord struct {
	MetadataRecord
	Text             string
	TextSize         int
	HasError         bool
	ExtractionMethod Method
	MatchedKey       string
	Match            MatchKind
}

// Run is the ledger entry for a text-base build stored in Firestore.
type Run struct {
	RunID          string         `firestore:"runId,omitempty"`
	Status         string         `firestore:"status,omitempty"`
	ErrorDetails   string         `firestore:"errorDetails,omitempty"`
	MetadataHash   string         `firestore:"metadataHash,omitempty"`
	MetadataObject string         `firestore:"metadataObject,omitempty"`
	Documents      int            `firestore:"documents"`
	Succeeded      int            `firestore:"succeeded"`
	Failed         int            `firestore:"failed"`
	Rows           int            `firestore:"rows"`
	Matched        int            `firestore:"matched"`
	Unmatched      int            `firestore:"unmatched"`
	SuccessRate    float64        `firestore:"successRate"`
	MethodCounts   map[string]int `firestore:"methodCounts,omitempty"`
	OutputURIs     []string       `firestore:"outputUris,omitempty"`
	Execution      string         `firestore:"workflowExecution,omitempty"` // For traceability
	CreatedAt      time.Time      `firestore:"createdAt,omitempty"`
}
