package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Lllllllleong/resolutionflow/internal/extract"
	"github.com/Lllllllleong/resolutionflow/internal/matching"
	"github.com/Lllllllleong/resolutionflow/internal/models"
	"github.com/Lllllllleong/resolutionflow/internal/tabular"
)

// ErrNoExtractedText is returned when the document tree yielded no records at all.
var ErrNoExtractedText = errors.New("no documents were extracted")

// Extractor turns one document into exactly one extraction result.
type Extractor interface {
	Extract(ctx context.Context, path string) models.ExtractionResult
}

// Sink stores a named run artifact and returns where it ended up.
type Sink interface {
	Put(ctx context.Context, name string, write func(w io.Writer) error) (string, error)
}

// OrchestratorConfig tunes a run.
type OrchestratorConfig struct {
	ProgressEvery int  // log progress every N documents; 10 when unset
	WriteXLSX     bool // also write a workbook copy of the reconciled dataset
}

// Orchestrator drives a whole text-base run: discovery, extraction, backup,
// reconciliation and output.
type Orchestrator struct {
	extractor  Extractor
	reconciler *matching.Reconciler
	sink       Sink
	config     OrchestratorConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewOrchestrator(extractor Extractor, sink Sink, config OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 10
	}
	return &Orchestrator{
		extractor:  extractor,
		reconciler: matching.NewReconciler(logger),
		sink:       sink,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Run extracts every document under root, joins the result to the metadata
// table and writes the backup and output artifacts through the sink.
func (o *Orchestrator) Run(ctx context.Context, root string, md *tabular.Metadata) (*models.RunResult, error) {
	return o.RunWithID(ctx, uuid.NewString(), root, md)
}

// RunWithID is Run under a caller-chosen run ID.
func (o *Orchestrator) RunWithID(ctx context.Context, runID, root string, md *tabular.Metadata) (*models.RunResult, error) {
	res := &models.RunResult{RunID: runID, StartedAt: o.now()}
	logCtx := o.logger.With("runId", res.RunID)

	docs, err := DiscoverDocuments(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan document tree: %w", err)
	}
	logCtx.Info("Starting text extraction.", "root", root, "documents", len(docs), "metadataRows", len(md.Rows))

	index, stats, err := o.extractAll(ctx, logCtx, docs)
	if err != nil {
		return nil, err
	}
	res.Extraction = stats
	res.Extracted = sortedRecords(index)
	if len(index) == 0 {
		return res, ErrNoExtractedText
	}

	backup, err := o.sink.Put(ctx, tabular.BackupName(res.StartedAt), func(w io.Writer) error {
		return tabular.WriteBackup(w, res.Extracted)
	})
	if err != nil {
		// Extraction results are still returned and reconciled.
		logCtx.Error("Failed to write extraction backup.", "error", err)
	} else {
		res.Outputs = append(res.Outputs, backup)
		logCtx.Info("Extraction backup written.", "location", backup)
	}

	res.Records, res.Reconcile = o.reconciler.Reconcile(md.Rows, index)

	out, err := o.sink.Put(ctx, tabular.OutputName(res.StartedAt, ".csv"), func(w io.Writer) error {
		return tabular.WriteReconciled(w, md.Header, res.Records)
	})
	if err != nil {
		return res, fmt.Errorf("failed to write reconciled dataset: %w", err)
	}
	res.Outputs = append(res.Outputs, out)

	if o.config.WriteXLSX {
		wb, err := o.sink.Put(ctx, tabular.WorkbookName(res.StartedAt), func(w io.Writer) error {
			return tabular.WriteXLSX(w, md.Header, res.Records)
		})
		if err != nil {
			return res, fmt.Errorf("failed to write workbook: %w", err)
		}
		res.Outputs = append(res.Outputs, wb)
	}

	logCtx.Info("Run complete.", "outputs", res.Outputs)
	return res, nil
}

// extractAll processes documents strictly one after another. Cancellation is
// only observed between documents; a document in flight always completes.
func (o *Orchestrator) extractAll(ctx context.Context, logCtx *slog.Logger, docs []models.DocumentFile) (map[string]models.ExtractedRecord, models.ExtractionStats, error) {
	start := time.Now()
	index := make(map[string]models.ExtractedRecord, len(docs))
	stats := models.ExtractionStats{MethodCounts: make(map[models.Method]int)}
	docCtx := context.WithoutCancel(ctx)

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("extraction interrupted after %d of %d documents: %w", i, len(docs), err)
		}

		rec := o.extractOne(docCtx, doc)
		if prev, dup := index[rec.Key]; dup {
			stats.Collisions++
			logCtx.Warn("Key collision, replacing earlier record.", "key", rec.Key, "previous", prev.FullPath, "current", rec.FullPath)
		}
		index[rec.Key] = rec

		stats.Processed++
		stats.MethodCounts[rec.ExtractionMethod]++
		if rec.HasError {
			stats.Failed++
		} else {
			stats.Succeeded++
		}

		if stats.Processed%o.config.ProgressEvery == 0 {
			logCtx.Info("Extraction progress.",
				"processed", stats.Processed,
				"total", len(docs),
				"success", stats.Succeeded,
				"failure", stats.Failed,
			)
		}
	}

	stats.Duration = time.Since(start)
	logCtx.Info("Extraction complete.",
		"processed", stats.Processed,
		"success", stats.Succeeded,
		"failure", stats.Failed,
		"collisions", stats.Collisions,
		"duration", stats.Duration.String(),
	)
	return index, stats, nil
}

func (o *Orchestrator) extractOne(ctx context.Context, doc models.DocumentFile) models.ExtractedRecord {
	result := o.extractor.Extract(ctx, doc.Path)
	text := extract.Normalize(result)

	rec := models.ExtractedRecord{
		Key:              matching.BuildKey(doc.BaseName, doc.Year),
		Year:             doc.Year,
		BaseName:         doc.BaseName,
		FullPath:         doc.Path,
		Text:             text,
		HasError:         !result.OK(),
		ExtractionMethod: result.Method,
	}
	if result.OK() {
		rec.TextSize = utf8.RuneCountInString(text)
	}
	o.logger.Debug("Document processed.", "key", rec.Key, "method", rec.ExtractionMethod, "size", rec.TextSize)
	return rec
}

// DiscoverDocuments lists <root>/<year>/<name>.pdf files, years and names in
// lexical order. Deeper nesting and files directly under root are ignored.
func DiscoverDocuments(root string) ([]models.DocumentFile, error) {
	years, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var docs []models.DocumentFile
	for _, y := range years {
		if !y.IsDir() {
			continue
		}
		yearDir := filepath.Join(root, y.Name())
		entries, err := os.ReadDir(yearDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", yearDir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				continue
			}
			docs = append(docs, models.DocumentFile{
				Year:     y.Name(),
				BaseName: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
				Path:     filepath.Join(yearDir, e.Name()),
			})
		}
	}
	return docs, nil
}

func sortedRecords(index map[string]models.ExtractedRecord) []models.ExtractedRecord {
	out := make([]models.ExtractedRecord, 0, len(index))
	for _, r := range index {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// DirSink writes artifacts into a local directory.
type DirSink struct {
	Dir string
}

func (s DirSink) Put(_ context.Context, name string, write func(w io.Writer) error) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	if err := tabular.CreateFile(path, write); err != nil {
		return "", err
	}
	return path, nil
}
