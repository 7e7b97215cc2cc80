package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/google/uuid"

	"github.com/Lllllllleong/resolutionflow/internal/extract"
	"github.com/Lllllllleong/resolutionflow/internal/gcp"
	"github.com/Lllllllleong/resolutionflow/internal/models"
	"github.com/Lllllllleong/resolutionflow/internal/tabular"
)

// Run ledger statuses.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

type TextBaseConfig struct {
	ProjectID        string
	OutputBucket     string
	PDFBucket        string // defaults to the event's bucket
	PDFPrefix        string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
	VertexAIRegion   string
	OCREngine        string
	OCRLanguage      string
	MaxPages         int
}

// TextBaseFunction rebuilds the text base whenever a new metadata table lands in storage.
type TextBaseFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	ledger        *gcp.RunLedger
	workflow      *WorkflowTrigger
	vertexClient  *gcp.VertexClient
	pipeline      *extract.Pipeline
	config        TextBaseConfig
}

func loadTextBaseConfig() (*TextBaseConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	outputBucket := gcp.GetEnv("OUTPUT_BUCKET", "")
	if outputBucket == "" {
		return nil, fmt.Errorf("OUTPUT_BUCKET environment variable must be set")
	}
	maxPages, err := strconv.Atoi(gcp.GetEnv("MAX_PAGES", "0"))
	if err != nil || maxPages < 0 {
		return nil, fmt.Errorf("MAX_PAGES must be a non-negative integer")
	}

	return &TextBaseConfig{
		ProjectID:        projectID,
		OutputBucket:     outputBucket,
		PDFBucket:        gcp.GetEnv("PDF_BUCKET", ""),
		PDFPrefix:        gcp.GetEnv("PDF_PREFIX", "pdfs/"),
		CollectionName:   gcp.GetEnv("FIRESTORE_COLLECTION", "textbase_runs"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		VertexAIRegion:   gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		OCREngine:        gcp.GetEnv("OCR_ENGINE", extract.EngineTesseract),
		OCRLanguage:      gcp.GetEnv("OCR_LANGUAGE", "por"),
		MaxPages:         maxPages,
	}, nil
}

func NewTextBase(ctx context.Context) (*TextBaseFunction, error) {
	config, err := loadTextBaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	var executionsClient *executions.Client
	if config.WorkflowID != "" {
		executionsClient, err = executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}

	f := &TextBaseFunction{
		storageClient:    storageClient,
		firestoreClient:  firestoreClient,
		executionsClient: executionsClient,
		ledger:           gcp.NewRunLedger(firestoreClient, config.CollectionName),
		workflow:         NewWorkflowTrigger(executionsClient, config.ProjectID, config.WorkflowLocation, config.WorkflowID),
		config:           *config,
	}

	var model extract.GenerativeModel
	if strings.EqualFold(config.OCREngine, extract.EngineVertex) {
		f.vertexClient, err = gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		model = f.vertexClient.OCRModel
	}

	ocr := extract.ProbeOCR(config.OCREngine, model != nil)
	f.pipeline = extract.NewPipeline(extract.Config{
		MaxPages:    config.MaxPages,
		MinFileSize: extract.DefaultMinFileSize,
		OCR:         ocr,
		Recognizer:  extract.NewRecognizer(config.OCREngine, config.OCRLanguage, model),
	}, slog.Default())

	slog.Info("Text base logic initialized.",
		"ocrEngine", ocr.Engine,
		"ocrAvailable", ocr.Available,
		"ocrReason", ocr.Reason,
		"workflowId", config.WorkflowID,
	)
	return f, nil
}

// Process runs a full text-base build for the metadata table named by the event.
func (f *TextBaseFunction) Process(ctx context.Context, e models.GCSEvent) (*models.TextBaseResponse, error) {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !tabular.IsMetadataFile(e.Name) {
		logCtx.Info("Object is not a metadata table. Skipping.")
		return &models.TextBaseResponse{Status: "skipped"}, nil
	}
	logCtx.Info("Processing new metadata table.")

	tempDir, err := os.MkdirTemp("", "textbase-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	metadataPath := filepath.Join(tempDir, path.Base(e.Name))
	if err := gcp.DownloadObject(ctx, f.storageClient.Bucket(e.Bucket), e.Name, metadataPath); err != nil {
		logCtx.Error("Failed to download metadata table", "error", err)
		return nil, err
	}

	hash, err := calculateFileHash(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("metadataHash", hash)

	existing, dup, err := f.ledger.FindByHash(ctx, hash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return nil, err
	}
	if dup {
		logCtx.Info("Metadata table already processed. Skipping.", "existingRunId", existing)
		return &models.TextBaseResponse{Status: "duplicate", RunID: existing}, nil
	}

	runID := uuid.NewString()
	logCtx = logCtx.With("runId", runID)
	if err := f.ledger.Create(ctx, models.Run{
		RunID:          runID,
		Status:         StatusRunning,
		MetadataHash:   hash,
		MetadataObject: fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name),
		CreatedAt:      time.Now(),
	}); err != nil {
		logCtx.Error("Failed to create run document", "error", err)
		return nil, err
	}

	md, err := tabular.ReadMetadataFile(metadataPath)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, runID, "failed to read metadata table", err)
	}

	pdfBucket := f.config.PDFBucket
	if pdfBucket == "" {
		pdfBucket = e.Bucket
	}
	docRoot := filepath.Join(tempDir, "pdfs")
	if err := os.MkdirAll(docRoot, 0o755); err != nil {
		return nil, f.handleError(ctx, logCtx, runID, "failed to create document dir", err)
	}
	n, err := gcp.DownloadPrefix(ctx, f.storageClient.Bucket(pdfBucket), f.config.PDFPrefix, docRoot, isYearDocument)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, runID, "failed to download document tree", err)
	}
	logCtx.Info("Document tree downloaded.", "documents", n)

	sink := GCSSink{
		Bucket:     f.storageClient.Bucket(f.config.OutputBucket),
		BucketName: f.config.OutputBucket,
		Prefix:     runID + "/",
		CreateOnly: true,
	}
	orch := NewOrchestrator(f.pipeline, sink, OrchestratorConfig{WriteXLSX: true}, slog.Default())
	res, err := orch.RunWithID(ctx, runID, docRoot, md)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, runID, "text base run failed", err)
	}

	execution, err := f.workflow.Trigger(ctx, logCtx, res)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, runID, "failed to trigger workflow", err)
	}

	if err := f.ledger.Update(ctx, runID, completedUpdates(res, execution)); err != nil {
		return nil, f.handleError(ctx, logCtx, runID, "failed to update status to COMPLETED", err)
	}

	logCtx.Info("Text base run complete.", "outputs", res.Outputs, "successRate", res.Reconcile.SuccessRate())
	return &models.TextBaseResponse{Status: "success", RunID: runID, OutputURIs: res.Outputs}, nil
}

func completedUpdates(res *models.RunResult, execution string) []firestore.Update {
	methods := make(map[string]int, len(res.Extraction.MethodCounts))
	for m, n := range res.Extraction.MethodCounts {
		methods[string(m)] = n
	}
	updates := []firestore.Update{
		{Path: "status", Value: StatusCompleted},
		{Path: "documents", Value: res.Extraction.Processed},
		{Path: "succeeded", Value: res.Extraction.Succeeded},
		{Path: "failed", Value: res.Extraction.Failed},
		{Path: "rows", Value: res.Reconcile.Total},
		{Path: "matched", Value: res.Reconcile.Matched()},
		{Path: "unmatched", Value: res.Reconcile.Unmatched},
		{Path: "successRate", Value: res.Reconcile.SuccessRate()},
		{Path: "methodCounts", Value: methods},
		{Path: "outputUris", Value: res.Outputs},
	}
	if execution != "" {
		updates = append(updates, firestore.Update{Path: "workflowExecution", Value: execution})
	}
	return updates
}

// isYearDocument keeps objects laid out as <year>/<name>.pdf below the prefix.
func isYearDocument(rel string) bool {
	parts := strings.Split(rel, "/")
	return len(parts) == 2 && parts[0] != "" && strings.EqualFold(path.Ext(parts[1]), ".pdf")
}

func (f *TextBaseFunction) handleError(ctx context.Context, logCtx *slog.Logger, runID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	updates := []firestore.Update{
		{Path: "status", Value: StatusFailed},
		{Path: "errorDetails", Value: fullError},
	}
	if err := f.ledger.Update(ctx, runID, updates); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Close releases the function's clients.
func (f *TextBaseFunction) Close() error {
	var errs []error
	if f.vertexClient != nil {
		errs = append(errs, f.vertexClient.Close())
	}
	if f.storageClient != nil {
		errs = append(errs, f.storageClient.Close())
	}
	if f.firestoreClient != nil {
		errs = append(errs, f.firestoreClient.Close())
	}
	if f.executionsClient != nil {
		errs = append(errs, f.executionsClient.Close())
	}
	return errors.Join(errs...)
}
