package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// Config fixes the pipeline's behaviour for a whole run.
type Config struct {
	MaxPages    int // 0 extracts every page
	MinFileSize int64
	// OCR is the probe outcome. OCR joins the chain only when OCR.Available.
	OCR        OCRCapability
	Recognizer Recognizer
}

// Pipeline runs the integrity gate and the backend chain over one document at a time.
type Pipeline struct {
	checker  IntegrityChecker
	backends []Backend
	maxPages int
	logger   *slog.Logger
}

// NewPipeline builds the standard chain: native, layout, legacy and, if the probe
// succeeded, OCR.
func NewPipeline(cfg Config, logger *slog.Logger) *Pipeline {
	backends := []Backend{NativeBackend{}, NewLayoutBackend(), LegacyBackend{}}
	if cfg.OCR.Available && cfg.Recognizer != nil {
		backends = append(backends, NewOCRBackend(cfg.Recognizer))
	}
	return newPipeline(NewIntegrityChecker(cfg.MinFileSize), backends, cfg.MaxPages, logger)
}

func newPipeline(checker IntegrityChecker, backends []Backend, maxPages int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{checker: checker, backends: backends, maxPages: maxPages, logger: logger}
}

// Methods lists the backend chain in the order it is tried.
func (p *Pipeline) Methods() []models.Method {
	out := make([]models.Method, len(p.backends))
	for i, b := range p.backends {
		out[i] = b.Method()
	}
	return out
}

// Extract produces exactly one result for path. Invalid files never reach a backend.
func (p *Pipeline) Extract(ctx context.Context, path string) models.ExtractionResult {
	logCtx := p.logger.With("path", path)

	if v := p.checker.Check(path); !v.Valid {
		logCtx.Warn("Integrity check failed.", "reason", v.Reason)
		return models.Failure(fmt.Sprintf("%s: %s", models.MethodInvalid, v.Reason))
	}

	for _, b := range p.backends {
		text, err := p.try(ctx, b, path)
		if err != nil {
			logCtx.Warn("Backend failed.", "method", b.Method(), "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			logCtx.Debug("Backend found no text.", "method", b.Method())
			continue
		}
		return models.Success(b.Method(), text)
	}

	logCtx.Warn("All extraction methods failed.", "methods", len(p.backends))
	return models.Failure(string(models.MethodExhausted))
}

// try isolates one backend attempt. A panic inside the backend becomes a *BackendError.
func (p *Pipeline) try(ctx context.Context, b Backend, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &BackendError{Backend: b.Method(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	text, err = b.TryExtract(ctx, path, p.maxPages)
	if err != nil {
		return "", &BackendError{Backend: b.Method(), Err: err}
	}
	return text, nil
}
