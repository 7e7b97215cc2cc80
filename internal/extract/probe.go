package extract

import (
	"fmt"
	"os/exec"
	"strings"
)

// OCR engine names accepted by configuration.
const (
	EngineTesseract = "tesseract"
	EngineVertex    = "vertex"
	EngineNone      = "none"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// OCRCapability is the outcome of the one-time OCR probe.
type OCRCapability struct {
	Engine    string
	Available bool
	Reason    string // why OCR is unavailable
}

// ProbeOCR checks once, at startup, whether the configured OCR engine can run.
// Every engine needs pdftoppm to rasterize pages; tesseract additionally needs
// its own binary. A vertex engine is available when a model was configured.
func ProbeOCR(engine string, vertexConfigured bool) OCRCapability {
	engine = strings.ToLower(strings.TrimSpace(engine))
	c := OCRCapability{Engine: engine}

	switch engine {
	case "", EngineNone:
		c.Engine = EngineNone
		c.Reason = "ocr disabled"
		return c
	case EngineTesseract, EngineVertex:
	default:
		c.Reason = fmt.Sprintf("unknown ocr engine %q", engine)
		return c
	}

	if _, err := lookPath("pdftoppm"); err != nil {
		c.Reason = "pdftoppm not found: " + err.Error()
		return c
	}
	switch engine {
	case EngineTesseract:
		if _, err := lookPath("tesseract"); err != nil {
			c.Reason = "tesseract not found: " + err.Error()
			return c
		}
	case EngineVertex:
		if !vertexConfigured {
			c.Reason = "vertex ai model not configured"
			return c
		}
	}
	c.Available = true
	return c
}
