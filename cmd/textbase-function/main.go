package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/resolutionflow/internal/models"
	"github.com/Lllllllleong/resolutionflow/internal/services"
)

var (
	textBaseInstance *services.TextBaseFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("BuildTextBase", buildTextBase)
}

// main is required by the Go Functions Framework.
func main() {}

// buildTextBase is the Cloud Function entry point, fired when an object is
// finalized in the metadata bucket.
func buildTextBase(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		textBaseInstance, initErr = services.NewTextBase(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	resp, err := textBaseInstance.Process(ctx, gcsEvent)
	if err != nil {
		// Already logged with run context inside Process.
		return err
	}
	slog.Info("Invocation finished.", "status", resp.Status, "runId", resp.RunID)
	return nil
}
