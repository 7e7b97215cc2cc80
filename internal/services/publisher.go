package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/resolutionflow/internal/gcp"
	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// GCSSink uploads run artifacts to a bucket under Prefix.
type GCSSink struct {
	Bucket     *storage.BucketHandle
	BucketName string
	Prefix     string
	CreateOnly bool // never overwrite an existing object
}

func (s GCSSink) Put(ctx context.Context, name string, write func(w io.Writer) error) (string, error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return "", err
	}
	object := s.Prefix + name
	if err := gcp.UploadWithRetry(ctx, s.Bucket, object, buf.Bytes(), s.CreateOnly); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", s.BucketName, object), nil
}

// WorkflowTrigger starts a downstream workflow execution once a run completes.
type WorkflowTrigger struct {
	client   *executions.Client
	parent   string
	disabled bool
}

// NewWorkflowTrigger returns a trigger for the given workflow. An empty workflowID
// yields a trigger that does nothing.
func NewWorkflowTrigger(client *executions.Client, projectID, location, workflowID string) *WorkflowTrigger {
	if workflowID == "" || client == nil {
		return &WorkflowTrigger{disabled: true}
	}
	return &WorkflowTrigger{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}
}

// WorkflowArgument summarises a run for the downstream workflow.
func WorkflowArgument(res *models.RunResult) models.WorkflowArgument {
	return models.WorkflowArgument{
		RunID:       res.RunID,
		Rows:        res.Reconcile.Total,
		Matched:     res.Reconcile.Matched(),
		SuccessRate: res.Reconcile.SuccessRate(),
		OutputURIs:  res.Outputs,
	}
}

// Trigger returns the execution name, or "" when the trigger is disabled.
func (t *WorkflowTrigger) Trigger(ctx context.Context, logCtx *slog.Logger, res *models.RunResult) (string, error) {
	if t.disabled {
		return "", nil
	}
	logCtx.Info("Triggering workflow.", "workflow", t.parent)
	payloadBytes, err := json.Marshal(WorkflowArgument(res))
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: t.parent,
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	exec, err := t.client.CreateExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}
