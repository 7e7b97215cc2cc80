package models

// These structs define the event and JSON payloads exchanged between the
// storage trigger, the text-base function and the downstream workflow.

// GCSEvent is the payload of a GCS object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// WorkflowArgument is the argument passed to the downstream workflow once a run completes.
type WorkflowArgument struct {
	RunID       string   `json:"runId"`
	Rows        int      `json:"rows"`
	Matched     int      `json:"matched"`
	SuccessRate float64  `json:"successRate"`
	OutputURIs  []string `json:"outputUris"`
}

// TextBaseResponse is the outcome reported by the text-base function.
type TextBaseResponse struct {
	Status     string   `json:"status"`
	RunID      string   `json:"runId"`
	OutputURIs []string `json:"outputUris,omitempty"`
}
