package internal

import (
	"github.com/google/uuid"
	"github.com/krelinga/video-generator/internal/generate"
	"github.com/riverqueue/river"
)

// GenerateJobArgs contains the arguments for a video generation job.
// This is used as the River job args payload.
type GenerateJobArgs struct {
	UUID                uuid.UUID      `json:"uuid"`
	Input               generate.Input `json:"input"`
	WebhookURI          *string        `json:"webhookUri,omitempty"`
	WebhookToken        []byte         `json:"webhookToken,omitempty"`
	HeartbeatWebhookURI *string        `json:"heartbeatWebhookUri,omitempty"`
}

// Kind returns the job kind identifier for River.
func (GenerateJobArgs) Kind() string {
	return "generate"
}

// InsertOpts disables retries. A failed generation is reported, not re-run.
func (GenerateJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

// GenerateJobStatus represents the current status of a generation job.
// This is stored as River job output via river.RecordOutput() and can be
// read by both server and worker.
type GenerateJobStatus struct {
	// Progress is the sampling progress percentage (0-100).
	Progress float64 `json:"progress"`
	// Result is set once the engine run finished.
	Result *generate.Result `json:"result,omitempty"`
	// Error contains an error message if the job failed.
	Error *string `json:"error,omitempty"`
}

// WebhookJobArgs contains the arguments for a webhook notification job.
type WebhookJobArgs struct {
	URI         string             `json:"uri"`
	Token       []byte             `json:"token,omitempty"`
	UUID        uuid.UUID          `json:"uuid"`
	Status      *GenerateJobStatus `json:"status,omitempty"`
	IsHeartbeat bool               `json:"isHeartbeat,omitempty"`
}

// Kind returns the job kind identifier for River.
func (WebhookJobArgs) Kind() string {
	return "webhook"
}
