// Package vgrest is the REST surface of the video generator: the OpenAPI
// document, request and response types, a chi handler that validates
// requests against the document, and a typed client.
package vgrest

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

type GenerationStatus string

const (
	Pending   GenerationStatus = "pending"
	Running   GenerationStatus = "running"
	Completed GenerationStatus = "completed"
	Failed    GenerationStatus = "failed"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GenerationInput mirrors the job input document.
type GenerationInput struct {
	Prompt         string   `json:"prompt"`
	NegativePrompt *string  `json:"negative_prompt,omitempty"`
	Length         *float64 `json:"length,omitempty"`
	Steps          *float64 `json:"steps,omitempty"`
	Seed           *uint64  `json:"seed,omitempty"`
	Cfg            *float64 `json:"cfg,omitempty"`
	// Width and Height are a number or a numeric string.
	Width       any      `json:"width,omitempty"`
	Height      any      `json:"height,omitempty"`
	FrameRate   *float64 `json:"frame_rate,omitempty"`
	ImagePath   *string  `json:"image_path,omitempty"`
	ImageUrl    *string  `json:"image_url,omitempty"`
	ImageBase64 *string  `json:"image_base64,omitempty"`
}

type CreateGenerationRequest struct {
	Uuid                openapi_types.UUID `json:"uuid"`
	Input               GenerationInput    `json:"input"`
	WebhookUri          *string            `json:"webhookUri,omitempty"`
	WebhookToken        []byte             `json:"webhookToken,omitempty"`
	HeartbeatWebhookUri *string            `json:"heartbeatWebhookUri,omitempty"`
}

type CreateGenerationJSONRequestBody = CreateGenerationRequest

type GenerationResult struct {
	Video    *string `json:"video,omitempty"`
	VideoUrl *string `json:"video_url,omitempty"`
	Error    *string `json:"error,omitempty"`
}

type Generation struct {
	Uuid      openapi_types.UUID `json:"uuid"`
	Status    GenerationStatus   `json:"status"`
	Progress  float64            `json:"progress"`
	Result    *GenerationResult  `json:"result,omitempty"`
	Error     *string            `json:"error,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
