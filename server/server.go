package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/krelinga/video-generator/internal"
	"github.com/krelinga/video-generator/internal/generate"
	"github.com/krelinga/video-generator/vgrest"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

// Server implements vgrest.StrictServerInterface on top of River.
type Server struct {
	pool        *pgxpool.Pool
	riverClient *river.Client[pgx.Tx]
	logger      zerolog.Logger
}

func NewServer(pool *pgxpool.Pool, riverClient *river.Client[pgx.Tx], logger zerolog.Logger) *Server {
	return &Server{
		pool:        pool,
		riverClient: riverClient,
		logger:      logger,
	}
}

func internalError(format string, args ...any) vgrest.Error {
	return vgrest.Error{Code: "INTERNAL_ERROR", Message: fmt.Sprintf(format, args...)}
}

// CreateGeneration handles POST /generations.
func (s *Server) CreateGeneration(ctx context.Context, request vgrest.CreateGenerationRequestObject) (vgrest.CreateGenerationResponseObject, error) {
	if request.Body == nil {
		return vgrest.CreateGeneration400JSONResponse{
			Code:    "INVALID_REQUEST",
			Message: "Request body is required",
		}, nil
	}

	input, err := toGenerateInput(request.Body.Input)
	if err != nil {
		return vgrest.CreateGeneration400JSONResponse{
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		}, nil
	}
	if err := input.Validate(); err != nil {
		return vgrest.CreateGeneration400JSONResponse{
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		}, nil
	}
	if _, err := input.Params(); err != nil {
		return vgrest.CreateGeneration400JSONResponse{
			Code:    "INVALID_INPUT",
			Message: err.Error(),
		}, nil
	}

	jobArgs := internal.GenerateJobArgs{
		UUID:                uuid.UUID(request.Body.Uuid),
		Input:               input,
		WebhookURI:          request.Body.WebhookUri,
		WebhookToken:        request.Body.WebhookToken,
		HeartbeatWebhookURI: request.Body.HeartbeatWebhookUri,
	}

	// Insert the job and its UUID mapping atomically.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return vgrest.CreateGeneration500JSONResponse(internalError("failed to begin transaction: %v", err)), nil
	}
	defer tx.Rollback(ctx)

	var existingJobID int64
	err = tx.QueryRow(ctx, "SELECT river_job_id FROM uuid_job_mapping WHERE uuid = $1", jobArgs.UUID).Scan(&existingJobID)
	if err == nil {
		return vgrest.CreateGeneration409JSONResponse{
			Code:    "DUPLICATE_UUID",
			Message: fmt.Sprintf("A generation with UUID %s already exists", jobArgs.UUID),
		}, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return vgrest.CreateGeneration500JSONResponse(internalError("failed to check existing UUID: %v", err)), nil
	}

	insertedJob, err := s.riverClient.InsertTx(ctx, tx, jobArgs, nil)
	if err != nil {
		return vgrest.CreateGeneration500JSONResponse(internalError("failed to insert river job: %v", err)), nil
	}

	_, err = tx.Exec(ctx, "INSERT INTO uuid_job_mapping (uuid, river_job_id) VALUES ($1, $2)", jobArgs.UUID, insertedJob.Job.ID)
	if err != nil {
		return vgrest.CreateGeneration500JSONResponse(internalError("failed to insert uuid mapping: %v", err)), nil
	}

	if err := tx.Commit(ctx); err != nil {
		return vgrest.CreateGeneration500JSONResponse(internalError("failed to commit transaction: %v", err)), nil
	}

	s.logger.Info().
		Stringer("uuid", jobArgs.UUID).
		Int64("river_job_id", insertedJob.Job.ID).
		Str("variant", string(input.Variant())).
		Msg("generation queued")

	now := time.Now().UTC()
	return vgrest.CreateGeneration201JSONResponse{
		Uuid:      request.Body.Uuid,
		Status:    vgrest.Pending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetGeneration handles GET /generations/{uuid}.
func (s *Server) GetGeneration(ctx context.Context, request vgrest.GetGenerationRequestObject) (vgrest.GetGenerationResponseObject, error) {
	var riverJobID int64
	err := s.pool.QueryRow(ctx, "SELECT river_job_id FROM uuid_job_mapping WHERE uuid = $1", request.Uuid).Scan(&riverJobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return vgrest.GetGeneration404JSONResponse{
			Code:    "NOT_FOUND",
			Message: fmt.Sprintf("Generation with UUID %s not found", request.Uuid),
		}, nil
	} else if err != nil {
		return vgrest.GetGeneration500JSONResponse(internalError("failed to look up job mapping: %v", err)), nil
	}

	job, err := s.riverClient.JobGet(ctx, riverJobID)
	if errors.Is(err, river.ErrNotFound) || (err == nil && job == nil) {
		return vgrest.GetGeneration404JSONResponse{
			Code:    "NOT_FOUND",
			Message: fmt.Sprintf("Generation with UUID %s not found in queue", request.Uuid),
		}, nil
	} else if err != nil {
		return vgrest.GetGeneration500JSONResponse(internalError("failed to get river job: %v", err)), nil
	}

	var jobStatus internal.GenerateJobStatus
	if output := job.Output(); len(output) > 0 {
		if err := json.Unmarshal(output, &jobStatus); err != nil {
			return vgrest.GetGeneration500JSONResponse(internalError("failed to unmarshal job output: %v", err)), nil
		}
	}

	return vgrest.GetGeneration200JSONResponse(toGeneration(request.Uuid, job, jobStatus)), nil
}

func toGeneration(id uuid.UUID, job *rivertype.JobRow, jobStatus internal.GenerateJobStatus) vgrest.Generation {
	status := mapRiverStateToGenerationStatus(job.State)

	// Prefer the recorded error; fall back to River's for jobs that died
	// before recording one.
	var jobError *string
	if jobStatus.Error != nil {
		jobError = jobStatus.Error
	} else if status == vgrest.Failed && len(job.Errors) > 0 {
		lastError := job.Errors[len(job.Errors)-1].Error
		jobError = &lastError
	}

	updatedAt := job.CreatedAt
	if job.AttemptedAt != nil {
		updatedAt = *job.AttemptedAt
	}
	if job.FinalizedAt != nil {
		updatedAt = *job.FinalizedAt
	}

	return vgrest.Generation{
		Uuid:      id,
		Status:    status,
		Progress:  jobStatus.Progress,
		Result:    toGenerationResult(jobStatus.Result),
		Error:     jobError,
		CreatedAt: job.CreatedAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}
}

func toGenerationResult(r *generate.Result) *vgrest.GenerationResult {
	if r == nil {
		return nil
	}
	out := &vgrest.GenerationResult{}
	if r.Video != "" {
		out.Video = &r.Video
	}
	if r.VideoURL != "" {
		out.VideoUrl = &r.VideoURL
	}
	if r.Error != "" {
		out.Error = &r.Error
	}
	return out
}

// toGenerateInput converts the REST input through its JSON form, so both
// share the job document's decoding rules.
func toGenerateInput(in vgrest.GenerationInput) (generate.Input, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return generate.Input{}, fmt.Errorf("%w: %w", generate.ErrInvalidInput, err)
	}
	var out generate.Input
	if err := json.Unmarshal(data, &out); err != nil {
		return generate.Input{}, err
	}
	return out, nil
}

// mapRiverStateToGenerationStatus converts River job state to API GenerationStatus.
func mapRiverStateToGenerationStatus(state rivertype.JobState) vgrest.GenerationStatus {
	switch state {
	case rivertype.JobStateAvailable, rivertype.JobStateScheduled, rivertype.JobStateRetryable, rivertype.JobStatePending:
		return vgrest.Pending
	case rivertype.JobStateRunning:
		return vgrest.Running
	case rivertype.JobStateCompleted:
		return vgrest.Completed
	case rivertype.JobStateDiscarded, rivertype.JobStateCancelled:
		return vgrest.Failed
	default:
		return vgrest.Pending
	}
}
