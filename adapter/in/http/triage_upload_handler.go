package http

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"triage_server/adapter/out/realtime"
	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/ingest"
	"triage_server/pkg/response"
)

// maxUploadBytes bounds the in-memory CSV read.
const maxUploadBytes = 50 << 20 // 50MB

// UploadHandler handles CSV upload, mailbox sync, and live progress.
type UploadHandler struct {
	processor *ingest.Processor
	progress  out.ProgressRepository
	hub       *realtime.SSEAdapter
	provider  out.MailboxProvider
	syncMax   int
	log       zerolog.Logger
}

func NewUploadHandler(
	processor *ingest.Processor,
	progress out.ProgressRepository,
	hub *realtime.SSEAdapter,
	provider out.MailboxProvider,
	syncMax int,
	log zerolog.Logger,
) *UploadHandler {
	return &UploadHandler{
		processor: processor,
		progress:  progress,
		hub:       hub,
		provider:  provider,
		syncMax:   syncMax,
		log:       log.With().Str("handler", "upload").Logger(),
	}
}

func (h *UploadHandler) Register(app fiber.Router) {
	app.Post("/upload", h.Upload)
	app.Post("/sync", h.Sync)
	app.Get("/upload/:id/progress", h.Progress)
	app.Get("/upload/:id/stream", h.Stream)
}

// Upload accepts a multipart CSV file and starts ingestion in the
// background. Returns 202 with the upload ID used to poll progress.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "missing file field")
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		return response.BadRequest(c, "only CSV files are supported")
	}
	if fileHeader.Size > maxUploadBytes {
		return response.BadRequest(c, "file too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalError(c, "failed to open uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return response.InternalError(c, "failed to read uploaded file")
	}
	if len(data) > maxUploadBytes {
		return response.BadRequest(c, "file too large")
	}

	job := domain.NewUploadProgress(fileHeader.Filename)
	if err := h.progress.Save(c.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("failed to create upload job")
		return response.InternalError(c, "failed to create upload job")
	}

	// Capture response fields before the pipeline starts mutating the job.
	jobID, filename, status := job.ID, job.Filename, job.Status

	// Ingestion outlives the request; detach from the request context.
	go func() {
		ctx := context.Background()
		if _, err := h.processor.ProcessCSV(ctx, job, data); err != nil {
			h.log.Error().Err(err).
				Str("upload_id", jobID).
				Str("filename", filename).
				Msg("csv ingestion failed")
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(response.Response{
		Success: true,
		Data: fiber.Map{
			"upload_id": jobID,
			"filename":  filename,
			"status":    status,
		},
	})
}

// Sync pulls recent messages from the connected mailbox into the same
// ingestion pipeline.
func (h *UploadHandler) Sync(c *fiber.Ctx) error {
	if h.provider == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "PROVIDER_ERROR", "no mailbox provider configured")
	}

	max := c.QueryInt("max", h.syncMax)
	if max <= 0 || max > h.syncMax {
		max = h.syncMax
	}

	job := domain.NewUploadProgress("mailbox-sync")
	if err := h.progress.Save(c.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("failed to create sync job")
		return response.InternalError(c, "failed to create sync job")
	}

	jobID, status := job.ID, job.Status

	go func() {
		ctx := context.Background()
		if _, err := h.processor.SyncMailbox(ctx, job, h.provider, max); err != nil {
			h.log.Error().Err(err).
				Str("upload_id", jobID).
				Msg("mailbox sync failed")
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(response.Response{
		Success: true,
		Data: fiber.Map{
			"upload_id": jobID,
			"status":    status,
			"max":       max,
		},
	})
}

// Progress returns a point-in-time snapshot of an upload job.
func (h *UploadHandler) Progress(c *fiber.Ctx) error {
	job, err := h.progress.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load upload progress")
		return response.InternalError(c, "failed to load upload progress")
	}
	if job == nil {
		return response.NotFound(c, "upload not found")
	}

	return response.OK(c, progressPayload(job))
}

// Stream pushes progress snapshots over SSE until the job reaches a
// terminal state. Live pipeline events are merged with a 1s poll so a
// subscriber joining after completion still sees the final state.
func (h *UploadHandler) Stream(c *fiber.Ctx) error {
	jobID := c.Params("id")

	job, err := h.progress.GetByID(c.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load upload progress")
		return response.InternalError(c, "failed to load upload progress")
	}
	if job == nil {
		return response.NotFound(c, "upload not found")
	}

	events := h.hub.Subscribe(jobID)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unsubscribe(jobID, events)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		if !writeProgressEvent(w, job) {
			return
		}
		if job.Status.IsTerminal() {
			return
		}

		for {
			select {
			case snapshot, ok := <-events:
				if !ok {
					return
				}
				if !writeProgressEvent(w, snapshot) {
					return
				}
				if snapshot.Status.IsTerminal() {
					return
				}

			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				snapshot, err := h.progress.GetByID(ctx, jobID)
				cancel()
				if err != nil || snapshot == nil {
					continue
				}
				if !writeProgressEvent(w, snapshot) {
					return
				}
				if snapshot.Status.IsTerminal() {
					return
				}
			}
		}
	})

	return nil
}

func writeProgressEvent(w *bufio.Writer, progress *domain.UploadProgress) bool {
	data, err := realtime.SerializeProgress(progress)
	if err != nil {
		return true
	}
	w.WriteString("event: progress\n")
	w.WriteString("data: ")
	w.Write(data)
	w.WriteString("\n\n")
	return w.Flush() == nil
}

func progressPayload(job *domain.UploadProgress) fiber.Map {
	payload := fiber.Map{
		"upload_id":      job.ID,
		"filename":       job.Filename,
		"status":         job.Status,
		"total_rows":     job.TotalRows,
		"processed_rows": job.ProcessedRows,
		"error_count":    job.ErrorCount,
		"percentage":     job.Percentage(),
	}
	if job.ErrorMessage != "" {
		payload["error_message"] = job.ErrorMessage
	}
	return payload
}
