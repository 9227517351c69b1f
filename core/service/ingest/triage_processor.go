package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/agent/rag"
	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/textutil"
)

const (
	// progressInterval is how many rows pass between progress writes; a
	// final write always happens at job end.
	progressInterval = 10

	// classifyBatchSize groups rows purely to bound classification call
	// rate; batch boundaries have no semantic effect.
	classifyBatchSize = 5
)

// dateLayouts accepted when parsing the date column, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"02 Jan 2006 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822,
}

// rowInput is one message entering the per-row pipeline, from either a
// CSV row or a synced mailbox message.
type rowInput struct {
	Sender          string
	Subject         string
	Body            string
	Date            string
	SourceMessageID string
}

type rowOutcome int

const (
	rowOK rowOutcome = iota
	rowSoftFailure
	rowHardFailure
)

// JobSummary aggregates per-row outcomes for a finished job.
type JobSummary struct {
	Processed    int
	SoftFailures int
	HardFailures int
}

// Processor orchestrates per-row ingestion: extraction, classification,
// PII backfill, persistence, and embedding.
type Processor struct {
	emails     out.EmailRepository
	progress   out.ProgressRepository
	classifier out.Classifier
	embedder   out.Embedder
	publisher  out.ProgressPublisher
	log        zerolog.Logger
}

func NewProcessor(
	emails out.EmailRepository,
	progress out.ProgressRepository,
	classifier out.Classifier,
	embedder out.Embedder,
	publisher out.ProgressPublisher,
	log zerolog.Logger,
) *Processor {
	return &Processor{
		emails:     emails,
		progress:   progress,
		classifier: classifier,
		embedder:   embedder,
		publisher:  publisher,
		log:        log,
	}
}

// ProcessCSV runs a whole CSV job against an existing progress record.
// Row-level failures never abort the job; only file-level errors (bad
// encoding, missing required columns) mark it failed.
func (p *Processor) ProcessCSV(ctx context.Context, job *domain.UploadProgress, data []byte) (JobSummary, error) {
	table, err := parseCSV(data)
	if err != nil {
		if errors.Is(err, errUndecodable) {
			appErr := apperr.UndecodableFile(job.Filename)
			p.failJob(ctx, job, appErr.Message)
			return JobSummary{}, appErr
		}
		p.failJob(ctx, job, err.Error())
		return JobSummary{}, err
	}

	mapping := MapHeaders(table.headers)
	if missing := MissingRequired(mapping); len(missing) > 0 {
		appErr := apperr.MissingColumns(missing)
		p.failJob(ctx, job, appErr.Message)
		return JobSummary{}, appErr
	}

	job.TotalRows = len(table.rows)
	if err := p.progress.SetTotal(ctx, job.ID, job.TotalRows); err != nil {
		p.log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record total rows")
	}
	p.publish(job)

	inputs := make([]rowInput, 0, len(table.rows))
	for _, row := range table.rows {
		inputs = append(inputs, rowInput{
			Sender:  row[mapping[FieldSender]],
			Subject: row[mapping[FieldSubject]],
			Body:    row[mapping[FieldBody]],
			Date:    row[mapping[FieldDate]],
		})
	}

	summary := p.processRows(ctx, job, inputs)
	p.completeJob(ctx, job, summary)
	return summary, nil
}

// processRows drives the batched row loop shared by CSV and sync jobs.
func (p *Processor) processRows(ctx context.Context, job *domain.UploadProgress, inputs []rowInput) JobSummary {
	var summary JobSummary

	for start := 0; start < len(inputs); start += classifyBatchSize {
		end := start + classifyBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		for _, input := range inputs[start:end] {
			switch p.processRow(ctx, input) {
			case rowSoftFailure:
				summary.SoftFailures++
			case rowHardFailure:
				summary.HardFailures++
			}
			summary.Processed++

			// processed_rows counts rows the pipeline got through; rows that
			// failed to persist are not "processed".
			job.ProcessedRows = summary.Processed - summary.HardFailures
			job.ErrorCount = summary.SoftFailures + summary.HardFailures
			if summary.Processed%progressInterval == 0 {
				p.updateProgress(ctx, job)
			}
		}
	}

	return summary
}

// processRow runs one message through the pipeline. Outcomes never unwind
// past the row boundary.
func (p *Processor) processRow(ctx context.Context, input rowInput) rowOutcome {
	sender := textutil.CleanText(input.Sender)
	subject := textutil.CleanText(input.Subject)
	body := textutil.CleanText(input.Body)

	if sender == "" || subject == "" || body == "" {
		p.log.Debug().Str("sender", sender).Str("subject", subject).Msg("row skipped: required field empty")
		return rowSoftFailure
	}

	record := domain.NewEmailRecord(sender, subject, body)
	record.Metadata.SourceMessageID = input.SourceMessageID
	if input.Date != "" {
		record.Metadata.Date = input.Date
		if epoch, ok := parseDate(input.Date); ok {
			record.Metadata.DateEpoch = epoch
		}
	}

	result := p.classifier.Classify(ctx, subject, body, sender)
	record.Filtered = result.Filtered
	record.Priority = result.Priority
	record.Classification = result.Classification
	record.Sentiment = result.Sentiment
	record.Summary = result.Summary
	record.SuggestedResponses = result.SuggestedResponses
	record.OtherDetails = mergePII(result.OtherDetails, sender, body)

	if err := p.emails.Save(ctx, record); err != nil {
		p.log.Error().Err(err).Str("sender", sender).Msg("row persistence failed")
		return rowHardFailure
	}

	if vec := p.embedder.Embed(ctx, rag.PrepareText(subject, body)); vec != nil {
		emb := &domain.Embeddings{
			Vector: vec,
			Model:  p.embedder.Model(),
			Dim:    len(vec),
			Text:   rag.PrepareText(subject, body),
		}
		if err := p.emails.SetEmbeddings(ctx, record.ID, emb); err != nil {
			p.log.Warn().Err(err).Str("email_id", record.ID).Msg("failed to store embedding")
		}
	}

	return rowOK
}

// mergePII backfills contact details from pattern extraction, filling
// only fields the classifier left empty. Classifier values are never
// overwritten.
func mergePII(details domain.OtherDetails, sender, body string) domain.OtherDetails {
	pii := textutil.ExtractPII(body)

	if details.PhoneNumber == "" && len(pii.Phones) > 0 {
		details.PhoneNumber = pii.Phones[0]
	}
	if details.Address == "" && pii.Address != "" {
		details.Address = pii.Address
	}
	if details.AlternateEmail == "" {
		for _, email := range pii.Emails {
			if !strings.EqualFold(email, sender) {
				details.AlternateEmail = email
				break
			}
		}
	}
	return details
}

func parseDate(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

func (p *Processor) updateProgress(ctx context.Context, job *domain.UploadProgress) {
	if err := p.progress.UpdateCounts(ctx, job.ID, job.ProcessedRows, job.ErrorCount); err != nil {
		p.log.Warn().Err(err).Str("job_id", job.ID).Msg("progress update failed")
	}
	p.publish(job)
}

func (p *Processor) completeJob(ctx context.Context, job *domain.UploadProgress, summary JobSummary) {
	job.Status = domain.UploadCompleted
	job.ProcessedRows = summary.Processed - summary.HardFailures
	job.ErrorCount = summary.SoftFailures + summary.HardFailures
	if err := p.progress.MarkCompleted(ctx, job.ID, job.ProcessedRows, job.ErrorCount); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job completed")
	}
	p.publish(job)
	p.log.Info().
		Str("job_id", job.ID).
		Int("processed", summary.Processed).
		Int("soft_failures", summary.SoftFailures).
		Int("hard_failures", summary.HardFailures).
		Msg("ingestion job completed")
}

func (p *Processor) failJob(ctx context.Context, job *domain.UploadProgress, message string) {
	job.Status = domain.UploadFailed
	job.ErrorMessage = message
	if err := p.progress.MarkFailed(ctx, job.ID, message); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job failed")
	}
	p.publish(job)
	p.log.Error().Str("job_id", job.ID).Str("reason", message).Msg("ingestion job failed")
}

func (p *Processor) publish(job *domain.UploadProgress) {
	if p.publisher != nil {
		// Subscribers consume asynchronously; hand them a copy so later
		// mutations of the live job do not show through.
		snapshot := *job
		p.publisher.PublishProgress(job.ID, &snapshot)
	}
}
