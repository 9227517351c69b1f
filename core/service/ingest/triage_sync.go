package ingest

import (
	"context"
	"fmt"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// SyncMailbox fetches up to max recent messages from the provider and
// runs the new ones through the row pipeline under job's progress record.
// Messages already ingested (matched by source message id) are skipped
// without counting as failures.
func (p *Processor) SyncMailbox(ctx context.Context, job *domain.UploadProgress, provider out.MailboxProvider, max int) (JobSummary, error) {
	messages, err := provider.FetchRecent(ctx, max)
	if err != nil {
		p.failJob(ctx, job, fmt.Sprintf("mailbox fetch failed: %v", err))
		return JobSummary{}, err
	}

	inputs := make([]rowInput, 0, len(messages))
	for _, msg := range messages {
		exists, err := p.emails.ExistsBySourceMessageID(ctx, msg.SourceMessageID)
		if err != nil {
			p.log.Warn().Err(err).Str("message_id", msg.SourceMessageID).Msg("dedupe lookup failed, skipping message")
			continue
		}
		if exists {
			continue
		}
		inputs = append(inputs, rowInput{
			Sender:          msg.Sender,
			Subject:         msg.Subject,
			Body:            msg.Body,
			Date:            msg.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			SourceMessageID: msg.SourceMessageID,
		})
	}

	job.TotalRows = len(inputs)
	if err := p.progress.SetTotal(ctx, job.ID, job.TotalRows); err != nil {
		p.log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record total rows")
	}
	p.publish(job)

	summary := p.processRows(ctx, job, inputs)
	p.completeJob(ctx, job, summary)
	return summary, nil
}
