// Package realtime provides real-time progress delivery adapters.
package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// SSEAdapter implements out.ProgressPublisher using Server-Sent Events.
// Subscribers are keyed by upload job ID.
type SSEAdapter struct {
	clients map[string]map[chan *domain.UploadProgress]struct{} // jobID -> channels
	mu      sync.RWMutex
	log     zerolog.Logger

	messagesSent    atomic.Int64
	messagesDropped atomic.Int64
}

var _ out.ProgressPublisher = (*SSEAdapter)(nil)

// NewSSEAdapter creates a new SSE adapter.
func NewSSEAdapter(log zerolog.Logger) *SSEAdapter {
	return &SSEAdapter{
		clients: make(map[string]map[chan *domain.UploadProgress]struct{}),
		log:     log.With().Str("component", "sse_adapter").Logger(),
	}
}

// Subscribe creates a new subscription channel for a job.
func (a *SSEAdapter) Subscribe(jobID string) <-chan *domain.UploadProgress {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan *domain.UploadProgress, 256) // Buffer for backpressure

	if a.clients[jobID] == nil {
		a.clients[jobID] = make(map[chan *domain.UploadProgress]struct{})
	}
	a.clients[jobID][ch] = struct{}{}

	a.log.Debug().
		Str("job_id", jobID).
		Int("total_connections", len(a.clients[jobID])).
		Msg("client subscribed")

	return ch
}

// Unsubscribe removes a subscription channel.
func (a *SSEAdapter) Unsubscribe(jobID string, ch <-chan *domain.UploadProgress) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if channels, ok := a.clients[jobID]; ok {
		for c := range channels {
			if c == ch {
				delete(channels, c)
				close(c)
				break
			}
		}
		if len(channels) == 0 {
			delete(a.clients, jobID)
		}
	}

	a.log.Debug().
		Str("job_id", jobID).
		Msg("client unsubscribed")
}

// PublishProgress pushes a progress snapshot to every subscriber of the
// job. Slow subscribers with a full buffer drop the snapshot rather
// than block the pipeline.
func (a *SSEAdapter) PublishProgress(jobID string, progress *domain.UploadProgress) {
	a.mu.RLock()
	channels, ok := a.clients[jobID]
	if !ok || len(channels) == 0 {
		a.mu.RUnlock()
		return
	}

	chList := make([]chan *domain.UploadProgress, 0, len(channels))
	for ch := range channels {
		chList = append(chList, ch)
	}
	a.mu.RUnlock()

	for _, ch := range chList {
		select {
		case ch <- progress:
			a.messagesSent.Add(1)
		default:
			a.messagesDropped.Add(1)
			a.log.Warn().
				Str("job_id", jobID).
				Str("status", string(progress.Status)).
				Msg("dropped progress event due to full buffer")
		}
	}
}

// DeliveryCounts returns the totals of snapshots delivered and dropped
// since startup.
func (a *SSEAdapter) DeliveryCounts() (sent, dropped int64) {
	return a.messagesSent.Load(), a.messagesDropped.Load()
}

// ConnectedCount returns the number of jobs with active subscribers.
func (a *SSEAdapter) ConnectedCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.clients)
}

// SerializeProgress converts a progress snapshot to an SSE data payload.
func SerializeProgress(progress *domain.UploadProgress) ([]byte, error) {
	payload := map[string]interface{}{
		"upload_id":      progress.ID,
		"status":         progress.Status,
		"total_rows":     progress.TotalRows,
		"processed_rows": progress.ProcessedRows,
		"error_count":    progress.ErrorCount,
		"percentage":     progress.Percentage(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if progress.ErrorMessage != "" {
		payload["error_message"] = progress.ErrorMessage
	}
	return json.Marshal(payload)
}
