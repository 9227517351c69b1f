package realtime

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
)

func TestPublishProgressDeliveryCounts(t *testing.T) {
	adapter := NewSSEAdapter(zerolog.Nop())
	job := domain.NewUploadProgress("counts.csv")

	ch := adapter.Subscribe(job.ID)

	// The subscriber buffer holds 256 snapshots; the 257th must be
	// dropped rather than block the publisher.
	for i := 0; i < 257; i++ {
		adapter.PublishProgress(job.ID, job)
	}

	sent, dropped := adapter.DeliveryCounts()
	if sent != 256 {
		t.Errorf("sent = %d, want 256", sent)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}

	adapter.Unsubscribe(job.ID, ch)
}

func TestPublishProgressConcurrent(t *testing.T) {
	adapter := NewSSEAdapter(zerolog.Nop())

	jobs := []*domain.UploadProgress{
		domain.NewUploadProgress("a.csv"),
		domain.NewUploadProgress("b.csv"),
	}

	done := make(chan struct{})
	var drainers sync.WaitGroup
	for _, job := range jobs {
		ch := adapter.Subscribe(job.ID)
		drainers.Add(1)
		go func(ch <-chan *domain.UploadProgress) {
			defer drainers.Done()
			for {
				select {
				case <-ch:
				case <-done:
					return
				}
			}
		}(ch)
	}

	const perJob = 100

	var publishers sync.WaitGroup
	for _, job := range jobs {
		publishers.Add(1)
		go func(job *domain.UploadProgress) {
			defer publishers.Done()
			for i := 0; i < perJob; i++ {
				adapter.PublishProgress(job.ID, job)
			}
		}(job)
	}
	publishers.Wait()
	close(done)
	drainers.Wait()

	sent, dropped := adapter.DeliveryCounts()
	if sent+dropped != int64(len(jobs)*perJob) {
		t.Errorf("sent+dropped = %d, want %d", sent+dropped, len(jobs)*perJob)
	}
}
