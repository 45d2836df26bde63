// Package activity provides the best-effort audit trail for request lifecycle
// transitions. Entries are appended from a background worker after the
// transactional core has committed, so a failed log write can never leave the
// request or ledger state inconsistent with what was returned to the caller.
package activity

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devcircle/devcircle-server/internal/models"
)

// Store is the subset of the repository the recorder needs.
type Store interface {
	CreateActivity(ctx context.Context, activity *models.Activity) error
}

const defaultQueueSize = 256

// Recorder appends activity entries asynchronously.
type Recorder struct {
	store Store
	queue chan *models.Activity
	done  chan struct{}
}

// NewRecorder starts the background worker. queueSize <= 0 uses the default.
func NewRecorder(store Store, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	r := &Recorder{
		store: store,
		queue: make(chan *models.Activity, queueSize),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.CreateActivity(ctx, entry); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"user": entry.UserID,
				"type": entry.Type,
			}).Warn("Failed to record activity")
		}
		cancel()
	}
}

// Record queues an audit entry. It never blocks and never fails the caller;
// if the queue is full the entry is dropped with a warning.
func (r *Recorder) Record(entry *models.Activity) {
	select {
	case r.queue <- entry:
	default:
		log.WithFields(log.Fields{
			"user": entry.UserID,
			"type": entry.Type,
		}).Warn("Activity queue full, dropping entry")
	}
}

// Close drains any queued entries and stops the worker.
func (r *Recorder) Close() {
	close(r.queue)
	<-r.done
}
