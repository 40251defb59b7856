package loginlog

import (
	"context"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/metrics"
	"cohort/internal/queue"
)

// publishTimeout bounds how long a request waits on a full queue.
const publishTimeout = 2 * time.Second

// Recorder hands login events to the worker through the queue.
type Recorder struct {
	q       queue.Queue
	timeout time.Duration
}

func NewRecorder(q queue.Queue) *Recorder {
	return &Recorder{q: q, timeout: publishTimeout}
}

// Record publishes e. Failures are logged and returned; callers treat them
// as non-fatal.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	msg, err := e.Encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.q.Publish(ctx, msg); err != nil {
		logger.Error.Printf("Failed to queue login event for %s: %v", e.Email, err)
		return err
	}
	return nil
}

// Handler returns the worker side: it decodes queued events and stores them.
func (r *Repository) Handler() queue.Handler {
	return func(ctx context.Context, msg queue.Message) error {
		e, err := Decode(msg)
		if err != nil {
			return err
		}
		stored, err := r.Insert(ctx, e)
		if err != nil {
			return err
		}
		metrics.LoginEventsTotal.WithLabelValues(strconv.FormatBool(stored.Success)).Inc()
		logger.Debug.Printf("Stored login event %s for %s (success=%v)", stored.ID, stored.Email, stored.Success)
		return nil
	}
}

// Serve stores queued login events until ctx is done.
func (r *Repository) Serve(ctx context.Context, q queue.Queue) error {
	return queue.Run(ctx, q, map[string]queue.Handler{MessageType: r.Handler()})
}
