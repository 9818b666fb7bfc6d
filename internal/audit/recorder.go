package audit

import (
	"context"
	"log"

	"github.com/google/uuid"

	"studbook/pkg/requestcontext"
)

// Store persists events for later relay or inspection.
//
//go:generate mockgen -source=recorder.go -destination=mocks/mocks.go -package=mocks Store
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Recorder is the write side services talk to. Recording is best-effort:
// a failure to persist an operator-review event is logged but never fails
// the read or write that encountered the finding.
type Recorder struct {
	store Store
	log   *log.Logger
}

// NewRecorder constructs a Recorder. A nil store turns recording into
// log-only mode.
func NewRecorder(store Store, logger *log.Logger) *Recorder {
	return &Recorder{store: store, log: logger}
}

// Record fills in the event's ID, actor, and timestamp from context and
// persists it. Errors are logged, not returned.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Actor == "" {
		event.Actor = requestcontext.Actor(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if r.log != nil {
		r.log.Printf("audit %s table=%s party=%s count=%d detail=%s", event.Kind, event.Table, event.PartyID, event.Count, event.Detail)
	}
	if r.store == nil {
		return
	}
	if err := r.store.Append(ctx, event); err != nil && r.log != nil {
		r.log.Printf("audit append failed (kind=%s): %v", event.Kind, err)
	}
}
