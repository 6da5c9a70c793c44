package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/reliefworks/go-relief-registry/internal/events"
	"github.com/reliefworks/go-relief-registry/internal/models"
	"github.com/reliefworks/go-relief-registry/internal/store"
)

// Journal subscribes to the notification broadcaster and persists every
// notification it receives. Delivery inherits the broadcaster's drop-on-slow
// policy, so the journal is a best-effort audit trail; the store's record
// tables remain the source of truth for state.
type Journal struct {
	store   store.Store
	bc      *events.Broadcaster
	writers int
	subID   uint64
	wg      sync.WaitGroup
}

func NewJournal(st store.Store, bc *events.Broadcaster, writers int) *Journal {
	if writers < 1 {
		writers = 1
	}
	return &Journal{
		store:   st,
		bc:      bc,
		writers: writers,
	}
}

func (j *Journal) Start(ctx context.Context) {
	id, ch := j.bc.Subscribe()
	j.subID = id

	for i := 0; i < j.writers; i++ {
		j.wg.Add(1)
		go j.writer(ctx, ch)
	}
}

func (j *Journal) writer(ctx context.Context, ch <-chan models.Notification) {
	defer j.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := j.store.AppendNotification(ctx, &n); err != nil {
				slog.Error("error journaling notification", "id", n.ID, "kind", n.Kind, "error", err)
			}
		}
	}
}

// Stop unsubscribes from the broadcaster and waits for in-flight writes.
func (j *Journal) Stop() {
	j.bc.Unsubscribe(j.subID)
	j.wg.Wait()
}
