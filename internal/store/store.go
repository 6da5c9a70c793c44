package store

import (
	"context"

	"github.com/reliefworks/go-relief-registry/internal/models"
)

// Snapshot is the full persisted registry state, used to rebuild the
// in-memory aggregate at startup. List order matches insertion order as
// last written, including the order left behind by swap-and-pop closures.
type Snapshot struct {
	Disasters          map[uint64]*models.DisasterEvent
	Resources          map[uint64]*models.ReliefResource
	Workers            map[string]*models.ReliefWorker
	DisasterWorkers    map[uint64][]string
	ActiveDisasters    []uint64
	AvailableResources []uint64
	DisasterCount      uint64
	ResourceCount      uint64
	Balance            int64
}

// Store persists registry state. Each write method covers one registry
// operation and runs in a single transaction, so the store never holds a
// partially applied operation.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)

	InsertDisaster(ctx context.Context, d *models.DisasterEvent) error
	InsertResource(ctx context.Context, r *models.ReliefResource) error
	UpsertWorker(ctx context.Context, w *models.ReliefWorker) error
	RecordAssignment(ctx context.Context, disasterID uint64, w *models.ReliefWorker) error
	RecordDonation(ctx context.Context, disasterID uint64, fundsRaised, balance int64) error
	RecordAllocation(ctx context.Context, disasterID uint64, fundsAllocated int64) error
	RecordCompletion(ctx context.Context, w *models.ReliefWorker) error
	CloseDisaster(ctx context.Context, disasterID uint64, active []uint64) error

	AppendNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, limit int) ([]models.Notification, error)

	Close() error
}
