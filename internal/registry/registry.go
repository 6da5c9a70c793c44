package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/reliefworks/go-relief-registry/internal/events"
	"github.com/reliefworks/go-relief-registry/internal/models"
	"github.com/reliefworks/go-relief-registry/internal/store"
)

const (
	MinSeverity = 1
	MaxSeverity = 10
)

// Registry is the single aggregate owning all relief state. One mutex
// serializes every mutating operation: each call validates, persists its
// transaction, applies in memory, then emits its notification. A storage
// failure surfaces before any in-memory change, so callers never observe a
// half-applied operation.
type Registry struct {
	mu          sync.Mutex
	coordinator string
	store       store.Store
	events      *events.Broadcaster

	disasterCount uint64 // last assigned disaster id; ids start at 1
	resourceCount uint64 // last assigned resource id

	disasters       map[uint64]*models.DisasterEvent
	resources       map[uint64]*models.ReliefResource
	workers         map[string]*models.ReliefWorker
	disasterWorkers map[uint64][]string

	activeDisasters    []uint64
	availableResources []uint64

	balance int64 // custodial total of all donations received
}

// New builds a registry for the given coordinator id. If st is non-nil the
// persisted snapshot is loaded and every mutation is written through; a nil
// broadcaster disables notifications.
func New(ctx context.Context, coordinator string, st store.Store, bc *events.Broadcaster) (*Registry, error) {
	if strings.TrimSpace(coordinator) == "" {
		return nil, fmt.Errorf("%w: coordinator id is required", ErrValidation)
	}

	r := &Registry{
		coordinator:     coordinator,
		store:           st,
		events:          bc,
		disasters:       make(map[uint64]*models.DisasterEvent),
		resources:       make(map[uint64]*models.ReliefResource),
		workers:         make(map[string]*models.ReliefWorker),
		disasterWorkers: make(map[uint64][]string),
	}

	if st != nil {
		snap, err := st.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading registry snapshot: %w", err)
		}
		r.disasters = snap.Disasters
		r.resources = snap.Resources
		r.workers = snap.Workers
		r.disasterWorkers = snap.DisasterWorkers
		r.activeDisasters = snap.ActiveDisasters
		r.availableResources = snap.AvailableResources
		r.disasterCount = snap.DisasterCount
		r.resourceCount = snap.ResourceCount
		r.balance = snap.Balance
	}

	return r, nil
}

func (r *Registry) Coordinator() string {
	return r.coordinator
}

// ReportDisaster records a new disaster and returns its id. Open to any actor.
func (r *Registry) ReportDisaster(ctx context.Context, actor, location, disasterType string, severity int) (uint64, error) {
	if strings.TrimSpace(location) == "" {
		return 0, fmt.Errorf("%w: location is required", ErrValidation)
	}
	if strings.TrimSpace(disasterType) == "" {
		return 0, fmt.Errorf("%w: disaster type is required", ErrValidation)
	}
	if severity < MinSeverity || severity > MaxSeverity {
		return 0, fmt.Errorf("%w: severity must be between %d and %d", ErrValidation, MinSeverity, MaxSeverity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d := &models.DisasterEvent{
		ID:        r.disasterCount + 1,
		Location:  location,
		Type:      disasterType,
		Severity:  severity,
		Reporter:  actor,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	if r.store != nil {
		if err := r.store.InsertDisaster(ctx, d); err != nil {
			return 0, fmt.Errorf("persisting disaster: %w", err)
		}
	}

	r.disasterCount = d.ID
	r.disasters[d.ID] = d
	r.activeDisasters = append(r.activeDisasters, d.ID)

	r.emit(models.DisasterReported(actor, d))
	slog.Info("disaster reported", "id", d.ID, "location", d.Location, "type", d.Type, "severity", d.Severity)
	return d.ID, nil
}

// AllocateResource records a donated resource against an active disaster.
// The donation is declarative: nothing is reserved against disaster totals.
func (r *Registry) AllocateResource(ctx context.Context, actor string, disasterID uint64, resourceType string, quantity int64, location string) (uint64, error) {
	if strings.TrimSpace(resourceType) == "" {
		return 0, fmt.Errorf("%w: resource type is required", ErrValidation)
	}
	if strings.TrimSpace(location) == "" {
		return 0, fmt.Errorf("%w: location is required", ErrValidation)
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.activeDisaster(disasterID); err != nil {
		return 0, err
	}

	res := &models.ReliefResource{
		ID:         r.resourceCount + 1,
		DisasterID: disasterID,
		Type:       resourceType,
		Quantity:   quantity,
		Location:   location,
		Provider:   actor,
		Available:  true,
		CreatedAt:  time.Now().UTC(),
	}

	if r.store != nil {
		if err := r.store.InsertResource(ctx, res); err != nil {
			return 0, fmt.Errorf("persisting resource: %w", err)
		}
	}

	r.resourceCount = res.ID
	r.resources[res.ID] = res
	r.availableResources = append(r.availableResources, res.ID)

	r.emit(models.ResourceDonated(actor, res))
	return res.ID, nil
}

// RegisterWorker creates or overwrites the worker record keyed by the actor's
// id. Re-registering resets availability to true and the mission counter to
// zero; prior history is erased.
func (r *Registry) RegisterWorker(ctx context.Context, actor, name, skills, location string) (models.ReliefWorker, error) {
	if strings.TrimSpace(name) == "" {
		return models.ReliefWorker{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(skills) == "" {
		return models.ReliefWorker{}, fmt.Errorf("%w: skills are required", ErrValidation)
	}
	if strings.TrimSpace(location) == "" {
		return models.ReliefWorker{}, fmt.Errorf("%w: location is required", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w := &models.ReliefWorker{
		ID:           actor,
		Name:         name,
		Skills:       skills,
		Location:     location,
		Available:    true,
		RegisteredAt: time.Now().UTC(),
	}

	if r.store != nil {
		if err := r.store.UpsertWorker(ctx, w); err != nil {
			return models.ReliefWorker{}, fmt.Errorf("persisting worker: %w", err)
		}
	}

	r.workers[actor] = w
	return *w, nil
}

// AssignWorker appends a registered, available worker to an active disaster's
// worker list and marks the worker busy. Coordinator only.
func (r *Registry) AssignWorker(ctx context.Context, actor, workerID string, disasterID uint64) error {
	if err := r.requireCoordinator(actor); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.activeDisaster(disasterID); err != nil {
		return err
	}
	w, ok := r.workers[workerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, workerID)
	}
	if !w.Available {
		return fmt.Errorf("%w: %s", ErrNotAvailable, workerID)
	}

	assigned := *w
	assigned.Available = false

	if r.store != nil {
		if err := r.store.RecordAssignment(ctx, disasterID, &assigned); err != nil {
			return fmt.Errorf("persisting assignment: %w", err)
		}
	}

	w.Available = false
	r.disasterWorkers[disasterID] = append(r.disasterWorkers[disasterID], workerID)

	r.emit(models.WorkerAssigned(actor, workerID, disasterID))
	slog.Info("worker assigned", "worker", workerID, "disaster", disasterID)
	return nil
}

// DonateFunds attaches a positive amount to an active disaster and returns
// the disaster's new raised total. The value is held by the registry as one
// custodial balance; the per-disaster counter is bookkeeping only.
func (r *Registry) DonateFunds(ctx context.Context, actor string, disasterID uint64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.disasters[disasterID]
	if !ok || !d.Active {
		return 0, fmt.Errorf("%w: id %d", ErrInvalidDisaster, disasterID)
	}

	raised := d.FundsRaised + amount
	balance := r.balance + amount

	if r.store != nil {
		if err := r.store.RecordDonation(ctx, disasterID, raised, balance); err != nil {
			return 0, fmt.Errorf("persisting donation: %w", err)
		}
	}

	d.FundsRaised = raised
	r.balance = balance

	r.emit(models.FundsReceived(actor, disasterID, amount))
	return raised, nil
}

// AllocateFunds earmarks part of a disaster's raised funds for a purpose and
// returns the new allocated total. Bookkeeping only; no value moves.
// Coordinator only.
func (r *Registry) AllocateFunds(ctx context.Context, actor string, disasterID uint64, amount int64, purpose string) (int64, error) {
	if err := r.requireCoordinator(actor); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.disasters[disasterID]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrInvalidDisaster, disasterID)
	}
	if d.FundsRaised < d.FundsAllocated+amount {
		return 0, fmt.Errorf("%w: raised %d, already allocated %d, requested %d",
			ErrInsufficientFunds, d.FundsRaised, d.FundsAllocated, amount)
	}

	allocated := d.FundsAllocated + amount

	if r.store != nil {
		if err := r.store.RecordAllocation(ctx, disasterID, allocated); err != nil {
			return 0, fmt.Errorf("persisting allocation: %w", err)
		}
	}

	d.FundsAllocated = allocated

	r.emit(models.FundsAllocated(actor, disasterID, amount, purpose))
	return allocated, nil
}

// CompleteMission marks an assigned worker available again and increments the
// mission counter. The worker stays on every disaster's historical list.
// Coordinator only.
func (r *Registry) CompleteMission(ctx context.Context, actor, workerID string) (models.ReliefWorker, error) {
	if err := r.requireCoordinator(actor); err != nil {
		return models.ReliefWorker{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[workerID]
	if !ok {
		return models.ReliefWorker{}, fmt.Errorf("%w: %s", ErrNotRegistered, workerID)
	}
	if w.Available {
		return models.ReliefWorker{}, fmt.Errorf("%w: %s", ErrAlreadyAvailable, workerID)
	}

	completed := *w
	completed.Available = true
	completed.CompletedMissions++

	if r.store != nil {
		if err := r.store.RecordCompletion(ctx, &completed); err != nil {
			return models.ReliefWorker{}, fmt.Errorf("persisting completion: %w", err)
		}
	}

	*w = completed
	return completed, nil
}

// CloseDisaster deactivates a disaster and removes it from the active list by
// swapping with the last element, so enumeration order is not stable across
// closures. Coordinator only.
func (r *Registry) CloseDisaster(ctx context.Context, actor string, disasterID uint64) error {
	if err := r.requireCoordinator(actor); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.disasters[disasterID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrInvalidDisaster, disasterID)
	}
	if !d.Active {
		return fmt.Errorf("%w: id %d", ErrAlreadyClosed, disasterID)
	}

	active := make([]uint64, len(r.activeDisasters))
	copy(active, r.activeDisasters)
	for i, id := range active {
		if id == disasterID {
			active[i] = active[len(active)-1]
			active = active[:len(active)-1]
			break
		}
	}

	if r.store != nil {
		if err := r.store.CloseDisaster(ctx, disasterID, active); err != nil {
			return fmt.Errorf("persisting closure: %w", err)
		}
	}

	d.Active = false
	r.activeDisasters = active

	slog.Info("disaster closed", "id", disasterID)
	return nil
}

// ActiveDisasters returns the active disaster ids in enumeration order.
func (r *Registry) ActiveDisasters() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.activeDisasters))
	copy(out, r.activeDisasters)
	return out
}

// DisasterWorkers returns the append-only history of workers assigned to a
// disaster, including repeats.
func (r *Registry) DisasterWorkers(disasterID uint64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.disasterWorkers[disasterID]))
	copy(out, r.disasterWorkers[disasterID])
	return out
}

// AvailableResources returns every resource id ever donated. The list is
// never pruned.
func (r *Registry) AvailableResources() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.availableResources))
	copy(out, r.availableResources)
	return out
}

// Balance returns the custodial total held by the registry.
func (r *Registry) Balance() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance
}

func (r *Registry) Disaster(id uint64) (models.DisasterEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disasters[id]
	if !ok {
		return models.DisasterEvent{}, false
	}
	return *d, true
}

func (r *Registry) Resource(id uint64) (models.ReliefResource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[id]
	if !ok {
		return models.ReliefResource{}, false
	}
	return *res, true
}

func (r *Registry) Worker(id string) (models.ReliefWorker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return models.ReliefWorker{}, false
	}
	return *w, true
}

func (r *Registry) requireCoordinator(actor string) error {
	if actor != r.coordinator {
		return fmt.Errorf("%w: actor %q", ErrUnauthorized, actor)
	}
	return nil
}

// activeDisaster must be called with the lock held.
func (r *Registry) activeDisaster(id uint64) error {
	d, ok := r.disasters[id]
	if !ok || !d.Active {
		return fmt.Errorf("%w: id %d", ErrInvalidDisaster, id)
	}
	return nil
}

func (r *Registry) emit(n models.Notification) {
	if r.events != nil {
		r.events.Broadcast(n)
	}
}
