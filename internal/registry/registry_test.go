package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/reliefworks/go-relief-registry/internal/events"
	"github.com/reliefworks/go-relief-registry/internal/models"
	"github.com/reliefworks/go-relief-registry/internal/store"
)

const coordinator = "coordinator_1"

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(context.Background(), coordinator, nil, nil)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	return r
}

func reportTestDisaster(t *testing.T, r *Registry) uint64 {
	t.Helper()
	id, err := r.ReportDisaster(context.Background(), "reporter_1", "Townsville", "flood", 7)
	if err != nil {
		t.Fatalf("ReportDisaster failed: %v", err)
	}
	return id
}

func TestReportDisaster_SequentialIDs(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		id, err := r.ReportDisaster(ctx, "reporter_1", "Townsville", "flood", 7)
		if err != nil {
			t.Fatalf("ReportDisaster failed: %v", err)
		}
		if id != want {
			t.Errorf("expected id %d, got %d", want, id)
		}
	}

	active := r.ActiveDisasters()
	if len(active) != 3 {
		t.Fatalf("expected 3 active disasters, got %d", len(active))
	}
	for i, id := range active {
		if id != uint64(i+1) {
			t.Errorf("expected active[%d] = %d, got %d", i, i+1, id)
		}
	}
}

func TestReportDisaster_Validation(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		location string
		dtype    string
		severity int
	}{
		{"empty location", "", "flood", 5},
		{"blank location", "   ", "flood", 5},
		{"empty type", "Townsville", "", 5},
		{"severity too low", "Townsville", "flood", 0},
		{"severity too high", "Townsville", "flood", 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ReportDisaster(ctx, "reporter_1", tt.location, tt.dtype, tt.severity)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	if len(r.ActiveDisasters()) != 0 {
		t.Error("failed reports must not create disasters")
	}
}

func TestAllocateResource(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	disasterID := reportTestDisaster(t, r)

	resID, err := r.AllocateResource(ctx, "provider_1", disasterID, "water", 500, "Depot A")
	if err != nil {
		t.Fatalf("AllocateResource failed: %v", err)
	}
	if resID != 1 {
		t.Errorf("expected resource id 1, got %d", resID)
	}

	res, ok := r.Resource(resID)
	if !ok {
		t.Fatal("resource not found")
	}
	if !res.Available {
		t.Error("new resource should be available")
	}
	if res.Provider != "provider_1" {
		t.Errorf("expected provider provider_1, got %s", res.Provider)
	}

	// Unknown disaster
	if _, err := r.AllocateResource(ctx, "provider_1", 99, "water", 500, "Depot A"); !errors.Is(err, ErrInvalidDisaster) {
		t.Errorf("expected ErrInvalidDisaster for unknown disaster, got %v", err)
	}

	// Non-positive quantity
	if _, err := r.AllocateResource(ctx, "provider_1", disasterID, "water", 0, "Depot A"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for zero quantity, got %v", err)
	}

	// Closed disaster
	if err := r.CloseDisaster(ctx, coordinator, disasterID); err != nil {
		t.Fatalf("CloseDisaster failed: %v", err)
	}
	if _, err := r.AllocateResource(ctx, "provider_1", disasterID, "water", 500, "Depot A"); !errors.Is(err, ErrInvalidDisaster) {
		t.Errorf("expected ErrInvalidDisaster for closed disaster, got %v", err)
	}
}

func TestFundAccountingScenario(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.ReportDisaster(ctx, "reporter_1", "Townsville", "flood", 7)
	if err != nil {
		t.Fatalf("ReportDisaster failed: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}

	if _, err := r.DonateFunds(ctx, "donor_1", id, 100); err != nil {
		t.Fatalf("DonateFunds failed: %v", err)
	}
	d, _ := r.Disaster(id)
	if d.FundsRaised != 100 {
		t.Errorf("expected funds raised 100, got %d", d.FundsRaised)
	}
	if r.Balance() != 100 {
		t.Errorf("expected balance 100, got %d", r.Balance())
	}

	if _, err := r.AllocateFunds(ctx, coordinator, id, 60, "shelter kits"); err != nil {
		t.Fatalf("AllocateFunds failed: %v", err)
	}
	d, _ = r.Disaster(id)
	if d.FundsAllocated != 60 {
		t.Errorf("expected funds allocated 60, got %d", d.FundsAllocated)
	}

	// 60 + 50 > 100: must fail and leave both counters unchanged
	if _, err := r.AllocateFunds(ctx, coordinator, id, 50, "medical"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	d, _ = r.Disaster(id)
	if d.FundsAllocated != 60 || d.FundsRaised != 100 {
		t.Errorf("failed allocation mutated counters: raised=%d allocated=%d", d.FundsRaised, d.FundsAllocated)
	}

	if _, err := r.AllocateFunds(ctx, coordinator, id, 40, "logistics"); err != nil {
		t.Fatalf("AllocateFunds failed: %v", err)
	}
	d, _ = r.Disaster(id)
	if d.FundsAllocated != 100 {
		t.Errorf("expected funds allocated 100, got %d", d.FundsAllocated)
	}

	if err := r.CloseDisaster(ctx, coordinator, id); err != nil {
		t.Fatalf("CloseDisaster failed: %v", err)
	}
	if active := r.ActiveDisasters(); len(active) != 0 {
		t.Errorf("expected no active disasters, got %v", active)
	}
}

func TestDonateFunds_Errors(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := reportTestDisaster(t, r)

	if _, err := r.DonateFunds(ctx, "donor_1", id, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
	if _, err := r.DonateFunds(ctx, "donor_1", id, -5); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative amount, got %v", err)
	}
	if _, err := r.DonateFunds(ctx, "donor_1", 42, 10); !errors.Is(err, ErrInvalidDisaster) {
		t.Errorf("expected ErrInvalidDisaster, got %v", err)
	}

	if err := r.CloseDisaster(ctx, coordinator, id); err != nil {
		t.Fatalf("CloseDisaster failed: %v", err)
	}
	if _, err := r.DonateFunds(ctx, "donor_1", id, 10); !errors.Is(err, ErrInvalidDisaster) {
		t.Errorf("expected ErrInvalidDisaster for closed disaster, got %v", err)
	}
	if r.Balance() != 0 {
		t.Errorf("failed donations must not change balance, got %d", r.Balance())
	}
}

func TestAllocateFunds_Unauthorized(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	id := reportTestDisaster(t, r)

	if _, err := r.DonateFunds(ctx, "donor_1", id, 100); err != nil {
		t.Fatalf("DonateFunds failed: %v", err)
	}
	if _, err := r.AllocateFunds(ctx, "donor_1", id, 50, "shelter"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestWorkerLifecycleScenario(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	disasterID := reportTestDisaster(t, r)

	w, err := r.RegisterWorker(ctx, "worker_1", "Dana", "medical", "Townsville")
	if err != nil {
		t.Fatalf("RegisterWorker failed: %v", err)
	}
	if !w.Available {
		t.Error("new worker should be available")
	}

	if err := r.AssignWorker(ctx, coordinator, "worker_1", disasterID); err != nil {
		t.Fatalf("AssignWorker failed: %v", err)
	}
	w, _ = r.Worker("worker_1")
	if w.Available {
		t.Error("assigned worker should be unavailable")
	}
	workers := r.DisasterWorkers(disasterID)
	if len(workers) != 1 || workers[0] != "worker_1" {
		t.Errorf("expected [worker_1], got %v", workers)
	}

	// Second assignment without completion is rejected
	if err := r.AssignWorker(ctx, coordinator, "worker_1", disasterID); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("expected ErrNotAvailable, got %v", err)
	}

	w, err = r.CompleteMission(ctx, coordinator, "worker_1")
	if err != nil {
		t.Fatalf("CompleteMission failed: %v", err)
	}
	if !w.Available {
		t.Error("completed worker should be available")
	}
	if w.CompletedMissions != 1 {
		t.Errorf("expected 1 completed mission, got %d", w.CompletedMissions)
	}

	// Re-assignment succeeds and the history keeps both entries
	if err := r.AssignWorker(ctx, coordinator, "worker_1", disasterID); err != nil {
		t.Fatalf("re-assignment failed: %v", err)
	}
	workers = r.DisasterWorkers(disasterID)
	if len(workers) != 2 || workers[0] != "worker_1" || workers[1] != "worker_1" {
		t.Errorf("expected [worker_1 worker_1], got %v", workers)
	}
}

func TestAssignWorker_Errors(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	disasterID := reportTestDisaster(t, r)

	if err := r.AssignWorker(ctx, "someone_else", "worker_1", disasterID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if err := r.AssignWorker(ctx, coordinator, "worker_1", disasterID); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}

	if _, err := r.RegisterWorker(ctx, "worker_1", "Dana", "medical", "Townsville"); err != nil {
		t.Fatalf("RegisterWorker failed: %v", err)
	}
	if err := r.AssignWorker(ctx, coordinator, "worker_1", 42); !errors.Is(err, ErrInvalidDisaster) {
		t.Errorf("expected ErrInvalidDisaster, got %v", err)
	}
}

func TestCompleteMission_Errors(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.CompleteMission(ctx, coordinator, "ghost"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}

	if _, err := r.RegisterWorker(ctx, "worker_1", "Dana", "medical", "Townsville"); err != nil {
		t.Fatalf("RegisterWorker failed: %v", err)
	}
	if _, err := r.CompleteMission(ctx, coordinator, "worker_1"); !errors.Is(err, ErrAlreadyAvailable) {
		t.Errorf("expected ErrAlreadyAvailable, got %v", err)
	}
	if _, err := r.CompleteMission(ctx, "worker_1", "worker_1"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCloseDisaster_SwapAndPop(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		reportTestDisaster(t, r)
	}

	if err := r.CloseDisaster(ctx, coordinator, 1); err != nil {
		t.Fatalf("CloseDisaster failed: %v", err)
	}

	// Closing the first of [1 2 3] swaps in the last: [3 2]
	active := r.ActiveDisasters()
	if len(active) != 2 || active[0] != 3 || active[1] != 2 {
		t.Errorf("expected [3 2] after swap-and-pop, got %v", active)
	}

	// Second closure of the same id fails
	if err := r.CloseDisaster(ctx, coordinator, 1); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}
	if err := r.CloseDisaster(ctx, coordinator, 42); !errors.Is(err, ErrInvalidDisaster) {
		t.Errorf("expected ErrInvalidDisaster, got %v", err)
	}
	if err := r.CloseDisaster(ctx, "someone_else", 2); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestReRegisterResetsHistory(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	disasterID := reportTestDisaster(t, r)

	if _, err := r.RegisterWorker(ctx, "worker_1", "Dana", "medical", "Townsville"); err != nil {
		t.Fatalf("RegisterWorker failed: %v", err)
	}
	if err := r.AssignWorker(ctx, coordinator, "worker_1", disasterID); err != nil {
		t.Fatalf("AssignWorker failed: %v", err)
	}
	if _, err := r.CompleteMission(ctx, coordinator, "worker_1"); err != nil {
		t.Fatalf("CompleteMission failed: %v", err)
	}
	if err := r.AssignWorker(ctx, coordinator, "worker_1", disasterID); err != nil {
		t.Fatalf("AssignWorker failed: %v", err)
	}

	// Worker is mid-assignment with one completed mission. Re-registering
	// erases both facts.
	w, err := r.RegisterWorker(ctx, "worker_1", "Dana", "logistics", "Brisbane")
	if err != nil {
		t.Fatalf("re-registration failed: %v", err)
	}
	if !w.Available {
		t.Error("re-registered worker should be available")
	}
	if w.CompletedMissions != 0 {
		t.Errorf("re-registration should reset mission count, got %d", w.CompletedMissions)
	}
	if w.Skills != "logistics" {
		t.Errorf("expected updated skills, got %s", w.Skills)
	}
}

func TestAvailableResourcesNeverPruned(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	disasterID := reportTestDisaster(t, r)

	for i := 0; i < 3; i++ {
		if _, err := r.AllocateResource(ctx, "provider_1", disasterID, "water", 100, "Depot A"); err != nil {
			t.Fatalf("AllocateResource failed: %v", err)
		}
	}

	// Closing the disaster does not retire its resources: the list is a
	// permanent donation ledger.
	if err := r.CloseDisaster(ctx, coordinator, disasterID); err != nil {
		t.Fatalf("CloseDisaster failed: %v", err)
	}

	ids := r.AvailableResources()
	if len(ids) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(ids))
	}
	for i, id := range ids {
		if id != uint64(i+1) {
			t.Errorf("expected ids [1 2 3], got %v", ids)
			break
		}
		res, _ := r.Resource(id)
		if !res.Available {
			t.Errorf("resource %d availability flag should stay true", id)
		}
	}
}

func TestNotifications(t *testing.T) {
	bc := events.NewBroadcaster(16)
	r, err := New(context.Background(), coordinator, nil, bc)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	subID, ch := bc.Subscribe()
	defer bc.Unsubscribe(subID)

	ctx := context.Background()
	disasterID, _ := r.ReportDisaster(ctx, "reporter_1", "Townsville", "flood", 7)
	r.AllocateResource(ctx, "provider_1", disasterID, "water", 100, "Depot A")
	r.RegisterWorker(ctx, "worker_1", "Dana", "medical", "Townsville")
	r.AssignWorker(ctx, coordinator, "worker_1", disasterID)
	r.DonateFunds(ctx, "donor_1", disasterID, 100)
	r.AllocateFunds(ctx, coordinator, disasterID, 60, "shelter kits")
	r.CompleteMission(ctx, coordinator, "worker_1")
	r.CloseDisaster(ctx, coordinator, disasterID)

	// RegisterWorker, CompleteMission and CloseDisaster emit nothing.
	want := []models.NotificationKind{
		models.NotificationDisasterReported,
		models.NotificationResourceDonated,
		models.NotificationWorkerAssigned,
		models.NotificationFundsReceived,
		models.NotificationFundsAllocated,
	}
	for _, kind := range want {
		select {
		case n := <-ch:
			if n.Kind != kind {
				t.Errorf("expected notification %s, got %s", kind, n.Kind)
			}
			if n.DisasterID != disasterID {
				t.Errorf("notification %s carries disaster %d, want %d", n.Kind, n.DisasterID, disasterID)
			}
		default:
			t.Fatalf("missing notification %s", kind)
		}
	}
	select {
	case n := <-ch:
		t.Errorf("unexpected extra notification %s", n.Kind)
	default:
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	r, err := New(ctx, coordinator, st, nil)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := r.ReportDisaster(ctx, "reporter_1", "Townsville", "flood", 7); err != nil {
			t.Fatalf("ReportDisaster failed: %v", err)
		}
	}
	if _, err := r.AllocateResource(ctx, "provider_1", 2, "water", 100, "Depot A"); err != nil {
		t.Fatalf("AllocateResource failed: %v", err)
	}
	if _, err := r.RegisterWorker(ctx, "worker_1", "Dana", "medical", "Townsville"); err != nil {
		t.Fatalf("RegisterWorker failed: %v", err)
	}
	if err := r.AssignWorker(ctx, coordinator, "worker_1", 2); err != nil {
		t.Fatalf("AssignWorker failed: %v", err)
	}
	if _, err := r.DonateFunds(ctx, "donor_1", 2, 150); err != nil {
		t.Fatalf("DonateFunds failed: %v", err)
	}
	if _, err := r.AllocateFunds(ctx, coordinator, 2, 90, "shelter kits"); err != nil {
		t.Fatalf("AllocateFunds failed: %v", err)
	}
	if err := r.CloseDisaster(ctx, coordinator, 1); err != nil {
		t.Fatalf("CloseDisaster failed: %v", err)
	}

	// A second registry built from the same store must observe identical state.
	r2, err := New(ctx, coordinator, st, nil)
	if err != nil {
		t.Fatalf("failed to reload registry: %v", err)
	}

	active := r2.ActiveDisasters()
	if len(active) != 2 || active[0] != 3 || active[1] != 2 {
		t.Errorf("expected active [3 2] after reload, got %v", active)
	}
	d, ok := r2.Disaster(2)
	if !ok {
		t.Fatal("disaster 2 missing after reload")
	}
	if d.FundsRaised != 150 || d.FundsAllocated != 90 {
		t.Errorf("funds lost on reload: raised=%d allocated=%d", d.FundsRaised, d.FundsAllocated)
	}
	if r2.Balance() != 150 {
		t.Errorf("expected balance 150 after reload, got %d", r2.Balance())
	}
	w, ok := r2.Worker("worker_1")
	if !ok {
		t.Fatal("worker missing after reload")
	}
	if w.Available {
		t.Error("assigned worker should still be unavailable after reload")
	}
	workers := r2.DisasterWorkers(2)
	if len(workers) != 1 || workers[0] != "worker_1" {
		t.Errorf("expected [worker_1] after reload, got %v", workers)
	}
	if ids := r2.AvailableResources(); len(ids) != 1 || ids[0] != 1 {
		t.Errorf("expected resources [1] after reload, got %v", ids)
	}

	// Counters continue from the persisted high-water mark.
	id, err := r2.ReportDisaster(ctx, "reporter_1", "Brisbane", "cyclone", 9)
	if err != nil {
		t.Fatalf("ReportDisaster failed after reload: %v", err)
	}
	if id != 4 {
		t.Errorf("expected id 4 after reload, got %d", id)
	}
}
