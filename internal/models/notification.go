package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationDisasterReported NotificationKind = "disaster-reported"
	NotificationResourceDonated  NotificationKind = "resource-donated"
	NotificationWorkerAssigned   NotificationKind = "worker-assigned"
	NotificationFundsReceived    NotificationKind = "funds-received"
	NotificationFundsAllocated   NotificationKind = "funds-allocated"
)

// Notification is emitted after a mutating registry operation commits.
// Payload fields not relevant to a kind are left zero.
type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	Actor      string           `json:"actor"`
	DisasterID uint64           `json:"disaster_id,omitempty"`
	ResourceID uint64           `json:"resource_id,omitempty"`
	WorkerID   string           `json:"worker_id,omitempty"`
	Location   string           `json:"location,omitempty"`
	Type       string           `json:"type,omitempty"`
	Severity   int              `json:"severity,omitempty"`
	Quantity   int64            `json:"quantity,omitempty"`
	Amount     int64            `json:"amount,omitempty"`
	Purpose    string           `json:"purpose,omitempty"`
	At         time.Time        `json:"at"`
}

func newNotification(kind NotificationKind, actor string) Notification {
	return Notification{
		ID:    uuid.NewString(),
		Kind:  kind,
		Actor: actor,
		At:    time.Now().UTC(),
	}
}

func DisasterReported(actor string, d *DisasterEvent) Notification {
	n := newNotification(NotificationDisasterReported, actor)
	n.DisasterID = d.ID
	n.Location = d.Location
	n.Type = d.Type
	n.Severity = d.Severity
	return n
}

func ResourceDonated(actor string, r *ReliefResource) Notification {
	n := newNotification(NotificationResourceDonated, actor)
	n.ResourceID = r.ID
	n.DisasterID = r.DisasterID
	n.Type = r.Type
	n.Quantity = r.Quantity
	return n
}

func WorkerAssigned(actor, workerID string, disasterID uint64) Notification {
	n := newNotification(NotificationWorkerAssigned, actor)
	n.WorkerID = workerID
	n.DisasterID = disasterID
	return n
}

func FundsReceived(donor string, disasterID uint64, amount int64) Notification {
	n := newNotification(NotificationFundsReceived, donor)
	n.DisasterID = disasterID
	n.Amount = amount
	return n
}

func FundsAllocated(actor string, disasterID uint64, amount int64, purpose string) Notification {
	n := newNotification(NotificationFundsAllocated, actor)
	n.DisasterID = disasterID
	n.Amount = amount
	n.Purpose = purpose
	return n
}
