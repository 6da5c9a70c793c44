package models

import "time"

// DisasterEvent is a reported incident. Records are never deleted; closing a
// disaster only flips Active to false.
type DisasterEvent struct {
	ID             uint64    `json:"id"`
	Location       string    `json:"location"`
	Type           string    `json:"type"` // free-form tag, e.g. "flood"
	Severity       int       `json:"severity"` // 1..10
	Reporter       string    `json:"reporter"`
	Active         bool      `json:"active"`
	FundsRaised    int64     `json:"funds_raised"`
	FundsAllocated int64     `json:"funds_allocated"` // always <= FundsRaised
	CreatedAt      time.Time `json:"created_at"`
}

// ReliefResource is a declared donation of goods tied to a disaster. It is a
// ledger entry: nothing ever consumes it or toggles Available.
type ReliefResource struct {
	ID         uint64    `json:"id"`
	DisasterID uint64    `json:"disaster_id"`
	Type       string    `json:"type"`
	Quantity   int64     `json:"quantity"`
	Location   string    `json:"location"`
	Provider   string    `json:"provider"`
	Available  bool      `json:"available"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReliefWorker is keyed by the registering actor's id. Re-registering
// overwrites the record, resetting availability and the mission counter.
type ReliefWorker struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Skills            string    `json:"skills"`
	Location          string    `json:"location"`
	Available         bool      `json:"available"`
	CompletedMissions int       `json:"completed_missions"`
	RegisteredAt      time.Time `json:"registered_at"`
}
