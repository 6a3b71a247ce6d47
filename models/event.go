package models

import "time"

// Event is the part of an event this service reads and the attending counter it owns.
// Events are created elsewhere in the application.
type Event struct {
	ID             int       `json:"id"`
	HostID         int       `json:"hostId"`
	Title          string    `json:"title"`
	CapacityLimit  *int      `json:"capacityLimit"`  // nil means unlimited
	AttendingCount *int      `json:"attendingCount"` // nil is read as 0
	IsPrivate      bool      `json:"isPrivate"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Attending returns the current attending count, treating a null column as 0.
func (e *Event) Attending() int {
	if e == nil || e.AttendingCount == nil {
		return 0
	}
	return *e.AttendingCount
}

// HasCapacityLimit reports whether the event caps its total ticket quantity.
func (e *Event) HasCapacityLimit() bool {
	return e != nil && e.CapacityLimit != nil
}
