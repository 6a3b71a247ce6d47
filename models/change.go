package models

import "time"

// ChangeType names what happened to a participation.
type ChangeType string

const (
	ChangeApplicationReceived ChangeType = "APPLICATION_RECEIVED"
	ChangeApplicationApproved ChangeType = "APPLICATION_APPROVED"
	ChangeApplicationRejected ChangeType = "APPLICATION_REJECTED"
	ChangeRSVPUpdated         ChangeType = "RSVP_UPDATED"
	ChangeRSVPCancelled       ChangeType = "RSVP_CANCELLED"
)

// ParticipationChange is published after a participation write commits.
type ParticipationChange struct {
	Type            ChangeType          `json:"type"`
	EventID         int                 `json:"eventId"`
	UserID          int                 `json:"userId"`
	ParticipationID int                 `json:"participationId"`
	From            ParticipationStatus `json:"from,omitempty"`
	To              ParticipationStatus `json:"to"`
	TicketQuantity  int                 `json:"ticketQuantity"`
	AttendingCount  *int                `json:"attendingCount,omitempty"`
	OccurredAt      time.Time           `json:"occurredAt"`
}
