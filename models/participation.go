package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ParticipationStatus mirrors the participation_status enum in the database.
type ParticipationStatus string

const (
	StatusPendingApproval  ParticipationStatus = "pending_approval"
	StatusAttending        ParticipationStatus = "attending"
	StatusInterested       ParticipationStatus = "interested"
	StatusRejected         ParticipationStatus = "rejected"
	StatusNotParticipating ParticipationStatus = "not_participating"
)

func (s ParticipationStatus) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusAttending, StatusInterested, StatusRejected, StatusNotParticipating:
		return true
	}
	return false
}

// CompletedStatuses are the decided states shown on the host's completed list.
// interested is kept in the group on purpose, see DESIGN.md.
var CompletedStatuses = []ParticipationStatus{StatusAttending, StatusInterested, StatusRejected}

// Action is a host decision on a pending application.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCapacityExceeded  = errors.New("approving this application would exceed event capacity")
)

// CapacityExceededError carries the numbers a host UI needs to explain a refusal.
type CapacityExceededError struct {
	Current   int
	Max       int
	Requested int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%s (current %d, max %d, requested %d)", ErrCapacityExceeded, e.Current, e.Max, e.Requested)
}

func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// ParseAction accepts the request wording ("approved", "rejected") as well as the
// action names themselves.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve":
		return ActionApprove, nil
	case "rejected", "reject":
		return ActionReject, nil
	case "":
		return "", fmt.Errorf("%w: status is required", ErrInvalidStatus)
	default:
		return "", fmt.Errorf("%w: %q (expected \"approved\" or \"rejected\")", ErrInvalidStatus, s)
	}
}

// Participation is one user's relationship to one event.
type Participation struct {
	ID                   int                 `json:"id"`
	EventID              int                 `json:"eventId"`
	UserID               int                 `json:"userId"`
	Status               ParticipationStatus `json:"status"`
	TicketQuantity       *int                `json:"ticketQuantity"`
	TotalAmount          Amount              `json:"totalAmount"`
	PaymentTransactionID *string             `json:"paymentTransactionId,omitempty"`
	ReviewedAt           *time.Time          `json:"reviewedAt,omitempty"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

// Quantity returns the ticket quantity, defaulting an absent or non-positive value to 1.
func (p *Participation) Quantity() int {
	return NormalizeQuantity(p.TicketQuantity)
}

// NormalizeQuantity applies the "absent means one ticket" rule.
func NormalizeQuantity(q *int) int {
	if q == nil || *q < 1 {
		return 1
	}
	return *q
}

// IsEventHost reports whether actingUserID created the event.
func IsEventHost(event *Event, actingUserID int) bool {
	if event == nil {
		return false
	}
	return event.HostID == actingUserID
}

// CanApprove is the pure capacity predicate. Callers must re-evaluate it against
// locked state right before committing.
func CanApprove(event *Event, requested *int) bool {
	if !event.HasCapacityLimit() {
		return true
	}
	return event.Attending()+NormalizeQuantity(requested) <= *event.CapacityLimit
}

// NewCapacityExceededError builds the diagnostic error for an event and a request.
func NewCapacityExceededError(event *Event, requested int) *CapacityExceededError {
	e := &CapacityExceededError{Current: event.Attending(), Requested: requested}
	if event.CapacityLimit != nil {
		e.Max = *event.CapacityLimit
	}
	return e
}

// Transition applies a host decision to a pending application. The input is never
// mutated; on success the returned copy carries the new status and timestamps.
func Transition(p Participation, action Action, event *Event, now time.Time) (Participation, error) {
	if action != ActionApprove && action != ActionReject {
		return p, fmt.Errorf("%w: %q", ErrInvalidStatus, action)
	}
	if p.Status != StatusPendingApproval {
		return p, fmt.Errorf("%w: current status is %s", ErrInvalidTransition, p.Status)
	}

	next := p
	switch action {
	case ActionApprove:
		if !CanApprove(event, p.TicketQuantity) {
			return p, NewCapacityExceededError(event, p.Quantity())
		}
		next.Status = StatusAttending
	case ActionReject:
		next.Status = StatusRejected
	}
	reviewed := now
	next.ReviewedAt = &reviewed
	next.UpdatedAt = now
	return next, nil
}

// RSVPStatus parses the status a user may ask for directly.
func RSVPStatus(s string) (ParticipationStatus, error) {
	switch ParticipationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusAttending:
		return StatusAttending, nil
	case StatusInterested:
		return StatusInterested, nil
	case "":
		return "", fmt.Errorf("%w: status is required", ErrInvalidStatus)
	default:
		return "", fmt.Errorf("%w: %q (expected \"attending\" or \"interested\")", ErrInvalidStatus, s)
	}
}

// Cancel withdraws an attending or interested participation.
func Cancel(p Participation, now time.Time) (Participation, error) {
	if p.Status != StatusAttending && p.Status != StatusInterested {
		return p, fmt.Errorf("%w: cannot withdraw from status %s", ErrInvalidTransition, p.Status)
	}
	next := p
	next.Status = StatusNotParticipating
	next.UpdatedAt = now
	return next, nil
}
