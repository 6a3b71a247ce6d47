package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/repositories"
)

// ParticipationService is the attendee side of the lifecycle: RSVP, withdraw, and
// reading one's own record.
type ParticipationService interface {
	RSVP(ctx context.Context, eventID, actingUserID int, status models.ParticipationStatus) (*models.Participation, error)
	Cancel(ctx context.Context, eventID, actingUserID int) (*models.Participation, error)
	Get(ctx context.Context, eventID, actingUserID int) (*models.Participation, error)
}

type participationService struct {
	tx             repositories.Transactor
	eventRepo      repositories.EventRepository
	participations repositories.ParticipationRepository
	notifier       Notifier
	logger         *slog.Logger
	now            func() time.Time
}

func NewParticipationService(
	tx repositories.Transactor,
	eventRepo repositories.EventRepository,
	participations repositories.ParticipationRepository,
	notifier Notifier,
	logger *slog.Logger,
) ParticipationService {
	if notifier == nil {
		notifier = NewMultiNotifier()
	}
	return &participationService{
		tx:             tx,
		eventRepo:      eventRepo,
		participations: participations,
		notifier:       notifier,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *participationService) RSVP(ctx context.Context, eventID, actingUserID int, status models.ParticipationStatus) (result *models.Participation, err error) {
	ctx, span := startSpan(ctx, "ParticipationService.RSVP",
		attribute.Int("event.id", eventID),
		attribute.String("status", string(status)),
	)
	defer func() { endSpan(span, err) }()

	if eventID <= 0 || actingUserID <= 0 {
		return nil, ErrInvalidID
	}
	if status != models.StatusAttending && status != models.StatusInterested {
		return nil, fmt.Errorf("%w: %q (expected attending or interested)", ErrInvalidStatus, status)
	}

	var (
		record    models.Participation
		from      models.ParticipationStatus
		attending *int
	)
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		current, err := s.participations.GetByEventAndUserForUpdate(ctx, exec, eventID, actingUserID)
		if err != nil && !errors.Is(err, repositories.ErrParticipationNotFound) {
			return err
		}
		event, err := s.eventRepo.GetForUpdate(ctx, exec, eventID)
		if err != nil {
			if errors.Is(err, repositories.ErrEventNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		target := status
		if event.IsPrivate {
			if status == models.StatusInterested {
				return fmt.Errorf("%w: private events do not accept interested responses", ErrInvalidStatus)
			}
			target = models.StatusPendingApproval
		}

		now := s.now()
		if current != nil {
			switch current.Status {
			case models.StatusNotParticipating:
			case models.StatusInterested:
				if target == models.StatusInterested {
					record = *current
					from = current.Status
					return nil
				}
			default:
				return fmt.Errorf("%w: current status is %s", ErrParticipationConflict, current.Status)
			}
			// Quantity and amount belong to the payment that set them. Coming
			// back to a paid event goes through a new checkout.
			if current.PaymentTransactionID != nil {
				return fmt.Errorf("%w: participation %d was paid by transaction %s", ErrParticipationConflict, current.ID, *current.PaymentTransactionID)
			}
			from = current.Status
			record = *current
		} else {
			record = models.Participation{EventID: eventID, UserID: actingUserID}
		}
		record.Status = target
		record.UpdatedAt = now

		if target == models.StatusAttending {
			if err := s.eventRepo.AdjustAttendingCount(ctx, exec, eventID, record.Quantity()); err != nil {
				if errors.Is(err, repositories.ErrEventCapacityReached) {
					return models.NewCapacityExceededError(event, record.Quantity())
				}
				return err
			}
			count := event.Attending() + record.Quantity()
			attending = &count
		}

		if current == nil {
			return s.participations.Create(ctx, exec, &record)
		}
		return s.participations.Reopen(ctx, exec, &record, from)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrParticipationConflict) || errors.Is(err, repositories.ErrParticipationStale) {
			return nil, fmt.Errorf("%w: %v", ErrParticipationConflict, err)
		}
		return nil, err
	}

	if from != record.Status {
		s.logger.Info("rsvp recorded", "event_id", eventID, "user_id", actingUserID, "from", from, "to", record.Status)
		publishChange(ctx, s.notifier, s.logger, models.ParticipationChange{
			Type:            models.ChangeRSVPUpdated,
			EventID:         eventID,
			UserID:          actingUserID,
			ParticipationID: record.ID,
			From:            from,
			To:              record.Status,
			TicketQuantity:  record.Quantity(),
			AttendingCount:  attending,
			OccurredAt:      record.UpdatedAt,
		})
	}
	return &record, nil
}

func (s *participationService) Cancel(ctx context.Context, eventID, actingUserID int) (result *models.Participation, err error) {
	ctx, span := startSpan(ctx, "ParticipationService.Cancel", attribute.Int("event.id", eventID))
	defer func() { endSpan(span, err) }()

	if eventID <= 0 || actingUserID <= 0 {
		return nil, ErrInvalidID
	}

	var (
		record    models.Participation
		from      models.ParticipationStatus
		attending *int
	)
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		current, err := s.participations.GetByEventAndUserForUpdate(ctx, exec, eventID, actingUserID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipationNotFound) {
				return ErrParticipationNotFound
			}
			return err
		}
		event, err := s.eventRepo.GetForUpdate(ctx, exec, eventID)
		if err != nil {
			if errors.Is(err, repositories.ErrEventNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		next, err := models.Cancel(*current, s.now())
		if err != nil {
			return err
		}
		if current.Status == models.StatusAttending {
			if err := s.eventRepo.AdjustAttendingCount(ctx, exec, eventID, -current.Quantity()); err != nil {
				return err
			}
			count := event.Attending() - current.Quantity()
			if count < 0 {
				count = 0
			}
			attending = &count
		}
		if err := s.participations.UpdateStatus(ctx, exec, &next, current.Status); err != nil {
			if errors.Is(err, repositories.ErrParticipationStale) {
				return fmt.Errorf("%w: participation changed concurrently", ErrInvalidTransition)
			}
			return err
		}
		from = current.Status
		record = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rsvp cancelled", "event_id", eventID, "user_id", actingUserID, "from", from, "tickets", record.Quantity())
	publishChange(ctx, s.notifier, s.logger, models.ParticipationChange{
		Type:            models.ChangeRSVPCancelled,
		EventID:         eventID,
		UserID:          actingUserID,
		ParticipationID: record.ID,
		From:            from,
		To:              record.Status,
		TicketQuantity:  record.Quantity(),
		AttendingCount:  attending,
		OccurredAt:      record.UpdatedAt,
	})
	return &record, nil
}

func (s *participationService) Get(ctx context.Context, eventID, actingUserID int) (*models.Participation, error) {
	if eventID <= 0 || actingUserID <= 0 {
		return nil, ErrInvalidID
	}
	p, err := s.participations.GetByEventAndUser(ctx, nil, eventID, actingUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipationNotFound) {
			return nil, ErrParticipationNotFound
		}
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}
	return p, nil
}
