package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/repositories"
)

const (
	msgApplicationApproved = "Application approved successfully"
	msgApplicationRejected = "Application rejected successfully"
)

// ApplicationService is the host side of the participation lifecycle.
type ApplicationService interface {
	ListPending(ctx context.Context, eventID, actingUserID int) (*PendingApplications, error)
	ListAll(ctx context.Context, actingUserID int) (*HostApplications, error)
	Review(ctx context.Context, eventID, applicantID, actingUserID int, action models.Action) (*ReviewResult, error)
	// AuthorizeHost fails unless actingUserID hosts the event.
	AuthorizeHost(ctx context.Context, eventID, actingUserID int) error
}

type applicationService struct {
	tx             repositories.Transactor
	eventRepo      repositories.EventRepository
	userRepo       repositories.UserRepository
	participations repositories.ParticipationRepository
	notifier       Notifier
	logger         *slog.Logger
	now            func() time.Time
}

func NewApplicationService(
	tx repositories.Transactor,
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	participations repositories.ParticipationRepository,
	notifier Notifier,
	logger *slog.Logger,
) ApplicationService {
	if notifier == nil {
		notifier = NewMultiNotifier()
	}
	return &applicationService{
		tx:             tx,
		eventRepo:      eventRepo,
		userRepo:       userRepo,
		participations: participations,
		notifier:       notifier,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// hostedEvent loads the event and checks that actingUserID hosts it.
func (s *applicationService) hostedEvent(ctx context.Context, eventID, actingUserID int) (*models.Event, error) {
	if eventID <= 0 {
		return nil, ErrInvalidID
	}
	event, err := s.eventRepo.GetByID(ctx, nil, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	if !models.IsEventHost(event, actingUserID) {
		return nil, ErrForbiddenOperation
	}
	return event, nil
}

func (s *applicationService) AuthorizeHost(ctx context.Context, eventID, actingUserID int) error {
	_, err := s.hostedEvent(ctx, eventID, actingUserID)
	return err
}

func (s *applicationService) ListPending(ctx context.Context, eventID, actingUserID int) (*PendingApplications, error) {
	event, err := s.hostedEvent(ctx, eventID, actingUserID)
	if err != nil {
		return nil, err
	}

	apps, err := s.participations.ListByEvent(ctx, eventID, models.StatusPendingApproval)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending applications for event %d: %w", eventID, err)
	}

	views := newApplicationViews(apps)
	for i := range views {
		if views[i].EventTitle == "" {
			views[i].EventTitle = event.Title
		}
	}
	return &PendingApplications{
		EventID:      event.ID,
		EventTitle:   event.Title,
		Applications: views,
		TotalPending: len(views),
	}, nil
}

func (s *applicationService) ListAll(ctx context.Context, actingUserID int) (*HostApplications, error) {
	if actingUserID <= 0 {
		return nil, ErrAuthenticationFailed
	}

	var pending, completed []models.Application
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pending, err = s.participations.ListForHost(gctx, actingUserID, []models.ParticipationStatus{models.StatusPendingApproval}, false)
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = s.participations.ListForHost(gctx, actingUserID, models.CompletedStatuses, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list applications for host %d: %w", actingUserID, err)
	}

	result := &HostApplications{
		Pending:   newApplicationViews(pending),
		Completed: newApplicationViews(completed),
	}
	result.TotalPending = len(result.Pending)
	result.TotalCompleted = len(result.Completed)
	return result, nil
}

func (s *applicationService) Review(ctx context.Context, eventID, applicantID, actingUserID int, action models.Action) (result *ReviewResult, err error) {
	ctx, span := startSpan(ctx, "ApplicationService.Review",
		attribute.Int("event.id", eventID),
		attribute.Int("applicant.id", applicantID),
		attribute.String("action", string(action)),
	)
	defer func() { endSpan(span, err) }()

	if applicantID <= 0 {
		return nil, ErrInvalidID
	}
	if action != models.ActionApprove && action != models.ActionReject {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, action)
	}
	if _, err := s.hostedEvent(ctx, eventID, actingUserID); err != nil {
		return nil, err
	}

	var (
		before    models.ParticipationStatus
		updated   models.Participation
		attending *int
	)
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		current, err := s.participations.GetByEventAndUserForUpdate(ctx, exec, eventID, applicantID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipationNotFound) {
				return ErrApplicationNotFound
			}
			return err
		}
		locked, err := s.eventRepo.GetForUpdate(ctx, exec, eventID)
		if err != nil {
			if errors.Is(err, repositories.ErrEventNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		next, err := models.Transition(*current, action, locked, s.now())
		if err != nil {
			return err
		}

		if next.Status == models.StatusAttending {
			if err := s.eventRepo.AdjustAttendingCount(ctx, exec, eventID, next.Quantity()); err != nil {
				if errors.Is(err, repositories.ErrEventCapacityReached) {
					return models.NewCapacityExceededError(locked, next.Quantity())
				}
				return err
			}
			count := locked.Attending() + next.Quantity()
			attending = &count
		}

		if err := s.participations.UpdateStatus(ctx, exec, &next, current.Status); err != nil {
			if errors.Is(err, repositories.ErrParticipationStale) {
				return fmt.Errorf("%w: application changed while it was being reviewed", ErrInvalidTransition)
			}
			return err
		}
		before = current.Status
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	applicant, err := s.userRepo.GetByID(ctx, applicantID)
	if err != nil {
		if !errors.Is(err, repositories.ErrUserNotFound) {
			s.logger.Warn("applicant lookup failed after review", "event_id", eventID, "user_id", applicantID, "error", err)
		}
		applicant = nil
	}

	result = &ReviewResult{
		Application: updated,
		Applicant:   newApplicantView(applicantID, applicant),
	}
	change := models.ParticipationChange{
		EventID:         eventID,
		UserID:          applicantID,
		ParticipationID: updated.ID,
		From:            before,
		To:              updated.Status,
		TicketQuantity:  updated.Quantity(),
		AttendingCount:  attending,
		OccurredAt:      updated.UpdatedAt,
	}
	if action == models.ActionApprove {
		result.Message = msgApplicationApproved
		change.Type = models.ChangeApplicationApproved
	} else {
		result.Message = msgApplicationRejected
		change.Type = models.ChangeApplicationRejected
	}

	s.logger.Info("application reviewed",
		"event_id", eventID, "user_id", applicantID, "host_id", actingUserID,
		"from", before, "to", updated.Status, "tickets", updated.Quantity())
	publishChange(ctx, s.notifier, s.logger, change)

	return result, nil
}
