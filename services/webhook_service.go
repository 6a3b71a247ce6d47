package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/repositories"
)

// PaymentSucceeded is a verified payment-success notification reduced to what
// the lifecycle needs.
type PaymentSucceeded struct {
	EventID        int
	UserID         int
	TicketQuantity *int
	Amount         models.Amount
	TransactionID  string
	// Payload is the raw provider body, kept for the receipt archive.
	Payload []byte
}

type WebhookResult struct {
	Participation *models.Participation
	Duplicate     bool
	Reopened      bool
}

type WebhookService interface {
	OnPaymentSucceeded(ctx context.Context, payment PaymentSucceeded) (*WebhookResult, error)
}

type webhookService struct {
	tx             repositories.Transactor
	eventRepo      repositories.EventRepository
	userRepo       repositories.UserRepository
	participations repositories.ParticipationRepository
	archiver       ReceiptArchiver
	notifier       Notifier
	logger         *slog.Logger
	now            func() time.Time
}

func NewWebhookService(
	tx repositories.Transactor,
	eventRepo repositories.EventRepository,
	userRepo repositories.UserRepository,
	participations repositories.ParticipationRepository,
	archiver ReceiptArchiver,
	notifier Notifier,
	logger *slog.Logger,
) WebhookService {
	if notifier == nil {
		notifier = NewMultiNotifier()
	}
	return &webhookService{
		tx:             tx,
		eventRepo:      eventRepo,
		userRepo:       userRepo,
		participations: participations,
		archiver:       archiver,
		notifier:       notifier,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func validatePayment(p PaymentSucceeded) error {
	var problems []string
	if p.EventID <= 0 {
		problems = append(problems, "event id must be a positive integer")
	}
	if p.UserID <= 0 {
		problems = append(problems, "user id must be a positive integer")
	}
	if strings.TrimSpace(p.TransactionID) == "" {
		problems = append(problems, "transaction id is required")
	}
	if p.TicketQuantity != nil && *p.TicketQuantity < 1 {
		problems = append(problems, "ticket quantity must be at least 1")
	}
	if p.Amount < 0 {
		problems = append(problems, "amount must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}

// OnPaymentSucceeded records a paid ticket purchase as a pending application.
// Redelivery of the same transaction is a no-op.
func (s *webhookService) OnPaymentSucceeded(ctx context.Context, payment PaymentSucceeded) (result *WebhookResult, err error) {
	ctx, span := startSpan(ctx, "WebhookService.OnPaymentSucceeded",
		attribute.Int("event.id", payment.EventID),
		attribute.Int("user.id", payment.UserID),
		attribute.String("payment.transaction_id", payment.TransactionID),
	)
	defer func() { endSpan(span, err) }()

	if err := validatePayment(payment); err != nil {
		return nil, err
	}

	existing, err := s.findByTransaction(ctx, payment.TransactionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("payment webhook already processed", "transaction_id", payment.TransactionID, "participation_id", existing.ID)
		return &WebhookResult{Participation: existing, Duplicate: true}, nil
	}

	if _, err := s.eventRepo.GetByID(ctx, nil, payment.EventID); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %d: %w", payment.EventID, err)
	}
	if _, err := s.userRepo.GetByID(ctx, payment.UserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %d: %w", payment.UserID, err)
	}

	var (
		record    models.Participation
		from      models.ParticipationStatus
		reopened  bool
		duplicate bool
	)
	txID := payment.TransactionID
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		now := s.now()
		current, err := s.participations.GetByEventAndUserForUpdate(ctx, exec, payment.EventID, payment.UserID)
		switch {
		case errors.Is(err, repositories.ErrParticipationNotFound):
			record = models.Participation{
				EventID:              payment.EventID,
				UserID:               payment.UserID,
				Status:               models.StatusPendingApproval,
				TicketQuantity:       payment.TicketQuantity,
				TotalAmount:          payment.Amount,
				PaymentTransactionID: &txID,
				UpdatedAt:            now,
			}
			return s.participations.Create(ctx, exec, &record)
		case err != nil:
			return err
		}

		if current.PaymentTransactionID != nil && *current.PaymentTransactionID == txID {
			record = *current
			duplicate = true
			return nil
		}
		if current.Status != models.StatusNotParticipating && current.Status != models.StatusInterested {
			return fmt.Errorf("%w: existing participation %d is %s", ErrParticipationConflict, current.ID, current.Status)
		}

		from = current.Status
		record = *current
		record.Status = models.StatusPendingApproval
		record.TicketQuantity = payment.TicketQuantity
		record.TotalAmount = payment.Amount
		record.PaymentTransactionID = &txID
		record.UpdatedAt = now
		reopened = true
		return s.participations.Reopen(ctx, exec, &record, from)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicateTransaction):
			// A concurrent delivery of the same transaction won the insert.
			existing, lookupErr := s.findByTransaction(ctx, payment.TransactionID)
			if lookupErr == nil && existing != nil {
				return &WebhookResult{Participation: existing, Duplicate: true}, nil
			}
			return nil, fmt.Errorf("failed to resolve duplicate transaction %s: %w", payment.TransactionID, err)
		case errors.Is(err, repositories.ErrParticipationConflict), errors.Is(err, repositories.ErrParticipationStale):
			return nil, fmt.Errorf("%w: %v", ErrParticipationConflict, err)
		case errors.Is(err, repositories.ErrParticipationRefInvalid):
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return nil, err
	}

	if duplicate {
		return &WebhookResult{Participation: &record, Duplicate: true}, nil
	}

	s.logger.Info("payment recorded as pending application",
		"event_id", record.EventID, "user_id", record.UserID, "participation_id", record.ID,
		"transaction_id", payment.TransactionID, "tickets", record.Quantity(), "amount", record.TotalAmount.String(),
		"reopened", reopened)

	if s.archiver != nil && len(payment.Payload) > 0 {
		if err := s.archiver.Archive(ctx, payment.TransactionID, payment.Payload); err != nil {
			s.logger.Warn("failed to archive payment receipt", "transaction_id", payment.TransactionID, "error", err)
		}
	}

	publishChange(ctx, s.notifier, s.logger, models.ParticipationChange{
		Type:            models.ChangeApplicationReceived,
		EventID:         record.EventID,
		UserID:          record.UserID,
		ParticipationID: record.ID,
		From:            from,
		To:              record.Status,
		TicketQuantity:  record.Quantity(),
		OccurredAt:      record.UpdatedAt,
	})

	return &WebhookResult{Participation: &record, Reopened: reopened}, nil
}

func (s *webhookService) findByTransaction(ctx context.Context, transactionID string) (*models.Participation, error) {
	p, err := s.participations.GetByTransactionID(ctx, nil, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipationNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up transaction %s: %w", transactionID, err)
	}
	return p, nil
}
