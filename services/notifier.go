package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
)

// Notifier is told about participation changes after they commit.
type Notifier interface {
	Notify(ctx context.Context, change models.ParticipationChange) error
}

type multiNotifier []Notifier

// NewMultiNotifier fans a change out to every non-nil notifier.
func NewMultiNotifier(notifiers ...Notifier) Notifier {
	var m multiNotifier
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

func (m multiNotifier) Notify(ctx context.Context, change models.ParticipationChange) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// publishChange never fails the caller; the write it describes has already committed.
func publishChange(ctx context.Context, n Notifier, logger *slog.Logger, change models.ParticipationChange) {
	if err := n.Notify(ctx, change); err != nil {
		logger.Warn("participation change notification failed",
			"type", change.Type, "event_id", change.EventID, "user_id", change.UserID, "error", err)
	}
}

// ReceiptArchiver keeps a copy of a verified payment notification.
type ReceiptArchiver interface {
	Archive(ctx context.Context, transactionID string, payload []byte) error
}
