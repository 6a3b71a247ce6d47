package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

const receiptPrefix = "webhooks/stripe"

// ReceiptArchive stores verified payment webhook bodies, one object per
// provider transaction.
type ReceiptArchive struct {
	store  ObjectStore
	logger *slog.Logger
}

func NewReceiptArchive(store ObjectStore, logger *slog.Logger) *ReceiptArchive {
	return &ReceiptArchive{store: store, logger: logger}
}

// ReceiptKey returns the object key for a transaction id.
func ReceiptKey(transactionID string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(transactionID))
	return path.Join(receiptPrefix, safe+".json")
}

func (a *ReceiptArchive) Archive(ctx context.Context, transactionID string, payload []byte) error {
	if transactionID == "" {
		return fmt.Errorf("transaction id is required to archive a receipt")
	}
	key := ReceiptKey(transactionID)
	result, err := a.store.Put(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	a.logger.Debug("payment receipt archived", "key", result.Key, "etag", result.ETag)
	return nil
}
