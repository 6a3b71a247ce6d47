package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/services"
)

// Checkout metadata keys set when the session is created.
const (
	MetadataEventID        = "eventId"
	MetadataUserID         = "userId"
	MetadataTicketQuantity = "ticketQuantity"
)

const (
	eventCheckoutCompleted    = "checkout.session.completed"
	eventCheckoutAsyncSuccess = "checkout.session.async_payment_succeeded"
)

// Notification is a verified provider event. Payment is nil when the event is
// not a completed payment and should just be acknowledged.
type Notification struct {
	ID      string
	Type    string
	Payment *services.PaymentSucceeded
}

type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret}
}

// Parse checks the Stripe-Signature header against payload and extracts the
// payment it describes.
func (v *StripeVerifier) Parse(payload []byte, signatureHeader string) (*Notification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) || errors.Is(err, webhook.ErrTooOld) {
			return nil, fmt.Errorf("%w: %v", services.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", services.ErrInvalidPayload, err)
	}

	n := &Notification{ID: event.ID, Type: string(event.Type)}
	if n.Type != eventCheckoutCompleted && n.Type != eventCheckoutAsyncSuccess {
		return n, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", services.ErrInvalidPayload, event.ID)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: checkout session: %v", services.ErrInvalidPayload, err)
	}
	// checkout.session.completed also fires for delayed methods that have not settled yet.
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return n, nil
	}

	payment, err := paymentFromSession(&session)
	if err != nil {
		return nil, err
	}
	payment.Payload = payload
	n.Payment = payment
	return n, nil
}

func paymentFromSession(session *stripe.CheckoutSession) (*services.PaymentSucceeded, error) {
	if session.ID == "" {
		return nil, fmt.Errorf("%w: checkout session id is missing", services.ErrInvalidPayload)
	}

	eventID, err := metadataInt(session.Metadata, MetadataEventID, true)
	if err != nil {
		return nil, err
	}
	userID, err := metadataInt(session.Metadata, MetadataUserID, true)
	if err != nil {
		return nil, err
	}
	qty, err := metadataInt(session.Metadata, MetadataTicketQuantity, false)
	if err != nil {
		return nil, err
	}

	amount, err := sessionAmount(session)
	if err != nil {
		return nil, err
	}

	p := &services.PaymentSucceeded{
		EventID:       eventID,
		UserID:        userID,
		Amount:        amount,
		TransactionID: session.ID,
	}
	if qty > 0 {
		p.TicketQuantity = &qty
	}
	return p, nil
}

// Stripe's zero-decimal and three-decimal currencies. Every other currency
// uses two decimal places.
var (
	zeroDecimalCurrencies = map[string]bool{
		"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
		"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
		"vuv": true, "xaf": true, "xof": true, "xpf": true,
	}
	threeDecimalCurrencies = map[string]bool{
		"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
	}
)

func currencyExponent(currency string) int {
	switch {
	case zeroDecimalCurrencies[currency]:
		return 0
	case threeDecimalCurrencies[currency]:
		return 3
	default:
		return 2
	}
}

// sessionAmount scales amount_total, which Stripe reports in the currency's
// smallest unit.
func sessionAmount(session *stripe.CheckoutSession) (models.Amount, error) {
	currency := strings.ToLower(strings.TrimSpace(string(session.Currency)))
	if currency == "" {
		return 0, fmt.Errorf("%w: checkout session %s has no currency", services.ErrInvalidPayload, session.ID)
	}
	amount, err := models.AmountFromScaled(session.AmountTotal, currencyExponent(currency))
	if err != nil {
		return 0, fmt.Errorf("%w: amount_total %d %s: %v", services.ErrInvalidPayload, session.AmountTotal, currency, err)
	}
	return amount, nil
}

func metadataInt(metadata map[string]string, key string, required bool) (int, error) {
	raw := strings.TrimSpace(metadata[key])
	if raw == "" {
		if required {
			return 0, fmt.Errorf("%w: metadata.%s is required", services.ErrInvalidPayload, key)
		}
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: metadata.%s must be a positive integer, got %q", services.ErrInvalidPayload, key, raw)
	}
	return v, nil
}
