package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/hub"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/middleware"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/payments"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/services"
)

type mockApplicationService struct {
	listPendingFn   func(ctx context.Context, eventID, actingUserID int) (*services.PendingApplications, error)
	listAllFn       func(ctx context.Context, actingUserID int) (*services.HostApplications, error)
	reviewFn        func(ctx context.Context, eventID, applicantID, actingUserID int, action models.Action) (*services.ReviewResult, error)
	authorizeHostFn func(ctx context.Context, eventID, actingUserID int) error
}

func (m *mockApplicationService) ListPending(ctx context.Context, eventID, actingUserID int) (*services.PendingApplications, error) {
	return m.listPendingFn(ctx, eventID, actingUserID)
}

func (m *mockApplicationService) ListAll(ctx context.Context, actingUserID int) (*services.HostApplications, error) {
	return m.listAllFn(ctx, actingUserID)
}

func (m *mockApplicationService) Review(ctx context.Context, eventID, applicantID, actingUserID int, action models.Action) (*services.ReviewResult, error) {
	return m.reviewFn(ctx, eventID, applicantID, actingUserID, action)
}

func (m *mockApplicationService) AuthorizeHost(ctx context.Context, eventID, actingUserID int) error {
	return m.authorizeHostFn(ctx, eventID, actingUserID)
}

type mockParticipationService struct {
	rsvpFn   func(ctx context.Context, eventID, actingUserID int, status models.ParticipationStatus) (*models.Participation, error)
	cancelFn func(ctx context.Context, eventID, actingUserID int) (*models.Participation, error)
	getFn    func(ctx context.Context, eventID, actingUserID int) (*models.Participation, error)
}

func (m *mockParticipationService) RSVP(ctx context.Context, eventID, actingUserID int, status models.ParticipationStatus) (*models.Participation, error) {
	return m.rsvpFn(ctx, eventID, actingUserID, status)
}

func (m *mockParticipationService) Cancel(ctx context.Context, eventID, actingUserID int) (*models.Participation, error) {
	return m.cancelFn(ctx, eventID, actingUserID)
}

func (m *mockParticipationService) Get(ctx context.Context, eventID, actingUserID int) (*models.Participation, error) {
	return m.getFn(ctx, eventID, actingUserID)
}

type mockWebhookService struct {
	onPaymentFn func(ctx context.Context, payment services.PaymentSucceeded) (*services.WebhookResult, error)
}

func (m *mockWebhookService) OnPaymentSucceeded(ctx context.Context, payment services.PaymentSucceeded) (*services.WebhookResult, error) {
	return m.onPaymentFn(ctx, payment)
}

type mockParser struct {
	notification *payments.Notification
	err          error
}

func (m *mockParser) Parse([]byte, string) (*payments.Notification, error) {
	return m.notification, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// asUser injects the claims Authenticate would have stored.
func asUser(userID int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), jwt.MapClaims{"user_id": float64(userID)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(userID int, apps services.ApplicationService, parts services.ParticipationService) chi.Router {
	r := chi.NewRouter()
	if userID > 0 {
		r.Use(asUser(userID))
	}
	ah := NewApplicationHandler(apps)
	ph := NewParticipationHandler(parts)
	r.Get("/events/applications", ah.ListAll)
	r.Get("/events/{eventId}/applications", ah.ListPending)
	r.Put("/events/{eventId}/applications/{userId}", ah.Review)
	r.Post("/events/{eventId}/participation", ph.RSVP)
	r.Delete("/events/{eventId}/participation", ph.Cancel)
	r.Get("/events/{eventId}/participation", ph.Get)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestListPending_OK(t *testing.T) {
	apps := &mockApplicationService{
		listPendingFn: func(_ context.Context, eventID, actingUserID int) (*services.PendingApplications, error) {
			assert.Equal(t, 10, eventID)
			assert.Equal(t, 1, actingUserID)
			return &services.PendingApplications{EventID: 10, EventTitle: "Gala", Applications: []services.ApplicationView{}}, nil
		},
	}

	rec, body := do(t, newTestRouter(1, apps, nil), http.MethodGet, "/events/10/applications", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gala", body["eventTitle"])
	assert.Equal(t, []interface{}{}, body["applications"])
	assert.Equal(t, float64(0), body["totalPending"])
}

func TestListPending_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{services.ErrForbiddenOperation, http.StatusForbidden, "You can only manage applications for your own events"},
		{services.ErrEventNotFound, http.StatusNotFound, "Event not found"},
		{fmt.Errorf("db down"), http.StatusInternalServerError, "the server encountered a problem and could not process your request"},
	}
	for _, tc := range cases {
		apps := &mockApplicationService{
			listPendingFn: func(context.Context, int, int) (*services.PendingApplications, error) { return nil, tc.err },
		}
		rec, body := do(t, newTestRouter(2, apps, nil), http.MethodGet, "/events/10/applications", "")
		assert.Equal(t, tc.code, rec.Code)
		assert.Equal(t, tc.msg, body["error"])
	}
}

func TestListPending_BadIDAndMissingAuth(t *testing.T) {
	apps := &mockApplicationService{}

	rec, _ := do(t, newTestRouter(1, apps, nil), http.MethodGet, "/events/abc/applications", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, newTestRouter(1, apps, nil), http.MethodGet, "/events/0/applications", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, newTestRouter(0, apps, nil), http.MethodGet, "/events/10/applications", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReview_Approve(t *testing.T) {
	apps := &mockApplicationService{
		reviewFn: func(_ context.Context, eventID, applicantID, actingUserID int, action models.Action) (*services.ReviewResult, error) {
			assert.Equal(t, 10, eventID)
			assert.Equal(t, 2, applicantID)
			assert.Equal(t, 1, actingUserID)
			assert.Equal(t, models.ActionApprove, action)
			return &services.ReviewResult{
				Message:     "Application approved successfully",
				Application: models.Participation{ID: 5, EventID: 10, UserID: 2, Status: models.StatusAttending},
				Applicant:   services.ApplicantView{ID: 2, FullName: "Ana Ruiz"},
			}, nil
		},
	}

	rec, body := do(t, newTestRouter(1, apps, nil), http.MethodPut, "/events/10/applications/2", `{"status":"approved"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Application approved successfully", body["message"])
	assert.Equal(t, "attending", body["application"].(map[string]interface{})["status"])
	assert.Equal(t, "Ana Ruiz", body["applicant"].(map[string]interface{})["fullName"])
}

func TestReview_CapacityExceededBody(t *testing.T) {
	apps := &mockApplicationService{
		reviewFn: func(context.Context, int, int, int, models.Action) (*services.ReviewResult, error) {
			return nil, fmt.Errorf("review: %w", &models.CapacityExceededError{Current: 95, Max: 100, Requested: 10})
		},
	}

	rec, body := do(t, newTestRouter(1, apps, nil), http.MethodPut, "/events/10/applications/2", `{"status":"approved"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, float64(95), body["currentCapacity"])
	assert.Equal(t, float64(100), body["maxCapacity"])
	assert.Equal(t, float64(10), body["requestedTickets"])
}

func TestReview_BadInput(t *testing.T) {
	apps := &mockApplicationService{
		reviewFn: func(context.Context, int, int, int, models.Action) (*services.ReviewResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	router := newTestRouter(1, apps, nil)

	for _, body := range []string{`{"status":"maybe"}`, `{"status":""}`, `{"status":"approved","extra":1}`, ``, `{"status":`} {
		rec, _ := do(t, router, http.MethodPut, "/events/10/applications/2", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestReview_InvalidTransition(t *testing.T) {
	apps := &mockApplicationService{
		reviewFn: func(context.Context, int, int, int, models.Action) (*services.ReviewResult, error) {
			return nil, fmt.Errorf("%w: application is attending", services.ErrInvalidTransition)
		},
	}

	rec, _ := do(t, newTestRouter(1, apps, nil), http.MethodPut, "/events/10/applications/2", `{"status":"rejected"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAll(t *testing.T) {
	apps := &mockApplicationService{
		listAllFn: func(_ context.Context, actingUserID int) (*services.HostApplications, error) {
			assert.Equal(t, 1, actingUserID)
			return &services.HostApplications{
				Pending:      []services.ApplicationView{{ID: 1, Status: models.StatusPendingApproval}},
				Completed:    []services.ApplicationView{},
				TotalPending: 1,
			}, nil
		},
	}

	rec, body := do(t, newTestRouter(1, apps, nil), http.MethodGet, "/events/applications", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["pending"], 1)
	assert.Equal(t, float64(1), body["totalPending"])
	assert.Equal(t, float64(0), body["totalCompleted"])
}

func TestRSVP(t *testing.T) {
	parts := &mockParticipationService{
		rsvpFn: func(_ context.Context, eventID, actingUserID int, status models.ParticipationStatus) (*models.Participation, error) {
			assert.Equal(t, models.StatusAttending, status)
			return &models.Participation{ID: 3, EventID: eventID, UserID: actingUserID, Status: models.StatusPendingApproval}, nil
		},
	}

	rec, body := do(t, newTestRouter(4, nil, parts), http.MethodPost, "/events/21/participation", `{"status":"attending"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	p := body["participation"].(map[string]interface{})
	assert.Equal(t, "pending_approval", p["status"])
	assert.Equal(t, float64(4), p["userId"])
}

func TestRSVP_Errors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{services.ErrParticipationConflict, http.StatusConflict},
		{&models.CapacityExceededError{Current: 2, Max: 2, Requested: 1}, http.StatusBadRequest},
		{fmt.Errorf("%w: private events", services.ErrInvalidStatus), http.StatusBadRequest},
		{services.ErrEventNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		parts := &mockParticipationService{
			rsvpFn: func(context.Context, int, int, models.ParticipationStatus) (*models.Participation, error) { return nil, tc.err },
		}
		rec, _ := do(t, newTestRouter(4, nil, parts), http.MethodPost, "/events/21/participation", `{"status":"interested"}`)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}

	rec, _ := do(t, newTestRouter(4, nil, &mockParticipationService{}), http.MethodPost, "/events/21/participation", `{"status":"pending_approval"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelAndGet(t *testing.T) {
	parts := &mockParticipationService{
		cancelFn: func(_ context.Context, eventID, actingUserID int) (*models.Participation, error) {
			return &models.Participation{ID: 3, EventID: eventID, UserID: actingUserID, Status: models.StatusNotParticipating}, nil
		},
		getFn: func(context.Context, int, int) (*models.Participation, error) {
			return nil, services.ErrParticipationNotFound
		},
	}
	router := newTestRouter(4, nil, parts)

	rec, body := do(t, router, http.MethodDelete, "/events/21/participation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_participating", body["participation"].(map[string]interface{})["status"])

	rec, _ = do(t, router, http.MethodGet, "/events/21/participation", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func webhookRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	return req
}

func TestPaymentWebhook(t *testing.T) {
	payment := &services.PaymentSucceeded{EventID: 1, UserID: 2, TransactionID: "cs_1"}
	paidNotification := &payments.Notification{ID: "evt_1", Type: "checkout.session.completed", Payment: payment}

	cases := []struct {
		name       string
		parser     *mockParser
		serviceErr error
		duplicate  bool
		code       int
	}{
		{name: "recorded", parser: &mockParser{notification: paidNotification}, code: http.StatusOK},
		{name: "duplicate", parser: &mockParser{notification: paidNotification}, duplicate: true, code: http.StatusOK},
		{name: "ignored type", parser: &mockParser{notification: &payments.Notification{ID: "evt_2", Type: "invoice.paid"}}, code: http.StatusOK},
		{name: "bad signature", parser: &mockParser{err: fmt.Errorf("%w: no match", services.ErrInvalidSignature)}, code: http.StatusBadRequest},
		{name: "bad payload", parser: &mockParser{err: fmt.Errorf("%w: metadata", services.ErrInvalidPayload)}, code: http.StatusBadRequest},
		{name: "conflict", parser: &mockParser{notification: paidNotification}, serviceErr: services.ErrParticipationConflict, code: http.StatusOK},
		{name: "unknown event", parser: &mockParser{notification: paidNotification}, serviceErr: services.ErrEventNotFound, code: http.StatusNotFound},
		{name: "store failure", parser: &mockParser{notification: paidNotification}, serviceErr: fmt.Errorf("connection reset"), code: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			svc := &mockWebhookService{
				onPaymentFn: func(_ context.Context, p services.PaymentSucceeded) (*services.WebhookResult, error) {
					called = true
					assert.Equal(t, "cs_1", p.TransactionID)
					if tc.serviceErr != nil {
						return nil, tc.serviceErr
					}
					return &services.WebhookResult{Participation: &models.Participation{ID: 1}, Duplicate: tc.duplicate}, nil
				},
			}
			h := NewWebhookHandler(tc.parser, svc, discardLogger())
			rec := httptest.NewRecorder()

			h.PaymentWebhook(rec, webhookRequest(`{"id":"evt_1"}`))

			assert.Equal(t, tc.code, rec.Code)
			if tc.code == http.StatusOK {
				assert.JSONEq(t, `{"received":true}`, rec.Body.String())
			}
			if tc.parser.notification == nil || tc.parser.notification.Payment == nil {
				assert.False(t, called)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeApplications_RejectsNonHostBeforeUpgrade(t *testing.T) {
	apps := &mockApplicationService{
		authorizeHostFn: func(_ context.Context, eventID, actingUserID int) error {
			assert.Equal(t, 10, eventID)
			return services.ErrForbiddenOperation
		},
	}
	wsHandler := NewWebSocketHandler(hub.New(discardLogger()), apps, []string{"*"}, discardLogger())
	r := chi.NewRouter()
	r.Use(asUser(2))
	r.Get("/ws/events/{eventId}/applications", wsHandler.ServeApplications)

	rec, body := do(t, r, http.MethodGet, "/ws/events/10/applications", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You can only manage applications for your own events", body["error"])
}
