package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Malyadmin/Maly-Platforms-Inc.-sub001/docs"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/handlers"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/middleware"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	applicationHandler *handlers.ApplicationHandler,
	participationHandler *handlers.ParticipationHandler,
	webhookHandler *handlers.WebhookHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", handlers.Health)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Authenticated by the Stripe signature, not a session.
	router.Post("/webhooks/payment", webhookHandler.PaymentWebhook)

	router.Route("/events", func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.JWTSecret))

		r.Get("/applications", applicationHandler.ListAll)

		r.Route("/{eventId}", func(r chi.Router) {
			r.Get("/applications", applicationHandler.ListPending)
			r.Put("/applications/{userId}", applicationHandler.Review)

			r.Get("/participation", participationHandler.Get)
			r.Post("/participation", participationHandler.RSVP)
			r.Delete("/participation", participationHandler.Cancel)
		})
	})

	router.With(middleware.AuthenticateWebsocket(opts.JWTSecret)).Get("/ws/events/{eventId}/applications", webSocketHandler.ServeApplications)
}
