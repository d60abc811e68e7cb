package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ugcvideo/internal/http/handlers"
	"ugcvideo/internal/infra"
	"ugcvideo/internal/middleware"
)

// Options carries the middleware settings of the router.
type Options struct {
	JWTSecret          string
	WebhookSecret      string
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	DefaultLocale      string
	CountryLookup      middleware.CountryLookup
	Logger             infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	if app.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", app.Static))
	}

	// Processor callbacks are not rate limited; a pipeline may report
	// several stages in quick succession.
	r.With(middleware.WebhookSecret(opts.WebhookSecret)).
		Post("/v1/webhooks/generation-status", app.GenerationStatusWebhook)

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
			middleware.AuthJWT(opts.JWTSecret),
		)

		r.Route("/v1/generations", func(r chi.Router) {
			r.Get("/", app.ListGenerations)
			r.Get("/pending", app.MostRecentPending)
			r.Get("/videos", app.CompletedVideos)
			r.Post("/person", app.CreatePerson)
			r.Post("/composite", app.CreateComposite)
			r.Post("/video", app.CreateVideo)
			r.Post("/pipeline", app.CreatePipeline)
			r.Get("/{id}", app.GetGeneration)
			r.Post("/{id}/refund", app.RequestRefund)
			r.Post("/{id}/retry", app.Retry)
		})

		r.Route("/v1/me", func(r chi.Router) {
			r.Get("/credits", app.Credits)
			r.Get("/credits/history", app.CreditHistory)
		})
	})

	return r
}
