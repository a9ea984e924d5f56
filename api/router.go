package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"listing_scrooper/models"
	"listing_scrooper/services"
)

// Intake is the service surface the HTTP handlers drive.
type Intake interface {
	Extract(ctx context.Context, rawURL string) (*services.Result, error)
	Enqueue(ctx context.Context, rawURL string) (int64, error)
	Get(ctx context.Context, id int64) (*models.IntakeRequest, error)
}

// Triggerable starts a queue drain without waiting for the next tick.
type Triggerable interface {
	Trigger()
}

type Deps struct {
	Intake Intake
	// Trigger is optional; when set, new intake requests are processed
	// right away instead of on the next schedule tick.
	Trigger Triggerable
	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int
	// ExtractTimeout bounds a synchronous /extract call.
	ExtractTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.RateLimit > 0 {
		r.Use(httprate.LimitByIP(d.RateLimit, time.Minute))
	}
	r.Use(render.SetContentType(render.ContentTypeJSON))

	h := &handler{deps: d}
	r.Get("/health", h.health)
	r.Post("/extract", h.extract)
	r.Route("/intake", func(r chi.Router) {
		r.Post("/", h.enqueue)
		r.Get("/{id}", h.getIntake)
	})

	return r
}
