package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"listing_scrooper/models"
	"listing_scrooper/scraper"
	"listing_scrooper/services"
)

type urlRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type enqueueResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type handler struct {
	deps Deps
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]bool{"ok": true})
}

// extract runs a synchronous extraction. The body is the record itself;
// ?report=true returns the full result including the layer report.
func (h *handler) extract(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeURL(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if h.deps.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deps.ExtractTimeout)
		defer cancel()
	}

	res, err := h.deps.Intake.Extract(ctx, body.URL)
	switch {
	case errors.Is(err, scraper.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err)
		return
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// The partial record is still the answer; the report carries the abort.
		log.Printf("[%s] extract %s cut short: %v", middleware.GetReqID(r.Context()), body.URL, err)
		if res == nil || res.Record == nil {
			rec := models.NewRecord(body.URL)
			rec.Address = models.AddressUnavailable
			res = &services.Result{Record: rec}
		}
	case err != nil:
		log.Printf("[%s] extract %s: %v", middleware.GetReqID(r.Context()), body.URL, err)
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	if wantReport, _ := strconv.ParseBool(r.URL.Query().Get("report")); wantReport {
		render.JSON(w, r, res)
		return
	}
	render.JSON(w, r, res.Record)
}

func (h *handler) enqueue(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeURL(w, r)
	if !ok {
		return
	}

	id, err := h.deps.Intake.Enqueue(r.Context(), body.URL)
	switch {
	case errors.Is(err, scraper.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err)
		return
	case errors.Is(err, services.ErrQueueUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	if h.deps.Trigger != nil {
		h.deps.Trigger.Trigger()
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, enqueueResponse{ID: id, Status: "pending"})
}

func (h *handler) getIntake(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, errors.New("invalid id"))
		return
	}

	req, err := h.deps.Intake.Get(r.Context(), id)
	switch {
	case errors.Is(err, services.ErrQueueUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, err)
		return
	case req == nil:
		writeError(w, r, http.StatusNotFound, errors.New("intake request not found"))
		return
	}

	render.JSON(w, r, req)
}

func decodeURL(w http.ResponseWriter, r *http.Request) (urlRequest, bool) {
	var body urlRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, errors.New("invalid JSON body"))
		return body, false
	}
	if body.URL == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("url is required"))
		return body, false
	}
	return body, true
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Success: false, Error: err.Error()})
}
