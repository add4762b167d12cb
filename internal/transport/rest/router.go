// Package rest exposes the medication schedule and dispenser over HTTP.
package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pillbox/internal/schedule"
	"pillbox/internal/services/dispense"
	logx "pillbox/pkg/logx"
)

// Dispenser is the part of the dispense pipeline the handlers call.
type Dispenser interface {
	Dispense(ctx context.Context, trig dispense.Trigger) dispense.Outcome
	ConfirmTaken(ctx context.Context)
}

type Options struct {
	Store     schedule.Store
	Dispenser Dispenser
	Events    *EventLog // optional
	Log       logx.Logger
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	h := &handlers{store: opts.Store, dispenser: opts.Dispenser, events: opts.Events, log: opts.Log}

	r.Route("/medications", func(mr chi.Router) {
		mr.Get("/", h.listMedications)
		mr.Post("/", h.createMedication)

		mr.Get("/due-now", h.dueNow)
		mr.Get("/timings", h.timings)
		mr.Get("/containers/available", h.availableContainers)

		mr.Route("/by-name/{name}", func(nr chi.Router) {
			nr.Patch("/", h.updateByName)
			nr.Delete("/", h.deleteByName)
		})

		mr.Route("/{id}", func(ir chi.Router) {
			ir.Get("/", h.getMedication)
			ir.Patch("/", h.updateMedication)
			ir.Delete("/", h.deleteMedication)
		})
	})

	r.Post("/dispense", h.dispense)
	r.Post("/taken", h.taken)
	r.Get("/events", h.listEvents)

	return r
}
