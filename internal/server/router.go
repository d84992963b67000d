// Package server wires the skurge HTTP routes.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayurjain-livspace/skurge/internal/handlers"
	"github.com/ayurjain-livspace/skurge/internal/middleware"
)

// NewRouter builds the skurge route table. Every route runs behind the
// request-id middleware.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/relay-event/{eventName}", h.ProcessEvent)

	mux.HandleFunc("POST /api/v1/register-event", h.RegisterEvent)
	mux.HandleFunc("GET /api/v1/registered-events", h.ListRegisteredEvents)
	mux.HandleFunc("GET /api/v1/registered-event/{eventID}", h.GetRegisteredEvent)
	mux.HandleFunc("PUT /api/v1/registered-event/{eventID}", h.UpdateEvent)
	mux.HandleFunc("POST /api/v1/registered-event/{eventID}/relayer", h.AddProcessor)
	mux.HandleFunc("GET /api/v1/registered-event/{eventID}/relayer/{relayerID}", h.GetRelayProcessor)
	mux.HandleFunc("PUT /api/v1/registered-event/{eventID}/relayer/{relayerID}", h.UpdateProcessor)

	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
