// Package handlers exposes the skurge HTTP API: the relay-event ingestion
// endpoint and the configuration CRUD endpoints.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ayurjain-livspace/skurge/internal/httputil"
	"github.com/ayurjain-livspace/skurge/internal/logging"
	"github.com/ayurjain-livspace/skurge/internal/models"
	"github.com/ayurjain-livspace/skurge/internal/relay"
	"github.com/ayurjain-livspace/skurge/internal/service"
)

type Handler struct {
	service  *service.Service
	pipeline *relay.Pipeline
	logger   *logging.Logger
}

func NewHandler(svc *service.Service, pipeline *relay.Pipeline, logger *logging.Logger) *Handler {
	return &Handler{
		service:  svc,
		pipeline: pipeline,
		logger:   logger,
	}
}

// ProcessEvent handles POST /api/v1/relay-event/{eventName}. The response
// reflects event acceptance; per-destination outcomes land in relay logs.
func (h *Handler) ProcessEvent(w http.ResponseWriter, r *http.Request) {
	eventName := r.PathValue("eventName")
	if eventName == "" {
		httputil.WriteError(w, http.StatusBadRequest, "event name is required")
		return
	}

	var payload map[string]interface{}
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.pipeline.ProcessEvent(r.Context(), eventName, payload)
	httputil.WriteResponse(w, http.StatusOK, result)
}

// RegisterEvent handles POST /api/v1/register-event.
func (h *Handler) RegisterEvent(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.service.RegisterEvent(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteResponse(w, http.StatusCreated, event)
}

// ListRegisteredEvents handles GET /api/v1/registered-events.
func (h *Handler) ListRegisteredEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListRegisteredEvents(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteResponse(w, http.StatusOK, events)
}

// GetRegisteredEvent handles GET /api/v1/registered-event/{eventID}.
func (h *Handler) GetRegisteredEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "eventID")
	if !ok {
		return
	}

	detail, err := h.service.GetRegisteredEvent(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteResponse(w, http.StatusOK, detail)
}

// UpdateEvent handles PUT /api/v1/registered-event/{eventID}.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "eventID")
	if !ok {
		return
	}

	var req models.UpdateEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), eventID, &req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteResponse(w, http.StatusOK, event)
}

// AddProcessor handles POST /api/v1/registered-event/{eventID}/relayer.
func (h *Handler) AddProcessor(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "eventID")
	if !ok {
		return
	}

	var req models.AddProcessorRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	processor, err := h.service.AddProcessor(r.Context(), eventID, &req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteResponse(w, http.StatusCreated, processor)
}

// GetRelayProcessor handles GET /api/v1/registered-event/{eventID}/relayer/{relayerID}.
func (h *Handler) GetRelayProcessor(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "eventID")
	if !ok {
		return
	}
	relayerID, ok := h.pathID(w, r, "relayerID")
	if !ok {
		return
	}

	processor, err := h.service.GetRelayProcessor(r.Context(), eventID, relayerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteResponse(w, http.StatusOK, processor)
}

// UpdateProcessor handles PUT /api/v1/registered-event/{eventID}/relayer/{relayerID}.
func (h *Handler) UpdateProcessor(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "eventID")
	if !ok {
		return
	}
	relayerID, ok := h.pathID(w, r, "relayerID")
	if !ok {
		return
	}

	var req models.AddProcessorRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	processor, err := h.service.UpdateProcessor(r.Context(), eventID, relayerID, &req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteResponse(w, http.StatusOK, processor)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
