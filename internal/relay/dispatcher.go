package relay

import (
	"context"
	"fmt"

	"github.com/ayurjain-livspace/skurge/internal/models"
)

// Dispatcher delivers a relay payload to a resolved destination.
type Dispatcher interface {
	Dispatch(ctx context.Context, dest *Destination, payload map[string]interface{}) error
}

// TransportDispatcher routes dispatches to the transport client matching the
// destination kind.
type TransportDispatcher struct {
	http   HTTPCaller
	events Publisher
}

// NewDispatcher builds a TransportDispatcher over the two transport clients.
func NewDispatcher(http HTTPCaller, events Publisher) *TransportDispatcher {
	return &TransportDispatcher{http: http, events: events}
}

// Dispatch issues the HTTP call or publishes the payload. At most one
// dispatch is attempted per call; retries are the transport's concern.
func (d *TransportDispatcher) Dispatch(ctx context.Context, dest *Destination, payload map[string]interface{}) error {
	switch dest.Kind {
	case models.RelayTypeAPI:
		return d.http.Call(ctx, dest.Method, dest.Endpoint, dest.Headers, payload)
	case models.RelayTypeEvent:
		return d.events.Publish(ctx, dest.RoutingKey, payload)
	}
	return &ConfigurationError{Err: fmt.Errorf("unknown relay type %q", dest.Kind)}
}
