package relay

import (
	"context"

	"github.com/ayurjain-livspace/skurge/internal/models"
	"github.com/ayurjain-livspace/skurge/internal/pathmap"
)

// ConfigStore is the narrow view of configuration storage the pipeline
// needs. Lookups return the repository's not-found sentinels when absent.
type ConfigStore interface {
	FindActiveSourceEvent(ctx context.Context, name string) (*models.SourceEvent, error)
	ListActiveRelayProcessors(ctx context.Context, sourceEventID int64) ([]*models.RelayProcessor, error)
	FindDataProcessor(ctx context.Context, id int64) (*models.DataProcessor, error)
}

// Enricher fetches external data to merge into the relay context.
type Enricher interface {
	Fetch(ctx context.Context, query string, variables map[string]interface{}) (map[string]interface{}, error)
}

// HTTPCaller issues the dispatch call for API relays. Transport-level
// retries are its own concern; an error means retries were exhausted.
type HTTPCaller interface {
	Call(ctx context.Context, method, url string, headers map[string]string, body map[string]interface{}) error
}

// Publisher publishes the relay payload for EVENT relays.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload map[string]interface{}) error
}

// LogSink records relay attempt outcomes. Appends may happen concurrently.
type LogSink interface {
	AppendRelayLog(ctx context.Context, entry *models.RelayLog) error
}

// Destination is a resolved dispatch target: either an HTTP endpoint or a
// routing key, depending on Kind.
type Destination struct {
	Kind       models.RelayType
	Endpoint   string
	Method     string
	Headers    map[string]string
	RoutingKey string
}

// Name identifies the destination in relay logs: the URL for API relays,
// the routing key for EVENT relays.
func (d *Destination) Name() string {
	if d.Kind == models.RelayTypeEvent {
		return d.RoutingKey
	}
	return d.Endpoint
}

// evaluationContext is the working state of one relay-rule attempt. It is
// owned by exactly one attempt and never shared across rules or events.
type evaluationContext struct {
	// sourceData is the inbound payload, read-only.
	sourceData map[string]interface{}

	// externalData starts as a deep copy of sourceData and absorbs
	// enrichment results.
	externalData map[string]interface{}

	// relayData is the payload under construction.
	relayData map[string]interface{}

	// contextData is the small mapping destination rules evaluate against.
	contextData map[string]interface{}
}

func newEvaluationContext(payload map[string]interface{}) *evaluationContext {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &evaluationContext{
		sourceData:   payload,
		externalData: pathmap.CopyMap(payload),
		relayData:    map[string]interface{}{},
	}
}
