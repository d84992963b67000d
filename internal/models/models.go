// Package models defines the configuration entities stored by skurge and the
// request/response shapes of its configuration API.
package models

import "time"

// RelayType discriminates the two destination kinds a relay processor
// can deliver to.
type RelayType string

const (
	// RelayTypeAPI delivers the relay payload with an HTTP call.
	RelayTypeAPI RelayType = "API"
	// RelayTypeEvent publishes the relay payload under a routing key.
	RelayTypeEvent RelayType = "EVENT"
)

// Valid reports whether rt is a supported relay type.
func (rt RelayType) Valid() bool {
	return rt == RelayTypeAPI || rt == RelayTypeEvent
}

// SourceEvent is a registrable event type. Only registered, active events are
// processed; the input schema validates inbound payloads.
type SourceEvent struct {
	ID              int64                  `json:"id"`
	SourceEvent     string                 `json:"source_event"`
	IsActive        bool                   `json:"is_active"`
	InputJSONSchema map[string]interface{} `json:"input_json_schema"`
	CreatedAt       time.Time              `json:"created_at"`
	ModifiedAt      time.Time              `json:"modified_at"`
}

// DataProcessor is a shared payload-construction spec. Many relay processors
// may reference one data processor when they need the same relay payload.
//
// GraphQLQuery, when non-empty, triggers enrichment before mapping.
// RelayDataLocator is a logic rule yielding a mapping of
// output path -> source path. DefaultResponse holds static defaults
// (string values are rendered as templates). RelayJSONSchema validates the
// built relay payload before dispatch.
type DataProcessor struct {
	ID               int64                  `json:"id"`
	GraphQLQuery     string                 `json:"graphql_query"`
	RelayDataLocator interface{}            `json:"relay_data_locator"`
	DefaultResponse  map[string]interface{} `json:"default_response"`
	RelayJSONSchema  map[string]interface{} `json:"relay_json_schema"`
	CreatedAt        time.Time              `json:"created_at"`
	ModifiedAt       time.Time              `json:"modified_at"`
}

// RelayProcessor is one configured destination for a source event.
//
// Exactly one of the kind-specific rule fields is expected to be populated:
// RelayHTTPEndpointRules for API, RelayEventRules for EVENT. Both are logic
// rules evaluated against the context data built via ContextDataLocator
// (context field name -> source path into the external data).
type RelayProcessor struct {
	ID                     int64             `json:"id"`
	SourceEventID          int64             `json:"source_event_id"`
	IsActive               bool              `json:"is_active"`
	RelayType              RelayType         `json:"relay_type"`
	RelaySystem            string            `json:"relay_system"`
	RelayEventRules        interface{}       `json:"relay_event_rules"`
	RelayHTTPEndpointRules interface{}       `json:"relay_http_endpoint_rules"`
	ContextDataLocator     map[string]string `json:"context_data_locator"`
	DataProcessorID        *int64            `json:"data_processor_id"`
	CreatedAt              time.Time         `json:"created_at"`
	ModifiedAt             time.Time         `json:"modified_at"`

	// DataProcessor is populated on reads that resolve the referenced
	// data processor; it is not a stored column.
	DataProcessor *DataProcessor `json:"data_processor,omitempty"`
}

// Relay log statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// RelayLog is an append-only record of one relay attempt (or one failed
// source validation). It is never mutated after creation.
type RelayLog struct {
	ID                   int64                  `json:"id"`
	SourceEventName      string                 `json:"source_event_name"`
	DestinationRelayName string                 `json:"destination_relay_name,omitempty"`
	RelayType            RelayType              `json:"relay_type,omitempty"`
	RelayData            map[string]interface{} `json:"relay_data,omitempty"`
	Status               string                 `json:"status"`
	Reason               string                 `json:"reason,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
}

// RegisterEventRequest registers a new source event.
type RegisterEventRequest struct {
	SourceEvent     string                 `json:"source_event"`
	IsActive        *bool                  `json:"is_active"`
	InputJSONSchema map[string]interface{} `json:"input_json_schema"`
}

// UpdateEventRequest updates a registered source event.
type UpdateEventRequest = RegisterEventRequest

// RelayProcessorRequest carries the writable relay processor fields.
type RelayProcessorRequest struct {
	RelayType              RelayType         `json:"relay_type"`
	RelaySystem            string            `json:"relay_system"`
	RelayEventRules        interface{}       `json:"relay_event_rules"`
	RelayHTTPEndpointRules interface{}       `json:"relay_http_endpoint_rules"`
	ContextDataLocator     map[string]string `json:"context_data_locator"`
}

// DataProcessorRequest carries the writable data processor fields. When ID is
// set on add, the existing data processor is reused instead of creating one.
type DataProcessorRequest struct {
	ID               int64                  `json:"id"`
	GraphQLQuery     string                 `json:"graphql_query"`
	RelayDataLocator interface{}            `json:"relay_data_locator"`
	DefaultResponse  map[string]interface{} `json:"default_response"`
	RelayJSONSchema  map[string]interface{} `json:"relay_json_schema"`
}

// AddProcessorRequest attaches a relay processor (and optionally a data
// processor) to a registered event.
type AddProcessorRequest struct {
	RelayProcessor *RelayProcessorRequest `json:"relay_processor"`
	DataProcessor  *DataProcessorRequest  `json:"data_processor"`
}

// EventDetail is a registered event together with its relay processors.
// Each processor carries its resolved data processor, when one is attached.
type EventDetail struct {
	SourceEvent     *SourceEvent      `json:"source_event"`
	RelayProcessors []*RelayProcessor `json:"relay_processors"`
}

// ProcessEventResult is the outcome of processing one inbound event. It
// reflects event acceptance, not per-destination delivery; per-destination
// outcomes are recorded in relay logs.
type ProcessEventResult struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
