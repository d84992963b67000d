// Package relay implements the event relay pipeline: an inbound named event
// is validated against its registered input schema, matched against the
// active relay processors for that event, and each processor independently
// enriches, maps, validates and dispatches its payload. One processor's
// failure never affects another's attempt.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ayurjain-livspace/skurge/internal/jsonlogic"
	"github.com/ayurjain-livspace/skurge/internal/logging"
	"github.com/ayurjain-livspace/skurge/internal/metrics"
	"github.com/ayurjain-livspace/skurge/internal/models"
	"github.com/ayurjain-livspace/skurge/internal/pathmap"
	"github.com/ayurjain-livspace/skurge/internal/repository"
	"github.com/ayurjain-livspace/skurge/internal/schema"
)

// Pipeline orchestrates event relaying. It holds no per-event state; a
// single Pipeline serves concurrent events safely.
type Pipeline struct {
	store      ConfigStore
	enricher   Enricher
	dispatcher Dispatcher
	logs       LogSink
	logger     *logging.Logger
}

// NewPipeline wires the pipeline to its collaborators.
func NewPipeline(store ConfigStore, enricher Enricher, dispatcher Dispatcher, logs LogSink, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		enricher:   enricher,
		dispatcher: dispatcher,
		logs:       logs,
		logger:     logger,
	}
}

// ProcessEvent validates the inbound event and relays it to every active
// relay processor registered for it. The result reflects event acceptance:
// FAILED means the event was unregistered, failed input validation, or had
// no active relay processors. Once processors are resolved the result is
// SUCCESS regardless of individual attempt outcomes, which are recorded in
// the relay logs.
func (p *Pipeline) ProcessEvent(ctx context.Context, eventName string, payload map[string]interface{}) models.ProcessEventResult {
	if payload == nil {
		payload = map[string]interface{}{}
	}

	event, err := p.store.FindActiveSourceEvent(ctx, eventName)
	if err != nil {
		reason := fmt.Sprintf("Event %s is not registered within skurge or is marked inactive", eventName)
		if !errors.Is(err, repository.ErrSourceEventNotFound) {
			reason = fmt.Sprintf("failed to look up event %s: %v", eventName, err)
		}
		return p.failEvent(ctx, eventName, reason)
	}

	// Events registered without an input schema accept any payload.
	if len(event.InputJSONSchema) > 0 {
		violations, err := schema.Validate(event.InputJSONSchema, payload)
		if err != nil {
			return p.failEvent(ctx, eventName, fmt.Sprintf("input validation error for event %s: %v", eventName, err))
		}
		if len(violations) > 0 {
			return p.failEvent(ctx, eventName, strings.Join(violations, ","))
		}
	}

	processors, err := p.store.ListActiveRelayProcessors(ctx, event.ID)
	if err != nil {
		return p.failEvent(ctx, eventName, fmt.Sprintf("failed to resolve relay processors for event %s: %v", eventName, err))
	}
	if len(processors) == 0 {
		reason := fmt.Sprintf("No relay event processor registered for the source event %s", eventName)
		return p.failEvent(ctx, eventName, reason)
	}

	// Relay processors are mutually independent: each attempt gets its own
	// evaluation context, so they run concurrently and are all joined
	// before returning. Failures are logged per attempt, never returned.
	var g errgroup.Group
	for _, processor := range processors {
		processor := processor
		g.Go(func() error {
			p.runAttempt(ctx, eventName, processor, payload)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // attempts never return errors

	metrics.EventsTotal.WithLabelValues(eventName, models.StatusSuccess).Inc()
	return models.ProcessEventResult{Status: models.StatusSuccess}
}

// failEvent records an event-level failure and returns the FAILED result.
func (p *Pipeline) failEvent(ctx context.Context, eventName, reason string) models.ProcessEventResult {
	p.logger.WarnContext(ctx, "event rejected", "event", eventName, "reason", reason)
	p.appendLog(ctx, &models.RelayLog{
		SourceEventName: eventName,
		Status:          models.StatusFailed,
		Reason:          reason,
	})
	metrics.EventsTotal.WithLabelValues(eventName, models.StatusFailed).Inc()
	return models.ProcessEventResult{Status: models.StatusFailed, Reason: reason}
}

// runAttempt executes one relay processor's attempt and converts any error
// it raises into a FAILED relay log entry. Resolution and validation
// failures inside the attempt log themselves with more specific reasons.
func (p *Pipeline) runAttempt(ctx context.Context, eventName string, processor *models.RelayProcessor, payload map[string]interface{}) {
	err := p.attempt(ctx, eventName, processor, payload)
	if err == nil {
		return
	}
	p.logger.ErrorContext(ctx, "relay processor failed",
		"event", eventName, "relay_processor", processor.ID, "error", err)
	p.logRelay(ctx, &models.RelayLog{
		SourceEventName: eventName,
		RelayType:       processor.RelayType,
		Status:          models.StatusFailed,
		Reason:          err.Error(),
	})
}

// attempt runs the per-rule sub-pipeline: enrich, map, validate, resolve the
// destination, dispatch, log. It returns an error only for raised faults
// (enrichment, template, transport, broken configuration); expected
// resolution failures are logged in place and return nil.
func (p *Pipeline) attempt(ctx context.Context, eventName string, processor *models.RelayProcessor, payload map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ec := newEvaluationContext(payload)

	dataProcessor, err := p.resolveDataProcessor(ctx, processor)
	if err != nil {
		return err
	}

	if dataProcessor != nil && dataProcessor.GraphQLQuery != "" {
		if p.enricher == nil {
			metrics.EnrichmentErrors.Inc()
			return &EnrichmentError{Err: errors.New("graphql enrichment is disabled")}
		}
		enriched, err := p.enricher.Fetch(ctx, dataProcessor.GraphQLQuery, ec.sourceData)
		if err != nil {
			metrics.EnrichmentErrors.Inc()
			return &EnrichmentError{Err: err}
		}
		// Shallow top-level merge; enrichment keys win on conflict.
		for k, v := range enriched {
			ec.externalData[k] = v
		}
	}
	p.logger.DebugContext(ctx, "external data prepared", "event", eventName, "relay_processor", processor.ID)

	ok, err := p.prepareRelayData(ctx, eventName, processor, dataProcessor, ec)
	if err != nil || !ok {
		return err
	}

	dest, ok, err := p.findDestination(ctx, eventName, processor, ec)
	if err != nil || !ok {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	if err := p.dispatcher.Dispatch(ctx, dest, ec.relayData); err != nil {
		return &DispatchError{Err: err}
	}
	metrics.DispatchDuration.WithLabelValues(string(processor.RelayType)).Observe(time.Since(start).Seconds())

	p.logger.InfoContext(ctx, "message relayed", "event", eventName, "destination", dest.Name())
	p.logRelay(ctx, &models.RelayLog{
		SourceEventName:      eventName,
		DestinationRelayName: dest.Name(),
		RelayType:            processor.RelayType,
		RelayData:            ec.relayData,
		Status:               models.StatusSuccess,
	})
	return nil
}

// resolveDataProcessor loads the processor's data processor, if any. A
// dangling reference behaves like no data processor at all.
func (p *Pipeline) resolveDataProcessor(ctx context.Context, processor *models.RelayProcessor) (*models.DataProcessor, error) {
	if processor.DataProcessor != nil {
		return processor.DataProcessor, nil
	}
	if processor.DataProcessorID == nil || *processor.DataProcessorID == 0 {
		return nil, nil
	}
	dataProcessor, err := p.store.FindDataProcessor(ctx, *processor.DataProcessorID)
	if errors.Is(err, repository.ErrDataProcessorNotFound) {
		return nil, nil
	}
	return dataProcessor, err
}

// prepareRelayData builds ec.relayData from the data processor's locator
// rule, static defaults and output schema. It returns ok=false with the
// failure already logged when the attempt must stop.
func (p *Pipeline) prepareRelayData(ctx context.Context, eventName string, processor *models.RelayProcessor, dataProcessor *models.DataProcessor, ec *evaluationContext) (bool, error) {
	if dataProcessor == nil || dataProcessor.RelayDataLocator == nil {
		return true, nil
	}

	result, err := p.evalRule(dataProcessor.RelayDataLocator, ec.externalData)
	if err != nil {
		return false, err
	}
	fields, ok := result.(map[string]interface{})
	if !ok || len(fields) == 0 {
		reason := "No conditions matched to get the relay fields/output fields mapper"
		p.logger.WarnContext(ctx, reason, "event", eventName, "relay_processor", processor.ID)
		p.logRelay(ctx, &models.RelayLog{
			SourceEventName: eventName,
			RelayType:       processor.RelayType,
			RelayData:       ec.relayData,
			Status:          models.StatusFailed,
			Reason:          reason,
		})
		return false, nil
	}

	// Map each output path from its source path in the external data; an
	// unresolved source path degrades to the literal path string.
	for outputPath, source := range fields {
		if sourcePath, ok := source.(string); ok {
			pathmap.Set(ec.relayData, outputPath, pathmap.Get(ec.externalData, sourcePath, sourcePath))
		} else {
			pathmap.Set(ec.relayData, outputPath, source)
		}
	}

	// Static defaults; string values are templates over the external data.
	for outputPath, value := range dataProcessor.DefaultResponse {
		if text, ok := value.(string); ok {
			rendered, err := pathmap.Render(text, ec.externalData)
			if err != nil {
				return false, &ResolutionError{Err: err}
			}
			pathmap.Set(ec.relayData, outputPath, rendered)
			continue
		}
		pathmap.Set(ec.relayData, outputPath, value)
	}

	if dataProcessor.RelayJSONSchema != nil {
		violations, err := schema.Validate(dataProcessor.RelayJSONSchema, ec.relayData)
		if err != nil {
			return false, err
		}
		if len(violations) > 0 {
			reason := strings.Join(violations, ",")
			p.logger.WarnContext(ctx, "relay data validation failed",
				"event", eventName, "relay_processor", processor.ID, "violations", reason)
			p.logRelay(ctx, &models.RelayLog{
				SourceEventName: eventName,
				RelayType:       processor.RelayType,
				RelayData:       ec.relayData,
				Status:          models.StatusFailed,
				Reason:          reason,
			})
			return false, nil
		}
	}
	return true, nil
}

// findDestination resolves where this attempt dispatches to, based on the
// processor's kind-specific rules evaluated against the context data.
func (p *Pipeline) findDestination(ctx context.Context, eventName string, processor *models.RelayProcessor, ec *evaluationContext) (*Destination, bool, error) {
	switch processor.RelayType {
	case models.RelayTypeAPI:
		ec.contextData = p.buildContextData(processor, ec)
		result, err := p.evalRule(processor.RelayHTTPEndpointRules, ec.contextData)
		if err != nil {
			return nil, false, err
		}

		endpointMap, _ := result.(map[string]interface{})
		template, _ := endpointMap["http_endpoint"].(string)
		method, _ := endpointMap["http_method"].(string)
		headers := toStringMap(endpointMap["headers"])

		endpoint := ""
		if template != "" {
			// Fill the dynamic URL segments from the context data.
			endpoint, err = pathmap.Render(template, ec.contextData)
			if err != nil {
				return nil, false, &ResolutionError{Err: err}
			}
		}

		if endpoint == "" || method == "" || len(headers) == 0 {
			reason := fmt.Sprintf("No valid endpoint, http request or headers found for the source event %s", eventName)
			p.logger.WarnContext(ctx, reason, "relay_processor", processor.ID)
			p.logRelay(ctx, &models.RelayLog{
				SourceEventName: eventName,
				RelayType:       processor.RelayType,
				RelayData:       ec.relayData,
				Status:          models.StatusFailed,
				Reason:          reason,
			})
			return nil, false, nil
		}
		return &Destination{
			Kind:     models.RelayTypeAPI,
			Endpoint: endpoint,
			Method:   strings.ToUpper(method),
			Headers:  headers,
		}, true, nil

	case models.RelayTypeEvent:
		if processor.RelayEventRules == nil {
			reason := fmt.Sprintf("Event rules not present in relay processor %d", processor.ID)
			p.logger.WarnContext(ctx, reason, "event", eventName)
			p.logRelay(ctx, &models.RelayLog{
				SourceEventName: eventName,
				RelayType:       processor.RelayType,
				RelayData:       ec.relayData,
				Status:          models.StatusFailed,
				Reason:          reason,
			})
			return nil, false, nil
		}

		ec.contextData = p.buildContextData(processor, ec)
		result, err := p.evalRule(processor.RelayEventRules, ec.contextData)
		if err != nil {
			return nil, false, err
		}
		routingKey, _ := result.(string)
		if routingKey == "" {
			reason := fmt.Sprintf("No valid relay event found for the source event %s", eventName)
			p.logger.WarnContext(ctx, reason, "relay_processor", processor.ID)
			p.logRelay(ctx, &models.RelayLog{
				SourceEventName: eventName,
				RelayType:       processor.RelayType,
				RelayData:       ec.relayData,
				Status:          models.StatusFailed,
				Reason:          reason,
			})
			return nil, false, nil
		}
		return &Destination{Kind: models.RelayTypeEvent, RoutingKey: routingKey}, true, nil
	}

	return nil, false, &ConfigurationError{Err: fmt.Errorf("unsupported relay type %q in relay processor %d", processor.RelayType, processor.ID)}
}

// buildContextData materialises the context fields for destination rules by
// pulling each configured path out of the external data.
func (p *Pipeline) buildContextData(processor *models.RelayProcessor, ec *evaluationContext) map[string]interface{} {
	contextData := make(map[string]interface{}, len(processor.ContextDataLocator))
	for field, path := range processor.ContextDataLocator {
		contextData[field] = pathmap.Get(ec.externalData, path, nil)
	}
	return contextData
}

// evalRule evaluates a stored logic rule, classifying unsupported operators
// as configuration errors. A nil rule evaluates to nil.
func (p *Pipeline) evalRule(rule interface{}, data interface{}) (interface{}, error) {
	if rule == nil {
		return nil, nil
	}
	result, err := jsonlogic.Apply(rule, data)
	if err != nil {
		var unsupported *jsonlogic.UnsupportedOperatorError
		if errors.As(err, &unsupported) {
			return nil, &ConfigurationError{Err: err}
		}
		return nil, err
	}
	return result, nil
}

// logRelay records a per-attempt outcome and counts it.
func (p *Pipeline) logRelay(ctx context.Context, entry *models.RelayLog) {
	metrics.RelaysTotal.WithLabelValues(string(entry.RelayType), entry.Status).Inc()
	p.appendLog(ctx, entry)
}

// appendLog writes to the log sink; sink failures are logged, never raised.
func (p *Pipeline) appendLog(ctx context.Context, entry *models.RelayLog) {
	if err := p.logs.AppendRelayLog(ctx, entry); err != nil {
		p.logger.ErrorContext(ctx, "failed to append relay log",
			"event", entry.SourceEventName, "error", err)
	}
}

func toStringMap(v interface{}) map[string]string {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = pathmap.Stringify(val)
	}
	return out
}
