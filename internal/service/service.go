// Package service implements the configuration workflows: registering
// source events and attaching relay/data processors to them. All rule and
// schema documents are validated at write time so the relay pipeline never
// sees a malformed configuration.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayurjain-livspace/skurge/internal/jsonlogic"
	"github.com/ayurjain-livspace/skurge/internal/logging"
	"github.com/ayurjain-livspace/skurge/internal/models"
	"github.com/ayurjain-livspace/skurge/internal/repository"
	"github.com/ayurjain-livspace/skurge/internal/schema"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type Service struct {
	repo   repository.Repository
	logger *logging.Logger
}

func NewService(repo repository.Repository, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// RegisterEvent registers a new source event with its input schema. Events
// default to active when is_active is omitted.
func (s *Service) RegisterEvent(ctx context.Context, req *models.RegisterEventRequest) (*models.SourceEvent, error) {
	if err := validateEventRequest(req); err != nil {
		return nil, err
	}

	event := &models.SourceEvent{
		SourceEvent:     strings.TrimSpace(req.SourceEvent),
		IsActive:        true,
		InputJSONSchema: req.InputJSONSchema,
	}
	if req.IsActive != nil {
		event.IsActive = *req.IsActive
	}

	if err := s.repo.CreateSourceEvent(ctx, event); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "registered source event",
		"source_event", event.SourceEvent,
		"event_id", event.ID,
	)
	return event, nil
}

// ListRegisteredEvents returns all active registered events.
func (s *Service) ListRegisteredEvents(ctx context.Context) ([]*models.SourceEvent, error) {
	events, err := s.repo.ListActiveSourceEvents(ctx)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.SourceEvent{}
	}
	return events, nil
}

// GetRegisteredEvent returns a registered event with its active relay
// processors, each with its data processor resolved.
func (s *Service) GetRegisteredEvent(ctx context.Context, eventID int64) (*models.EventDetail, error) {
	event, err := s.repo.GetSourceEvent(ctx, eventID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	processors, err := s.repo.ListActiveRelayProcessors(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	for _, processor := range processors {
		if err := s.resolveDataProcessor(ctx, processor); err != nil {
			return nil, err
		}
	}
	if processors == nil {
		processors = []*models.RelayProcessor{}
	}

	return &models.EventDetail{
		SourceEvent:     event,
		RelayProcessors: processors,
	}, nil
}

// UpdateEvent updates a registered event. Omitted fields keep their stored
// values. Inactive events remain updatable so they can be reactivated.
func (s *Service) UpdateEvent(ctx context.Context, eventID int64, req *models.UpdateEventRequest) (*models.SourceEvent, error) {
	event, err := s.repo.FindSourceEvent(ctx, eventID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if req.SourceEvent != "" {
		event.SourceEvent = strings.TrimSpace(req.SourceEvent)
	}
	if req.IsActive != nil {
		event.IsActive = *req.IsActive
	}
	if req.InputJSONSchema != nil {
		if err := schema.Check(req.InputJSONSchema); err != nil {
			return nil, fmt.Errorf("%w: input_json_schema: %v", ErrInvalidInput, err)
		}
		event.InputJSONSchema = req.InputJSONSchema
	}

	if err := s.repo.UpdateSourceEvent(ctx, event); err != nil {
		return nil, mapNotFound(err)
	}

	s.logger.InfoContext(ctx, "updated source event",
		"source_event", event.SourceEvent,
		"event_id", event.ID,
	)
	return event, nil
}

// AddProcessor attaches a relay processor to a registered event. When the
// request carries a data processor without an id, a new one is created;
// with an id, the existing data processor is reused.
func (s *Service) AddProcessor(ctx context.Context, eventID int64, req *models.AddProcessorRequest) (*models.RelayProcessor, error) {
	if req.RelayProcessor == nil {
		return nil, fmt.Errorf("%w: relay_processor is required", ErrInvalidInput)
	}
	if err := validateRelayProcessorRequest(req.RelayProcessor); err != nil {
		return nil, err
	}

	event, err := s.repo.GetSourceEvent(ctx, eventID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	processor := &models.RelayProcessor{
		SourceEventID:          event.ID,
		IsActive:               true,
		RelayType:              req.RelayProcessor.RelayType,
		RelaySystem:            req.RelayProcessor.RelaySystem,
		RelayEventRules:        req.RelayProcessor.RelayEventRules,
		RelayHTTPEndpointRules: req.RelayProcessor.RelayHTTPEndpointRules,
		ContextDataLocator:     req.RelayProcessor.ContextDataLocator,
	}

	if req.DataProcessor != nil {
		dataProcessorID, err := s.upsertDataProcessor(ctx, req.DataProcessor)
		if err != nil {
			return nil, err
		}
		processor.DataProcessorID = &dataProcessorID
	}

	if err := s.repo.CreateRelayProcessor(ctx, processor); err != nil {
		return nil, err
	}
	if err := s.resolveDataProcessor(ctx, processor); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "added relay processor",
		"source_event", event.SourceEvent,
		"relay_processor_id", processor.ID,
		"relay_type", processor.RelayType,
	)
	return processor, nil
}

// UpdateProcessor updates a relay processor attached to a registered event,
// and its data processor when one is carried in the request.
func (s *Service) UpdateProcessor(ctx context.Context, eventID, processorID int64, req *models.AddProcessorRequest) (*models.RelayProcessor, error) {
	event, err := s.repo.GetSourceEvent(ctx, eventID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	processor, err := s.repo.FindRelayProcessor(ctx, processorID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if processor.SourceEventID != event.ID {
		return nil, fmt.Errorf("%w: relay processor %d does not belong to event %d", ErrNotFound, processorID, eventID)
	}

	if req.RelayProcessor != nil {
		if err := validateRelayProcessorRequest(req.RelayProcessor); err != nil {
			return nil, err
		}
		processor.RelayType = req.RelayProcessor.RelayType
		processor.RelaySystem = req.RelayProcessor.RelaySystem
		processor.RelayEventRules = req.RelayProcessor.RelayEventRules
		processor.RelayHTTPEndpointRules = req.RelayProcessor.RelayHTTPEndpointRules
		processor.ContextDataLocator = req.RelayProcessor.ContextDataLocator
	}

	if req.DataProcessor != nil {
		if req.DataProcessor.ID == 0 && processor.DataProcessorID != nil {
			req.DataProcessor.ID = *processor.DataProcessorID
		}
		dataProcessorID, err := s.upsertDataProcessor(ctx, req.DataProcessor)
		if err != nil {
			return nil, err
		}
		processor.DataProcessorID = &dataProcessorID
	}

	if err := s.repo.UpdateRelayProcessor(ctx, processor); err != nil {
		return nil, mapNotFound(err)
	}
	if err := s.resolveDataProcessor(ctx, processor); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "updated relay processor",
		"source_event", event.SourceEvent,
		"relay_processor_id", processor.ID,
		"relay_type", processor.RelayType,
	)
	return processor, nil
}

// GetRelayProcessor returns an active relay processor scoped to its event,
// with its data processor resolved.
func (s *Service) GetRelayProcessor(ctx context.Context, eventID, processorID int64) (*models.RelayProcessor, error) {
	processor, err := s.repo.GetRelayProcessor(ctx, eventID, processorID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if err := s.resolveDataProcessor(ctx, processor); err != nil {
		return nil, err
	}
	return processor, nil
}

// upsertDataProcessor creates, reuses or updates a data processor and
// returns its id. A request with only an id reuses the stored processor
// untouched.
func (s *Service) upsertDataProcessor(ctx context.Context, req *models.DataProcessorRequest) (int64, error) {
	if err := validateDataProcessorRequest(req); err != nil {
		return 0, err
	}

	if req.ID != 0 {
		existing, err := s.repo.FindDataProcessor(ctx, req.ID)
		if err != nil {
			return 0, mapNotFound(err)
		}
		if req.GraphQLQuery == "" && req.RelayDataLocator == nil &&
			req.DefaultResponse == nil && req.RelayJSONSchema == nil {
			return existing.ID, nil
		}

		existing.GraphQLQuery = req.GraphQLQuery
		existing.RelayDataLocator = req.RelayDataLocator
		existing.DefaultResponse = req.DefaultResponse
		existing.RelayJSONSchema = req.RelayJSONSchema
		if err := s.repo.UpdateDataProcessor(ctx, existing); err != nil {
			return 0, mapNotFound(err)
		}
		return existing.ID, nil
	}

	processor := &models.DataProcessor{
		GraphQLQuery:     req.GraphQLQuery,
		RelayDataLocator: req.RelayDataLocator,
		DefaultResponse:  req.DefaultResponse,
		RelayJSONSchema:  req.RelayJSONSchema,
	}
	if err := s.repo.CreateDataProcessor(ctx, processor); err != nil {
		return 0, err
	}
	return processor.ID, nil
}

func (s *Service) resolveDataProcessor(ctx context.Context, processor *models.RelayProcessor) error {
	if processor.DataProcessorID == nil || *processor.DataProcessorID == 0 {
		return nil
	}
	dataProcessor, err := s.repo.FindDataProcessor(ctx, *processor.DataProcessorID)
	if err != nil {
		if errors.Is(err, repository.ErrDataProcessorNotFound) {
			return nil
		}
		return err
	}
	processor.DataProcessor = dataProcessor
	return nil
}

func validateEventRequest(req *models.RegisterEventRequest) error {
	if strings.TrimSpace(req.SourceEvent) == "" {
		return fmt.Errorf("%w: source_event is required", ErrInvalidInput)
	}
	if req.InputJSONSchema != nil {
		if err := schema.Check(req.InputJSONSchema); err != nil {
			return fmt.Errorf("%w: input_json_schema: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

func validateRelayProcessorRequest(req *models.RelayProcessorRequest) error {
	if !req.RelayType.Valid() {
		return fmt.Errorf("%w: relay_type must be %s or %s", ErrInvalidInput, models.RelayTypeAPI, models.RelayTypeEvent)
	}
	if err := checkRule(req.RelayEventRules); err != nil {
		return fmt.Errorf("%w: relay_event_rules: %v", ErrInvalidInput, err)
	}
	if err := checkRule(req.RelayHTTPEndpointRules); err != nil {
		return fmt.Errorf("%w: relay_http_endpoint_rules: %v", ErrInvalidInput, err)
	}
	switch req.RelayType {
	case models.RelayTypeEvent:
		if req.RelayEventRules == nil {
			return fmt.Errorf("%w: relay_event_rules is required for relay type %s", ErrInvalidInput, models.RelayTypeEvent)
		}
	case models.RelayTypeAPI:
		if req.RelayHTTPEndpointRules == nil {
			return fmt.Errorf("%w: relay_http_endpoint_rules is required for relay type %s", ErrInvalidInput, models.RelayTypeAPI)
		}
	}
	return nil
}

func validateDataProcessorRequest(req *models.DataProcessorRequest) error {
	if err := checkRule(req.RelayDataLocator); err != nil {
		return fmt.Errorf("%w: relay_data_locator: %v", ErrInvalidInput, err)
	}
	if req.RelayJSONSchema != nil {
		if err := schema.Check(req.RelayJSONSchema); err != nil {
			return fmt.Errorf("%w: relay_json_schema: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

// checkRule rejects unsupported operators in a stored rule at write time.
// Only logic applications (and arrays, which may nest them) are compiled;
// other documents are data stored verbatim.
func checkRule(rule interface{}) error {
	if rule == nil {
		return nil
	}
	if _, isArray := rule.([]interface{}); !isArray && !jsonlogic.IsLogic(rule) {
		return nil
	}
	_, err := jsonlogic.Compile(rule)
	return err
}

func mapNotFound(err error) error {
	switch {
	case errors.Is(err, repository.ErrSourceEventNotFound),
		errors.Is(err, repository.ErrRelayProcessorNotFound),
		errors.Is(err, repository.ErrDataProcessorNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return err
	}
}
