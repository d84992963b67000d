// Package repository persists skurge configuration and relay logs in
// PostgreSQL. Rule documents and schemas are stored as JSONB.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayurjain-livspace/skurge/internal/models"
)

var (
	ErrSourceEventNotFound    = errors.New("source event not found")
	ErrRelayProcessorNotFound = errors.New("relay processor not found")
	ErrDataProcessorNotFound  = errors.New("data processor not found")
)

const queryTimeout = 5 * time.Second

type Repository interface {
	CreateSourceEvent(ctx context.Context, event *models.SourceEvent) error
	GetSourceEvent(ctx context.Context, id int64) (*models.SourceEvent, error)
	FindSourceEvent(ctx context.Context, id int64) (*models.SourceEvent, error)
	FindActiveSourceEvent(ctx context.Context, name string) (*models.SourceEvent, error)
	ListActiveSourceEvents(ctx context.Context) ([]*models.SourceEvent, error)
	UpdateSourceEvent(ctx context.Context, event *models.SourceEvent) error

	CreateDataProcessor(ctx context.Context, processor *models.DataProcessor) error
	FindDataProcessor(ctx context.Context, id int64) (*models.DataProcessor, error)
	UpdateDataProcessor(ctx context.Context, processor *models.DataProcessor) error

	CreateRelayProcessor(ctx context.Context, processor *models.RelayProcessor) error
	GetRelayProcessor(ctx context.Context, sourceEventID, id int64) (*models.RelayProcessor, error)
	FindRelayProcessor(ctx context.Context, id int64) (*models.RelayProcessor, error)
	UpdateRelayProcessor(ctx context.Context, processor *models.RelayProcessor) error
	ListActiveRelayProcessors(ctx context.Context, sourceEventID int64) ([]*models.RelayProcessor, error)

	AppendRelayLog(ctx context.Context, entry *models.RelayLog) error

	Close()
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// CreateSourceEvent registers a new source event.
func (r *PostgresRepository) CreateSourceEvent(ctx context.Context, event *models.SourceEvent) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	schemaJSON, err := json.Marshal(event.InputJSONSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal input schema: %w", err)
	}

	query := `
		INSERT INTO source_events (source_event, is_active, input_json_schema, created_at, modified_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, modified_at
	`

	err = r.pool.QueryRow(ctx, query, event.SourceEvent, event.IsActive, schemaJSON).
		Scan(&event.ID, &event.CreatedAt, &event.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create source event: %w", err)
	}
	return nil
}

// GetSourceEvent retrieves an active source event by id.
func (r *PostgresRepository) GetSourceEvent(ctx context.Context, id int64) (*models.SourceEvent, error) {
	return r.getSourceEvent(ctx, `WHERE id = $1 AND is_active AND NOT is_deleted`, id)
}

// FindSourceEvent retrieves a source event by id regardless of its active
// flag, for configuration updates.
func (r *PostgresRepository) FindSourceEvent(ctx context.Context, id int64) (*models.SourceEvent, error) {
	return r.getSourceEvent(ctx, `WHERE id = $1 AND NOT is_deleted`, id)
}

// FindActiveSourceEvent retrieves an active source event by name.
func (r *PostgresRepository) FindActiveSourceEvent(ctx context.Context, name string) (*models.SourceEvent, error) {
	return r.getSourceEvent(ctx, `WHERE source_event = $1 AND is_active AND NOT is_deleted`, name)
}

func (r *PostgresRepository) getSourceEvent(ctx context.Context, where string, arg interface{}) (*models.SourceEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, source_event, is_active, input_json_schema, created_at, modified_at
		FROM source_events ` + where

	var event models.SourceEvent
	var schemaJSON []byte

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&event.ID,
		&event.SourceEvent,
		&event.IsActive,
		&schemaJSON,
		&event.CreatedAt,
		&event.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceEventNotFound
		}
		return nil, fmt.Errorf("failed to get source event: %w", err)
	}

	if err := json.Unmarshal(schemaJSON, &event.InputJSONSchema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input schema: %w", err)
	}
	return &event, nil
}

// ListActiveSourceEvents retrieves all active registered events.
func (r *PostgresRepository) ListActiveSourceEvents(ctx context.Context) ([]*models.SourceEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, source_event, is_active, input_json_schema, created_at, modified_at
		FROM source_events
		WHERE is_active AND NOT is_deleted
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list source events: %w", err)
	}
	defer rows.Close()

	var events []*models.SourceEvent
	for rows.Next() {
		var event models.SourceEvent
		var schemaJSON []byte
		err := rows.Scan(
			&event.ID,
			&event.SourceEvent,
			&event.IsActive,
			&schemaJSON,
			&event.CreatedAt,
			&event.ModifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source event: %w", err)
		}
		if err := json.Unmarshal(schemaJSON, &event.InputJSONSchema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input schema: %w", err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// UpdateSourceEvent updates a registered event in place.
func (r *PostgresRepository) UpdateSourceEvent(ctx context.Context, event *models.SourceEvent) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	schemaJSON, err := json.Marshal(event.InputJSONSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal input schema: %w", err)
	}

	query := `
		UPDATE source_events
		SET source_event = $2, is_active = $3, input_json_schema = $4, modified_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`

	result, err := r.pool.Exec(ctx, query, event.ID, event.SourceEvent, event.IsActive, schemaJSON)
	if err != nil {
		return fmt.Errorf("failed to update source event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSourceEventNotFound
	}
	return nil
}

// CreateDataProcessor stores a new data processor.
func (r *PostgresRepository) CreateDataProcessor(ctx context.Context, processor *models.DataProcessor) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	locatorJSON, defaultsJSON, schemaJSON, err := marshalDataProcessorFields(processor)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO data_processors
		(graphql_query, relay_data_locator, default_response, relay_json_schema, created_at, modified_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, modified_at
	`

	err = r.pool.QueryRow(ctx, query, processor.GraphQLQuery, locatorJSON, defaultsJSON, schemaJSON).
		Scan(&processor.ID, &processor.CreatedAt, &processor.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create data processor: %w", err)
	}
	return nil
}

// FindDataProcessor retrieves a data processor by id.
func (r *PostgresRepository) FindDataProcessor(ctx context.Context, id int64) (*models.DataProcessor, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, graphql_query, relay_data_locator, default_response, relay_json_schema, created_at, modified_at
		FROM data_processors
		WHERE id = $1 AND NOT is_deleted
	`

	var processor models.DataProcessor
	var locatorJSON, defaultsJSON, schemaJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&processor.ID,
		&processor.GraphQLQuery,
		&locatorJSON,
		&defaultsJSON,
		&schemaJSON,
		&processor.CreatedAt,
		&processor.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDataProcessorNotFound
		}
		return nil, fmt.Errorf("failed to get data processor: %w", err)
	}

	if err := unmarshalDataProcessorFields(&processor, locatorJSON, defaultsJSON, schemaJSON); err != nil {
		return nil, err
	}
	return &processor, nil
}

// UpdateDataProcessor updates a data processor in place.
func (r *PostgresRepository) UpdateDataProcessor(ctx context.Context, processor *models.DataProcessor) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	locatorJSON, defaultsJSON, schemaJSON, err := marshalDataProcessorFields(processor)
	if err != nil {
		return err
	}

	query := `
		UPDATE data_processors
		SET graphql_query = $2, relay_data_locator = $3, default_response = $4,
		    relay_json_schema = $5, modified_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`

	result, err := r.pool.Exec(ctx, query, processor.ID, processor.GraphQLQuery, locatorJSON, defaultsJSON, schemaJSON)
	if err != nil {
		return fmt.Errorf("failed to update data processor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrDataProcessorNotFound
	}
	return nil
}

// CreateRelayProcessor attaches a relay processor to a source event.
func (r *PostgresRepository) CreateRelayProcessor(ctx context.Context, processor *models.RelayProcessor) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	eventRulesJSON, endpointRulesJSON, locatorJSON, err := marshalRelayProcessorFields(processor)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO relay_processors
		(source_event_id, is_active, relay_type, relay_system, relay_event_rules,
		 relay_http_endpoint_rules, context_data_locator, data_processor_id, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, modified_at
	`

	err = r.pool.QueryRow(ctx, query,
		processor.SourceEventID,
		processor.IsActive,
		processor.RelayType,
		processor.RelaySystem,
		eventRulesJSON,
		endpointRulesJSON,
		locatorJSON,
		processor.DataProcessorID,
	).Scan(&processor.ID, &processor.CreatedAt, &processor.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create relay processor: %w", err)
	}
	return nil
}

const relayProcessorColumns = `
	id, source_event_id, is_active, relay_type, relay_system, relay_event_rules,
	relay_http_endpoint_rules, context_data_locator, data_processor_id, created_at, modified_at
`

// GetRelayProcessor retrieves an active relay processor scoped to its event.
func (r *PostgresRepository) GetRelayProcessor(ctx context.Context, sourceEventID, id int64) (*models.RelayProcessor, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + relayProcessorColumns + `
		FROM relay_processors
		WHERE id = $1 AND source_event_id = $2 AND is_active AND NOT is_deleted`

	row := r.pool.QueryRow(ctx, query, id, sourceEventID)
	return scanRelayProcessor(row)
}

// FindRelayProcessor retrieves a relay processor by id regardless of its
// active flag, for configuration updates.
func (r *PostgresRepository) FindRelayProcessor(ctx context.Context, id int64) (*models.RelayProcessor, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + relayProcessorColumns + `
		FROM relay_processors
		WHERE id = $1 AND NOT is_deleted`

	row := r.pool.QueryRow(ctx, query, id)
	return scanRelayProcessor(row)
}

// UpdateRelayProcessor updates a relay processor in place.
func (r *PostgresRepository) UpdateRelayProcessor(ctx context.Context, processor *models.RelayProcessor) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	eventRulesJSON, endpointRulesJSON, locatorJSON, err := marshalRelayProcessorFields(processor)
	if err != nil {
		return err
	}

	query := `
		UPDATE relay_processors
		SET is_active = $2, relay_type = $3, relay_system = $4, relay_event_rules = $5,
		    relay_http_endpoint_rules = $6, context_data_locator = $7, data_processor_id = $8,
		    modified_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`

	result, err := r.pool.Exec(ctx, query,
		processor.ID,
		processor.IsActive,
		processor.RelayType,
		processor.RelaySystem,
		eventRulesJSON,
		endpointRulesJSON,
		locatorJSON,
		processor.DataProcessorID,
	)
	if err != nil {
		return fmt.Errorf("failed to update relay processor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRelayProcessorNotFound
	}
	return nil
}

// ListActiveRelayProcessors retrieves the active relay processors for a
// source event.
func (r *PostgresRepository) ListActiveRelayProcessors(ctx context.Context, sourceEventID int64) ([]*models.RelayProcessor, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + relayProcessorColumns + `
		FROM relay_processors
		WHERE source_event_id = $1 AND is_active AND NOT is_deleted
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, sourceEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relay processors: %w", err)
	}
	defer rows.Close()

	var processors []*models.RelayProcessor
	for rows.Next() {
		processor, err := scanRelayProcessor(rows)
		if err != nil {
			return nil, err
		}
		processors = append(processors, processor)
	}
	return processors, rows.Err()
}

// AppendRelayLog records one relay attempt outcome. Entries are append-only.
func (r *PostgresRepository) AppendRelayLog(ctx context.Context, entry *models.RelayLog) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var relayDataJSON []byte
	if entry.RelayData != nil {
		var err error
		relayDataJSON, err = json.Marshal(entry.RelayData)
		if err != nil {
			return fmt.Errorf("failed to marshal relay data: %w", err)
		}
	}

	query := `
		INSERT INTO relay_logs
		(source_event_name, destination_relay_name, relay_type, relay_data, status, reason, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, NULLIF($6, ''), NOW())
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		entry.SourceEventName,
		entry.DestinationRelayName,
		string(entry.RelayType),
		relayDataJSON,
		entry.Status,
		entry.Reason,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append relay log: %w", err)
	}
	return nil
}

func marshalDataProcessorFields(processor *models.DataProcessor) (locator, defaults, schemaDoc []byte, err error) {
	if processor.RelayDataLocator != nil {
		if locator, err = json.Marshal(processor.RelayDataLocator); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal relay data locator: %w", err)
		}
	}
	if processor.DefaultResponse != nil {
		if defaults, err = json.Marshal(processor.DefaultResponse); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal default response: %w", err)
		}
	}
	if processor.RelayJSONSchema != nil {
		if schemaDoc, err = json.Marshal(processor.RelayJSONSchema); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal relay schema: %w", err)
		}
	}
	return locator, defaults, schemaDoc, nil
}

func unmarshalDataProcessorFields(processor *models.DataProcessor, locator, defaults, schemaDoc []byte) error {
	if len(locator) > 0 {
		if err := json.Unmarshal(locator, &processor.RelayDataLocator); err != nil {
			return fmt.Errorf("failed to unmarshal relay data locator: %w", err)
		}
	}
	if len(defaults) > 0 {
		if err := json.Unmarshal(defaults, &processor.DefaultResponse); err != nil {
			return fmt.Errorf("failed to unmarshal default response: %w", err)
		}
	}
	if len(schemaDoc) > 0 {
		if err := json.Unmarshal(schemaDoc, &processor.RelayJSONSchema); err != nil {
			return fmt.Errorf("failed to unmarshal relay schema: %w", err)
		}
	}
	return nil
}

func marshalRelayProcessorFields(processor *models.RelayProcessor) (eventRules, endpointRules, locator []byte, err error) {
	if processor.RelayEventRules != nil {
		if eventRules, err = json.Marshal(processor.RelayEventRules); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal relay event rules: %w", err)
		}
	}
	if processor.RelayHTTPEndpointRules != nil {
		if endpointRules, err = json.Marshal(processor.RelayHTTPEndpointRules); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal endpoint rules: %w", err)
		}
	}
	if processor.ContextDataLocator != nil {
		if locator, err = json.Marshal(processor.ContextDataLocator); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal context data locator: %w", err)
		}
	}
	return eventRules, endpointRules, locator, nil
}

func scanRelayProcessor(row pgx.Row) (*models.RelayProcessor, error) {
	var processor models.RelayProcessor
	var eventRulesJSON, endpointRulesJSON, locatorJSON []byte

	err := row.Scan(
		&processor.ID,
		&processor.SourceEventID,
		&processor.IsActive,
		&processor.RelayType,
		&processor.RelaySystem,
		&eventRulesJSON,
		&endpointRulesJSON,
		&locatorJSON,
		&processor.DataProcessorID,
		&processor.CreatedAt,
		&processor.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRelayProcessorNotFound
		}
		return nil, fmt.Errorf("failed to scan relay processor: %w", err)
	}

	if len(eventRulesJSON) > 0 {
		if err := json.Unmarshal(eventRulesJSON, &processor.RelayEventRules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal relay event rules: %w", err)
		}
	}
	if len(endpointRulesJSON) > 0 {
		if err := json.Unmarshal(endpointRulesJSON, &processor.RelayHTTPEndpointRules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal endpoint rules: %w", err)
		}
	}
	if len(locatorJSON) > 0 {
		if err := json.Unmarshal(locatorJSON, &processor.ContextDataLocator); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context data locator: %w", err)
		}
	}
	return &processor, nil
}
