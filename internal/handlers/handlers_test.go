package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayurjain-livspace/skurge/internal/handlers"
	"github.com/ayurjain-livspace/skurge/internal/logging"
	"github.com/ayurjain-livspace/skurge/internal/models"
	"github.com/ayurjain-livspace/skurge/internal/relay"
	"github.com/ayurjain-livspace/skurge/internal/repository"
	"github.com/ayurjain-livspace/skurge/internal/server"
	"github.com/ayurjain-livspace/skurge/internal/service"
)

// Map-backed repository shared by the service and the pipeline under test.
type testRepo struct {
	events          map[int64]*models.SourceEvent
	dataProcessors  map[int64]*models.DataProcessor
	relayProcessors map[int64]*models.RelayProcessor
	relayLogs       []*models.RelayLog
	nextID          int64
}

func newTestRepo() *testRepo {
	return &testRepo{
		events:          make(map[int64]*models.SourceEvent),
		dataProcessors:  make(map[int64]*models.DataProcessor),
		relayProcessors: make(map[int64]*models.RelayProcessor),
	}
}

func (r *testRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *testRepo) CreateSourceEvent(ctx context.Context, event *models.SourceEvent) error {
	event.ID = r.id()
	event.CreatedAt = time.Now()
	event.ModifiedAt = event.CreatedAt
	r.events[event.ID] = event
	return nil
}

func (r *testRepo) GetSourceEvent(ctx context.Context, id int64) (*models.SourceEvent, error) {
	if e, ok := r.events[id]; ok && e.IsActive {
		return e, nil
	}
	return nil, repository.ErrSourceEventNotFound
}

func (r *testRepo) FindSourceEvent(ctx context.Context, id int64) (*models.SourceEvent, error) {
	if e, ok := r.events[id]; ok {
		return e, nil
	}
	return nil, repository.ErrSourceEventNotFound
}

func (r *testRepo) FindActiveSourceEvent(ctx context.Context, name string) (*models.SourceEvent, error) {
	for _, e := range r.events {
		if e.SourceEvent == name && e.IsActive {
			return e, nil
		}
	}
	return nil, repository.ErrSourceEventNotFound
}

func (r *testRepo) ListActiveSourceEvents(ctx context.Context) ([]*models.SourceEvent, error) {
	var out []*models.SourceEvent
	for _, e := range r.events {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *testRepo) UpdateSourceEvent(ctx context.Context, event *models.SourceEvent) error {
	if _, ok := r.events[event.ID]; !ok {
		return repository.ErrSourceEventNotFound
	}
	r.events[event.ID] = event
	return nil
}

func (r *testRepo) CreateDataProcessor(ctx context.Context, p *models.DataProcessor) error {
	p.ID = r.id()
	r.dataProcessors[p.ID] = p
	return nil
}

func (r *testRepo) FindDataProcessor(ctx context.Context, id int64) (*models.DataProcessor, error) {
	if p, ok := r.dataProcessors[id]; ok {
		return p, nil
	}
	return nil, repository.ErrDataProcessorNotFound
}

func (r *testRepo) UpdateDataProcessor(ctx context.Context, p *models.DataProcessor) error {
	if _, ok := r.dataProcessors[p.ID]; !ok {
		return repository.ErrDataProcessorNotFound
	}
	r.dataProcessors[p.ID] = p
	return nil
}

func (r *testRepo) CreateRelayProcessor(ctx context.Context, p *models.RelayProcessor) error {
	p.ID = r.id()
	r.relayProcessors[p.ID] = p
	return nil
}

func (r *testRepo) GetRelayProcessor(ctx context.Context, sourceEventID, id int64) (*models.RelayProcessor, error) {
	if p, ok := r.relayProcessors[id]; ok && p.SourceEventID == sourceEventID && p.IsActive {
		return p, nil
	}
	return nil, repository.ErrRelayProcessorNotFound
}

func (r *testRepo) FindRelayProcessor(ctx context.Context, id int64) (*models.RelayProcessor, error) {
	if p, ok := r.relayProcessors[id]; ok {
		return p, nil
	}
	return nil, repository.ErrRelayProcessorNotFound
}

func (r *testRepo) UpdateRelayProcessor(ctx context.Context, p *models.RelayProcessor) error {
	if _, ok := r.relayProcessors[p.ID]; !ok {
		return repository.ErrRelayProcessorNotFound
	}
	r.relayProcessors[p.ID] = p
	return nil
}

func (r *testRepo) ListActiveRelayProcessors(ctx context.Context, sourceEventID int64) ([]*models.RelayProcessor, error) {
	var out []*models.RelayProcessor
	for _, p := range r.relayProcessors {
		if p.SourceEventID == sourceEventID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *testRepo) AppendRelayLog(ctx context.Context, entry *models.RelayLog) error {
	r.relayLogs = append(r.relayLogs, entry)
	return nil
}

func (r *testRepo) Close() {}

// recordingPublisher captures EVENT dispatches.
type recordingPublisher struct {
	routingKeys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload map[string]interface{}) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

type noopHTTPCaller struct{}

func (noopHTTPCaller) Call(ctx context.Context, method, url string, headers map[string]string, body map[string]interface{}) error {
	return nil
}

func newTestServer(t *testing.T) (http.Handler, *testRepo, *recordingPublisher) {
	t.Helper()
	repo := newTestRepo()
	logger := logging.New(logging.ParseLevel("error"), "text")
	publisher := &recordingPublisher{}
	dispatcher := relay.NewDispatcher(noopHTTPCaller{}, publisher)
	pipeline := relay.NewPipeline(repo, nil, dispatcher, repo, logger)
	svc := service.NewService(repo, logger)
	return server.NewRouter(handlers.NewHandler(svc, pipeline, logger)), repo, publisher
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type apiEnvelope struct {
	Error    string          `json:"error"`
	Response json.RawMessage `json:"response"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Response, out))
	}
	return env
}

func TestRegisterEventEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rr := doJSON(t, h, http.MethodPost, "/api/v1/register-event", map[string]interface{}{
		"source_event": "TEST_EVENT",
		"input_json_schema": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"user_id"},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var event models.SourceEvent
	decodeEnvelope(t, rr, &event)
	assert.Equal(t, "TEST_EVENT", event.SourceEvent)
	assert.True(t, event.IsActive)
	assert.NotZero(t, event.ID)
}

func TestRegisterEventEndpoint_Invalid(t *testing.T) {
	h, _, _ := newTestServer(t)

	rr := doJSON(t, h, http.MethodPost, "/api/v1/register-event", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	env := decodeEnvelope(t, rr, nil)
	assert.Contains(t, env.Error, "source_event")
}

func TestListRegisteredEventsEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/register-event", map[string]interface{}{"source_event": "A"})
	doJSON(t, h, http.MethodPost, "/api/v1/register-event", map[string]interface{}{"source_event": "B"})

	rr := doJSON(t, h, http.MethodGet, "/api/v1/registered-events", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var events []*models.SourceEvent
	decodeEnvelope(t, rr, &events)
	assert.Len(t, events, 2)
}

func TestGetRegisteredEventEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rr := doJSON(t, h, http.MethodPost, "/api/v1/register-event", map[string]interface{}{"source_event": "TEST_EVENT"})
	var event models.SourceEvent
	decodeEnvelope(t, rr, &event)

	rr = doJSON(t, h, http.MethodGet, "/api/v1/registered-event/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var detail models.EventDetail
	decodeEnvelope(t, rr, &detail)
	assert.Equal(t, "TEST_EVENT", detail.SourceEvent.SourceEvent)
	assert.Empty(t, detail.RelayProcessors)

	rr = doJSON(t, h, http.MethodGet, "/api/v1/registered-event/999", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/v1/registered-event/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateEventEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/register-event", map[string]interface{}{"source_event": "TEST_EVENT"})

	rr := doJSON(t, h, http.MethodPut, "/api/v1/registered-event/1", map[string]interface{}{
		"source_event": "RENAMED_EVENT",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var event models.SourceEvent
	decodeEnvelope(t, rr, &event)
	assert.Equal(t, "RENAMED_EVENT", event.SourceEvent)
}

func TestAddAndGetProcessorEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/register-event", map[string]interface{}{"source_event": "TEST_EVENT"})

	rr := doJSON(t, h, http.MethodPost, "/api/v1/registered-event/1/relayer", map[string]interface{}{
		"relay_processor": map[string]interface{}{
			"relay_type":   "EVENT",
			"relay_system": "notifications",
			"relay_event_rules": map[string]interface{}{
				"if": []interface{}{
					map[string]interface{}{"==": []interface{}{
						map[string]interface{}{"var": "country"}, "IN",
					}},
					"SEND_EMAIL",
					nil,
				},
			},
			"context_data_locator": map[string]string{"country": "country"},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var processor models.RelayProcessor
	decodeEnvelope(t, rr, &processor)
	assert.Equal(t, models.RelayTypeEvent, processor.RelayType)

	rr = doJSON(t, h, http.MethodGet, "/api/v1/registered-event/1/relayer/2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeEnvelope(t, rr, &processor)
	assert.Equal(t, "notifications", processor.RelaySystem)
}

func TestAddProcessorEndpoint_UnsupportedOperator(t *testing.T) {
	h, _, _ := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/register-event", map[string]interface{}{"source_event": "TEST_EVENT"})

	rr := doJSON(t, h, http.MethodPost, "/api/v1/registered-event/1/relayer", map[string]interface{}{
		"relay_processor": map[string]interface{}{
			"relay_type":        "EVENT",
			"relay_event_rules": map[string]interface{}{"reduce": []interface{}{}},
		},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	env := decodeEnvelope(t, rr, nil)
	assert.Contains(t, env.Error, "reduce")
}

func TestProcessEventEndpoint(t *testing.T) {
	h, repo, publisher := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/register-event", map[string]interface{}{"source_event": "TEST_EVENT"})
	doJSON(t, h, http.MethodPost, "/api/v1/registered-event/1/relayer", map[string]interface{}{
		"relay_processor": map[string]interface{}{
			"relay_type": "EVENT",
			"relay_event_rules": map[string]interface{}{
				"if": []interface{}{
					map[string]interface{}{"==": []interface{}{
						map[string]interface{}{"var": "country"}, "IN",
					}},
					"SEND_EMAIL",
					nil,
				},
			},
			"context_data_locator": map[string]string{"country": "country"},
		},
	})

	rr := doJSON(t, h, http.MethodPost, "/api/v1/relay-event/TEST_EVENT", map[string]interface{}{
		"user_id": 1234,
		"country": "IN",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var result models.ProcessEventResult
	decodeEnvelope(t, rr, &result)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, []string{"SEND_EMAIL"}, publisher.routingKeys)

	require.NotEmpty(t, repo.relayLogs)
	assert.Equal(t, models.StatusSuccess, repo.relayLogs[len(repo.relayLogs)-1].Status)
}

func TestProcessEventEndpoint_Unregistered(t *testing.T) {
	h, _, _ := newTestServer(t)

	rr := doJSON(t, h, http.MethodPost, "/api/v1/relay-event/UNKNOWN", map[string]interface{}{})
	require.Equal(t, http.StatusOK, rr.Code)

	var result models.ProcessEventResult
	decodeEnvelope(t, rr, &result)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, "Event UNKNOWN is not registered within skurge or is marked inactive", result.Reason)
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	rr := doJSON(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRequestIDPropagation(t *testing.T) {
	h, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))

	// Absent inbound id: one is generated.
	rr = doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
