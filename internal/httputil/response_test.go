package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteResponse(rr, http.StatusOK, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"","response":{"k":"v"}}`, rr.Body.String())
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusNotFound, "not found")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"not found","response":""}`, rr.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"source_event":"TEST_EVENT"}`))
	var dst struct {
		SourceEvent string `json:"source_event"`
	}
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "TEST_EVENT", dst.SourceEvent)
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var dst map[string]interface{}
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Nil(t, dst)
}

func TestDecodeJSON_Malformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
	var dst map[string]interface{}
	assert.Error(t, DecodeJSON(req, &dst))
}
