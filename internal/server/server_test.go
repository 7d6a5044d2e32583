package server_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/adxql/internal/expression"
	"github.com/paveg/adxql/internal/monitoring"
	"github.com/paveg/adxql/internal/schema"
	"github.com/paveg/adxql/internal/server"
	"github.com/paveg/adxql/internal/testutil"
)

func newServer(t *testing.T, provider *testutil.FakeProvider) (*server.Server, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	resolver := schema.NewResolver(provider, schema.WithMetrics(metrics))
	s := server.New(":0", resolver,
		server.WithMetrics(metrics, reg),
		server.WithDefaultDatabase(testutil.SamplesDatabase),
	)
	return s, reg
}

func do(t *testing.T, s *server.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func stormQuery() expression.QueryExpression {
	return expression.New(testutil.StormEventsTable).
		WithWhere(expression.NewAnd(expression.OperatorExpression{
			Property: expression.Property{Name: "State", Type: expression.TypeString},
			Operator: expression.Operator{Name: "==", Value: expression.StringValue("TEXAS")},
		}))
}

func TestCompile(t *testing.T) {
	s, _ := newServer(t, testutil.NewFakeProvider(testutil.CreateTestSchema()))

	rec := do(t, s, http.MethodPost, "/api/compile", map[string]any{"expression": stormQuery()})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "StormEvents\n| where $__timeFilter(StartTime)\n| where State == 'TEXAS'", resp["query"])
}

func TestCompile_WithoutSchema(t *testing.T) {
	provider := testutil.NewFakeProvider(nil)
	provider.SchemaErr = errors.New("unauthorized")
	s, _ := newServer(t, provider)

	rec := do(t, s, http.MethodPost, "/api/compile", map[string]any{"expression": stormQuery()})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "StormEvents\n| where $__timeFilter(Timestamp)\n| where State == 'TEXAS'", resp["query"])
}

func TestCompile_ValidateWithoutSchema(t *testing.T) {
	provider := testutil.NewFakeProvider(nil)
	provider.SchemaErr = errors.New("unauthorized")
	s, _ := newServer(t, provider)

	rec := do(t, s, http.MethodPost, "/api/compile", map[string]any{"expression": stormQuery(), "validate": true})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "compile failed: no schema available", resp.Message)
	assert.Equal(t, []string{"unauthorized"}, resp.Errors)
}

func TestCompile_Validate(t *testing.T) {
	s, _ := newServer(t, testutil.NewFakeProvider(testutil.CreateTestSchema()))

	q := expression.New(testutil.StormEventsTable).
		WithWhere(expression.NewAnd(expression.OperatorExpression{
			Property: expression.Property{Name: "Stat", Type: expression.TypeString},
			Operator: expression.Operator{Name: "==", Value: expression.StringValue("TEXAS")},
		}))

	rec := do(t, s, http.MethodPost, "/api/compile", map[string]any{"expression": q, "validate": true})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0], "Stat")
}

func TestCompile_MalformedBody(t *testing.T) {
	s, _ := newServer(t, testutil.NewFakeProvider(testutil.CreateTestSchema()))

	req := httptest.NewRequest(http.MethodPost, "/api/compile", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInterpolate(t *testing.T) {
	s, _ := newServer(t, testutil.NewFakeProvider(testutil.CreateTestSchema()))

	rec := do(t, s, http.MethodPost, "/api/interpolate", map[string]any{
		"query":     "StormEvents | where State in ($__escapeMulti($state))",
		"variables": map[string][]string{"state": {"TEXAS", "OHIO"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]string](t, rec)
	assert.NotContains(t, resp["query"], "$state")
	assert.Contains(t, resp["query"], "TEXAS")
}

func TestSchemaEndpoints(t *testing.T) {
	s, _ := newServer(t, testutil.NewFakeProvider(testutil.CreateTestSchema()))

	rec := do(t, s, http.MethodGet, "/api/schema/databases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Samples", "Logs"}, decode[map[string][]string](t, rec)["databases"])

	rec = do(t, s, http.MethodGet, "/api/schema/Samples/tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"StormEvents", "StormEventsDaily"}, decode[map[string][]string](t, rec)["tables"])

	rec = do(t, s, http.MethodGet, "/api/schema/Logs/Traces/columns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	columns := decode[map[string][]schema.Column](t, rec)["columns"]
	testutil.AssertColumnNames(t, []string{"Message", "SeverityLevel"}, columns)

	rec = do(t, s, http.MethodGet, "/api/schema/Logs/Traces/columns?format=arrow", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SeverityLevel")
}

func TestSchemaEndpoints_FetchError(t *testing.T) {
	provider := testutil.NewFakeProvider(nil)
	provider.SchemaErr = errors.New("forbidden")
	s, _ := newServer(t, provider)

	rec := do(t, s, http.MethodGet, "/api/schema/databases", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Message string `json:"message"`
		Data    struct {
			Message string `json:"Message"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "could not load schema: forbidden", resp.Message)
	assert.Equal(t, "forbidden", resp.Data.Message)
}

func TestRefresh(t *testing.T) {
	provider := testutil.NewFakeProvider(testutil.CreateTestSchema())
	hooks := 0
	s := server.New(":0", schema.NewResolver(provider), server.WithRefreshHook(func() { hooks++ }))

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/schema/databases", nil).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/schema/databases", nil).Code)
	assert.Equal(t, 1, provider.SchemaCalls())

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/schema/refresh", nil).Code)
	assert.Equal(t, 2, provider.SchemaCalls())
	assert.Equal(t, 1, hooks)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newServer(t, testutil.NewFakeProvider(testutil.CreateTestSchema()))

	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, false, health["schema"])

	do(t, s, http.MethodPost, "/api/compile", map[string]any{"expression": stormQuery()})

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "adxql_operation_duration_seconds")
	assert.Contains(t, rec.Body.String(), `operation="compile"`)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newServer(t, testutil.NewFakeProvider(testutil.CreateTestSchema()))

	rec := do(t, s, http.MethodGet, "/api/compile", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
