package scimgateway

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelom97/scimgateway/adapter"
	"github.com/marcelom97/scimgateway/memory"
)

func newTestGateway(t *testing.T, pluginName string) *Gateway {
	t.Helper()
	gw := New("http://localhost:8080", 8080)
	gw.RegisterPlugin(pluginName, memory.NewGetter(memory.New(pluginName)), adapter.Capabilities{
		SupportsPatch: true, SupportsGroups: true, MaxPageSize: 200,
	})
	return gw
}

func TestNewWithDefaults(t *testing.T) {
	gw := NewWithDefaults()
	require.NotNil(t, gw)
	assert.NotNil(t, gw.adapters)
	assert.NotNil(t, gw.engine)
}

func TestRegisterPlugin(t *testing.T) {
	gw := newTestGateway(t, "test")
	assert.Equal(t, []string{"default/test"}, gw.adapters.List())
}

func TestInitializeWithNoPluginsRegistered(t *testing.T) {
	gw := NewWithDefaults()
	err := gw.Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plugins registered")
}

func TestInitializeAndHandler(t *testing.T) {
	gw := newTestGateway(t, "test")
	require.NoError(t, gw.Initialize())

	handler, err := gw.Handler()
	require.NoError(t, err)
	require.NotNil(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil)
	req.Header.Set("X-Tenant-Id", "default")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandlerNotInitialized(t *testing.T) {
	gw := NewWithDefaults()
	handler, err := gw.Handler()
	require.Error(t, err)
	assert.Nil(t, handler)
	assert.Contains(t, err.Error(), "gateway not initialized")
}

func TestRequestRequiresTenantHeader(t *testing.T) {
	gw := newTestGateway(t, "test")
	require.NoError(t, gw.Initialize())
	handler, err := gw.Handler()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	gw := NewWithDefaults()
	require.NotNil(t, gw.logger, "logger should default to a discard logger")

	gw.SetLogger(logger)
	assert.NotNil(t, gw.logger)

	gw.SetLogger(nil)
	assert.NotNil(t, gw.logger, "SetLogger(nil) should fall back to the discard logger, not leave it nil")
}

func TestInitializeWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	gw := newTestGateway(t, "test")
	gw.SetLogger(logger)
	require.NoError(t, gw.Initialize())

	logOutput := buf.String()
	assert.Contains(t, logOutput, "initializing SCIM gateway")
	assert.Contains(t, logOutput, "gateway initialized successfully")
}

func TestStartRequiresPort(t *testing.T) {
	gw := NewWithDefaults()
	gw.RegisterPlugin("test", memory.NewGetter(memory.New("test")), adapter.Capabilities{})
	err := gw.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port is required")
}

// ============================================================================
// Logging middleware tests
// ============================================================================

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		expectedLevel string
		path          string
		method        string
		shouldContain []string
	}{
		{
			name:          "successful request logs at INFO level",
			statusCode:    http.StatusOK,
			expectedLevel: "INFO",
			path:          "/scim/v2/Users",
			method:        "GET",
			shouldContain: []string{"HTTP request", "GET", "/scim/v2/Users", "200"},
		},
		{
			name:          "client error logs at WARN level",
			statusCode:    http.StatusBadRequest,
			expectedLevel: "WARN",
			path:          "/scim/v2/Users",
			method:        "POST",
			shouldContain: []string{"HTTP request", "POST", "/scim/v2/Users", "400"},
		},
		{
			name:          "server error logs at ERROR level",
			statusCode:    http.StatusInternalServerError,
			expectedLevel: "ERROR",
			path:          "/scim/v2/Users/123",
			method:        "DELETE",
			shouldContain: []string{"HTTP request", "DELETE", "/scim/v2/Users/123", "500"},
		},
		{
			name:          "logs include query parameters",
			statusCode:    http.StatusOK,
			expectedLevel: "INFO",
			path:          "/scim/v2/Users?filter=userName+eq+john&count=10",
			method:        "GET",
			shouldContain: []string{"HTTP request", "GET", "/scim/v2/Users", "filter=userName"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte("test response"))
			})

			handler := LoggingMiddleware(logger)(testHandler)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("User-Agent", "test-agent")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			require.Equal(t, tt.statusCode, w.Code)

			logOutput := buf.String()
			assert.Contains(t, logOutput, tt.expectedLevel)
			for _, expected := range tt.shouldContain {
				assert.Contains(t, logOutput, expected)
			}
			assert.Contains(t, logOutput, "duration_ms")
			assert.Contains(t, logOutput, "remote_addr")
		})
	}
}

func TestLoggingMiddlewareWithoutWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	handler := LoggingMiddleware(logger)(testHandler)
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Contains(t, buf.String(), `"status":200`)
}

func TestLoggingMiddlewareWithDiscardLogger(t *testing.T) {
	logger := discardLogger()

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler := LoggingMiddleware(logger)(testHandler)
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	assert.NotPanics(t, func() { handler.ServeHTTP(w, req) })
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResponseWriterMultipleWriteHeaders(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.WriteHeader(http.StatusInternalServerError) // should be ignored
		w.Write([]byte("OK"))
	})

	handler := LoggingMiddleware(logger)(testHandler)
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	logOutput := buf.String()
	assert.Contains(t, logOutput, `"status":200`)
	assert.NotContains(t, logOutput, "500")
}
