package observability

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/conversations", nil)
	assert.Empty(t, RequestIDFromRequest(r))

	r.Header.Set("X-Request-Id", "req-42")
	assert.Equal(t, "req-42", RequestIDFromRequest(r))
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))

	// An empty id must not shadow one already carried.
	assert.Equal(t, "req-42", RequestIDFromContext(ContextWithRequestID(ctx, "")))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestTraceIDFromContextWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestBuildHeadersOmitsEmptyValues(t *testing.T) {
	headers := BuildHeaders("req-42", "")
	assert.Equal(t, map[string]string{"x-request-id": "req-42"}, headers)

	headers = BuildHeaders("req-42", "trace-7")
	assert.Equal(t, "trace-7", headers["trace_id"])

	assert.Empty(t, BuildHeaders("", ""))
}

func TestIPFromRequestPrefersProxyHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/conversations", nil)
	r.RemoteAddr = "10.0.0.9:52110"
	assert.Equal(t, "10.0.0.9", IPFromRequest(r))

	r.Header.Set("X-Real-Ip", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", IPFromRequest(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	assert.Equal(t, "198.51.100.4", IPFromRequest(r))
}
