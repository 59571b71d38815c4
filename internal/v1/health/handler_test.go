package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListener struct {
	ready chan struct{}
}

func newFakeListener(bound bool) *fakeListener {
	l := &fakeListener{ready: make(chan struct{})}
	if bound {
		close(l.ready)
	}
	return l
}

func (l *fakeListener) Ready() <-chan struct{} { return l.ready }

func perform(t *testing.T, handler gin.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET(path, handler)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestLiveness(t *testing.T) {
	h := NewHandler(func() int { return 0 }, newFakeListener(false))

	w := perform(t, h.Liveness, "/health/live")
	require.Equal(t, http.StatusOK, w.Code)

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestReadinessHealthy(t *testing.T) {
	h := NewHandler(func() int { return 3 }, newFakeListener(true))

	w := perform(t, h.Readiness, "/health/ready")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["rooms"])
	assert.Equal(t, "healthy", resp.Checks["chat_listener"])
}

func TestReadinessNoRooms(t *testing.T) {
	h := NewHandler(func() int { return 0 }, newFakeListener(true))

	w := perform(t, h.Readiness, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "unhealthy", resp.Checks["rooms"])
}

func TestReadinessListenerNotBound(t *testing.T) {
	h := NewHandler(func() int { return 3 }, newFakeListener(false))

	w := perform(t, h.Readiness, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadinessNilListener(t *testing.T) {
	h := NewHandler(func() int { return 3 }, nil)

	w := perform(t, h.Readiness, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
