package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ListenerReadier reports whether the chat listener has bound its socket.
type ListenerReadier interface {
	Ready() <-chan struct{}
}

// Handler manages health check endpoints
type Handler struct {
	rooms    func() int
	listener ListenerReadier
}

// NewHandler creates a new health check handler. rooms returns the seeded
// room count; listener reports chat-socket readiness.
func NewHandler(rooms func() int, listener ListenerReadier) *Handler {
	return &Handler{rooms: rooms, listener: listener}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if the room registry is seeded and the chat listener is
// accepting; 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	checks := make(map[string]string)
	allHealthy := true

	if h.rooms != nil && h.rooms() > 0 {
		checks["rooms"] = "healthy"
	} else {
		checks["rooms"] = "unhealthy"
		allHealthy = false
	}

	checks["chat_listener"] = h.checkListener()
	if checks["chat_listener"] != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkListener reports whether the chat socket is bound without blocking.
func (h *Handler) checkListener() string {
	if h.listener == nil {
		return "unhealthy"
	}
	select {
	case <-h.listener.Ready():
		return "healthy"
	default:
		return "unhealthy"
	}
}
