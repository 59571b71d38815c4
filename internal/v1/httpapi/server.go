// Package httpapi builds the ops HTTP surface: health probes, prometheus
// metrics, the rooms listing API, and the WebSocket gateway into the chat
// core.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parley-chat/parley/internal/v1/config"
	"github.com/parley-chat/parley/internal/v1/health"
	"github.com/parley-chat/parley/internal/v1/metrics"
	"github.com/parley-chat/parley/internal/v1/ratelimit"
	"github.com/parley-chat/parley/internal/v1/room"
	"github.com/parley-chat/parley/internal/v1/server"
	"github.com/parley-chat/parley/internal/v1/session"
	"github.com/parley-chat/parley/internal/v1/types"
)

// Server wires the gin engine serving the ops surface.
type Server struct {
	baseCtx      context.Context
	manager      *room.Manager
	limiter      *ratelimit.RateLimiter
	healthH      *health.Handler
	writeTimeout time.Duration
	sessionBuf   int
	origins      []string
	engine       *gin.Engine
}

// New builds the ops server around the shared manager. ctx bounds the
// lifetime of gateway sessions; listener feeds the readiness probe and may
// be nil in tests.
func New(ctx context.Context, cfg *config.Config, manager *room.Manager, listener health.ListenerReadier) (*Server, error) {
	limiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		baseCtx:      ctx,
		manager:      manager,
		limiter:      limiter,
		healthH:      health.NewHandler(func() int { return len(manager.ListRooms()) }, listener),
		writeTimeout: cfg.WriteTimeout,
		sessionBuf:   cfg.SessionBuf,
		origins:      allowedOrigins(cfg.AllowedOrigins),
	}
	s.engine = s.buildRouter()
	return s, nil
}

// Handler exposes the underlying http.Handler for serving and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func allowedOrigins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(correlationMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = s.origins
	router.Use(cors.New(corsConfig))

	router.GET("/health/live", s.healthH.Liveness)
	router.GET("/health/ready", s.healthH.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(s.limiter.APIMiddleware())
	{
		api.GET("/rooms", s.listRooms)
	}

	router.GET("/ws", s.serveWs)

	return router
}

// correlationMiddleware tags every request with a correlation id, honoring
// one supplied by the caller.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("X-Correlation-ID")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("X-Correlation-ID", cid)
		c.Set("correlation_id", cid)
		c.Next()
	}
}

// roomResponse is one entry of the rooms listing.
type roomResponse struct {
	Name        types.RoomName   `json:"name"`
	Description string           `json:"description,omitempty"`
	Members     []types.UserName `json:"members"`
	Size        int              `json:"size"`
}

// listRooms serves GET /api/v1/rooms: the seed set with current rosters.
func (s *Server) listRooms(c *gin.Context) {
	statuses := s.manager.ListRooms()
	out := make([]roomResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, roomResponse{
			Name:        st.Name,
			Description: st.Description,
			Members:     st.Members,
			Size:        len(st.Members),
		})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}

// serveWs upgrades the connection and runs an ordinary chat session over
// it. The session speaks the same frames as the TCP transport.
func (s *Server) serveWs(c *gin.Context) {
	if !s.limiter.CheckWebSocket(c) {
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // Allow non-browser clients (e.g., for testing)
			}
			originURL, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, allowed := range s.origins {
				allowedURL, err := url.Parse(allowed)
				if err != nil {
					continue
				}
				if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}

	metrics.IncConnection("websocket")
	go func() {
		defer metrics.DecConnection("websocket")
		sess := session.New(server.NewWSConn(conn, s.writeTimeout), s.manager, s.sessionBuf)
		if err := sess.Run(s.baseCtx); err != nil {
			slog.Debug("websocket session ended with error", "error", err)
		}
	}()
}
