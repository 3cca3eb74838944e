package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/TusharChoudharyy/zava-chat-app/internal/metrics"
	"github.com/TusharChoudharyy/zava-chat-app/internal/registry"
	"github.com/TusharChoudharyy/zava-chat-app/internal/relay"
)

type Options struct {
	// AllowedOrigins lists browser origins allowed to open /ws. "*" allows
	// every origin. Requests without an Origin header (native clients) are
	// always allowed.
	AllowedOrigins []string

	// ExposeRooms enables GET /rooms.
	ExposeRooms bool

	Limits relay.Limits
}

type Server struct {
	hub      *relay.Hub
	registry *registry.Registry
	metrics  *metrics.Relay
	opts     Options
	upgrader websocket.Upgrader
}

func New(hub *relay.Hub, reg *registry.Registry, m *metrics.Relay, opts Options) *Server {
	s := &Server{
		hub:      hub,
		registry: reg,
		metrics:  m,
		opts:     opts,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.ServeWs)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	if s.opts.ExposeRooms {
		r.Get("/rooms", s.rooms)
	}

	return r
}

// ServeWs upgrades the request, assigns a fresh identity and starts the
// connection pumps.
func (s *Server) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Failed to upgrade connection")
		return
	}

	client := relay.NewClient(s.hub, conn, uuid.NewString(), s.opts.Limits)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	log.Debug().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("Connection opened")

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}

type roomsResponse struct {
	Rooms []registry.View `json:"rooms"`
}

func (s *Server) rooms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(roomsResponse{Rooms: s.registry.Rooms()}); err != nil {
		log.Error().Err(err).Msg("Failed to encode rooms")
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return OriginAllowed(origin, s.opts.AllowedOrigins)
}

// OriginAllowed matches origin against allowed by scheme and host.
func OriginAllowed(origin string, allowed []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	for _, a := range allowed {
		if a == "*" {
			return true
		}
		au, err := url.Parse(a)
		if err != nil {
			continue
		}
		if strings.EqualFold(au.Scheme, u.Scheme) && strings.EqualFold(au.Host, u.Host) {
			return true
		}
	}
	return false
}
