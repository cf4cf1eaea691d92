package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/Chase-Garrett/towhee/internal/auth"
	"github.com/Chase-Garrett/towhee/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server holds all dependencies for the towhee relay.
type Server struct {
	cfg        *config.Config
	users      *auth.UserStorage
	resolver   *auth.Resolver
	registry   *Registry
	dispatcher *Dispatcher
	gateway    *Gateway
}

// New wires the relay together. A failure to open the user store is not
// fatal: the relay runs without it and identities degrade per the resolver's
// rules.
func New(cfg *config.Config) *Server {
	var store auth.Store
	users, err := auth.NewUserStorage(cfg.DBPath)
	if err != nil {
		log.WithError(err).Warn("user store unavailable, continuing without it")
	} else {
		store = users
	}

	registry := NewRegistry()
	return &Server{
		cfg:        cfg,
		users:      users,
		resolver:   auth.NewResolver([]byte(cfg.JWTSecret), store, cfg.LookupTimeout),
		registry:   registry,
		dispatcher: NewDispatcher(registry),
		gateway:    NewGateway(registry),
	}
}

// Gateway exposes the server-initiated send surface to collaborating
// services.
func (s *Server) Gateway() *Gateway {
	return s.gateway
}

// Registry exposes the connection registry, mainly for tests and stats.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Router builds the HTTP surface: the websocket handshake plus the minimal
// provisioning and operational endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.HandleConnections)
	r.HandleFunc("/register", s.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", s.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// HandleConnections handles incoming websocket connections. The credential is
// optional and its absence or invalidity never rejects the handshake.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	identity := s.resolver.Resolve(r.Context(), auth.CredentialFromRequest(r))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("upgrade failed")
		return
	}

	client := newClient(conn, s.registry, s.dispatcher, s.cfg.ReadLimit, s.cfg.SendBuffer)
	client.session = NewSession(uuid.NewString(), identity, client)
	s.registry.Register(client.session)

	go client.writePump()
	go client.readPump()
}

// RegistrationRequest defines JSON for the /register endpoint.
type RegistrationRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// HandleRegister provisions a user in the identity store.
func (s *Server) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		http.Error(w, "user store unavailable", http.StatusServiceUnavailable)
		return
	}

	var req RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	if err := s.users.CreateUser(id, req.Name, req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
	log.WithField("user", id).Info("user registered")
}

// LoginRequest defines JSON for the /login endpoint.
type LoginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and issues a connection token.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		http.Error(w, "user store unavailable", http.StatusServiceUnavailable)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.users.VerifyUser(req.ID, req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken([]byte(s.cfg.JWTSecret), req.ID, s.cfg.TokenTTL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Start runs the relay until the listener fails.
func (s *Server) Start() error {
	log.WithField("addr", s.cfg.Addr).Info("towhee relay listening")
	return http.ListenAndServe(s.cfg.Addr, s.Router())
}
