package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/chess-vn/lines/internal/domains/dtos"
	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/matchmaking"
	"github.com/chess-vn/lines/internal/session"
	"github.com/chess-vn/lines/internal/store/memstore"
	"github.com/chess-vn/lines/pkg/logging"
	"github.com/chess-vn/lines/pkg/utils"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Notifier pushes a message to a connection the server does not hold a
// socket for.
type Notifier interface {
	Notify(ctx context.Context, connectionId string, data []byte) error
}

type archiver interface {
	SaveResult(ctx context.Context, game entities.GameRecord) error
}

type computeClient interface {
	UpdateServerProtection(ctx context.Context, enabled bool) error
	InvokeEndGame(ctx context.Context, game entities.GameRecord) error
}

type server struct {
	address  string
	upgrader websocket.Upgrader
	config   Config

	queue   *matchmaking.Queue
	store   session.Store
	archive archiver
	gateway Notifier
	compute computeClient

	conns   sync.Map
	matches sync.Map
	// players indexes live sessions by player id.
	players map[string]string
	mu      sync.Mutex

	protected   bool
	protectMu   sync.Mutex
	stopSweeper chan struct{}
	stopOnce    sync.Once
}

type Option func(*server)

func WithStore(store session.Store) Option {
	return func(s *server) { s.store = store }
}

func WithArchive(archive archiver) Option {
	return func(s *server) { s.archive = archive }
}

func WithGateway(gateway Notifier) Option {
	return func(s *server) { s.gateway = gateway }
}

func WithCompute(compute computeClient) Option {
	return func(s *server) { s.compute = compute }
}

func NewServer(cfg Config, opts ...Option) *server {
	srv := &server{
		address: "0.0.0.0:" + cfg.Port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the cors handler.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		config:      cfg,
		queue:       matchmaking.NewQueue(matchmaking.WithConsistencyChecks(cfg.QueueDebugChecks)),
		players:     make(map[string]string),
		stopSweeper: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.store == nil {
		srv.store = memstore.New(cfg.DefaultRank)
	}
	return srv
}

// Handler returns the routes wrapped in the CORS policy.
func (s *server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebsocket)
	r.HandleFunc("/games/{gameId}", s.handleGetGame).Methods(http.MethodGet)
	r.HandleFunc("/queue", s.handleGetQueue).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleGetStatus).Methods(http.MethodGet)
	r.HandleFunc("/connections/{connectionId}/events", s.handleGatewayEvent).Methods(http.MethodPost)
	r.HandleFunc("/connections/{connectionId}", s.handleGatewayDisconnect).Methods(http.MethodDelete)

	return cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)
}

// Start method    starts the game server
func (s *server) Start() error {
	if s.config.QueueStaleAfter > 0 {
		go s.runSweeper(s.config.QueueSweepInterval)
	}
	defer s.Close()

	httpServer := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logging.Info("game server started", zap.String("port", s.config.Port))
	return httpServer.ListenAndServe()
}

func (s *server) Close() {
	s.stopOnce.Do(func() { close(s.stopSweeper) })
}

func (s *server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	playerId, err := s.auth(r)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(err.Error()))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	c := newConnection(utils.GenerateUUID(), conn, playerId)
	s.conns.Store(c.id, c)
	defer c.close()

	if s.config.MaxMessageSize > 0 {
		conn.SetReadLimit(s.config.MaxMessageSize)
	}
	if s.config.IdleTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		})
	}
	stopPing := make(chan struct{})
	defer close(stopPing)
	if s.config.PingInterval > 0 {
		go s.keepAlive(c, stopPing)
	}

	logging.Info("connection opened",
		zap.String("connection_id", c.id),
		zap.String("remote_address", conn.RemoteAddr().String()),
	)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logging.Info("connection closed",
				zap.String("connection_id", c.id),
				zap.Error(err),
			)
			s.handleDisconnect(c.id)
			return
		}
		if s.config.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		}
		var p payload
		if err := json.Unmarshal(raw, &p); err != nil {
			s.notifyError(c.id, ErrInvalidPayload)
			continue
		}
		s.handleMessage(c, p)
		if p.Type == EventDisconnect {
			return
		}
	}
}

func (s *server) keepAlive(c *connection, stop <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := c.writeControl(websocket.PingMessage, nil, deadline); err != nil {
				logging.Debug("ping failed", zap.String("connection_id", c.id), zap.Error(err))
				return
			}
		}
	}
}

// handleGatewayEvent receives a message relayed by the API Gateway websocket
// integration. Replies travel back through the gateway notifier.
func (s *server) handleGatewayEvent(w http.ResponseWriter, r *http.Request) {
	connectionId := mux.Vars(r)["connectionId"]
	playerId, err := s.auth(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, max(s.config.MaxMessageSize, 1<<12)))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		http.Error(w, ErrInvalidPayload.Error(), http.StatusBadRequest)
		return
	}

	value, _ := s.conns.LoadOrStore(connectionId, newConnection(connectionId, nil, playerId))
	c := value.(*connection)
	if playerId != "" {
		if _, err := c.bind(playerId); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
	}
	s.handleMessage(c, p)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleGatewayDisconnect(w http.ResponseWriter, r *http.Request) {
	s.handleDisconnect(mux.Vars(r)["connectionId"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gameId := mux.Vars(r)["gameId"]
	if !utils.IsValidUUID(gameId) {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	var game entities.GameRecord
	if m, ok := s.lookupMatch(gameId); ok {
		game = m.session.Snapshot().Record()
	} else {
		ctx, cancel := s.storageContext()
		defer cancel()
		var err error
		game, err = s.store.LoadGame(ctx, gameId)
		if errors.Is(err, session.ErrGameNotFound) {
			http.Error(w, ErrSessionNotFound.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			logging.Error("failed to load game", zap.String("session_id", gameId), zap.Error(err))
			http.Error(w, "failed to load game", http.StatusInternalServerError)
			return
		}
	}
	writeJson(w, http.StatusOK, dtos.GameStateResponseFromEntity(game))
}

func (s *server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, dtos.QueueSizeResponse{Count: s.queue.Size()})
}

func (s *server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	size := s.queue.Size()
	writeJson(w, http.StatusOK, dtos.ServerStatusResponse{
		ActiveSessions: int32(s.liveSessions()),
		QueueSize:      int32(size),
		CanAccept:      size < s.config.MaxQueueSize,
		MaxQueueSize:   int32(s.config.MaxQueueSize),
	})
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to write response", zap.Error(err))
	}
}

func (s *server) storageContext() (context.Context, context.CancelFunc) {
	if s.config.StorageTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.config.StorageTimeout)
}

// notify sends one event to one connection. Local sockets are written
// directly; anything else goes through the gateway notifier.
func (s *server) notify(connectionId, event string, data any) error {
	if connectionId == "" {
		return ErrUnknownConnection
	}
	msg, err := encode(event, data)
	if err != nil {
		logging.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return err
	}
	if value, ok := s.conns.Load(connectionId); ok {
		if c := value.(*connection); c.conn != nil {
			err = c.write(msg, s.config.WriteTimeout)
			if err != nil {
				logging.Warn("couldn't notify connection",
					zap.String("connection_id", connectionId),
					zap.String("event", event),
					zap.Error(err),
				)
			}
			return err
		}
	}
	if s.gateway == nil {
		return ErrUnknownConnection
	}
	ctx, cancel := context.WithTimeout(context.Background(), max(s.config.WriteTimeout, time.Second))
	defer cancel()
	if err := s.gateway.Notify(ctx, connectionId, msg); err != nil {
		logging.Warn("couldn't notify connection",
			zap.String("connection_id", connectionId),
			zap.String("event", event),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// broadcastToSession sends an event to every connected participant of a
// live session.
func (s *server) broadcastToSession(sessionId, event string, data any) error {
	m, ok := s.lookupMatch(sessionId)
	if !ok {
		return ErrSessionNotFound
	}
	s.broadcast(m.session.Snapshot(), event, data)
	return nil
}

func (s *server) broadcast(state session.State, event string, data any) {
	for _, connectionId := range state.ConnectionIds() {
		s.notify(connectionId, event, data)
	}
}

func (s *server) notifyError(connectionId string, err error) {
	s.notify(connectionId, EventError, dtos.ErrorResponse{
		Code:    statusFor(err),
		Message: err.Error(),
	})
}

func (s *server) lookupMatch(sessionId string) (*match, bool) {
	value, ok := s.matches.Load(sessionId)
	if !ok {
		return nil, false
	}
	return value.(*match), true
}

// matchOf returns the live match a player takes part in.
func (s *server) matchOf(playerId string) (*match, bool) {
	s.mu.Lock()
	sessionId, ok := s.players[playerId]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return s.lookupMatch(sessionId)
}

// register makes a match visible. It fails when either player already has a
// live session.
func (s *server) register(m *match, playerIds ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, playerId := range playerIds {
		if _, busy := s.players[playerId]; busy {
			return ErrAlreadyInSession
		}
	}
	for _, playerId := range playerIds {
		s.players[playerId] = m.id()
	}
	s.matches.Store(m.id(), m)
	return nil
}

func (s *server) unregister(m *match) {
	state := m.session.Snapshot()
	s.mu.Lock()
	for _, p := range []session.Participant{state.Black, state.White} {
		if s.players[p.PlayerId] == m.id() {
			delete(s.players, p.PlayerId)
		}
	}
	s.mu.Unlock()
	s.matches.Delete(m.id())
}

func (s *server) liveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players) / 2
}

// syncServerProtection keeps the task protected from scale-in while any
// session is live.
func (s *server) syncServerProtection() {
	if s.compute == nil || !s.config.TaskProtection {
		return
	}
	s.protectMu.Lock()
	defer s.protectMu.Unlock()
	want := s.liveSessions() > 0
	if want == s.protected {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.compute.UpdateServerProtection(ctx, want); err != nil {
		logging.Error("failed to update server protection", zap.Bool("enabled", want), zap.Error(err))
		return
	}
	s.protected = want
	logging.Info("server protection updated", zap.Bool("enabled", want))
}

func (s *server) runSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = s.config.QueueStaleAfter
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweeper:
			return
		case <-ticker.C:
			s.sweepStale()
		}
	}
}

// sweepStale drops players that waited longer than the configured limit.
func (s *server) sweepStale() []matchmaking.Entry {
	evicted := s.queue.RemoveStale(s.config.QueueStaleAfter)
	for _, e := range evicted {
		logging.Info("queue entry expired", zap.String("player_id", e.PlayerId))
		s.notify(e.ConnectionId, EventQueueExpired, dtos.OnQueueResponse{
			PlayerId: e.PlayerId,
			Rank:     e.Rank,
			Size:     s.queue.Size(),
		})
	}
	return evicted
}
