package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chess-vn/lines/internal/domains/dtos"
	"github.com/chess-vn/lines/internal/domains/entities"
	"github.com/chess-vn/lines/internal/matchmaking"
	"github.com/chess-vn/lines/internal/rules"
	"github.com/chess-vn/lines/internal/session"
	"github.com/chess-vn/lines/internal/store/memstore"
	"github.com/chess-vn/lines/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Port:           "0",
		AllowedOrigins: []string{"*"},
		WriteTimeout:   time.Second,
		MaxMessageSize: 4096,
		MaxQueueSize:   50,
		ReadyTimeout:   time.Minute,
		StorageTimeout: time.Second,
		StorageDriver:  "memory",
	}
}

type testEnv struct {
	srv   *server
	http  *httptest.Server
	store *memstore.Store
}

func newTestEnv(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()
	store := memstore.New(cfg.DefaultRank)
	srv := NewServer(cfg, append([]Option{WithStore(store)}, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, http: ts, store: store}
}

func (e *testEnv) wsUrl() string {
	return "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (e *testEnv) dial(t *testing.T, header http.Header) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsUrl(), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(event string, data any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(message{Type: event, Data: data}))
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// expect reads until event arrives, skipping anything else, and decodes its
// data into v.
func (c *testClient) expect(event string, v any) {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.conn.SetReadDeadline(deadline)
		var msg received
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.t.Fatalf("waiting for %s: %v", event, err)
		}
		if msg.Type != event {
			continue
		}
		if v != nil {
			require.NoError(c.t, json.Unmarshal(msg.Data, v))
		}
		return
	}
}

func (c *testClient) expectError(code string) {
	c.t.Helper()
	var resp dtos.ErrorResponse
	c.expect(EventError, &resp)
	assert.Equal(c.t, code, resp.Code, resp.Message)
}

func rank(r int) *int { return &r }

// matchPlayers queues alice (rank 100) and bob (rank 50) and waits for both
// match-found events. Alice plays black.
func (e *testEnv) matchPlayers(t *testing.T) (*testClient, *testClient, string) {
	t.Helper()
	alice, bob := e.dial(t, nil), e.dial(t, nil)

	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice", Rank: rank(100)})
	alice.expect(EventOnQueue, nil)
	bob.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "bob", Rank: rank(50)})

	var aliceFound, bobFound dtos.MatchFoundResponse
	alice.expect(EventMatchFound, &aliceFound)
	bob.expect(EventMatchFound, &bobFound)
	require.Equal(t, aliceFound.SessionId, bobFound.SessionId)
	assert.Equal(t, "black", aliceFound.Side)
	assert.Equal(t, 50, aliceFound.OpponentRank)
	assert.Equal(t, 100, aliceFound.YourRank)
	assert.Equal(t, "white", bobFound.Side)
	return alice, bob, aliceFound.SessionId
}

func (e *testEnv) startGame(t *testing.T) (*testClient, *testClient, string) {
	t.Helper()
	alice, bob, sessionId := e.matchPlayers(t)

	alice.send(EventSetReady, dtos.SessionRequest{SessionId: sessionId, PlayerId: "alice"})
	bob.expect(EventOpponentReady, nil)
	bob.send(EventMatchReady, dtos.SessionRequest{SessionId: sessionId, PlayerId: "bob"})

	var start dtos.GameStartResponse
	alice.expect(EventGameStart, &start)
	assert.Equal(t, "black", start.Side)
	assert.Equal(t, "black", start.Turn)
	initial := rules.NewBoard()
	assert.Equal(t, initial.Grid(), start.Board)
	bob.expect(EventGameStart, &start)
	assert.Equal(t, "white", start.Side)
	return alice, bob, sessionId
}

func TestPlayUntilSurrender(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice, bob, sessionId := env.startGame(t)

	alice.send(EventSubmitMove, dtos.MoveRequest{
		SessionId: sessionId, PlayerId: "alice", Side: "black",
		From: rules.Coord{Row: 0, Col: 1}, To: rules.Coord{Row: 0, Col: 4},
	})
	alice.expectError(StatusInvalidMove)

	alice.send(EventSubmitMove, dtos.MoveRequest{
		SessionId: sessionId, PlayerId: "alice", Side: "white",
		From: rules.Coord{Row: 0, Col: 1}, To: rules.Coord{Row: 2, Col: 1},
	})
	alice.expectError(StatusWrongSide)

	bob.send(EventMakeMove, dtos.MoveRequest{
		SessionId: sessionId, PlayerId: "bob", Side: "white",
		From: rules.Coord{Row: 1, Col: 0}, To: rules.Coord{Row: 1, Col: 2},
	})
	bob.expectError(StatusWrongTurn)

	alice.send(EventSubmitMove, dtos.MoveRequest{
		SessionId: sessionId, PlayerId: "alice", Side: "black",
		From: rules.Coord{Row: 0, Col: 1}, To: rules.Coord{Row: 2, Col: 1},
	})
	var moved dtos.MoveMadeResponse
	bob.expect(EventMoveMade, &moved)
	assert.Equal(t, "black", moved.Side)
	assert.Equal(t, rules.Coord{Row: 2, Col: 1}, moved.To)
	assert.Equal(t, "white", moved.Turn)
	assert.False(t, moved.Captured)
	assert.Equal(t, int(rules.Black), moved.Board[2][1])
	alice.expect(EventMoveMade, nil)

	bob.send(EventSurrender, dtos.SessionRequest{SessionId: sessionId, PlayerId: "bob"})
	var over dtos.GameOverResponse
	alice.expect(EventGameOver, &over)
	assert.Equal(t, dtos.GameOverResponse{SessionId: sessionId, Winner: "black", WinnerId: "alice", Reason: "surrender"}, over)
	bob.expect(EventGameOver, nil)

	game, err := env.store.LoadGame(context.Background(), sessionId)
	require.NoError(t, err)
	assert.Equal(t, "finished", game.Status)
	assert.Len(t, game.MoveHistory, 1)
	assert.NotNil(t, game.EndedAt)

	aliceRank, _ := env.store.FindRankOf(context.Background(), "alice")
	bobRank, _ := env.store.FindRankOf(context.Background(), "bob")
	assert.Equal(t, 20, aliceRank)
	assert.Equal(t, 0, bobRank)
}

func TestDisconnectAbandonsActiveGame(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice, bob, sessionId := env.startGame(t)

	bob.conn.Close()
	alice.expect(EventOpponentDisconnected, nil)
	var over dtos.GameOverResponse
	alice.expect(EventGameOver, &over)
	assert.Equal(t, "alice", over.WinnerId)
	assert.Equal(t, "disconnect", over.Reason)
	assert.Eventually(t, func() bool {
		_, live := env.srv.lookupMatch(sessionId)
		return !live
	}, time.Second, 10*time.Millisecond)

	// Rejoining shows the final state but does not resume play.
	bob2 := env.dial(t, nil)
	bob2.send(EventJoinGame, dtos.SessionRequest{SessionId: sessionId, PlayerId: "bob"})
	var state dtos.GameStateResponse
	bob2.expect(EventGameState, &state)
	assert.Equal(t, "abandoned", state.Status)
	assert.Equal(t, "white", state.Side)
	assert.Equal(t, "alice", state.WinnerId)

	bob2.send(EventSubmitMove, dtos.MoveRequest{SessionId: sessionId, PlayerId: "bob"})
	bob2.expectError(StatusSessionNotFound)
}

// finalSaveFailingStore refuses to save games that are over.
type finalSaveFailingStore struct {
	*memstore.Store
}

func (f finalSaveFailingStore) SaveGame(ctx context.Context, game entities.GameRecord) error {
	if session.Status(game.Status).Terminal() {
		return fmt.Errorf("%w: connection reset", session.ErrStorage)
	}
	return f.Store.SaveGame(ctx, game)
}

func TestFinalSaveFailureReachesPlayer(t *testing.T) {
	t.Run("surrender", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), WithStore(finalSaveFailingStore{memstore.New(0)}))
		alice, bob, sessionId := env.startGame(t)

		bob.send(EventSurrender, dtos.SessionRequest{SessionId: sessionId, PlayerId: "bob"})
		bob.expect(EventGameOver, nil)
		bob.expectError(StatusStorageFailure)
		alice.expect(EventGameOver, nil)
	})

	t.Run("disconnect", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), WithStore(finalSaveFailingStore{memstore.New(0)}))
		alice, bob, _ := env.startGame(t)

		bob.conn.Close()
		alice.expect(EventGameOver, nil)
		alice.expectError(StatusStorageFailure)
	})
}

func TestRejoinActiveGame(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice, _, sessionId := env.startGame(t)

	bob2 := env.dial(t, nil)
	bob2.send(EventJoinGame, dtos.SessionRequest{SessionId: sessionId, PlayerId: "bob"})
	var state dtos.GameStateResponse
	bob2.expect(EventGameState, &state)
	assert.Equal(t, "active", state.Status)
	assert.Equal(t, "black", state.Turn)
	alice.expect(EventOpponentReconnected, nil)

	alice.send(EventSubmitMove, dtos.MoveRequest{
		SessionId: sessionId, PlayerId: "alice",
		From: rules.Coord{Row: 0, Col: 1}, To: rules.Coord{Row: 2, Col: 1},
	})
	bob2.expect(EventMoveMade, nil)

	carol := env.dial(t, nil)
	carol.send(EventJoinGame, dtos.SessionRequest{SessionId: sessionId, PlayerId: "carol"})
	carol.expectError(StatusNotAParticipant)
}

func TestDisconnectCancelsWaitingSession(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice, bob, _ := env.matchPlayers(t)
	require.Equal(t, 1, env.store.GameCount())

	alice.conn.Close()
	bob.expect(EventMatchCancelled, nil)
	assert.Eventually(t, func() bool { return env.store.GameCount() == 0 }, time.Second, 10*time.Millisecond)

	bob.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "bob", Rank: rank(50)})
	bob.expect(EventOnQueue, nil)
}

func TestLeaveQueue(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice := env.dial(t, nil)

	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice", Rank: rank(10)})
	alice.expect(EventOnQueue, nil)
	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice", Rank: rank(10)})
	alice.expectError(StatusAlreadyQueued)

	alice.send(EventLeaveQueue, dtos.PlayerRequest{PlayerId: "alice"})
	alice.expect(EventExitQueue, nil)
	assert.Equal(t, 0, env.srv.queue.Size())

	alice.send(EventExitQueue, nil)
	alice.expectError(StatusInvalidState)
}

func TestLeaveWaitingSession(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice, bob, sessionId := env.matchPlayers(t)

	alice.send(EventLeaveQueue, dtos.PlayerRequest{PlayerId: "alice"})
	var resp dtos.SessionResponse
	bob.expect(EventMatchCancelled, &resp)
	assert.Equal(t, sessionId, resp.SessionId)
	alice.expect(EventExitQueue, nil)
	_, ok := env.srv.lookupMatch(sessionId)
	assert.False(t, ok)
}

func TestJoinQueueWhileInSession(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice, bob, sessionId := env.matchPlayers(t)

	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice"})
	var found dtos.MatchFoundResponse
	alice.expect(EventMatchFound, &found)
	assert.Equal(t, sessionId, found.SessionId)

	alice.send(EventSetReady, dtos.SessionRequest{SessionId: sessionId})
	bob.send(EventSetReady, dtos.SessionRequest{SessionId: sessionId})
	alice.expect(EventGameStart, nil)

	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice"})
	alice.expectError(StatusAlreadyInSession)

	alice.send(EventSetReady, dtos.SessionRequest{SessionId: sessionId})
	alice.expectError(StatusInvalidState)
}

// registerBusy puts playerId into a live session that nobody plays.
func (e *testEnv) registerBusy(t *testing.T, playerId string) *match {
	t.Helper()
	sess := session.New("busy-"+playerId,
		session.Participant{PlayerId: playerId},
		session.Participant{PlayerId: "ghost-" + playerId},
	)
	m := newMatch(sess, e.srv.handleMove, e.srv.handleReadyTimeout)
	require.NoError(t, e.srv.register(m, playerId, "ghost-"+playerId))
	return m
}

func TestTryMatchSkipsPlayersAlreadyInSession(t *testing.T) {
	env := newTestEnv(t, testConfig())
	busy := env.registerBusy(t, "p")
	for _, e := range []matchmaking.Entry{
		{PlayerId: "p", Rank: 300},
		{PlayerId: "r", Rank: 200},
		{PlayerId: "q", Rank: 100},
	} {
		env.srv.queue.Insert(e)
	}

	env.srv.tryMatch()
	assert.Equal(t, 0, env.srv.queue.Size())

	rm, ok := env.srv.matchOf("r")
	require.True(t, ok)
	qm, ok := env.srv.matchOf("q")
	require.True(t, ok)
	assert.Equal(t, rm.id(), qm.id())
	pm, _ := env.srv.matchOf("p")
	assert.Equal(t, busy.id(), pm.id())
}

func TestStartMatchRegisterConflict(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.registerBusy(t, "p")
	pair := matchmaking.Pair{
		First:  matchmaking.Entry{PlayerId: "p", Rank: 300},
		Second: matchmaking.Entry{PlayerId: "r", Rank: 200},
	}

	err := env.srv.startMatch(pair)
	assert.ErrorIs(t, err, errPairBusy)
	assert.Equal(t, 0, env.store.GameCount())
	assert.False(t, env.srv.queue.HasPlayer("p"))
	entry, ok := env.srv.queue.Get("r")
	require.True(t, ok)
	assert.Equal(t, 200, entry.Rank)
}

func TestQueueCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	env := newTestEnv(t, cfg)

	alice, bob := env.dial(t, nil), env.dial(t, nil)
	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice", Rank: rank(10)})
	alice.expect(EventOnQueue, nil)
	require.Equal(t, 1, env.srv.queue.Size())

	bob.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "bob", Rank: rank(50)})
	bob.expectError(StatusQueueFull)
	assert.False(t, env.srv.queue.HasPlayer("bob"))
}

func TestRankFromStore(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.store.SetRank("alice", 321)
	alice := env.dial(t, nil)

	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice"})
	var resp dtos.OnQueueResponse
	alice.expect(EventOnQueue, &resp)
	assert.Equal(t, 321, resp.Rank)
}

func TestReadyTimeoutCancelsSession(t *testing.T) {
	cfg := testConfig()
	cfg.ReadyTimeout = 50 * time.Millisecond
	env := newTestEnv(t, cfg)
	alice, bob, sessionId := env.matchPlayers(t)

	alice.expect(EventMatchCancelled, nil)
	bob.expect(EventMatchCancelled, nil)
	_, ok := env.srv.lookupMatch(sessionId)
	assert.False(t, ok)
}

func TestConnectionActsForOnePlayer(t *testing.T) {
	env := newTestEnv(t, testConfig())
	alice := env.dial(t, nil)

	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice", Rank: rank(1)})
	alice.expect(EventOnQueue, nil)
	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "mallory", Rank: rank(1)})
	alice.expectError(StatusForbidden)
}

func TestAuthenticatedConnections(t *testing.T) {
	cfg := testConfig()
	cfg.AuthSecret = "secret"
	env := newTestEnv(t, cfg)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsUrl(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	alice := env.dial(t, http.Header{"Authorization": []string{"Bearer " + token}})

	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "bob", Rank: rank(1)})
	alice.expectError(StatusForbidden)

	alice.send(EventJoinQueue, dtos.JoinQueueRequest{Rank: rank(1)})
	var queued dtos.OnQueueResponse
	alice.expect(EventOnQueue, &queued)
	assert.Equal(t, "alice", queued.PlayerId)
}

func TestUtilityEvents(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.dial(t, nil)

	c.send(EventHeartbeat, nil)
	c.expect(EventHeartbeatAck, nil)

	c.send(EventEcho, map[string]string{"hello": "world"})
	var echoed map[string]string
	c.expect(EventEcho, &echoed)
	assert.Equal(t, "world", echoed["hello"])

	c.send(EventQueueSize, nil)
	var size dtos.QueueSizeResponse
	c.expect(EventNumPlayersOnLobby, &size)
	assert.Equal(t, 0, size.Count)

	c.send("dance", nil)
	c.expectError(StatusUnknownEvent)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	c.expectError(StatusInvalidPayload)

	c.send(EventJoinQueue, nil)
	c.expectError(StatusInvalidPayload)
}

func TestSweepStale(t *testing.T) {
	cfg := testConfig()
	cfg.QueueStaleAfter = 10 * time.Millisecond
	env := newTestEnv(t, cfg)
	alice := env.dial(t, nil)

	alice.send(EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice", Rank: rank(1)})
	alice.expect(EventOnQueue, nil)
	time.Sleep(30 * time.Millisecond)

	evicted := env.srv.sweepStale()
	require.Len(t, evicted, 1)
	assert.Equal(t, "alice", evicted[0].PlayerId)
	alice.expect(EventQueueExpired, nil)
	assert.Equal(t, 0, env.srv.queue.Size())
}

func getJson(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHttpRoutes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	assert.Equal(t, http.StatusBadRequest, getJson(t, env.http.URL+"/games/nope", nil))
	assert.Equal(t, http.StatusNotFound, getJson(t, env.http.URL+"/games/"+utils.GenerateUUID(), nil))

	_, _, sessionId := env.matchPlayers(t)

	var game dtos.GameStateResponse
	require.Equal(t, http.StatusOK, getJson(t, env.http.URL+"/games/"+sessionId, &game))
	assert.Equal(t, "waiting", game.Status)
	assert.Equal(t, "alice", game.PlayerBlack)

	var size dtos.QueueSizeResponse
	require.Equal(t, http.StatusOK, getJson(t, env.http.URL+"/queue", &size))
	assert.Equal(t, 0, size.Count)

	var status dtos.ServerStatusResponse
	require.Equal(t, http.StatusOK, getJson(t, env.http.URL+"/status", &status))
	assert.Equal(t, int32(1), status.ActiveSessions)
	assert.True(t, status.CanAccept)

	req, _ := http.NewRequest(http.MethodOptions, env.http.URL+"/queue", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

type fakeGateway struct {
	mu   sync.Mutex
	sent map[string][]received
}

func (f *fakeGateway) Notify(_ context.Context, connectionId string, data []byte) error {
	var msg received
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[connectionId] = append(f.sent[connectionId], msg)
	return nil
}

func (f *fakeGateway) types(connectionId string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, msg := range f.sent[connectionId] {
		types = append(types, msg.Type)
	}
	return types
}

func postEvent(t *testing.T, url string, event string, data any) int {
	t.Helper()
	body, err := json.Marshal(message{Type: event, Data: data})
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestGatewayConnections(t *testing.T) {
	gateway := &fakeGateway{sent: map[string][]received{}}
	env := newTestEnv(t, testConfig(), WithGateway(gateway))

	status := postEvent(t, env.http.URL+"/connections/c1/events", EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "alice", Rank: rank(5)})
	require.Equal(t, http.StatusAccepted, status)
	status = postEvent(t, env.http.URL+"/connections/c2/events", EventJoinQueue, dtos.JoinQueueRequest{PlayerId: "bob", Rank: rank(3)})
	require.Equal(t, http.StatusAccepted, status)

	assert.Equal(t, []string{EventOnQueue, EventMatchFound}, gateway.types("c1"))
	assert.Equal(t, []string{EventOnQueue, EventMatchFound}, gateway.types("c2"))

	req, _ := http.NewRequest(http.MethodDelete, env.http.URL+"/connections/c1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, gateway.types("c2"), EventMatchCancelled)

	resp, err = http.Post(env.http.URL+"/connections/c3/events", "application/json", strings.NewReader("nope"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type fakeArchive struct {
	mu    sync.Mutex
	games []entities.GameRecord
}

func (f *fakeArchive) SaveResult(_ context.Context, game entities.GameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games = append(f.games, game)
	return nil
}

func (f *fakeArchive) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.games)
}

type fakeCompute struct {
	mu         sync.Mutex
	protection []bool
	endGames   []string
}

func (f *fakeCompute) UpdateServerProtection(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.protection = append(f.protection, enabled)
	return nil
}

func (f *fakeCompute) InvokeEndGame(_ context.Context, game entities.GameRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endGames = append(f.endGames, game.Id)
	return nil
}

func (f *fakeCompute) snapshot() ([]bool, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.protection...), append([]string(nil), f.endGames...)
}

func TestConclusionCollaborators(t *testing.T) {
	cfg := testConfig()
	cfg.TaskProtection = true
	cfg.EndGameFunctionName = "endGame"
	archive, compute := &fakeArchive{}, &fakeCompute{}
	env := newTestEnv(t, cfg, WithArchive(archive), WithCompute(compute))

	alice, bob, sessionId := env.startGame(t)
	assert.Eventually(t, func() bool {
		protection, _ := compute.snapshot()
		return len(protection) == 1 && protection[0]
	}, time.Second, 10*time.Millisecond)

	alice.send(EventSurrender, dtos.SessionRequest{SessionId: sessionId, PlayerId: "alice"})
	var over dtos.GameOverResponse
	bob.expect(EventGameOver, &over)
	assert.Equal(t, "bob", over.WinnerId)

	assert.Equal(t, 1, archive.count())
	assert.Eventually(t, func() bool {
		protection, endGames := compute.snapshot()
		return len(protection) == 2 && !protection[1] && len(endGames) == 1 && endGames[0] == sessionId
	}, time.Second, 10*time.Millisecond)
}
