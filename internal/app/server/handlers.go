package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chess-vn/lines/internal/domains/dtos"
	"github.com/chess-vn/lines/internal/matchmaking"
	"github.com/chess-vn/lines/internal/rules"
	"github.com/chess-vn/lines/internal/session"
	"github.com/chess-vn/lines/pkg/logging"
	"github.com/chess-vn/lines/pkg/utils"
	"go.uber.org/zap"
)

// Handler for when a connection sends a message.
func (s *server) handleMessage(c *connection, p payload) {
	var err error
	switch p.Type {
	case EventJoinQueue:
		err = s.handleJoinQueue(c, p)
	case EventLeaveQueue, EventExitQueue:
		err = s.handleLeaveQueue(c, p)
	case EventSetReady, EventMatchReady:
		err = s.handleSetReady(c, p)
	case EventSubmitMove, EventMakeMove:
		err = s.handleSubmitMove(c, p)
	case EventSurrender:
		err = s.handleSurrender(c, p)
	case EventJoinGame:
		err = s.handleJoinGame(c, p)
	case EventHeartbeat:
		s.notify(c.id, EventHeartbeatAck, nil)
	case EventEcho:
		s.notify(c.id, EventEcho, p.Data)
	case EventQueueSize:
		s.notify(c.id, EventNumPlayersOnLobby, dtos.QueueSizeResponse{Count: s.queue.Size()})
	case EventDisconnect:
		s.handleDisconnect(c.id)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, p.Type)
	}
	if err != nil {
		logging.Debug("event rejected",
			zap.String("connection_id", c.id),
			zap.String("event", p.Type),
			zap.Error(err),
		)
		s.notifyError(c.id, err)
	}
}

func (s *server) handleJoinQueue(c *connection, p payload) error {
	var req dtos.JoinQueueRequest
	if err := p.decode(&req); err != nil {
		return err
	}
	playerId, err := c.bind(strings.TrimSpace(req.PlayerId))
	if err != nil {
		return err
	}

	if ok, err := s.resumePendingMatch(c, playerId); ok {
		return err
	}

	if entry, ok := s.queue.Get(playerId); ok && entry.ConnectionId == c.id {
		return ErrAlreadyQueued
	}

	rank := 0
	if req.Rank != nil {
		rank = *req.Rank
	} else {
		ctx, cancel := s.storageContext()
		rank, err = s.store.FindRankOf(ctx, playerId)
		cancel()
		if err != nil && !errors.Is(err, session.ErrPlayerNotFound) {
			return err
		}
		if err != nil {
			rank = s.config.DefaultRank
		}
	}

	_, err = s.queue.InsertBounded(matchmaking.Entry{
		PlayerId:     playerId,
		ConnectionId: c.id,
		Rank:         rank,
	}, s.config.MaxQueueSize)
	if err != nil {
		return err
	}
	// A concurrent match may have taken the player between the check above
	// and the insert.
	if _, busy := s.matchOf(playerId); busy {
		s.queue.RemoveByPlayerId(playerId)
		_, err := s.resumePendingMatch(c, playerId)
		return err
	}
	logging.Info("player queued", zap.String("player_id", playerId), zap.Int("rank", rank))
	s.notify(c.id, EventOnQueue, dtos.OnQueueResponse{
		PlayerId: playerId,
		Rank:     rank,
		Size:     s.queue.Size(),
	})

	s.tryMatch()
	return nil
}

// resumePendingMatch sends a player with a waiting session back to it
// instead of queueing. It reports whether the player has a live session.
func (s *server) resumePendingMatch(c *connection, playerId string) (bool, error) {
	m, ok := s.matchOf(playerId)
	if !ok {
		return false, nil
	}
	if m.session.Status() != session.StatusWaiting {
		return true, ErrAlreadyInSession
	}
	if _, err := m.session.Rebind(playerId, c.id); err != nil {
		return true, err
	}
	s.notifyMatchFound(m.session.Snapshot(), playerId)
	return true, nil
}

// tryMatch turns queued pairs into sessions until fewer than two players are
// left or a session cannot be created.
func (s *server) tryMatch() {
	for {
		pair, ok := matchmaking.TryMatch(s.queue)
		if !ok {
			return
		}
		if s.releaseBusy(pair) {
			continue
		}
		if err := s.startMatch(pair); err != nil && !errors.Is(err, errPairBusy) {
			return
		}
	}
}

// releaseBusy drops the players of pair that already joined a session and
// quietly requeues the others. It reports whether anyone was dropped.
func (s *server) releaseBusy(pair matchmaking.Pair) bool {
	var free []matchmaking.Entry
	dropped := false
	for _, e := range []matchmaking.Entry{pair.First, pair.Second} {
		if _, busy := s.matchOf(e.PlayerId); busy {
			logging.Warn("dropped queue entry of player in session", zap.String("player_id", e.PlayerId))
			dropped = true
			continue
		}
		free = append(free, e)
	}
	if !dropped {
		return false
	}
	for _, e := range free {
		matchmaking.Requeue(s.queue, matchmaking.Pair{First: e})
	}
	return true
}

func (s *server) startMatch(pair matchmaking.Pair) error {
	black := session.Participant{
		PlayerId:     pair.First.PlayerId,
		ConnectionId: pair.First.ConnectionId,
		Rank:         pair.First.Rank,
	}
	white := session.Participant{
		PlayerId:     pair.Second.PlayerId,
		ConnectionId: pair.Second.ConnectionId,
		Rank:         pair.Second.Rank,
	}
	sess := session.New(utils.GenerateUUID(), black, white)

	ctx, cancel := s.storageContext()
	_, err := s.store.CreateGame(ctx, sess.Snapshot().Record())
	cancel()
	if err != nil {
		logging.Error("failed to create game", zap.String("session_id", sess.Id()), zap.Error(err))
		s.requeue(pair, err)
		return err
	}

	m := newMatch(sess, s.handleMove, s.handleReadyTimeout)
	if err := s.register(m, black.PlayerId, white.PlayerId); err != nil {
		ctx, cancel := s.storageContext()
		if err := s.store.DeleteGame(ctx, sess.Id()); err != nil {
			logging.Error("failed to delete game", zap.String("session_id", sess.Id()), zap.Error(err))
		}
		cancel()
		if s.releaseBusy(pair) {
			return errPairBusy
		}
		s.requeue(pair, err)
		return err
	}
	go m.start()
	m.setTimer(s.config.ReadyTimeout)

	logging.Info("match found",
		zap.String("session_id", sess.Id()),
		zap.String("black", black.PlayerId),
		zap.String("white", white.PlayerId),
	)
	state := sess.Snapshot()
	s.notifyMatchFound(state, black.PlayerId)
	s.notifyMatchFound(state, white.PlayerId)
	s.syncServerProtection()
	return nil
}

// requeue puts the players of a pair that could not start back in the queue.
// A player that meanwhile joined another session stays out.
func (s *server) requeue(pair matchmaking.Pair, cause error) {
	for _, e := range []matchmaking.Entry{pair.First, pair.Second} {
		if _, busy := s.matchOf(e.PlayerId); busy {
			continue
		}
		matchmaking.Requeue(s.queue, matchmaking.Pair{First: e})
		s.notifyError(e.ConnectionId, cause)
	}
}

func (s *server) notifyMatchFound(state session.State, playerId string) {
	side := rules.Black
	if state.White.PlayerId == playerId {
		side = rules.White
	}
	self, opponent := state.Participant(side), state.Participant(side.Opponent())
	s.notify(self.ConnectionId, EventMatchFound, dtos.MatchFoundResponse{
		SessionId:    state.Id,
		Side:         side.String(),
		OpponentRank: opponent.Rank,
		YourRank:     self.Rank,
	})
}

func (s *server) handleLeaveQueue(c *connection, p payload) error {
	var req dtos.PlayerRequest
	if len(p.Data) > 0 {
		if err := p.decode(&req); err != nil {
			return err
		}
	}
	playerId, err := c.bind(strings.TrimSpace(req.PlayerId))
	if err != nil {
		return err
	}
	if entry, ok := s.queue.RemoveByPlayerId(playerId); ok {
		logging.Info("player left queue", zap.String("player_id", playerId))
		s.notify(c.id, EventExitQueue, dtos.OnQueueResponse{
			PlayerId: playerId,
			Rank:     entry.Rank,
			Size:     s.queue.Size(),
		})
		return nil
	}

	m, ok := s.matchOf(playerId)
	if !ok {
		return ErrNotQueued
	}
	side, _ := m.session.SideOf(playerId)
	state, err := m.session.Cancel()
	if err != nil {
		return err
	}
	s.cancelMatch(m, state, side)
	s.notify(c.id, EventExitQueue, dtos.SessionResponse{SessionId: state.Id})
	return nil
}

// participant resolves the match and side a session request acts on.
func (s *server) participant(c *connection, sessionId, claimed string) (*match, rules.Side, error) {
	playerId, err := c.bind(strings.TrimSpace(claimed))
	if err != nil {
		return nil, rules.None, err
	}
	m, ok := s.lookupMatch(sessionId)
	if !ok {
		return nil, rules.None, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionId)
	}
	side, ok := m.session.SideOf(playerId)
	if !ok {
		return nil, rules.None, session.ErrNotParticipant
	}
	return m, side, nil
}

func (s *server) handleSetReady(c *connection, p payload) error {
	var req dtos.SessionRequest
	if err := p.decode(&req); err != nil {
		return err
	}
	m, side, err := s.participant(c, req.SessionId, req.PlayerId)
	if err != nil {
		return err
	}
	activated, err := m.session.SetReady(side)
	if err != nil {
		return err
	}
	state, err := s.persist(m)
	if err != nil {
		s.notifyError(c.id, err)
	}
	if !activated {
		s.notify(state.Participant(side.Opponent()).ConnectionId, EventOpponentReady, dtos.SessionResponse{SessionId: state.Id})
		return nil
	}

	m.stopTimer()
	logging.Info("game started", zap.String("session_id", state.Id))
	for _, sd := range []rules.Side{rules.Black, rules.White} {
		s.notify(state.Participant(sd).ConnectionId, EventGameStart, dtos.GameStartResponse{
			SessionId: state.Id,
			Side:      sd.String(),
			Turn:      state.Turn.String(),
			Board:     state.Board.Grid(),
		})
	}
	return nil
}

func (s *server) handleSubmitMove(c *connection, p payload) error {
	var req dtos.MoveRequest
	if err := p.decode(&req); err != nil {
		return err
	}
	m, side, err := s.participant(c, req.SessionId, req.PlayerId)
	if err != nil {
		return err
	}
	if req.Side != "" {
		claimed, err := rules.ParseSide(req.Side)
		if err != nil {
			return err
		}
		if claimed != side {
			return ErrWrongSide
		}
	}
	if !m.submit(move{
		connectionId: c.id,
		playerId:     c.player(),
		side:         side,
		from:         req.From,
		to:           req.To,
	}) {
		return session.ErrSessionOver
	}
	return nil
}

// Handler for moves drained by a match goroutine.
func (s *server) handleMove(m *match, mv move) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("move handling failed",
				zap.String("session_id", m.id()),
				zap.Any("panic", r),
			)
			if state, err := m.session.Abandon(mv.side.Opponent(), session.ReasonInternal); err == nil {
				if err := s.concludeMatch(m, state); err != nil {
					s.notifyError(mv.connectionId, err)
				}
			}
		}
	}()

	result, err := m.session.ApplyMove(mv.side, mv.from, mv.to)
	if err != nil {
		s.notifyError(mv.connectionId, err)
		return
	}
	state := result.State
	s.broadcastToSession(state.Id, EventMoveMade, dtos.MoveMadeResponse{
		SessionId: state.Id,
		Side:      result.Record.Side.String(),
		From:      result.Record.From,
		To:        result.Record.To,
		Captured:  result.Record.Captured,
		Board:     state.Board.Grid(),
		Turn:      state.Turn.String(),
	})
	if state.Status.Terminal() {
		if err := s.concludeMatch(m, state); err != nil {
			s.notifyError(mv.connectionId, err)
		}
		return
	}
	if _, err := s.persist(m); err != nil {
		s.notifyError(mv.connectionId, err)
	}
}

func (s *server) handleSurrender(c *connection, p payload) error {
	var req dtos.SessionRequest
	if err := p.decode(&req); err != nil {
		return err
	}
	m, side, err := s.participant(c, req.SessionId, req.PlayerId)
	if err != nil {
		return err
	}
	state, err := m.session.Surrender(side)
	if err != nil {
		return err
	}
	logging.Info("player surrendered", zap.String("session_id", state.Id), zap.String("side", side.String()))
	return s.concludeMatch(m, state)
}

// handleJoinGame reattaches a player to a session from a new connection.
func (s *server) handleJoinGame(c *connection, p payload) error {
	var req dtos.SessionRequest
	if err := p.decode(&req); err != nil {
		return err
	}
	playerId, err := c.bind(strings.TrimSpace(req.PlayerId))
	if err != nil {
		return err
	}
	m, ok := s.lookupMatch(req.SessionId)
	if !ok {
		return s.sendStoredGame(c, req.SessionId, playerId)
	}
	side, err := m.session.Rebind(playerId, c.id)
	if err != nil {
		return err
	}
	state := m.session.Snapshot()
	resp := dtos.GameStateResponseFromEntity(state.Record())
	resp.Side = side.String()
	s.notify(c.id, EventGameState, resp)
	s.notify(state.Participant(side.Opponent()).ConnectionId, EventOpponentReconnected, dtos.SessionResponse{SessionId: state.Id})
	logging.Info("player rejoined",
		zap.String("session_id", state.Id),
		zap.String("player_id", playerId),
	)
	return nil
}

// sendStoredGame answers join-game for a session that is no longer live with
// its persisted final state.
func (s *server) sendStoredGame(c *connection, sessionId, playerId string) error {
	ctx, cancel := s.storageContext()
	game, err := s.store.LoadGame(ctx, sessionId)
	cancel()
	if errors.Is(err, session.ErrGameNotFound) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionId)
	}
	if err != nil {
		return err
	}
	if !game.HasPlayer(playerId) {
		return session.ErrNotParticipant
	}
	resp := dtos.GameStateResponseFromEntity(game)
	if game.PlayerWhite == playerId {
		resp.Side = rules.White.String()
	} else {
		resp.Side = rules.Black.String()
	}
	s.notify(c.id, EventGameState, resp)
	return nil
}

// Handler for when a connection closes. The queue entry and the session are
// found from the connection id alone.
func (s *server) handleDisconnect(connectionId string) {
	s.conns.Delete(connectionId)

	if entry, ok := s.queue.RemoveByConnectionId(connectionId); ok {
		logging.Info("queued player disconnected", zap.String("player_id", entry.PlayerId))
	}

	var target *match
	side := rules.None
	s.matches.Range(func(_, value any) bool {
		m := value.(*match)
		if sd, ok := m.session.SideOfConnection(connectionId); ok {
			target, side = m, sd
			return false
		}
		return true
	})
	if target == nil {
		return
	}

	d, err := target.session.HandleDisconnect(side)
	if err != nil {
		return
	}
	switch {
	case d.Cancelled:
		s.cancelMatch(target, d.State, side)
	case d.Abandoned:
		logging.Info("player disconnected",
			zap.String("session_id", d.State.Id),
			zap.String("side", side.String()),
		)
		stayed := d.State.Participant(side.Opponent()).ConnectionId
		s.notify(stayed, EventOpponentDisconnected, dtos.SessionResponse{SessionId: d.State.Id})
		if err := s.concludeMatch(target, d.State); err != nil {
			s.notifyError(stayed, err)
		}
	}
}

func (s *server) handleReadyTimeout(m *match) {
	state, err := m.session.Cancel()
	if err != nil {
		return
	}
	logging.Info("match cancelled, players not ready", zap.String("session_id", state.Id))
	s.cancelMatch(m, state, rules.None)
}

// cancelMatch drops a session that never started. by is the side that caused
// it, or None when both sides are told.
func (s *server) cancelMatch(m *match, state session.State, by rules.Side) {
	if !m.end() {
		return
	}
	s.unregister(m)
	for _, sd := range []rules.Side{rules.Black, rules.White} {
		if sd == by {
			continue
		}
		s.notify(state.Participant(sd).ConnectionId, EventMatchCancelled, dtos.SessionResponse{SessionId: state.Id})
	}

	ctx, cancel := s.storageContext()
	defer cancel()
	if err := s.store.DeleteGame(ctx, state.Id); err != nil {
		logging.Error("failed to delete game", zap.String("session_id", state.Id), zap.Error(err))
	}
	s.syncServerProtection()
}

// concludeMatch runs everything that follows a terminal transition:
// persistence, rank changes, archive and the end-game hook, then the
// game-over broadcast. A failed final save is returned once the game-over
// event has gone out.
func (s *server) concludeMatch(m *match, state session.State) error {
	if !m.end() {
		return nil
	}
	_, saveErr := s.persist(m)
	record := state.Record()
	ctx, cancel := s.storageContext()
	defer cancel()

	if winnerId, loserId := state.WinnerId(), state.LoserId(); winnerId != "" {
		winnerDelta, loserDelta := utils.RankDeltas(state.Participant(state.Winner.Opponent()).Rank)
		if _, err := s.store.AdjustRank(ctx, winnerId, winnerDelta); err != nil {
			logging.Error("failed to adjust rank", zap.String("player_id", winnerId), zap.Error(err))
		}
		if _, err := s.store.AdjustRank(ctx, loserId, loserDelta); err != nil {
			logging.Error("failed to adjust rank", zap.String("player_id", loserId), zap.Error(err))
		}
	}
	if s.archive != nil {
		if err := s.archive.SaveResult(ctx, record); err != nil {
			logging.Error("failed to archive game", zap.String("session_id", state.Id), zap.Error(err))
		}
	}
	if s.compute != nil && s.config.EndGameFunctionName != "" {
		if err := s.compute.InvokeEndGame(ctx, record); err != nil {
			logging.Error("failed to invoke end game", zap.String("session_id", state.Id), zap.Error(err))
		}
	}

	s.broadcast(state, EventGameOver, dtos.GameOverResponse{
		SessionId: state.Id,
		Winner:    state.Winner.String(),
		WinnerId:  state.WinnerId(),
		Reason:    string(state.Reason),
	})
	s.unregister(m)
	logging.Info("game ended",
		zap.String("session_id", state.Id),
		zap.String("status", string(state.Status)),
		zap.String("reason", string(state.Reason)),
	)
	s.syncServerProtection()
	return saveErr
}

// persist saves the current state of the session. Saves of one match are
// ordered so an older snapshot never overwrites a newer one.
func (s *server) persist(m *match) (session.State, error) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	state := m.session.Snapshot()
	ctx, cancel := s.storageContext()
	defer cancel()
	if err := s.store.SaveGame(ctx, state.Record()); err != nil {
		logging.Error("failed to save game", zap.String("session_id", state.Id), zap.Error(err))
		return state, err
	}
	return state, nil
}
