package hotpotato

import (
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Event is anything that can change a session. Events are applied one at a
// time by the session's Coordinator.
type Event interface{ isEvent() }

type Join struct {
	PlayerID string
	Name     string
}

type SetRequiredPlayers struct {
	PlayerID string
	Count    int
}

type Throw struct{ PlayerID string }

type Disconnect struct{ PlayerID string }

// Tick is delivered by the hold timer while a game is active.
type Tick struct{}

func (Join) isEvent()               {}
func (SetRequiredPlayers) isEvent() {}
func (Throw) isEvent()              {}
func (Disconnect) isEvent()         {}
func (Tick) isEvent()               {}

// Session is the state of one lobby and its game. It has no locking: only
// the owning Coordinator may call dispatch.
type Session struct {
	id   string
	opts Options
	log  *zap.Logger

	lobby Lobby
	game  game
	timer holdTimer

	lastActive time.Time
}

func newSession(id string, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		id:         id,
		opts:       opts,
		log:        opts.Logger.With(zap.String("session", id)),
		lobby:      newLobby(opts.MaxPlayers),
		game:       newGame(opts.MaxHold, opts.FlightTime, opts.ReturnToThrower, opts.NewRand()),
		timer:      newHoldTimer(opts.MaxHold, opts.WarnBefore),
		lastActive: opts.Now(),
	}
}

// dispatch applies ev and returns the messages that describe the result.
// Rejected events return nothing.
func (s *Session) dispatch(ev Event, now time.Time) []Outbound {
	if _, ok := ev.(Tick); !ok {
		s.lastActive = now
	}

	switch e := ev.(type) {
	case Join:
		return s.handleJoin(e, now)
	case SetRequiredPlayers:
		return s.handleSetCount(e, now)
	case Throw:
		return s.handleThrow(e, now)
	case Disconnect:
		return s.handleDisconnect(e, now)
	case Tick:
		return s.handleTick(now)
	}
	return nil
}

func (s *Session) ignore(op, player string, err error) {
	s.log.Debug("GAMES: Ignored "+op, zap.String("player", player), zap.Error(err))
}

func (s *Session) handleJoin(e Join, now time.Time) []Outbound {
	if err := s.lobby.join(e.PlayerID, e.Name); err != nil {
		s.ignore("join", e.PlayerID, err)

		switch {
		case errors.Is(err, ErrLobbyFull):
			return []Outbound{s.toOne(e.PlayerID, RejectedMessage{Type: MsgRejected, Reason: "lobby_full"})}
		case errors.Is(err, ErrNameTaken):
			return []Outbound{s.toOne(e.PlayerID, RejectedMessage{Type: MsgRejected, Reason: "name_taken"})}
		}
		return nil
	}

	s.log.Info("GAMES: Player joined", zap.String("player", e.PlayerID), zap.String("name", s.lobby.name(e.PlayerID)))

	out := []Outbound{
		s.toOne(e.PlayerID, JoinedMessage{
			Type:      MsgJoined,
			PlayerID:  e.PlayerID,
			SessionID: s.id,
			HostID:    s.lobby.HostID,
		}),
		s.toAll(s.lobbyUpdate()),
	}
	return append(out, s.maybeStart(now)...)
}

func (s *Session) handleSetCount(e SetRequiredPlayers, now time.Time) []Outbound {
	if err := s.lobby.setRequiredPlayers(e.PlayerID, e.Count); err != nil {
		s.ignore("setRequiredPlayers", e.PlayerID, err)
		return nil
	}

	s.log.Debug("GAMES: Required players set", zap.Int("required", e.Count))

	out := []Outbound{s.toAll(s.lobbyUpdate())}
	return append(out, s.maybeStart(now)...)
}

func (s *Session) maybeStart(now time.Time) []Outbound {
	if !s.lobby.evaluateStart() {
		return nil
	}

	s.lobby.Phase = PhaseActive
	holder := s.game.start(s.lobby.Members, now)
	s.timer.rearm(s.game.tenure)

	s.log.Info("GAMES: Game started", zap.Int("players", len(s.lobby.Members)), zap.String("holder", holder))

	warn := make([]int64, 0, len(s.timer.warnBefore))
	for _, w := range s.timer.warnBefore {
		warn = append(warn, millis(w))
	}

	return []Outbound{
		s.toAll(GameStartMessage{
			Type:            MsgGameStart,
			Players:         s.players(),
			HolderID:        holder,
			MaxHoldDuration: millis(s.opts.MaxHold),
			WarnBefore:      warn,
		}),
		s.toAll(s.gameState(now)),
	}
}

func (s *Session) handleThrow(e Throw, now time.Time) []Outbound {
	if s.lobby.Phase != PhaseActive {
		s.ignore("throw", e.PlayerID, ErrWrongPhase)
		return nil
	}

	res, err := s.game.throw(e.PlayerID, now)
	switch {
	case errors.Is(err, ErrNoRecipient):
		if winner, ok := s.game.winner(); ok {
			return s.conclude(winner, now)
		}
		return nil
	case err != nil:
		s.ignore("throw", e.PlayerID, err)
		return nil
	}

	return []Outbound{
		s.toAll(PotatoThrownMessage{
			Type:       MsgPotatoThrown,
			From:       res.From,
			To:         res.To,
			InFlight:   res.InFlight,
			FlightTime: millis(s.opts.FlightTime),
		}),
		s.toAll(s.gameState(now)),
	}
}

func (s *Session) handleTick(now time.Time) []Outbound {
	if s.lobby.Phase != PhaseActive {
		return nil
	}

	var out []Outbound
	if from, to, ok := s.game.land(now); ok {
		out = append(out, s.toAll(PotatoCaughtMessage{Type: MsgPotatoCaught, HolderID: to, From: from}))
	}

	warnings, overrun := s.timer.evaluate(s.game.potato, s.game.tenure, now)
	for _, w := range warnings {
		out = append(out, s.toAll(WarningMessage{
			Type:      MsgWarning,
			HolderID:  s.game.potato.HolderID,
			Remaining: millis(w.remaining),
		}))
	}

	if overrun {
		out = append(out, s.eliminateHolder(now)...)
	}

	if len(out) > 0 && s.lobby.Phase == PhaseActive {
		out = append(out, s.toAll(s.gameState(now)))
	}
	return out
}

func (s *Session) eliminateHolder(now time.Time) []Outbound {
	rec, next, ok := s.game.eliminate(now)
	if !ok {
		return nil
	}

	s.log.Info("GAMES: Player eliminated", zap.String("player", rec.PlayerID), zap.Int("order", rec.Order))

	out := []Outbound{
		s.toAllExcept(rec.PlayerID, EliminatedMessage{
			Type:         MsgEliminated,
			PlayerID:     rec.PlayerID,
			Order:        rec.Order,
			PotatoHolder: next,
		}),
		s.toOne(rec.PlayerID, ForfeitMessage{
			Type:          MsgForfeit,
			PlayerID:      rec.PlayerID,
			Order:         rec.Order,
			PotatoHolder:  next,
			TotalHoldTime: millis(rec.TotalHoldTime),
		}),
	}

	if winner, ok := s.game.winner(); ok {
		return append(out, s.conclude(winner, now)...)
	}
	if len(s.game.live) == 0 {
		s.reset()
		return append(out, s.toAll(s.lobbyUpdate()))
	}
	return out
}

func (s *Session) handleDisconnect(e Disconnect, now time.Time) []Outbound {
	if !s.lobby.isMember(e.PlayerID) {
		return nil
	}

	if s.lobby.leave(e.PlayerID) {
		s.log.Debug("GAMES: Host reassigned", zap.String("host", s.lobby.HostID))
	}
	s.log.Info("GAMES: Player left", zap.String("player", e.PlayerID))

	if len(s.lobby.Members) == 0 {
		s.reset()
		return nil
	}

	if s.lobby.Phase != PhaseActive {
		return []Outbound{s.toAll(s.lobbyUpdate())}
	}

	r := s.game.remove(e.PlayerID, now)
	if !r.WasLive {
		return []Outbound{s.toAll(s.lobbyUpdate())}
	}

	if winner, ok := s.game.winner(); ok {
		out := []Outbound{s.toAll(s.lobbyUpdate())}
		return append(out, s.conclude(winner, now)...)
	}
	if len(s.game.live) == 0 {
		s.reset()
		return []Outbound{s.toAll(s.lobbyUpdate())}
	}

	var out []Outbound
	switch {
	case r.NewHolder != "":
		out = append(out, s.toAll(PotatoPassedMessage{Type: MsgPotatoPassed, HolderID: r.NewHolder, Reason: "holderLeft"}))
	case r.NewTarget != "":
		out = append(out, s.toAll(PotatoPassedMessage{Type: MsgPotatoPassed, Target: r.NewTarget, Reason: "targetLeft"}))
	}
	return append(out, s.toAll(s.lobbyUpdate()), s.toAll(s.gameState(now)))
}

// conclude declares the winner and reopens the lobby for the same members.
func (s *Session) conclude(winner string, now time.Time) []Outbound {
	s.lobby.Phase = PhaseConcluded
	s.log.Info("GAMES: Game won", zap.String("player", winner))

	standings := []Standing{{
		PlayerID:      winner,
		Name:          s.lobby.name(winner),
		Place:         1,
		TotalHoldTime: millis(s.game.heldFor(winner, now)),
	}}
	for i := len(s.game.eliminations) - 1; i >= 0; i-- {
		rec := s.game.eliminations[i]
		if !s.lobby.isMember(rec.PlayerID) {
			continue
		}
		standings = append(standings, Standing{
			PlayerID:      rec.PlayerID,
			Name:          s.lobby.name(rec.PlayerID),
			Place:         len(standings) + 1,
			TotalHoldTime: millis(rec.TotalHoldTime),
		})
	}

	out := []Outbound{
		s.toAll(WinnerMessage{Type: MsgWinner, PlayerID: winner}),
		s.toAll(GameEndMessage{Type: MsgGameEnd, FinalOrder: standings}),
	}

	s.reset()
	return append(out, s.toAll(s.lobbyUpdate()))
}

// reset returns the session to FORMING. Members stay; the host has to set
// the required count again before the next round.
func (s *Session) reset() {
	s.game.reset()
	s.timer.rearm(s.game.tenure)
	s.lobby.Phase = PhaseForming
	s.lobby.Required = 0
}

func (s *Session) players() []PlayerInfo {
	players := make([]PlayerInfo, 0, len(s.lobby.Members))
	for _, id := range s.lobby.Members {
		players = append(players, PlayerInfo{
			ID:   id,
			Name: s.lobby.name(id),
			Live: s.lobby.Phase != PhaseActive || s.game.isLive(id),
		})
	}
	return players
}

func (s *Session) lobbyUpdate() LobbyUpdateMessage {
	return LobbyUpdateMessage{
		Type:      MsgLobbyUpdate,
		SessionID: s.id,
		Phase:     s.lobby.Phase,
		Players:   s.players(),
		HostID:    s.lobby.HostID,
		Waiting:   len(s.lobby.Members),
		Required:  s.lobby.Required,
		Max:       s.lobby.Max,
	}
}

func (s *Session) gameState(now time.Time) GameStateMessage {
	p := s.game.potato
	msg := GameStateMessage{
		Type:     MsgGameState,
		Phase:    s.lobby.Phase,
		HolderID: p.HolderID,
		InFlight: p.InFlight,
		Target:   p.Target,
		Live:     slices.Clone(s.game.live),
	}
	if p.HolderID != "" {
		msg.HeldFor = millis(now.Sub(p.HeldSince))
	}
	return msg
}

func (s *Session) toAll(msg any) Outbound {
	return Outbound{To: slices.Clone(s.lobby.Members), Msg: msg}
}

func (s *Session) toOne(id string, msg any) Outbound {
	return Outbound{To: []string{id}, Msg: msg}
}

func (s *Session) toAllExcept(id string, msg any) Outbound {
	to := make([]string, 0, len(s.lobby.Members))
	for _, m := range s.lobby.Members {
		if m != id {
			to = append(to, m)
		}
	}
	return Outbound{To: to, Msg: msg}
}

// View is a copy of a session's state.
type View struct {
	ID           string
	Phase        Phase
	Members      []string
	HostID       string
	Required     int
	Potato       Potato
	Live         []string
	Eliminations []Elimination
	LastActive   time.Time
}

func (s *Session) view() View {
	return View{
		ID:           s.id,
		Phase:        s.lobby.Phase,
		Members:      slices.Clone(s.lobby.Members),
		HostID:       s.lobby.HostID,
		Required:     s.lobby.Required,
		Potato:       s.game.potato,
		Live:         slices.Clone(s.game.live),
		Eliminations: slices.Clone(s.game.eliminations),
		LastActive:   s.lastActive,
	}
}
