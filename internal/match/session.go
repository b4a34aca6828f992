package match

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pefman/tower-duel/internal/board"
	"github.com/pefman/tower-duel/internal/engine"
	"github.com/pefman/tower-duel/internal/game"
	"github.com/pefman/tower-duel/internal/models"
	apperrors "github.com/pefman/tower-duel/internal/platform/errors"
)

// DefaultTurnTimeout is how long a side has to act before its turn is passed.
const DefaultTurnTimeout = 30 * time.Second

// Participant is one side's player.
type Participant struct {
	Username string
	Bot      bool
	General  board.Kind
	Card     game.Card
}

// Controller drives a bot-controlled side. TakeTurn is called each time the
// side gets the turn; it must return promptly and schedule its work.
type Controller interface {
	TakeTurn(s *Session, side board.Side, epoch uint64)
}

// Releaser is implemented by controllers that hold scheduled work per
// session. Release runs once, outside the session lock, on conclusion.
type Releaser interface {
	Release(sessionID string)
}

// Result describes a concluded match.
type Result struct {
	SessionID   string
	Winner      Participant
	Loser       Participant
	WinnerSide  board.Side
	Reason      game.Reason
	TurnCounter int
	Duration    time.Duration
}

// Options configures a new Session.
type Options struct {
	ID          string
	Players     [2]Participant // by Side.Index
	Resolver    *game.Resolver
	Clock       engine.Clock
	Rand        engine.Roller
	Publisher   Publisher
	Logger      *zap.Logger
	TurnTimeout time.Duration
	Bot         Controller
	// OnConclude runs exactly once, outside the session lock.
	OnConclude func(Result)
}

// Session is one match. All methods are safe for concurrent use; actions
// are applied one at a time.
type Session struct {
	id       string
	players  [2]Participant
	resolver *game.Resolver
	clock    engine.Clock
	rng      engine.Roller
	pub      Publisher
	log      *zap.Logger
	timeout  time.Duration
	bot      Controller
	onEnd    func(Result)
	started  time.Time

	mu          sync.Mutex
	state       *game.State
	turn        board.Side
	actions     int
	turnCounter int
	concluded   bool
	// epoch changes on every turn switch and on conclusion; scheduled
	// callbacks carry the epoch they were armed in.
	epoch  uint64
	timer  engine.Timer
	result *Result
	later  []func()
}

// New builds a session with its starting board. Call Start to begin play.
func New(opts Options) *Session {
	if opts.Resolver == nil {
		opts.Resolver = game.NewResolver(nil)
	}
	if opts.Clock == nil {
		opts.Clock = engine.RealClock()
	}
	if opts.Rand == nil {
		opts.Rand = engine.NewRNG()
	}
	if opts.Publisher == nil {
		opts.Publisher = Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = DefaultTurnTimeout
	}
	generals := [2]board.Kind{opts.Players[0].General, opts.Players[1].General}
	cards := [2]game.Card{opts.Players[0].Card, opts.Players[1].Card}
	b := board.New(opts.Rand, opts.Resolver.Setup(generals, cards))

	return &Session{
		id:       opts.ID,
		players:  opts.Players,
		resolver: opts.Resolver,
		clock:    opts.Clock,
		rng:      opts.Rand,
		pub:      opts.Publisher,
		log:      opts.Logger.With(zap.String("session", opts.ID)),
		timeout:  opts.TurnTimeout,
		bot:      opts.Bot,
		onEnd:    opts.OnConclude,
		state:    game.NewState(b, cards),
		turn:     board.SideA,
		epoch:    1,
		started:  opts.Clock.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// Participants returns the players by side index.
func (s *Session) Participants() [2]Participant { return s.players }

// SideOf returns the side a human username plays.
func (s *Session) SideOf(username string) (board.Side, bool) {
	for _, side := range board.Sides {
		p := s.players[side.Index()]
		if !p.Bot && p.Username == username {
			return side, true
		}
	}
	return board.SideNone, false
}

// Start announces the match and arms the first turn timer. It does nothing
// once the match has concluded.
func (s *Session) Start() {
	s.mu.Lock()
	if s.concluded {
		s.mu.Unlock()
		return
	}
	snap := s.state.Board.Snapshot()
	sides := map[string]string{
		board.SideA.String(): s.players[0].Username,
		board.SideB.String(): s.players[1].Username,
	}
	for _, side := range board.Sides {
		p := s.players[side.Index()]
		if p.Bot {
			continue
		}
		s.pub.Publish(Event{
			Type: EventMatchStarted, SessionID: s.id, To: []string{p.Username},
			Data: models.MatchStarted{SessionID: s.id, Board: snap, You: side.String(), Sides: sides, Turn: s.turn.String()},
		})
	}
	s.log.Info("match started",
		zap.String("a", s.players[0].Username), zap.String("b", s.players[1].Username))
	s.beginTurnLocked()
	s.mu.Unlock()
	s.flush()
}

// SubmitAction applies one move or attack by side.
func (s *Session) SubmitAction(side board.Side, from, to board.Pos) (game.Outcome, error) {
	s.mu.Lock()
	out, err := s.applyLocked(side, from, to)
	s.mu.Unlock()
	s.flush()
	return out, err
}

// ForceTimeout passes the turn armed in epoch. Stale epochs are ignored.
func (s *Session) ForceTimeout(epoch uint64) {
	s.mu.Lock()
	if !s.concluded && epoch == s.epoch {
		s.log.Info("turn timed out", zap.String("side", s.turn.String()), zap.Int("actions", s.actions))
		s.switchTurnLocked()
	}
	s.mu.Unlock()
	s.flush()
}

// Forfeit concludes the match with side as loser. It reports whether this
// call concluded the match.
func (s *Session) Forfeit(side board.Side) bool {
	return s.end(side, game.ReasonForfeit)
}

// Disconnect concludes the match after side's connection dropped.
func (s *Session) Disconnect(side board.Side) bool {
	return s.end(side, game.ReasonDisconnect)
}

func (s *Session) end(loser board.Side, reason game.Reason) bool {
	s.mu.Lock()
	if s.concluded {
		s.mu.Unlock()
		return false
	}
	s.concludeLocked(game.Conclusion{Winner: loser.Other(), Loser: loser, Reason: reason})
	s.mu.Unlock()
	s.flush()
	return true
}

// Step lets a controller choose and apply one action for side within the
// turn armed in epoch. choose runs under the session lock and must not call
// back into the session. When choose finds nothing the turn is passed.
// Step reports whether side still holds the turn afterwards.
func (s *Session) Step(side board.Side, epoch uint64, choose func(legal []game.Action) (game.Action, bool)) bool {
	s.mu.Lock()
	if s.concluded || epoch != s.epoch || s.turn != side {
		s.mu.Unlock()
		return false
	}
	act, ok := choose(s.resolver.LegalActions(s.state, side))
	if !ok {
		s.log.Debug("no action available, passing", zap.String("side", side.String()))
		s.switchTurnLocked()
	} else if _, err := s.applyLocked(side, act.From, act.To); err != nil {
		s.log.Warn("controller action rejected", zap.Error(err))
		s.switchTurnLocked()
	}
	still := !s.concluded && epoch == s.epoch
	s.mu.Unlock()
	s.flush()
	return still
}

// Concluded reports whether the match is over.
func (s *Session) Concluded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.concluded
}

// Info summarises the session for lobby views.
func (s *Session) Info() models.RoomInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.RoomInfo{
		ID:          s.id,
		PlayerA:     s.players[0].Username,
		PlayerB:     s.players[1].Username,
		VsBot:       s.players[0].Bot || s.players[1].Bot,
		Turn:        s.turn.String(),
		TurnCounter: s.turnCounter,
		Started:     s.started.Unix(),
	}
}

// Turn returns the side to move, the actions it has taken and the epoch.
func (s *Session) Turn() (side board.Side, actions int, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn, s.actions, s.epoch
}

// Board returns a copy of the current board.
func (s *Session) Board() *board.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Board.Clone()
}

func (s *Session) applyLocked(side board.Side, from, to board.Pos) (game.Outcome, error) {
	if s.concluded {
		return game.Outcome{}, apperrors.New(apperrors.CodeSessionNotFound, "match already concluded")
	}
	if side != s.turn {
		return game.Outcome{}, apperrors.New(apperrors.CodeNotYourTurn, "it is not your turn")
	}
	out, err := s.resolver.Resolve(s.state, side, from, to, s.rng)
	if err != nil {
		return game.Outcome{}, err
	}
	s.actions++
	s.turnCounter++
	s.publishEffectsLocked(out.Effects)

	if out.Conclusion == nil {
		effects, c := s.resolver.ApplyAttrition(s.state, s.turnCounter)
		s.publishEffectsLocked(effects)
		out.Effects = append(out.Effects, effects...)
		out.Conclusion = c
	}

	s.publishBoardLocked(s.state.Board.Snapshot(), false)
	s.broadcastLocked(EventTurnCounterUpdated, models.TurnCounterUpdated{SessionID: s.id, Counter: s.turnCounter})

	if out.Conclusion != nil {
		s.concludeLocked(*out.Conclusion)
		return out, nil
	}
	if s.actions >= s.resolver.Rules().ActionsPerTurn {
		s.switchTurnLocked()
	}
	return out, nil
}

func (s *Session) switchTurnLocked() {
	s.state.ResetTurn()
	s.actions = 0
	s.turn = s.turn.Other()
	s.epoch++
	s.publishBoardLocked(s.state.Board.Snapshot(), false)
	s.beginTurnLocked()
}

// beginTurnLocked arms the timer for the current turn and hands a bot side
// to its controller.
func (s *Session) beginTurnLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	epoch := s.epoch
	s.timer = s.clock.AfterFunc(s.timeout, func() { s.ForceTimeout(epoch) })
	s.broadcastLocked(EventTurnTimerStarted, models.TurnTimerStarted{
		SessionID: s.id,
		Turn:      s.turn.String(),
		Seconds:   int(s.timeout / time.Second),
		Deadline:  s.clock.Now().Add(s.timeout).UnixMilli(),
	})
	side := s.turn
	if s.players[side.Index()].Bot && s.bot != nil {
		s.later = append(s.later, func() { s.bot.TakeTurn(s, side, epoch) })
	}
}

func (s *Session) concludeLocked(c game.Conclusion) {
	if s.concluded {
		return
	}
	s.concluded = true
	s.epoch++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	winner, loser := s.players[c.Winner.Index()], s.players[c.Loser.Index()]
	s.broadcastLocked(EventMatchConcluded, models.MatchConcluded{
		SessionID:  s.id,
		Winner:     winner.Username,
		Loser:      loser.Username,
		WinnerSide: c.Winner.String(),
		Reason:     string(c.Reason),
	})
	s.log.Info("match concluded",
		zap.String("winner", winner.Username),
		zap.String("loser", loser.Username),
		zap.String("reason", string(c.Reason)),
		zap.Int("turn_counter", s.turnCounter))

	res := Result{
		SessionID:   s.id,
		Winner:      winner,
		Loser:       loser,
		WinnerSide:  c.Winner,
		Reason:      c.Reason,
		TurnCounter: s.turnCounter,
		Duration:    s.clock.Now().Sub(s.started),
	}
	s.result = &res
	if r, ok := s.bot.(Releaser); ok {
		s.later = append(s.later, func() { r.Release(s.id) })
	}
	if s.onEnd != nil {
		s.later = append(s.later, func() { s.onEnd(res) })
	}
}

// flush runs the callbacks queued while the lock was held.
func (s *Session) flush() {
	s.mu.Lock()
	pending := s.later
	s.later = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// Result returns the conclusion, if any.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

func (s *Session) recipients() []string {
	to := make([]string, 0, 2)
	for _, p := range s.players {
		if !p.Bot {
			to = append(to, p.Username)
		}
	}
	return to
}

func (s *Session) broadcastLocked(t EventType, data any) {
	s.pub.Publish(Event{Type: t, SessionID: s.id, To: s.recipients(), Data: data})
}

func (s *Session) publishBoardLocked(snap board.Snapshot, transient bool) {
	s.broadcastLocked(EventBoardUpdated, models.BoardUpdated{
		SessionID: s.id, Board: snap, Turn: s.turn.String(), Transient: transient,
	})
}

func (s *Session) publishEffectsLocked(effects []game.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case game.EffectAttackHit:
			s.broadcastLocked(EventAttackHit, models.AttackHit{
				SessionID: s.id, Attacker: e.Attacker.Tag(), From: e.From, Target: e.To, Marker: e.Marker,
			})
		case game.EffectAttackMissed:
			s.broadcastLocked(EventAttackMissed, models.AttackMissed{
				SessionID: s.id, Attacker: e.Attacker.Tag(), Target: e.To,
			})
		case game.EffectTowerDamaged:
			s.broadcastLocked(EventTowerDamaged, models.TowerDamaged{
				SessionID: s.id, Attacker: e.Attacker.Tag(), Side: e.Side.String(), HP: e.HP, Damage: e.Damage,
			})
		case game.EffectTowerHealed:
			s.broadcastLocked(EventTowerHealed, models.TowerHealed{
				SessionID: s.id, Side: e.Side.String(), HP: e.HP,
			})
		case game.EffectTowerDestroyed:
			s.broadcastLocked(EventTowerDestroyed, models.TowerDestroyed{
				SessionID: s.id, Attacker: e.Attacker.Tag(), Side: e.Side.String(), Damage: e.Damage,
			})
		case game.EffectCounterAttack:
			s.broadcastLocked(EventCounterAttack, models.CounterAttack{
				SessionID: s.id, Defender: e.Attacker.Tag(), From: e.From, Target: e.To,
			})
		case game.EffectUnitConverted:
			s.broadcastLocked(EventUnitConverted, models.UnitConverted{
				SessionID: s.id, Unit: board.Unit{Side: e.Side, Kind: e.Attacker.Kind}.Tag(), Cell: e.From, Side: e.Side.String(),
			})
		}
		if e.Frame != nil {
			s.publishBoardLocked(*e.Frame, true)
		}
	}
}
