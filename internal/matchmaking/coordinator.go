// Package matchmaking pairs queued players into sessions, falls back to the
// bot when nobody else shows up, and reports concluded matches.
package matchmaking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pefman/tower-duel/internal/board"
	"github.com/pefman/tower-duel/internal/engine"
	"github.com/pefman/tower-duel/internal/game"
	"github.com/pefman/tower-duel/internal/match"
	"github.com/pefman/tower-duel/internal/models"
	apperrors "github.com/pefman/tower-duel/internal/platform/errors"
	"github.com/pefman/tower-duel/internal/players"
	"github.com/pefman/tower-duel/internal/stats"
)

const (
	// BotName is the username the bot plays under.
	BotName = "Bot123"

	DefaultFallback    = 40 * time.Second
	DefaultBotCooldown = 5 * time.Minute

	ratingTimeout = 10 * time.Second
)

// JoinRequest asks to be matched.
type JoinRequest struct {
	Username string
	General  board.Kind
	Card     game.Card
}

// Options configures a Coordinator. Store, Stats and Bot are optional.
type Options struct {
	Registry    *match.Registry
	Store       players.Store
	Stats       *stats.Daily
	Resolver    *game.Resolver
	Clock       engine.Clock
	Rand        engine.Roller
	Publisher   match.Publisher
	Logger      *zap.Logger
	Bot         match.Controller
	TurnTimeout time.Duration
	Fallback    time.Duration
	BotCooldown time.Duration
	NewID       func() string
}

type entry struct {
	req   JoinRequest
	since time.Time
	timer engine.Timer
}

// Coordinator owns the waiting queue and the bot throttle.
type Coordinator struct {
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	queue   []*entry
	botBusy bool
	lastBot time.Time

	ratings sync.WaitGroup
}

// New builds a Coordinator, filling defaults for unset options.
func New(opts Options) *Coordinator {
	if opts.Registry == nil {
		opts.Registry = match.NewRegistry()
	}
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
		opts.Publisher = match.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Fallback <= 0 {
		opts.Fallback = DefaultFallback
	}
	if opts.BotCooldown <= 0 {
		opts.BotCooldown = DefaultBotCooldown
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Coordinator{opts: opts, log: opts.Logger.Named("matchmaking")}
}

// Registry returns the live session registry.
func (c *Coordinator) Registry() *match.Registry { return c.opts.Registry }

// Enqueue validates req and either pairs it with the waiting player or
// queues it with a bot fallback.
func (c *Coordinator) Enqueue(ctx context.Context, req JoinRequest) error {
	req.Username = players.NormalizeUsername(req.Username)
	if req.Username == "" {
		return apperrors.New(apperrors.CodeInvalidRequest, "username is required")
	}
	if !req.General.IsGeneral() {
		return apperrors.WithMetadata(apperrors.CodeInvalidRequest, "unknown general",
			map[string]string{"general": req.General.String()})
	}
	if c.opts.Store != nil {
		if _, err := c.opts.Store.FindPlayer(ctx, req.Username); err != nil {
			if errors.Is(err, players.ErrNotFound) {
				return apperrors.New(apperrors.CodeInvalidRequest, "unknown player")
			}
			c.log.Warn("player lookup failed, admitting join", zap.String("player", req.Username), zap.Error(err))
		}
	}

	c.mu.Lock()
	if _, ok := c.opts.Registry.ForPlayer(req.Username); ok {
		c.mu.Unlock()
		return apperrors.New(apperrors.CodeAlreadyInGame, "already in a match")
	}
	if c.indexLocked(req.Username) >= 0 {
		c.mu.Unlock()
		return apperrors.New(apperrors.CodeAlreadyQueued, "already queued")
	}

	if len(c.queue) > 0 {
		waiting := c.queue[0]
		c.queue = c.queue[1:]
		if waiting.timer != nil {
			waiting.timer.Stop()
		}
		s := c.newSessionLocked([2]match.Participant{
			participant(req), participant(waiting.req),
		})
		c.mu.Unlock()
		c.log.Info("players paired",
			zap.String("session", s.ID()), zap.String("a", req.Username), zap.String("b", waiting.req.Username))
		s.Start()
		return nil
	}

	e := &entry{req: req, since: c.opts.Clock.Now()}
	c.queue = append(c.queue, e)
	c.armLocked(e)
	c.mu.Unlock()

	c.log.Info("player queued", zap.String("player", req.Username), zap.String("general", req.General.String()))
	c.publishWait(e, "queued", "Waiting for an opponent")
	return nil
}

// Leave drops username from the queue. It reports whether it was queued.
func (c *Coordinator) Leave(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(username)
	if i < 0 {
		return false
	}
	e := c.queue[i]
	if e.timer != nil {
		e.timer.Stop()
	}
	c.queue = append(c.queue[:i], c.queue[i+1:]...)
	c.log.Info("player left queue", zap.String("player", username))
	return true
}

// EndSession forfeits sessionID on behalf of username.
func (c *Coordinator) EndSession(sessionID, username string) error {
	s, err := c.opts.Registry.Get(sessionID)
	if err != nil {
		return err
	}
	side, ok := s.SideOf(username)
	if !ok {
		return apperrors.New(apperrors.CodeInvalidRequest, "not a participant of this session")
	}
	s.Forfeit(side)
	return nil
}

// Disconnect handles a dropped connection: the player leaves the queue and
// loses any match in progress.
func (c *Coordinator) Disconnect(username string) {
	c.Leave(username)
	if s, ok := c.opts.Registry.ForPlayer(username); ok {
		if side, ok := s.SideOf(username); ok {
			s.Disconnect(side)
		}
	}
}

// Lobby lists the queue and live sessions.
func (c *Coordinator) Lobby() models.Lobby {
	c.mu.Lock()
	queue := make([]models.LobbyEntry, 0, len(c.queue))
	for _, e := range c.queue {
		queue = append(queue, models.LobbyEntry{
			Name:    e.req.Username,
			General: e.req.General.String(),
			Card:    string(e.req.Card),
			Since:   e.since.Unix(),
		})
	}
	c.mu.Unlock()

	sessions := c.opts.Registry.List()
	rooms := make([]models.RoomInfo, 0, len(sessions))
	for _, s := range sessions {
		if !s.Concluded() {
			rooms = append(rooms, s.Info())
		}
	}
	return models.Lobby{Queue: queue, Rooms: rooms}
}

// Wait blocks until pending rating writes finish.
func (c *Coordinator) Wait() { c.ratings.Wait() }

func participant(req JoinRequest) match.Participant {
	return match.Participant{Username: req.Username, General: req.General, Card: req.Card}
}

func (c *Coordinator) indexLocked(username string) int {
	for i, e := range c.queue {
		if e.req.Username == username {
			return i
		}
	}
	return -1
}

func (c *Coordinator) armLocked(e *entry) {
	e.timer = c.opts.Clock.AfterFunc(c.opts.Fallback, func() { c.fallback(e) })
}

// fallback fires when e waited the full fallback period without a partner.
func (c *Coordinator) fallback(e *entry) {
	c.mu.Lock()
	i := -1
	for j, q := range c.queue {
		if q == e {
			i = j
			break
		}
	}
	if i < 0 {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue[:i], c.queue[i+1:]...)

	now := c.opts.Clock.Now()
	if !c.botEligibleLocked(now) {
		c.queue = append(c.queue, e)
		c.armLocked(e)
		c.mu.Unlock()
		c.log.Info("bot unavailable, player re-queued", zap.String("player", e.req.Username))
		c.publishWait(e, "waiting", "Still searching for an opponent")
		return
	}

	c.botBusy = true
	c.lastBot = now
	generals := board.Generals()
	bot := match.Participant{
		Username: BotName,
		Bot:      true,
		General:  generals[c.opts.Rand.Intn(len(generals))],
	}
	s := c.newSessionLocked([2]match.Participant{participant(e.req), bot})
	c.mu.Unlock()

	c.log.Info("paired with bot",
		zap.String("session", s.ID()), zap.String("player", e.req.Username), zap.String("bot_general", bot.General.String()))
	s.Start()
}

func (c *Coordinator) botEligibleLocked(now time.Time) bool {
	if len(c.queue) > 0 || c.botBusy || c.opts.Bot == nil {
		return false
	}
	return c.lastBot.IsZero() || now.Sub(c.lastBot) >= c.opts.BotCooldown
}

// newSessionLocked builds and registers a session; the caller starts it
// after releasing c.mu.
func (c *Coordinator) newSessionLocked(ps [2]match.Participant) *match.Session {
	id := c.opts.NewID()
	s := match.New(match.Options{
		ID:          id,
		Players:     ps,
		Resolver:    c.opts.Resolver,
		Clock:       c.opts.Clock,
		Rand:        c.opts.Rand,
		Publisher:   c.tap(ps),
		Logger:      c.opts.Logger.Named("match"),
		TurnTimeout: c.opts.TurnTimeout,
		Bot:         c.opts.Bot,
		OnConclude:  c.concluded,
	})
	c.opts.Registry.Add(s)
	return s
}

func (c *Coordinator) publishWait(e *entry, status, msg string) {
	c.opts.Publisher.Publish(match.Event{
		Type: match.EventQueueWaitStatus,
		To:   []string{e.req.Username},
		Data: models.QueueWaitStatus{Status: status, Message: msg, Since: e.since.Unix()},
	})
}

// concluded runs once per session, outside its lock.
func (c *Coordinator) concluded(res match.Result) {
	c.opts.Registry.Remove(res.SessionID)
	vsBot := res.Winner.Bot || res.Loser.Bot
	if vsBot {
		c.mu.Lock()
		c.botBusy = false
		c.mu.Unlock()
	}
	if c.opts.Stats != nil {
		c.opts.Stats.RecordMatch(stats.LongestMatch{
			SessionID:   res.SessionID,
			Winner:      res.Winner.Username,
			Loser:       res.Loser.Username,
			TurnCounter: res.TurnCounter,
			Seconds:     int64(res.Duration / time.Second),
		}, vsBot)
	}
	if c.opts.Store == nil {
		return
	}
	c.ratings.Add(1)
	go func() {
		defer c.ratings.Done()
		ctx, cancel := context.WithTimeout(context.Background(), ratingTimeout)
		defer cancel()
		c.rate(ctx, res)
	}()
}

// rate applies rating changes. Failures are logged and dropped.
func (c *Coordinator) rate(ctx context.Context, res match.Result) {
	log := c.log.With(zap.String("session", res.SessionID))
	if !res.Winner.Bot && !res.Loser.Bot {
		if _, err := c.opts.Store.ApplyMatchResult(ctx, res.Winner.Username, res.Loser.Username); err != nil {
			log.Warn("rating update failed", zap.Error(err))
		}
		return
	}

	human, botWon := res.Winner, false
	if res.Winner.Bot {
		human, botWon = res.Loser, true
	}
	if _, err := c.opts.Store.ApplyBotMatchResult(ctx, human.Username, botWon); err != nil {
		log.Warn("bot match rating failed", zap.Error(err))
	}
	if !botWon && (res.Reason == game.ReasonTowerDestroyed || res.Reason == game.ReasonUnitsEliminated) {
		if _, err := c.opts.Store.ApplyRatingBonus(ctx, human.Username, players.BotWinBonus); err != nil {
			log.Warn("rating bonus failed", zap.Error(err))
		}
	}
}
