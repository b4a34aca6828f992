// Package bot is the scripted opponent. It paces its actions on a clock and
// picks each one with a small prioritized rule engine.
package bot

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pefman/tower-duel/internal/board"
	"github.com/pefman/tower-duel/internal/engine"
	"github.com/pefman/tower-duel/internal/game"
	"github.com/pefman/tower-duel/internal/match"
)

const (
	DefaultFirstDelay = 5 * time.Second
	DefaultThinkDelay = 6 * time.Second
)

// Options configures a Bot. Rules defaults to DefaultRules.
type Options struct {
	Rules      []*Rule
	Clock      engine.Clock
	Rand       engine.Roller
	Logger     *zap.Logger
	FirstDelay time.Duration
	ThinkDelay time.Duration
}

// Bot plays every session side handed to it.
type Bot struct {
	engine *Engine
	clock  engine.Clock
	rng    engine.Roller
	log    *zap.Logger
	first  time.Duration
	think  time.Duration

	mu      sync.Mutex
	pending map[string]engine.Timer // by session id
}

func New(opts Options) (*Bot, error) {
	if opts.Rules == nil {
		opts.Rules = DefaultRules()
	}
	eng, err := NewEngine(opts.Rules)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = engine.RealClock()
	}
	if opts.Rand == nil {
		opts.Rand = engine.NewRNG()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FirstDelay <= 0 {
		opts.FirstDelay = DefaultFirstDelay
	}
	if opts.ThinkDelay <= 0 {
		opts.ThinkDelay = DefaultThinkDelay
	}
	return &Bot{
		engine: eng,
		clock:  opts.Clock,
		rng:    opts.Rand,
		log:    opts.Logger.Named("bot"),
		first:  opts.FirstDelay,
		think:  opts.ThinkDelay,

		pending: make(map[string]engine.Timer),
	}, nil
}

// TakeTurn schedules the bot's first action of the turn armed in epoch.
func (b *Bot) TakeTurn(s *match.Session, side board.Side, epoch uint64) {
	b.arm(s, b.first, func() { b.step(s, side, epoch) })
}

// Release stops any step still scheduled for a concluded session.
func (b *Bot) Release(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.pending[sessionID]; ok {
		t.Stop()
		delete(b.pending, sessionID)
	}
}

// Pending reports how many sessions hold a scheduled step handle.
func (b *Bot) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// arm replaces the session's scheduled step with fn after d.
func (b *Bot) arm(s *match.Session, d time.Duration, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.pending[s.ID()]; ok {
		t.Stop()
	}
	b.pending[s.ID()] = b.clock.AfterFunc(d, fn)
}

// step plays one action. A step whose turn has moved on is a no-op.
func (b *Bot) step(s *match.Session, side board.Side, epoch uint64) {
	still := s.Step(side, epoch, func(legal []game.Action) (game.Action, bool) {
		act, rule, err := b.engine.Choose(Classify(legal), b.rng)
		if err != nil {
			b.log.Warn("rule evaluation failed", zap.String("session", s.ID()), zap.Error(err))
			return game.Action{}, false
		}
		if rule == "" {
			return game.Action{}, false
		}
		b.log.Debug("rule fired",
			zap.String("session", s.ID()),
			zap.String("rule", rule),
			zap.String("unit", act.Unit.Tag()),
			zap.Stringer("from", act.From),
			zap.Stringer("to", act.To))
		return act, true
	})
	if still {
		b.arm(s, b.think, func() { b.step(s, side, epoch) })
	}
}

var (
	_ match.Controller = (*Bot)(nil)
	_ match.Releaser   = (*Bot)(nil)
)
