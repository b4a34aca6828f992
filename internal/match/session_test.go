package match

import (
	"errors"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/pefman/tower-duel/internal/board"
	"github.com/pefman/tower-duel/internal/engine"
	"github.com/pefman/tower-duel/internal/game"
	"github.com/pefman/tower-duel/internal/models"
	apperrors "github.com/pefman/tower-duel/internal/platform/errors"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type botStub struct {
	mu    sync.Mutex
	calls []board.Side
}

func (b *botStub) TakeTurn(_ *Session, side board.Side, _ uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, side)
}

type harness struct {
	s       *Session
	clock   *engine.FakeClock
	rec     *recorder
	results []Result
}

func newHarness(t *testing.T, players [2]Participant, bot Controller) *harness {
	t.Helper()
	h := &harness{clock: engine.NewFakeClock(time.Unix(1000, 0)), rec: &recorder{}}
	h.s = New(Options{
		ID:         "s1",
		Players:    players,
		Clock:      h.clock,
		Rand:       &engine.Script{},
		Publisher:  h.rec,
		Bot:        bot,
		OnConclude: func(r Result) { h.results = append(h.results, r) },
	})
	return h
}

func humans() [2]Participant {
	return [2]Participant{
		{Username: "alice", General: board.GeneralWarrior},
		{Username: "bob", General: board.Orc},
	}
}

func p(r, c int) board.Pos { return board.Pos{Row: r, Col: c} }

func TestStartAnnouncesToEachPlayer(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.s.Start()

	var started []models.MatchStarted
	for _, ev := range h.rec.events {
		if ev.Type == EventMatchStarted {
			started = append(started, ev.Data.(models.MatchStarted))
			if len(ev.To) != 1 {
				t.Fatalf("match-started addressed to %v, want one player", ev.To)
			}
		}
	}
	if len(started) != 2 || started[0].You != "A" || started[1].You != "B" {
		t.Fatalf("match-started = %+v, want one per side", started)
	}
	if started[0].Sides["B"] != "bob" {
		t.Fatalf("sides = %v, want B=bob", started[0].Sides)
	}
	if got := h.rec.types(); got[len(got)-1] != EventTurnTimerStarted {
		t.Fatalf("last event = %s, want turn-timer-started", got[len(got)-1])
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", h.clock.Pending())
	}
}

func TestSubmitActionRejectsWrongSide(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.s.Start()
	before := h.s.Board().Snapshot()

	_, err := h.s.SubmitAction(board.SideB, p(6, 2), p(5, 2))
	if !errors.Is(err, apperrors.ErrNotYourTurn) {
		t.Fatalf("err = %v, want NotYourTurn", err)
	}
	if !reflect.DeepEqual(h.s.Board().Snapshot(), before) {
		t.Fatal("rejected action mutated the board")
	}

	_, err = h.s.SubmitAction(board.SideA, p(1, 1), p(2, 1))
	if !errors.Is(err, apperrors.ErrInvalidAction) {
		t.Fatalf("move onto water err = %v, want InvalidAction", err)
	}
}

func TestTwoActionsSwitchTurn(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.s.Start()

	if _, err := h.s.SubmitAction(board.SideA, p(1, 2), p(2, 2)); err != nil {
		t.Fatalf("first action: %v", err)
	}
	side, actions, _ := h.s.Turn()
	if side != board.SideA || actions != 1 {
		t.Fatalf("after one action: turn=%s actions=%d, want A 1", side, actions)
	}
	if _, err := h.s.SubmitAction(board.SideA, p(1, 3), p(2, 3)); err != nil {
		t.Fatalf("second action: %v", err)
	}
	side, actions, _ = h.s.Turn()
	if side != board.SideB || actions != 0 {
		t.Fatalf("after two actions: turn=%s actions=%d, want B 0", side, actions)
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want only the new turn's timer", h.clock.Pending())
	}
	if got := h.s.Info().TurnCounter; got != 2 {
		t.Fatalf("turn counter = %d, want 2", got)
	}
}

func TestTurnTimerPassesTurn(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.s.Start()
	_, _, firstEpoch := h.s.Turn()

	h.clock.Advance(29 * time.Second)
	if side, _, _ := h.s.Turn(); side != board.SideA {
		t.Fatalf("turn before timeout = %s, want A", side)
	}
	h.clock.Advance(time.Second)
	if side, _, _ := h.s.Turn(); side != board.SideB {
		t.Fatalf("turn after timeout = %s, want B", side)
	}

	h.s.ForceTimeout(firstEpoch)
	if side, _, _ := h.s.Turn(); side != board.SideB {
		t.Fatal("stale timeout must not switch the turn again")
	}
}

func TestAttackPublishesTransientFrame(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.s.state.Board.Place(p(3, 3), board.Unit{Side: board.SideA, Kind: board.Warrior})
	h.s.state.Board.Place(p(3, 4), board.Unit{Side: board.SideB, Kind: board.Warrior})
	h.s.Start()
	h.rec.reset()

	out, err := h.s.SubmitAction(board.SideA, p(3, 3), p(3, 4))
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if !out.Hit {
		t.Fatal("scripted roll should hit")
	}
	want := []EventType{EventAttackHit, EventBoardUpdated, EventBoardUpdated, EventTurnCounterUpdated}
	if got := h.rec.types(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	frame := h.rec.events[1].Data.(models.BoardUpdated)
	final := h.rec.events[2].Data.(models.BoardUpdated)
	if !frame.Transient || frame.Board[3][4].Unit != board.MarkerExplosion {
		t.Fatalf("frame = %+v, want transient explosion at 3,4", frame.Board[3][4])
	}
	if final.Transient || final.Board[3][4].Unit != "" {
		t.Fatalf("final cell = %+v, want cleared", final.Board[3][4])
	}
}

func TestTowerKillConcludesOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.s.state.Board.Place(p(6, 5), board.Unit{Side: board.SideA, Kind: board.Warrior})
	h.s.state.Board.At(board.HomeTower(board.SideB)).HP = 2
	h.s.Start()

	out, err := h.s.SubmitAction(board.SideA, p(6, 5), p(7, 5))
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if out.Conclusion == nil || out.Conclusion.Reason != game.ReasonTowerDestroyed {
		t.Fatalf("conclusion = %+v, want tower destroyed", out.Conclusion)
	}
	if len(h.results) != 1 || h.results[0].Winner.Username != "alice" {
		t.Fatalf("results = %+v, want alice wins once", h.results)
	}
	if h.clock.Pending() != 0 {
		t.Fatalf("pending timers = %d, want 0 after conclusion", h.clock.Pending())
	}
	if _, err := h.s.SubmitAction(board.SideA, p(1, 2), p(2, 2)); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Fatalf("action after conclusion err = %v, want SessionNotFound", err)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.s.Start()

	if !h.s.Disconnect(board.SideA) {
		t.Fatal("first disconnect should conclude the match")
	}
	if h.s.Disconnect(board.SideA) || h.s.Forfeit(board.SideB) {
		t.Fatal("later end calls must be no-ops")
	}
	if len(h.results) != 1 {
		t.Fatalf("OnConclude calls = %d, want 1", len(h.results))
	}
	res := h.results[0]
	if res.Winner.Username != "bob" || res.Reason != game.ReasonDisconnect {
		t.Fatalf("result = %+v, want bob wins by disconnect", res)
	}

	concluded := 0
	for _, ev := range h.rec.events {
		if ev.Type == EventMatchConcluded {
			concluded++
		}
	}
	if concluded != 1 {
		t.Fatalf("match-concluded events = %d, want 1", concluded)
	}

	h.clock.Advance(time.Minute)
	if side, _, _ := h.s.Turn(); side != board.SideA {
		t.Fatal("timer must not fire after conclusion")
	}
}

func TestStartAfterConclusionIsSilent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.clock.Advance(3 * time.Second)
	if !h.s.Disconnect(board.SideB) {
		t.Fatal("disconnect before start should conclude the match")
	}
	h.rec.reset()

	h.s.Start()
	if got := h.rec.types(); len(got) != 0 {
		t.Fatalf("events after concluded start = %v, want none", got)
	}
	if h.clock.Pending() != 0 {
		t.Fatalf("pending timers = %d, want 0", h.clock.Pending())
	}
	if len(h.results) != 1 || h.results[0].Duration != 3*time.Second {
		t.Fatalf("results = %+v, want one result lasting 3s", h.results)
	}
}

func TestConcurrentSubmissionsAreSerialized(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.s.Start()

	moves := [][2]board.Pos{
		{p(1, 2), p(2, 2)},
		{p(1, 3), p(2, 3)},
		{p(1, 4), p(2, 4)},
		{p(1, 5), p(2, 5)},
		{p(1, 6), p(2, 6)},
		{p(1, 6), p(2, 7)},
	}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, m := range moves {
		wg.Add(1)
		go func(from, to board.Pos) {
			defer wg.Done()
			_, err := h.s.SubmitAction(board.SideA, from, to)
			switch {
			case err == nil:
				mu.Lock()
				accepted++
				mu.Unlock()
			case !errors.Is(err, apperrors.ErrNotYourTurn) && !errors.Is(err, apperrors.ErrInvalidAction):
				t.Errorf("SubmitAction(%v, %v) = %v", from, to, err)
			}
		}(m[0], m[1])
	}
	wg.Wait()

	if accepted != 2 {
		t.Fatalf("accepted = %d, want 2", accepted)
	}
	side, actions, _ := h.s.Turn()
	if side != board.SideB || actions != 0 {
		t.Fatalf("turn=%s actions=%d, want B 0", side, actions)
	}
	if got := h.s.Info().TurnCounter; got != 2 {
		t.Fatalf("turn counter = %d, want 2", got)
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", h.clock.Pending())
	}
}

func TestBotSideIsHandedOff(t *testing.T) {
	t.Parallel()

	bot := &botStub{}
	players := humans()
	players[1] = Participant{Username: "Bot123", Bot: true, General: board.Paladin}
	h := newHarness(t, players, bot)
	h.s.Start()
	if len(bot.calls) != 0 {
		t.Fatal("bot must not act on side A's turn")
	}

	h.clock.Advance(DefaultTurnTimeout)
	if len(bot.calls) != 1 || bot.calls[0] != board.SideB {
		t.Fatalf("bot calls = %v, want [B]", bot.calls)
	}
	for _, ev := range h.rec.events {
		if slices.Contains(ev.To, "Bot123") {
			t.Fatalf("event %s addressed to the bot", ev.Type)
		}
	}
}

func TestStepPassesWhenNothingChosen(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	h.s.Start()
	_, _, epoch := h.s.Turn()

	still := h.s.Step(board.SideA, epoch, func(legal []game.Action) (game.Action, bool) {
		if len(legal) == 0 {
			t.Fatal("expected legal actions at the start")
		}
		return game.Action{}, false
	})
	if still {
		t.Fatal("Step should report the turn was given up")
	}
	if side, _, _ := h.s.Turn(); side != board.SideB {
		t.Fatalf("turn = %s, want B", side)
	}
	if h.s.Step(board.SideA, epoch, func([]game.Action) (game.Action, bool) {
		t.Fatal("stale step must not choose")
		return game.Action{}, false
	}) {
		t.Fatal("stale step reported holding the turn")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, humans(), nil)
	reg := NewRegistry()
	reg.Add(h.s)

	if _, err := reg.Get("s1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s, ok := reg.ForPlayer("bob"); !ok || s != h.s {
		t.Fatal("ForPlayer(bob) should find the session")
	}

	h.s.Start()
	h.s.Forfeit(board.SideB)
	if _, err := reg.Get("s1"); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Fatalf("Get concluded err = %v, want SessionNotFound", err)
	}
	reg.Remove("s1")
	reg.Remove("s1")
	if reg.Len() != 0 {
		t.Fatalf("Len = %d, want 0", reg.Len())
	}
	if _, ok := reg.ForPlayer("alice"); ok {
		t.Fatal("removed session still indexed")
	}
}
