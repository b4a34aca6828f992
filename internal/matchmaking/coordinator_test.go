package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pefman/tower-duel/internal/board"
	"github.com/pefman/tower-duel/internal/engine"
	"github.com/pefman/tower-duel/internal/game"
	"github.com/pefman/tower-duel/internal/match"
	"github.com/pefman/tower-duel/internal/models"
	apperrors "github.com/pefman/tower-duel/internal/platform/errors"
	"github.com/pefman/tower-duel/internal/players"
	"github.com/pefman/tower-duel/internal/stats"
)

type fakeStore struct {
	mu      sync.Mutex
	known   map[string]bool
	findErr error
	calls   []string
}

func newFakeStore(names ...string) *fakeStore {
	s := &fakeStore{known: make(map[string]bool)}
	for _, n := range names {
		s.known[n] = true
	}
	return s
}

func (s *fakeStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeStore) FindPlayer(_ context.Context, username string) (players.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return players.Record{}, s.findErr
	}
	if !s.known[username] {
		return players.Record{}, players.ErrNotFound
	}
	return players.Record{Username: username, Rating: players.DefaultRating}, nil
}

func (s *fakeStore) CreatePlayer(_ context.Context, username string) (players.Record, error) {
	return players.Record{Username: username}, nil
}

func (s *fakeStore) ApplyMatchResult(_ context.Context, winner, loser string) (players.MatchUpdate, error) {
	s.record(fmt.Sprintf("match %s>%s", winner, loser))
	return players.MatchUpdate{}, nil
}

func (s *fakeStore) ApplyBotMatchResult(_ context.Context, username string, botWon bool) (players.Record, error) {
	s.record(fmt.Sprintf("bot %s botWon=%t", username, botWon))
	return players.Record{}, nil
}

func (s *fakeStore) ApplyRatingBonus(_ context.Context, username string, amount int) (players.Record, error) {
	s.record(fmt.Sprintf("bonus %s %d", username, amount))
	return players.Record{}, nil
}

func (s *fakeStore) TopPlayers(context.Context, int) ([]players.Record, error) {
	return nil, nil
}

type noopBot struct{}

func (noopBot) TakeTurn(*match.Session, board.Side, uint64) {}

type recorder struct {
	mu     sync.Mutex
	events []match.Event
}

func (r *recorder) Publish(ev match.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) waits(username string) []models.QueueWaitStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.QueueWaitStatus
	for _, ev := range r.events {
		if ev.Type == match.EventQueueWaitStatus && len(ev.To) == 1 && ev.To[0] == username {
			out = append(out, ev.Data.(models.QueueWaitStatus))
		}
	}
	return out
}

type fixture struct {
	c     *Coordinator
	clock *engine.FakeClock
	store *fakeStore
	rec   *recorder
	daily *stats.Daily
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock: engine.NewFakeClock(time.Unix(10_000, 0)),
		store: newFakeStore("alice", "bob", "carol"),
		rec:   &recorder{},
	}
	f.daily = stats.NewDaily(f.clock.Now)
	ids := 0
	f.c = New(Options{
		Store:     f.store,
		Stats:     f.daily,
		Clock:     f.clock,
		Rand:      &engine.Script{},
		Publisher: f.rec,
		Bot:       noopBot{},
		NewID: func() string {
			ids++
			return fmt.Sprintf("s%d", ids)
		},
	})
	return f
}

func join(name string) JoinRequest {
	return JoinRequest{Username: name, General: board.GeneralWarrior}
}

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  JoinRequest
	}{
		{name: "empty username", req: JoinRequest{Username: "  ", General: board.Orc}},
		{name: "not a general", req: JoinRequest{Username: "alice", General: board.Warrior}},
		{name: "unknown player", req: join("mallory")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.c.Enqueue(context.Background(), tt.req)
			if !errors.Is(err, apperrors.ErrInvalidRequest) {
				t.Fatalf("err = %v, want InvalidRequest", err)
			}
			if q := f.c.Lobby().Queue; len(q) != 0 {
				t.Fatalf("queue = %v, want empty", q)
			}
		})
	}
}

func TestEnqueueAdmitsOnStoreFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.findErr = errors.New("connection refused")
	if err := f.c.Enqueue(context.Background(), join("mallory")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if q := f.c.Lobby().Queue; len(q) != 1 || q[0].Name != "mallory" {
		t.Fatalf("queue = %+v, want mallory", q)
	}
}

func TestSecondJoinPairsFIFO(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if err := f.c.Enqueue(ctx, join("alice")); err != nil {
		t.Fatalf("alice: %v", err)
	}
	if waits := f.rec.waits("alice"); len(waits) != 1 || waits[0].Status != "queued" {
		t.Fatalf("alice waits = %+v, want one queued status", waits)
	}
	if err := f.c.Enqueue(ctx, join("alice")); !errors.Is(err, apperrors.ErrAlreadyQueued) {
		t.Fatalf("requeue err = %v, want AlreadyQueued", err)
	}
	if err := f.c.Enqueue(ctx, join("bob")); err != nil {
		t.Fatalf("bob: %v", err)
	}

	lobby := f.c.Lobby()
	if len(lobby.Queue) != 0 || len(lobby.Rooms) != 1 {
		t.Fatalf("lobby = %+v, want one room and empty queue", lobby)
	}
	room := lobby.Rooms[0]
	if room.PlayerA != "bob" || room.PlayerB != "alice" || room.VsBot {
		t.Fatalf("room = %+v, want newcomer bob as A", room)
	}
	if err := f.c.Enqueue(ctx, join("alice")); !errors.Is(err, apperrors.ErrAlreadyInGame) {
		t.Fatalf("join while playing err = %v, want AlreadyInGame", err)
	}

	// Only the new session's turn timer is left; alice's fallback was cancelled.
	if n := f.clock.Pending(); n != 1 {
		t.Fatalf("pending timers = %d, want 1", n)
	}
}

func TestLeaveCancelsFallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if err := f.c.Enqueue(context.Background(), join("alice")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !f.c.Leave("alice") {
		t.Fatal("Leave should report the queued entry")
	}
	if f.c.Leave("alice") {
		t.Fatal("second Leave should be a no-op")
	}
	f.clock.Advance(DefaultFallback)
	if n := f.c.Registry().Len(); n != 0 {
		t.Fatalf("sessions = %d, want 0", n)
	}
}

func TestFallbackPairsWithBotAndThrottles(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if err := f.c.Enqueue(ctx, join("alice")); err != nil {
		t.Fatalf("alice: %v", err)
	}
	f.clock.Advance(DefaultFallback)

	lobby := f.c.Lobby()
	if len(lobby.Rooms) != 1 || lobby.Rooms[0].PlayerB != BotName || !lobby.Rooms[0].VsBot {
		t.Fatalf("rooms = %+v, want alice vs bot", lobby.Rooms)
	}
	if err := f.c.EndSession(lobby.Rooms[0].ID, "alice"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	f.c.Wait()
	if calls := f.store.Calls(); len(calls) != 1 || calls[0] != "bot alice botWon=true" {
		t.Fatalf("store calls = %v, want one bot loss", calls)
	}

	// The bot is free again but still cooling down.
	if err := f.c.Enqueue(ctx, join("bob")); err != nil {
		t.Fatalf("bob: %v", err)
	}
	f.clock.Advance(DefaultFallback)
	if n := f.c.Registry().Len(); n != 0 {
		t.Fatalf("sessions during cooldown = %d, want 0", n)
	}
	waits := f.rec.waits("bob")
	if len(waits) != 2 || waits[1].Status != "waiting" {
		t.Fatalf("bob waits = %+v, want queued then waiting", waits)
	}
	if q := f.c.Lobby().Queue; len(q) != 1 || q[0].Name != "bob" {
		t.Fatalf("queue = %+v, want bob re-queued", q)
	}

	f.clock.Advance(DefaultBotCooldown - DefaultFallback + DefaultFallback/2)
	rooms := f.c.Lobby().Rooms
	if len(rooms) != 1 || rooms[0].PlayerA != "bob" || rooms[0].PlayerB != BotName {
		t.Fatalf("rooms after cooldown = %+v, want bob vs bot", rooms)
	}
}

func TestHumanMatchConclusionIsRated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	_ = f.c.Enqueue(ctx, join("alice"))
	_ = f.c.Enqueue(ctx, join("bob"))
	id := f.c.Lobby().Rooms[0].ID

	if err := f.c.EndSession(id, "carol"); !errors.Is(err, apperrors.ErrInvalidRequest) {
		t.Fatalf("outsider err = %v, want InvalidRequest", err)
	}
	f.c.Disconnect("alice")
	f.c.Wait()

	if calls := f.store.Calls(); len(calls) != 1 || calls[0] != "match bob>alice" {
		t.Fatalf("store calls = %v, want bob beats alice", calls)
	}
	if _, err := f.c.Registry().Get(id); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Fatalf("Get after conclusion err = %v, want SessionNotFound", err)
	}
	if err := f.c.EndSession(id, "bob"); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Fatalf("EndSession after conclusion err = %v, want SessionNotFound", err)
	}
	if got := f.daily.Get(); got.Matches != 1 || got.BotMatches != 0 {
		t.Fatalf("daily = %+v, want one human match", got)
	}
}

func TestRateBotMatches(t *testing.T) {
	t.Parallel()

	human := match.Participant{Username: "alice", General: board.Paladin}
	bot := match.Participant{Username: BotName, Bot: true, General: board.Orc}
	tests := []struct {
		name   string
		res    match.Result
		expect []string
	}{
		{
			name:   "human wins on the board",
			res:    match.Result{Winner: human, Loser: bot, Reason: game.ReasonTowerDestroyed},
			expect: []string{"bot alice botWon=false", "bonus alice 10"},
		},
		{
			name:   "human wins by elimination",
			res:    match.Result{Winner: human, Loser: bot, Reason: game.ReasonUnitsEliminated},
			expect: []string{"bot alice botWon=false", "bonus alice 10"},
		},
		{
			name:   "bot wins",
			res:    match.Result{Winner: bot, Loser: human, Reason: game.ReasonTowerDestroyed},
			expect: []string{"bot alice botWon=true"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.c.rate(context.Background(), tt.res)
			calls := f.store.Calls()
			if fmt.Sprint(calls) != fmt.Sprint(tt.expect) {
				t.Fatalf("calls = %v, want %v", calls, tt.expect)
			}
		})
	}
}

func TestTapRecordsTowerHits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ps := [2]match.Participant{{Username: "alice"}, {Username: "bob"}}
	pub := f.c.tap(ps)

	pub.Publish(match.Event{Type: match.EventTowerDamaged, Data: models.TowerDamaged{Attacker: "P1_GW", Side: "B", Damage: 3}})
	pub.Publish(match.Event{Type: match.EventTowerDamaged, Data: models.TowerDamaged{Attacker: "P2_T", Side: "B", Damage: 9}})
	pub.Publish(match.Event{Type: match.EventTowerDamaged, Data: models.TowerDamaged{Side: "A", Damage: 8}})

	hit := f.daily.Get().TopTowerHit
	if hit.Damage != 3 || hit.Attacker != "alice" || hit.Defender != "bob" {
		t.Fatalf("top hit = %+v, want alice's 3 on bob", hit)
	}
	if len(f.rec.events) != 3 {
		t.Fatalf("forwarded = %d, want 3", len(f.rec.events))
	}
}
