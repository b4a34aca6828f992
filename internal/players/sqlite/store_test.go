package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pefman/tower-duel/internal/players"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateFindPlayerRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	created, err := store.CreatePlayer(ctx, "  alice ")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	if created.Username != "alice" || created.Rating != players.DefaultRating {
		t.Fatalf("created = %+v, want alice at default rating", created)
	}

	got, err := store.FindPlayer(ctx, "alice")
	if err != nil {
		t.Fatalf("find player: %v", err)
	}
	if got.Rating != players.DefaultRating || got.GamesPlayed != 0 {
		t.Fatalf("found = %+v", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestCreatePlayerReturnsAlreadyExistsOnDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if _, err := store.CreatePlayer(ctx, "alice"); err != nil {
		t.Fatalf("create player: %v", err)
	}
	if _, err := store.CreatePlayer(ctx, "alice"); !errors.Is(err, players.ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}
}

func TestFindPlayerNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.FindPlayer(context.Background(), "ghost"); !errors.Is(err, players.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApplyMatchResult(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreate(t, store, "alice", "bob")

	update, err := store.ApplyMatchResult(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("apply match result: %v", err)
	}
	if update.Delta != 25 || update.Winner.Rating != 1225 || update.Loser.Rating != 1175 {
		t.Fatalf("update = %+v, want 25 point swing", update)
	}

	bob, err := store.FindPlayer(ctx, "bob")
	if err != nil {
		t.Fatalf("find bob: %v", err)
	}
	if bob.Rating != 1175 || bob.GamesPlayed != 1 {
		t.Fatalf("bob = %+v, want 1175 after one game", bob)
	}
}

func TestApplyMatchResultRollsBackOnMissingLoser(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreate(t, store, "alice")

	if _, err := store.ApplyMatchResult(ctx, "alice", "ghost"); !errors.Is(err, players.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	alice, err := store.FindPlayer(ctx, "alice")
	if err != nil {
		t.Fatalf("find alice: %v", err)
	}
	if alice.Rating != players.DefaultRating || alice.GamesPlayed != 0 {
		t.Fatalf("alice = %+v, want untouched", alice)
	}
}

func TestBotResultAndBonus(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreate(t, store, "alice")

	rec, err := store.ApplyBotMatchResult(ctx, "alice", false)
	if err != nil {
		t.Fatalf("bot result: %v", err)
	}
	if rec.Rating != 1205 || rec.GamesPlayed != 1 {
		t.Fatalf("after bot win = %+v", rec)
	}
	rec, err = store.ApplyRatingBonus(ctx, "alice", players.BotWinBonus)
	if err != nil {
		t.Fatalf("bonus: %v", err)
	}
	if rec.Rating != 1215 {
		t.Fatalf("rating after bonus = %d, want 1215", rec.Rating)
	}
	if _, err := store.ApplyRatingBonus(ctx, "alice", 0); err == nil {
		t.Fatal("expected error for zero bonus")
	}
}

func TestTopPlayersOrdersByRating(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreate(t, store, "alice", "bob", "carol")
	if _, err := store.ApplyMatchResult(ctx, "carol", "alice"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	top, err := store.TopPlayers(ctx, 2)
	if err != nil {
		t.Fatalf("top players: %v", err)
	}
	if len(top) != 2 || top[0].Username != "carol" || top[1].Username != "bob" {
		t.Fatalf("top = %+v, want carol then bob", top)
	}
}

func mustCreate(t *testing.T, store *Store, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := store.CreatePlayer(context.Background(), name); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "players.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
