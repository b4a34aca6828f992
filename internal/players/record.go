// Package players defines player records, the rating rules and the store
// contract shared by the SQLite store and the HTTP client.
package players

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates a requested player is missing.
	ErrNotFound = errors.New("player not found")
	// ErrAlreadyExists indicates the username is taken.
	ErrAlreadyExists = errors.New("player already exists")
)

const (
	// DefaultRating is the rating of a freshly created player.
	DefaultRating = 1200
	// RatingFloor is the lowest rating a loss can take a player to.
	RatingFloor = 1000
	// BonusCeiling caps ratings raised through ApplyRatingBonus.
	BonusCeiling = 1700
	// BotDelta is the rating change of a match against the bot.
	BotDelta = 5
	// BotWinBonus is granted to a human who beats the bot on the board.
	BotWinBonus = 10
)

// Record is one player's persisted profile.
type Record struct {
	Username    string    `json:"username"`
	Rating      int       `json:"rating"`
	GamesPlayed int       `json:"gamesPlayed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MatchUpdate carries both records after a rated match.
type MatchUpdate struct {
	Winner Record `json:"winner"`
	Loser  Record `json:"loser"`
	Delta  int    `json:"delta"`
}

// Store persists player records.
type Store interface {
	FindPlayer(ctx context.Context, username string) (Record, error)
	CreatePlayer(ctx context.Context, username string) (Record, error)
	ApplyMatchResult(ctx context.Context, winner, loser string) (MatchUpdate, error)
	ApplyBotMatchResult(ctx context.Context, username string, botWon bool) (Record, error)
	ApplyRatingBonus(ctx context.Context, username string, amount int) (Record, error)
	TopPlayers(ctx context.Context, limit int) ([]Record, error)
}

// NormalizeUsername trims surrounding whitespace.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// MatchDelta returns the rating points exchanged when a player rated winner
// beats one rated loser. Upsets pay the most.
func MatchDelta(winner, loser int) int {
	diff := winner - loser
	switch {
	case diff >= 150:
		return 10
	case diff >= 100:
		return 15
	case diff >= 50:
		return 20
	case diff < 0:
		return 45
	default:
		return 25
	}
}

// ApplyMatch updates both records for a human-vs-human result and returns
// the points exchanged.
func ApplyMatch(winner, loser *Record, now time.Time) int {
	delta := MatchDelta(winner.Rating, loser.Rating)
	winner.Rating += delta
	loser.Rating = max(RatingFloor, loser.Rating-delta)
	winner.GamesPlayed++
	loser.GamesPlayed++
	winner.UpdatedAt, loser.UpdatedAt = now, now
	return delta
}

// ApplyBotMatch updates a human's record after a match against the bot.
func ApplyBotMatch(rec *Record, botWon bool, now time.Time) {
	if botWon {
		rec.Rating = max(RatingFloor, rec.Rating-BotDelta)
	} else {
		rec.Rating += BotDelta
	}
	rec.GamesPlayed++
	rec.UpdatedAt = now
}

// ApplyBonus raises a rating by amount without passing BonusCeiling. A
// rating already above the ceiling is left alone.
func ApplyBonus(rec *Record, amount int, now time.Time) {
	if amount <= 0 || rec.Rating >= BonusCeiling {
		return
	}
	rec.Rating = min(BonusCeiling, rec.Rating+amount)
	rec.UpdatedAt = now
}
