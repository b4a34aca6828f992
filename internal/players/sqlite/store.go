// Package sqlite provides a SQLite-backed player store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/pefman/tower-duel/internal/platform/sqlitemigrate"
	"github.com/pefman/tower-duel/internal/players"
	"github.com/pefman/tower-duel/internal/players/sqlite/migrations"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
)

// Store persists player records in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite player store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// FindPlayer returns one player by username.
func (s *Store) FindPlayer(ctx context.Context, username string) (players.Record, error) {
	if err := s.ready(ctx); err != nil {
		return players.Record{}, err
	}
	username = players.NormalizeUsername(username)
	if username == "" {
		return players.Record{}, fmt.Errorf("username is required")
	}
	return getPlayer(ctx, s.sqlDB, username)
}

func getPlayer(ctx context.Context, q queryer, username string) (players.Record, error) {
	row := q.QueryRowContext(ctx,
		`SELECT username, rating, games_played, created_at, updated_at
		   FROM players
		  WHERE username = ?`,
		username,
	)
	rec, err := scanPlayer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return players.Record{}, players.ErrNotFound
		}
		return players.Record{}, fmt.Errorf("get player: %w", err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanner) (players.Record, error) {
	var rec players.Record
	var createdAt, updatedAt int64
	if err := row.Scan(&rec.Username, &rec.Rating, &rec.GamesPlayed, &createdAt, &updatedAt); err != nil {
		return players.Record{}, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// CreatePlayer inserts a player at the default rating.
func (s *Store) CreatePlayer(ctx context.Context, username string) (players.Record, error) {
	if err := s.ready(ctx); err != nil {
		return players.Record{}, err
	}
	username = players.NormalizeUsername(username)
	if username == "" {
		return players.Record{}, fmt.Errorf("username is required")
	}
	now := fromMillis(toMillis(s.now()))
	rec := players.Record{
		Username:  username,
		Rating:    players.DefaultRating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO players (username, rating, games_played, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Username, rec.Rating, rec.GamesPlayed, toMillis(now), toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return players.Record{}, players.ErrAlreadyExists
		}
		return players.Record{}, fmt.Errorf("create player: %w", err)
	}
	return rec, nil
}

// ApplyMatchResult rates a human-vs-human result in one transaction.
func (s *Store) ApplyMatchResult(ctx context.Context, winner, loser string) (players.MatchUpdate, error) {
	if err := s.ready(ctx); err != nil {
		return players.MatchUpdate{}, err
	}
	winner, loser = players.NormalizeUsername(winner), players.NormalizeUsername(loser)
	if winner == "" || loser == "" {
		return players.MatchUpdate{}, fmt.Errorf("winner and loser are required")
	}
	if winner == loser {
		return players.MatchUpdate{}, fmt.Errorf("winner and loser must differ")
	}

	var update players.MatchUpdate
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := getPlayer(ctx, tx, winner)
		if err != nil {
			return err
		}
		l, err := getPlayer(ctx, tx, loser)
		if err != nil {
			return err
		}
		update.Delta = players.ApplyMatch(&w, &l, s.now())
		if err := putPlayer(ctx, tx, w); err != nil {
			return err
		}
		if err := putPlayer(ctx, tx, l); err != nil {
			return err
		}
		update.Winner, update.Loser = w, l
		return nil
	})
	if err != nil {
		return players.MatchUpdate{}, err
	}
	return update, nil
}

// ApplyBotMatchResult rates a human's match against the bot.
func (s *Store) ApplyBotMatchResult(ctx context.Context, username string, botWon bool) (players.Record, error) {
	return s.update(ctx, username, func(rec *players.Record, now time.Time) {
		players.ApplyBotMatch(rec, botWon, now)
	})
}

// ApplyRatingBonus raises a rating, capped at the bonus ceiling.
func (s *Store) ApplyRatingBonus(ctx context.Context, username string, amount int) (players.Record, error) {
	if amount <= 0 {
		return players.Record{}, fmt.Errorf("bonus amount must be greater than zero")
	}
	return s.update(ctx, username, func(rec *players.Record, now time.Time) {
		players.ApplyBonus(rec, amount, now)
	})
}

func (s *Store) update(ctx context.Context, username string, fn func(*players.Record, time.Time)) (players.Record, error) {
	if err := s.ready(ctx); err != nil {
		return players.Record{}, err
	}
	username = players.NormalizeUsername(username)
	if username == "" {
		return players.Record{}, fmt.Errorf("username is required")
	}
	var rec players.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = getPlayer(ctx, tx, username)
		if err != nil {
			return err
		}
		fn(&rec, s.now())
		return putPlayer(ctx, tx, rec)
	})
	if err != nil {
		return players.Record{}, err
	}
	return rec, nil
}

// TopPlayers returns the highest rated players, best first.
func (s *Store) TopPlayers(ctx context.Context, limit int) ([]players.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT username, rating, games_played, created_at, updated_at
		   FROM players
		  ORDER BY rating DESC, username ASC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list top players: %w", err)
	}
	defer rows.Close()

	out := make([]players.Record, 0, limit)
	for rows.Next() {
		rec, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return out, nil
}

func putPlayer(ctx context.Context, tx *sql.Tx, rec players.Record) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE players
		    SET rating = ?, games_played = ?, updated_at = ?
		  WHERE username = ?`,
		rec.Rating, rec.GamesPlayed, toMillis(rec.UpdatedAt), rec.Username,
	)
	if err != nil {
		return fmt.Errorf("update player %s: %w", rec.Username, err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "players.username")
}

var _ players.Store = (*Store)(nil)
