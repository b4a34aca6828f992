package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pefman/tower-duel/internal/players"
)

var httpClient = &http.Client{Timeout: 8 * time.Second}

// Top rankings change only when a match concludes; the leaderboard page polls.
const rankingCacheTTL = 30 * time.Second

// Config holds API configuration
type Config struct {
	BaseURL string
}

// Client talks to the player data API and implements players.Store.
type Client struct {
	config Config

	rankingMu    sync.RWMutex
	ranking      []players.Record
	rankingLimit int
	rankingTime  time.Time
}

func NewClient(baseURL string) *Client {
	return &Client{
		config: Config{BaseURL: baseURL},
	}
}

// StatusError is a non-2xx reply that maps to no store sentinel.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api status %d", e.Status)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (c *Client) apiGet(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) apiPost(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	base := strings.TrimRight(c.config.BaseURL, "/")
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return players.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return players.ErrAlreadyExists
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var er ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return &StatusError{Status: resp.StatusCode, Message: er.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func playerPath(username string) string {
	return "/api/players/" + url.PathEscape(players.NormalizeUsername(username))
}

func (c *Client) FindPlayer(ctx context.Context, username string) (players.Record, error) {
	var rec players.Record
	if err := c.apiGet(ctx, playerPath(username), &rec); err != nil {
		return players.Record{}, err
	}
	return rec, nil
}

func (c *Client) CreatePlayer(ctx context.Context, username string) (players.Record, error) {
	var rec players.Record
	if err := c.apiPost(ctx, "/api/players", CreatePlayerRequest{Username: username}, &rec); err != nil {
		return players.Record{}, err
	}
	return rec, nil
}

func (c *Client) ApplyMatchResult(ctx context.Context, winner, loser string) (players.MatchUpdate, error) {
	var update players.MatchUpdate
	if err := c.apiPost(ctx, "/api/match-results", MatchResultRequest{Winner: winner, Loser: loser}, &update); err != nil {
		return players.MatchUpdate{}, err
	}
	c.invalidateRanking()
	return update, nil
}

func (c *Client) ApplyBotMatchResult(ctx context.Context, username string, botWon bool) (players.Record, error) {
	var rec players.Record
	if err := c.apiPost(ctx, "/api/bot-match-results", BotMatchResultRequest{Username: username, BotWon: botWon}, &rec); err != nil {
		return players.Record{}, err
	}
	c.invalidateRanking()
	return rec, nil
}

func (c *Client) ApplyRatingBonus(ctx context.Context, username string, amount int) (players.Record, error) {
	var rec players.Record
	if err := c.apiPost(ctx, playerPath(username)+"/bonus", BonusRequest{Amount: amount}, &rec); err != nil {
		return players.Record{}, err
	}
	c.invalidateRanking()
	return rec, nil
}

// TopPlayers returns the leaderboard, served from a short-lived cache.
func (c *Client) TopPlayers(ctx context.Context, limit int) ([]players.Record, error) {
	// Check cache first
	c.rankingMu.RLock()
	if time.Since(c.rankingTime) < rankingCacheTTL && c.rankingLimit == limit && c.ranking != nil {
		result := make([]players.Record, len(c.ranking))
		copy(result, c.ranking)
		c.rankingMu.RUnlock()
		return result, nil
	}
	c.rankingMu.RUnlock()

	var res []players.Record
	if err := c.apiGet(ctx, "/api/top-rankings?limit="+strconv.Itoa(limit), &res); err != nil {
		return nil, err
	}
	if res == nil {
		res = []players.Record{}
	}

	c.rankingMu.Lock()
	c.ranking = make([]players.Record, len(res))
	copy(c.ranking, res)
	c.rankingLimit = limit
	c.rankingTime = time.Now()
	c.rankingMu.Unlock()

	return res, nil
}

func (c *Client) invalidateRanking() {
	c.rankingMu.Lock()
	c.ranking = nil
	c.rankingMu.Unlock()
}

var _ players.Store = (*Client)(nil)
