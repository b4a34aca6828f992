// Package stats keeps in-memory daily records shown on /leaderboard/daily.
package stats

import (
	"sync"
	"time"
)

// TowerHit is the biggest single hit on a tower.
type TowerHit struct {
	Damage   int    `json:"damage"`
	Attacker string `json:"attacker,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Defender string `json:"defender,omitempty"`
	Time     int64  `json:"time,omitempty"`
}

// LongestMatch is the match with the most actions.
type LongestMatch struct {
	SessionID   string `json:"session_id,omitempty"`
	Winner      string `json:"winner,omitempty"`
	Loser       string `json:"loser,omitempty"`
	TurnCounter int    `json:"turn_counter"`
	Seconds     int64  `json:"seconds"`
	Time        int64  `json:"time,omitempty"`
}

// DailyStats is one UTC day's records.
type DailyStats struct {
	Date         string       `json:"date"`
	Matches      int          `json:"matches"`
	BotMatches   int          `json:"bot_matches"`
	TopTowerHit  TowerHit     `json:"top_tower_hit"`
	LongestMatch LongestMatch `json:"longest_match"`
}

// Daily tracks today's records. It rolls over at UTC midnight.
type Daily struct {
	statsMu sync.Mutex
	now     func() time.Time
	state   DailyStats
}

// NewDaily starts an empty record set. now defaults to time.Now.
func NewDaily(now func() time.Time) *Daily {
	if now == nil {
		now = time.Now
	}
	d := &Daily{now: now}
	d.state = DailyStats{Date: d.today()}
	return d
}

func (d *Daily) today() string {
	return d.now().UTC().Format("2006-01-02")
}

// rollLocked starts a fresh day when the date changed.
func (d *Daily) rollLocked() {
	if today := d.today(); d.state.Date != today {
		d.state = DailyStats{Date: today}
	}
}

// Get returns today's records.
func (d *Daily) Get() DailyStats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.rollLocked()
	return d.state
}

// MaybeTopTowerHit records a tower hit if it beats today's biggest.
func (d *Daily) MaybeTopTowerHit(damage int, attacker, unit, defender string) {
	if damage <= 0 {
		return
	}
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.rollLocked()
	if damage > d.state.TopTowerHit.Damage {
		d.state.TopTowerHit = TowerHit{
			Damage: damage, Attacker: attacker, Unit: unit, Defender: defender, Time: d.now().Unix(),
		}
	}
}

// RecordMatch counts a concluded match and keeps the longest one.
func (d *Daily) RecordMatch(m LongestMatch, vsBot bool) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.rollLocked()
	d.state.Matches++
	if vsBot {
		d.state.BotMatches++
	}
	if m.TurnCounter > d.state.LongestMatch.TurnCounter {
		m.Time = d.now().Unix()
		d.state.LongestMatch = m
	}
}

// ResetDaily clears today's records.
// Intended for tests and dev convenience.
func (d *Daily) ResetDaily() {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.state = DailyStats{Date: d.today()}
}
