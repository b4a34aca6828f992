package models

import "github.com/pefman/tower-duel/internal/board"

// ========================= Envelope =========================

// WsMsg is the envelope of every websocket frame in both directions.
type WsMsg struct {
	Type string      `json:"type" msgpack:"type"`
	Data interface{} `json:"data,omitempty" msgpack:"data,omitempty"`
}

// Inbound message types.
const (
	InJoinQueue    = "join-queue"
	InLeaveQueue   = "leave-queue"
	InSubmitAction = "submit-action"
	InEndSession   = "end-session"
)

// ========================= Inbound =========================

type JoinQueue struct {
	General string `json:"general" msgpack:"general"`
	Card    string `json:"card,omitempty" msgpack:"card,omitempty"`
}

type SubmitAction struct {
	SessionID string    `json:"sessionId" msgpack:"sessionId"`
	Side      string    `json:"side,omitempty" msgpack:"side,omitempty"`
	From      board.Pos `json:"from" msgpack:"from"`
	To        board.Pos `json:"to" msgpack:"to"`
}

type EndSession struct {
	SessionID string `json:"sessionId" msgpack:"sessionId"`
}

// ========================= Outbound =========================

type MatchStarted struct {
	SessionID string            `json:"sessionId" msgpack:"sessionId"`
	Board     board.Snapshot    `json:"board" msgpack:"board"`
	You       string            `json:"you" msgpack:"you"`
	Sides     map[string]string `json:"sides" msgpack:"sides"` // side -> username
	Turn      string            `json:"turn" msgpack:"turn"`
}

type BoardUpdated struct {
	SessionID string         `json:"sessionId" msgpack:"sessionId"`
	Board     board.Snapshot `json:"board" msgpack:"board"`
	Turn      string         `json:"turn" msgpack:"turn"`
	// Transient frames show an impact marker that the next update clears.
	Transient bool `json:"transient,omitempty" msgpack:"transient,omitempty"`
}

type AttackHit struct {
	SessionID string    `json:"sessionId" msgpack:"sessionId"`
	Attacker  string    `json:"attacker" msgpack:"attacker"`
	From      board.Pos `json:"from" msgpack:"from"`
	Target    board.Pos `json:"target" msgpack:"target"`
	Marker    string    `json:"marker" msgpack:"marker"`
}

type AttackMissed struct {
	SessionID string    `json:"sessionId" msgpack:"sessionId"`
	Attacker  string    `json:"attacker" msgpack:"attacker"`
	Target    board.Pos `json:"target" msgpack:"target"`
}

type TowerDamaged struct {
	SessionID string `json:"sessionId" msgpack:"sessionId"`
	Attacker  string `json:"attacker,omitempty" msgpack:"attacker,omitempty"` // empty for attrition
	Side      string `json:"side" msgpack:"side"`
	HP        int    `json:"hp" msgpack:"hp"`
	Damage    int    `json:"damage" msgpack:"damage"`
}

type TowerHealed struct {
	SessionID string `json:"sessionId" msgpack:"sessionId"`
	Side      string `json:"side" msgpack:"side"`
	HP        int    `json:"hp" msgpack:"hp"`
}

type TowerDestroyed struct {
	SessionID string `json:"sessionId" msgpack:"sessionId"`
	Attacker  string `json:"attacker,omitempty" msgpack:"attacker,omitempty"`
	Side      string `json:"side" msgpack:"side"`
	Damage    int    `json:"damage" msgpack:"damage"`
}

type CounterAttack struct {
	SessionID string    `json:"sessionId" msgpack:"sessionId"`
	Defender  string    `json:"defender" msgpack:"defender"`
	From      board.Pos `json:"from" msgpack:"from"`
	Target    board.Pos `json:"target" msgpack:"target"`
}

type UnitConverted struct {
	SessionID string    `json:"sessionId" msgpack:"sessionId"`
	Unit      string    `json:"unit" msgpack:"unit"` // tag after conversion
	Cell      board.Pos `json:"cell" msgpack:"cell"`
	Side      string    `json:"side" msgpack:"side"`
}

type MatchConcluded struct {
	SessionID  string `json:"sessionId" msgpack:"sessionId"`
	Winner     string `json:"winner" msgpack:"winner"`
	Loser      string `json:"loser" msgpack:"loser"`
	WinnerSide string `json:"winnerSide" msgpack:"winnerSide"`
	Reason     string `json:"reason" msgpack:"reason"`
}

type TurnTimerStarted struct {
	SessionID string `json:"sessionId" msgpack:"sessionId"`
	Turn      string `json:"turn" msgpack:"turn"`
	Seconds   int    `json:"seconds" msgpack:"seconds"`
	Deadline  int64  `json:"deadline" msgpack:"deadline"` // unix millis
}

type TurnCounterUpdated struct {
	SessionID string `json:"sessionId" msgpack:"sessionId"`
	Counter   int    `json:"counter" msgpack:"counter"`
}

type QueueWaitStatus struct {
	Status  string `json:"status" msgpack:"status"`
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
	Since   int64  `json:"since" msgpack:"since"`
}

type ErrorMsg struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// ========================= Lobby =========================

// LobbyEntry is one waiting player, exposed via /lobby.
type LobbyEntry struct {
	Name    string `json:"name"`
	General string `json:"general"`
	Card    string `json:"card,omitempty"`
	Since   int64  `json:"since"` // unix seconds
}

// RoomInfo is one live session, exposed via /lobby and /debug/rooms.
type RoomInfo struct {
	ID          string `json:"id"`
	PlayerA     string `json:"playerA"`
	PlayerB     string `json:"playerB"`
	VsBot       bool   `json:"vsBot"`
	Turn        string `json:"turn"`
	TurnCounter int    `json:"turnCounter"`
	Started     int64  `json:"started"`
}

// Lobby is the /lobby payload.
type Lobby struct {
	Queue []LobbyEntry `json:"queue"`
	Rooms []RoomInfo   `json:"rooms"`
}
