package game

import "github.com/pefman/tower-duel/internal/board"

// ActionKind distinguishes moves from attacks.
type ActionKind string

const (
	ActionMove   ActionKind = "move"
	ActionAttack ActionKind = "attack"
)

// Action is one legal move or attack.
type Action struct {
	Kind ActionKind
	Unit board.Unit
	From board.Pos
	To   board.Pos
}

// EffectKind names an observable consequence of an action.
type EffectKind string

const (
	EffectMoved          EffectKind = "moved"
	EffectAttackHit      EffectKind = "attack-hit"
	EffectAttackMissed   EffectKind = "attack-missed"
	EffectTowerDamaged   EffectKind = "tower-damaged"
	EffectTowerHealed    EffectKind = "tower-healed"
	EffectTowerDestroyed EffectKind = "tower-destroyed"
	EffectCounterAttack  EffectKind = "counter-attack"
	EffectUnitConverted  EffectKind = "unit-converted"
	EffectPushedBack     EffectKind = "pushed-back"
)

// Effect is one step of an action's resolution, in the order it happened.
type Effect struct {
	Kind     EffectKind
	Attacker board.Unit
	From     board.Pos
	To       board.Pos
	// Side owns the tower for tower effects, and is the new owner for a
	// conversion.
	Side board.Side
	HP   int
	// Damage is the HP removed from a tower.
	Damage int
	// Frame is the board at the moment of impact, with Marker in the hit cell.
	Marker string
	Frame  *board.Snapshot
}

// Reason is why a match concluded.
type Reason string

const (
	ReasonTowerDestroyed  Reason = "tower-destroyed"
	ReasonUnitsEliminated Reason = "units-eliminated"
	ReasonForfeit         Reason = "forfeit"
	ReasonDisconnect      Reason = "disconnect"
)

// Conclusion is a terminal result.
type Conclusion struct {
	Winner board.Side
	Loser  board.Side
	Reason Reason
}

// Outcome is the result of resolving one action.
type Outcome struct {
	Action     Action
	Hit        bool
	Chance     float64
	Effects    []Effect
	Conclusion *Conclusion
}

// Card is an optional pre-match perk.
type Card string

const (
	CardNone          Card = ""
	CardTowerDefense  Card = "tower-defense"
	CardArmyBoost     Card = "army-boost"
	CardTowerAttacker Card = "tower-attacker"
	CardPushback      Card = "pushback"
)

// ParseCard validates a card name; the empty string means no card.
func ParseCard(v string) (Card, bool) {
	switch c := Card(v); c {
	case CardNone, CardTowerDefense, CardArmyBoost, CardTowerAttacker, CardPushback:
		return c, true
	}
	return CardNone, false
}

// State is the mutable per-match state the resolver works on. The session
// owns it and serializes access.
type State struct {
	Board *board.Board
	// Per-turn trackers are keyed by board position, not unit identity.
	Attacked map[board.Pos]bool
	Moved    map[board.Pos]int
	// Streaks counts Robinhood attacks per unit tag across the match.
	Streaks map[board.Unit]int
	Cards   [2]Card
}

// NewState wraps b with empty trackers.
func NewState(b *board.Board, cards [2]Card) *State {
	return &State{
		Board:    b,
		Attacked: map[board.Pos]bool{},
		Moved:    map[board.Pos]int{},
		Streaks:  map[board.Unit]int{},
		Cards:    cards,
	}
}

// ResetTurn clears the per-turn trackers.
func (s *State) ResetTurn() {
	clear(s.Attacked)
	clear(s.Moved)
}
