package match

// EventType names an outbound event.
type EventType string

const (
	EventMatchStarted       EventType = "match-started"
	EventBoardUpdated       EventType = "board-updated"
	EventAttackHit          EventType = "attack-hit"
	EventAttackMissed       EventType = "attack-missed"
	EventTowerDamaged       EventType = "tower-damaged"
	EventTowerHealed        EventType = "tower-healed"
	EventTowerDestroyed     EventType = "tower-destroyed"
	EventCounterAttack      EventType = "counter-attack"
	EventUnitConverted      EventType = "unit-converted"
	EventMatchConcluded     EventType = "match-concluded"
	EventTurnTimerStarted   EventType = "turn-timer-started"
	EventTurnCounterUpdated EventType = "turn-counter-updated"
	EventQueueWaitStatus    EventType = "queue-wait-status"
)

// Event is addressed to the listed usernames only.
type Event struct {
	Type      EventType
	SessionID string
	To        []string
	Data      any
}

// Publisher delivers events to connected players. Publish must not block:
// sessions call it while holding their lock.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})
