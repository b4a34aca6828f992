package matchmaking

import (
	"github.com/pefman/tower-duel/internal/board"
	"github.com/pefman/tower-duel/internal/match"
	"github.com/pefman/tower-duel/internal/models"
)

// tap forwards a session's events and feeds tower hits to the daily stats.
func (c *Coordinator) tap(ps [2]match.Participant) match.Publisher {
	next := c.opts.Publisher
	if c.opts.Stats == nil {
		return next
	}
	return match.PublisherFunc(func(ev match.Event) {
		switch d := ev.Data.(type) {
		case models.TowerDamaged:
			c.recordTowerHit(ps, d.Attacker, d.Side, d.Damage)
		case models.TowerDestroyed:
			c.recordTowerHit(ps, d.Attacker, d.Side, d.Damage)
		}
		next.Publish(ev)
	})
}

// recordTowerHit ignores attrition and a tower's own recoil.
func (c *Coordinator) recordTowerHit(ps [2]match.Participant, attacker, side string, damage int) {
	if attacker == "" {
		return
	}
	u, err := board.ParseTag(attacker)
	if err != nil {
		return
	}
	owner, err := board.ParseSide(side)
	if err != nil || owner == u.Side {
		return
	}
	c.opts.Stats.MaybeTopTowerHit(damage,
		ps[u.Side.Index()].Username, u.Kind.String(), ps[owner.Index()].Username)
}
