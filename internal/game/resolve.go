package game

import (
	"slices"

	"github.com/pefman/tower-duel/internal/board"
	"github.com/pefman/tower-duel/internal/engine"
)

// Resolver applies the combat rules of one ruleset.
type Resolver struct {
	rules *Ruleset
}

// NewResolver returns a resolver over rs, or the embedded ruleset when rs is nil.
func NewResolver(rs *Ruleset) *Resolver {
	if rs == nil {
		rs = DefaultRuleset()
	}
	return &Resolver{rules: rs}
}

// Rules exposes the ruleset in use.
func (r *Resolver) Rules() *Ruleset { return r.rules }

// Setup derives a starting layout from the chosen generals and cards.
func (r *Resolver) Setup(generals [2]board.Kind, cards [2]Card) board.Setup {
	s := board.Setup{Generals: generals, TowerHP: r.rules.TowerHP}
	for i, c := range cards {
		switch c {
		case CardTowerDefense:
			s.TowerHP[i] += r.rules.TowerDefenseBonus
		case CardArmyBoost:
			s.ExtraWarrior[i] = true
		}
	}
	return s
}

// HitChance is the probability that att connects against def when attacking
// from terrain. Robinhood streaks are applied by Resolve on top of this.
func (r *Resolver) HitChance(att, def board.Kind, from board.Terrain) float64 {
	if att.IsMageFamily() {
		if def == board.Orc {
			return 0
		}
		return 1
	}
	if from == board.RedZone {
		return 1
	}
	for _, o := range r.rules.Overrides {
		if o.Defender == def && slices.Contains(o.Attackers, att) {
			return o.Chance
		}
	}
	if c, ok := r.rules.HitChance[def]; ok {
		return c
	}
	return 1
}

// Resolve validates and applies one action by side. On error the state is
// untouched.
func (r *Resolver) Resolve(st *State, side board.Side, from, to board.Pos, rng engine.Roller) (Outcome, error) {
	if !from.OnBoard() || !to.OnBoard() {
		return Outcome{}, invalid("position off the board")
	}
	if from == to {
		return Outcome{}, invalid("origin and destination are the same cell")
	}
	actor := st.Board.At(from).Unit
	if actor.Empty() || actor.Side != side {
		return Outcome{}, invalid("no unit of yours at origin")
	}
	if st.Board.At(to).Unit.Empty() {
		return r.move(st, actor, from, to)
	}
	return r.attack(st, actor, from, to, rng)
}

func (r *Resolver) move(st *State, actor board.Unit, from, to board.Pos) (Outcome, error) {
	if st.Moved[from] >= r.rules.MovesPerUnit {
		return Outcome{}, invalid("unit has no moves left this turn")
	}
	if err := ValidMove(st.Board, from, to); err != nil {
		return Outcome{}, err
	}
	st.Board.Move(from, to)
	st.Moved[from]++
	return Outcome{
		Action:  Action{Kind: ActionMove, Unit: actor, From: from, To: to},
		Effects: []Effect{{Kind: EffectMoved, Attacker: actor, From: from, To: to}},
	}, nil
}

func (r *Resolver) attack(st *State, actor board.Unit, from, to board.Pos, rng engine.Roller) (Outcome, error) {
	if err := ValidAttack(st, from, to); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Action: Action{Kind: ActionAttack, Unit: actor, From: from, To: to}}
	side := actor.Side

	if actor.Kind.IsTower() && st.Cards[side.Index()] != CardTowerAttacker {
		self := st.Board.At(from)
		if self.HP > r.rules.TowerSelfDamage {
			self.HP -= r.rules.TowerSelfDamage
			out.Effects = append(out.Effects, Effect{
				Kind: EffectTowerDamaged, Attacker: actor, From: from, To: from,
				Side: side, HP: self.HP, Damage: r.rules.TowerSelfDamage,
			})
		}
	}

	if actor.Kind == board.GeneralMage {
		if _, alive := st.Board.TowerHP(side); alive {
			home := board.HomeTower(side)
			st.Board.At(home).HP += r.rules.MageHeal
			out.Effects = append(out.Effects, Effect{
				Kind: EffectTowerHealed, Attacker: actor, From: from, To: home,
				Side: side, HP: st.Board.At(home).HP,
			})
		}
	}

	target := st.Board.At(to).Unit
	attackerSurvives := true
	if target.Kind.IsTower() {
		r.hitTower(st, &out, actor, from, to)
	} else {
		attackerSurvives = r.hitUnit(st, &out, actor, target, from, to, rng)
	}

	if attackerSurvives && actor.Kind != board.Barbarian {
		st.Attacked[from] = true
	}
	out.Conclusion = r.Evaluate(st.Board, side)
	return out, nil
}

func (r *Resolver) hitTower(st *State, out *Outcome, actor board.Unit, from, to board.Pos) {
	cell := st.Board.At(to)
	owner := cell.Unit.Side
	dmg := r.rules.TowerDamage[actor.Kind]
	cell.HP -= dmg
	out.Hit, out.Chance = true, 1
	if cell.HP > 0 {
		out.Effects = append(out.Effects, Effect{
			Kind: EffectTowerDamaged, Attacker: actor, From: from, To: to,
			Side: owner, HP: cell.HP, Damage: dmg,
		})
		return
	}
	frame := st.Board.Snapshot().WithMarker(to, board.MarkerTowerDestroyed)
	st.Board.Destroy(to)
	out.Effects = append(out.Effects, Effect{
		Kind: EffectTowerDestroyed, Attacker: actor, From: from, To: to,
		Side: owner, Damage: dmg, Marker: board.MarkerTowerDestroyed, Frame: &frame,
	})
}

// hitUnit rolls an attack on a regular unit and reports whether the attacker
// is still standing at from afterwards.
func (r *Resolver) hitUnit(st *State, out *Outcome, actor, target board.Unit, from, to board.Pos, rng engine.Roller) bool {
	chance := r.HitChance(actor.Kind, target.Kind, st.Board.At(from).Terrain)
	if actor.Kind == board.Robinhood {
		st.Streaks[actor]++
		if st.Streaks[actor]%r.rules.RobinhoodStreak == 0 {
			chance = 1
			st.Streaks[actor] = 0
		}
	}
	roll := rng.Float64()
	out.Chance = chance
	out.Hit = chance > 0 && roll <= chance

	if out.Hit {
		if target.Kind == board.Voldemort && !actor.Kind.IsTower() {
			converted := board.Unit{Side: actor.Side.Other(), Kind: actor.Kind}
			st.Board.At(from).Unit = converted
			out.Effects = append(out.Effects, Effect{
				Kind: EffectUnitConverted, Attacker: actor, From: from, To: to, Side: converted.Side,
			})
			return true
		}
		marker := impactMarker(actor.Kind)
		frame := st.Board.Snapshot().WithMarker(to, marker)
		st.Board.Clear(to)
		out.Effects = append(out.Effects, Effect{
			Kind: EffectAttackHit, Attacker: actor, From: from, To: to, Marker: marker, Frame: &frame,
		})
		return true
	}

	frame := st.Board.Snapshot().WithMarker(to, board.MarkerMiss)
	out.Effects = append(out.Effects, Effect{
		Kind: EffectAttackMissed, Attacker: actor, From: from, To: to, Marker: board.MarkerMiss, Frame: &frame,
	})

	if target.Kind == board.GeneralWarrior && rng.Float64() <= r.rules.CounterAttackChance {
		frame := st.Board.Snapshot().WithMarker(from, board.MarkerCounterAttack)
		st.Board.Clear(from)
		out.Effects = append(out.Effects, Effect{
			Kind: EffectCounterAttack, Attacker: target, From: to, To: from,
			Marker: board.MarkerCounterAttack, Frame: &frame,
		})
		return false
	}

	if st.Cards[actor.Side.Index()] == CardPushback && actor.Kind == board.Archer {
		r.pushBack(st, actor, from, to, out)
	}
	return true
}

// pushBack shoves the unit at to straight away from from, landing on the
// farthest free cell within PushbackDistance. Cells in between are not
// checked.
func (r *Resolver) pushBack(st *State, actor board.Unit, from, to board.Pos, out *Outcome) {
	dr, dc := sign(to.Row-from.Row), sign(to.Col-from.Col)
	for d := r.rules.PushbackDistance; d >= 1; d-- {
		dest := board.Pos{Row: to.Row + d*dr, Col: to.Col + d*dc}
		if !dest.OnBoard() || !st.Board.At(dest).Vacant() || st.Board.At(dest).Terrain == board.Water {
			continue
		}
		st.Board.Move(to, dest)
		out.Effects = append(out.Effects, Effect{
			Kind: EffectPushedBack, Attacker: actor, From: to, To: dest,
		})
		return
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func impactMarker(k board.Kind) string {
	switch k {
	case board.Mage, board.GeneralMage, board.Voldemort:
		return board.MarkerMageHit
	case board.Archer, board.Robinhood:
		return board.MarkerArcherHit
	case board.Paladin:
		return board.MarkerPaladinHit
	case board.GeneralArcher:
		return board.MarkerGeneralArchHit
	default:
		return board.MarkerExplosion
	}
}

// ApplyAttrition wears down both home towers once the match runs long.
// counter is the session's turn counter after the latest action.
func (r *Resolver) ApplyAttrition(st *State, counter int) ([]Effect, *Conclusion) {
	if counter <= r.rules.AttritionThreshold || counter%2 != 0 {
		return nil, nil
	}
	var effects []Effect
	for _, s := range board.Sides {
		if _, alive := st.Board.TowerHP(s); !alive {
			continue
		}
		home := board.HomeTower(s)
		cell := st.Board.At(home)
		cell.HP -= r.rules.AttritionDamage
		if cell.HP > 0 {
			effects = append(effects, Effect{
				Kind: EffectTowerDamaged, From: home, To: home, Side: s, HP: cell.HP, Damage: r.rules.AttritionDamage,
			})
			continue
		}
		frame := st.Board.Snapshot().WithMarker(home, board.MarkerTowerDestroyed)
		st.Board.Destroy(home)
		effects = append(effects, Effect{
			Kind: EffectTowerDestroyed, From: home, To: home, Side: s, Damage: r.rules.AttritionDamage,
			Marker: board.MarkerTowerDestroyed, Frame: &frame,
		})
	}
	for _, s := range board.Sides {
		if _, alive := st.Board.TowerHP(s); !alive {
			return effects, &Conclusion{Winner: s.Other(), Loser: s, Reason: ReasonTowerDestroyed}
		}
	}
	return effects, nil
}

// CheckWin reports whether side has defeated its opponent: the opponent has
// no tower or no non-tower units left anywhere on the board.
func CheckWin(b *board.Board, side board.Side) bool {
	towers, units := b.Count(side.Other())
	return towers == 0 || units == 0
}

// Evaluate checks the acting side first, then its opponent, since
// conversions and counter-attacks can defeat the actor.
func (r *Resolver) Evaluate(b *board.Board, actor board.Side) *Conclusion {
	for _, s := range []board.Side{actor, actor.Other()} {
		if !CheckWin(b, s) {
			continue
		}
		reason := ReasonUnitsEliminated
		if towers, _ := b.Count(s.Other()); towers == 0 {
			reason = ReasonTowerDestroyed
		}
		return &Conclusion{Winner: s, Loser: s.Other(), Reason: reason}
	}
	return nil
}
