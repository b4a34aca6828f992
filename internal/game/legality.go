package game

import (
	"github.com/pefman/tower-duel/internal/board"
	apperrors "github.com/pefman/tower-duel/internal/platform/errors"
)

func invalid(msg string) error { return apperrors.New(apperrors.CodeInvalidAction, msg) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func chebyshev(a, b board.Pos) int {
	return max(abs(a.Row-b.Row), abs(a.Col-b.Col))
}

// attackReach returns how far k strikes and whether it must strike along a
// rank or file.
func attackReach(k board.Kind) (reach int, orthogonal bool) {
	switch k {
	case board.Archer, board.Robinhood:
		return 3, true
	case board.GeneralArcher:
		return 4, true
	case board.Mage, board.GeneralMage, board.Voldemort:
		return 2, true
	default:
		return 1, false
	}
}

// InAttackRange reports whether a k at from can reach to, ignoring occupancy.
func InAttackRange(k board.Kind, from, to board.Pos) bool {
	if from == to {
		return false
	}
	reach, orthogonal := attackReach(k)
	if !orthogonal {
		return chebyshev(from, to) <= reach
	}
	if from.Row != to.Row && from.Col != to.Col {
		return false
	}
	return chebyshev(from, to) <= reach
}

// InMoveRange reports whether a k at from can step to to, ignoring occupancy.
func InMoveRange(k board.Kind, from, to board.Pos) bool {
	if from == to {
		return false
	}
	dr, dc := abs(to.Row-from.Row), abs(to.Col-from.Col)
	switch {
	case k.IsTower():
		return false
	case k.IsHorse():
		straight := dr == 0 || dc == 0 || dr == dc
		return straight && max(dr, dc) <= 3
	default:
		return max(dr, dc) <= 1
	}
}

// ValidMove checks the shape and destination of a move from from to to.
func ValidMove(b *board.Board, from, to board.Pos) error {
	if !from.OnBoard() || !to.OnBoard() {
		return invalid("position off the board")
	}
	unit := b.At(from).Unit
	if unit.Empty() {
		return invalid("no unit at origin")
	}
	dst := b.At(to)
	if !dst.Unit.Empty() {
		return invalid("destination is occupied")
	}
	if dst.Ruin {
		return invalid("destination is a destroyed tower")
	}
	if dst.Terrain == board.Water {
		return invalid("cannot move onto water")
	}
	if unit.Kind.IsTower() {
		return invalid("towers cannot move")
	}
	if !InMoveRange(unit.Kind, from, to) {
		return invalid("destination out of movement range")
	}
	return nil
}

// ValidAttack checks that the unit at from may attack the unit at to this turn.
func ValidAttack(st *State, from, to board.Pos) error {
	if !from.OnBoard() || !to.OnBoard() {
		return invalid("position off the board")
	}
	att := st.Board.At(from).Unit
	if att.Empty() {
		return invalid("no unit at origin")
	}
	tgt := st.Board.At(to)
	if tgt.Ruin || tgt.Unit.Empty() {
		return invalid("no enemy at target")
	}
	if tgt.Unit.Side == att.Side {
		if tgt.Unit.Kind.IsTower() {
			return invalid("cannot attack your own tower")
		}
		return invalid("cannot attack your own units")
	}
	if att.Kind != board.Barbarian && st.Attacked[from] {
		return invalid("unit already attacked this turn")
	}
	if !InAttackRange(att.Kind, from, to) {
		return invalid("target out of attack range")
	}
	return nil
}

// LegalActions enumerates every move and attack side may make now, scanning
// origins and then destinations in row-major order.
func (r *Resolver) LegalActions(st *State, side board.Side) []Action {
	var out []Action
	st.Board.Each(func(from board.Pos, c *board.Cell) {
		if c.Unit.Empty() || c.Unit.Side != side {
			return
		}
		unit := c.Unit
		st.Board.Each(func(to board.Pos, dst *board.Cell) {
			switch {
			case dst.Unit.Empty():
				if st.Moved[from] < r.rules.MovesPerUnit && ValidMove(st.Board, from, to) == nil {
					out = append(out, Action{Kind: ActionMove, Unit: unit, From: from, To: to})
				}
			case dst.Unit.Side != side:
				if ValidAttack(st, from, to) == nil {
					out = append(out, Action{Kind: ActionAttack, Unit: unit, From: from, To: to})
				}
			}
		})
	})
	return out
}
