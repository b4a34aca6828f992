package bot

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/pefman/tower-duel/internal/engine"
	"github.com/pefman/tower-duel/internal/game"
)

// Env is what rule conditions see: the side's legal actions split by shape.
type Env struct {
	Ranged []game.Action
	Melee  []game.Action
	Moves  []game.Action
}

// Classify splits legal actions into ranged attacks, melee attacks and moves.
func Classify(legal []game.Action) Env {
	var env Env
	for _, a := range legal {
		switch {
		case a.Kind == game.ActionMove:
			env.Moves = append(env.Moves, a)
		case a.Unit.Kind.IsRanged():
			env.Ranged = append(env.Ranged, a)
		default:
			env.Melee = append(env.Melee, a)
		}
	}
	return env
}

// PickFunc selects the action a fired rule performs.
type PickFunc func(env Env, rng engine.Roller) game.Action

// Rule is a condition and the action it picks when the condition holds.
type Rule struct {
	Name         string
	Priority     int // higher = evaluated first
	ConditionSrc string
	program      *vm.Program
	Pick         PickFunc
}

// DefaultRules prefer shooting, then striking, then closing distance.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			Name:         "ranged-volley",
			Priority:     300,
			ConditionSrc: `len(Ranged) > 0`,
			Pick:         func(env Env, rng engine.Roller) game.Action { return env.Ranged[rng.Intn(len(env.Ranged))] },
		},
		{
			Name:         "melee-strike",
			Priority:     200,
			ConditionSrc: `len(Melee) > 0`,
			Pick:         func(env Env, _ engine.Roller) game.Action { return env.Melee[0] },
		},
		{
			Name:         "advance",
			Priority:     100,
			ConditionSrc: `len(Moves) > 0`,
			Pick:         func(env Env, rng engine.Roller) game.Action { return env.Moves[rng.Intn(len(env.Moves))] },
		},
	}
}

// Engine evaluates compiled rules in priority order; the first match fires.
type Engine struct {
	rules []*Rule
}

// NewEngine compiles all rule conditions into expr bytecode and sorts by priority.
func NewEngine(rules []*Rule) (*Engine, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Engine{rules: compiled}, nil
}

// Choose returns the action of the first rule whose condition holds, and
// that rule's name.
func (e *Engine) Choose(env Env, rng engine.Roller) (game.Action, string, error) {
	for _, r := range e.rules {
		result, err := vm.Run(r.program, env)
		if err != nil {
			return game.Action{}, "", fmt.Errorf("rule %q: %w", r.Name, err)
		}
		if match, ok := result.(bool); ok && match {
			return r.Pick(env, rng), r.Name, nil
		}
	}
	return game.Action{}, "", nil
}

func compileRules(rules []*Rule) ([]*Rule, error) {
	out := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if r.Pick == nil {
			return nil, fmt.Errorf("rule %q has no action", r.Name)
		}
		prog, err := expr.Compile(r.ConditionSrc, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, err)
		}
		r.program = prog
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out, nil
}
