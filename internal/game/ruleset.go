package game

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/pefman/tower-duel/internal/board"
)

//go:embed rules.yaml
var defaultRules []byte

// Override pins the hit chance of specific attackers against one defender.
type Override struct {
	Attackers []board.Kind
	Defender  board.Kind
	Chance    float64
}

// Ruleset holds the tunable combat constants.
type Ruleset struct {
	TowerHP             [2]int
	ActionsPerTurn      int
	MovesPerUnit        int
	TowerDamage         map[board.Kind]int
	HitChance           map[board.Kind]float64
	Overrides           []Override
	CounterAttackChance float64
	RobinhoodStreak     int
	MageHeal            int
	TowerSelfDamage     int
	TowerDefenseBonus   int
	PushbackDistance    int
	AttritionThreshold  int
	AttritionDamage     int
}

type rulesFile struct {
	TowerHP struct {
		A int `yaml:"a"`
		B int `yaml:"b"`
	} `yaml:"tower_hp"`
	ActionsPerTurn int                `yaml:"actions_per_turn"`
	MovesPerUnit   int                `yaml:"moves_per_unit"`
	TowerDamage    map[string]int     `yaml:"tower_damage"`
	HitChance      map[string]float64 `yaml:"hit_chance"`
	HitOverrides   []struct {
		Attackers []string `yaml:"attackers"`
		Defender  string   `yaml:"defender"`
		Chance    float64  `yaml:"chance"`
	} `yaml:"hit_overrides"`
	CounterAttackChance float64 `yaml:"counter_attack_chance"`
	RobinhoodStreak     int     `yaml:"robinhood_streak"`
	MageHeal            int     `yaml:"mage_heal"`
	TowerSelfDamage     int     `yaml:"tower_self_damage"`
	TowerDefenseBonus   int     `yaml:"tower_defense_bonus"`
	PushbackDistance    int     `yaml:"pushback_distance"`
	Attrition           struct {
		Threshold int `yaml:"threshold"`
		Damage    int `yaml:"damage"`
	} `yaml:"attrition"`
}

// ParseRuleset decodes a YAML ruleset.
func ParseRuleset(data []byte) (*Ruleset, error) {
	var f rulesFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("decode ruleset: %w", err)
	}
	if f.ActionsPerTurn <= 0 || f.MovesPerUnit <= 0 || f.RobinhoodStreak <= 0 {
		return nil, fmt.Errorf("ruleset: actions_per_turn, moves_per_unit and robinhood_streak must be positive")
	}

	rs := &Ruleset{
		TowerHP:             [2]int{f.TowerHP.A, f.TowerHP.B},
		ActionsPerTurn:      f.ActionsPerTurn,
		MovesPerUnit:        f.MovesPerUnit,
		TowerDamage:         make(map[board.Kind]int, len(f.TowerDamage)),
		HitChance:           make(map[board.Kind]float64, len(f.HitChance)),
		CounterAttackChance: f.CounterAttackChance,
		RobinhoodStreak:     f.RobinhoodStreak,
		MageHeal:            f.MageHeal,
		TowerSelfDamage:     f.TowerSelfDamage,
		TowerDefenseBonus:   f.TowerDefenseBonus,
		PushbackDistance:    f.PushbackDistance,
		AttritionThreshold:  f.Attrition.Threshold,
		AttritionDamage:     f.Attrition.Damage,
	}
	for name, dmg := range f.TowerDamage {
		k, err := board.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("tower_damage: %w", err)
		}
		rs.TowerDamage[k] = dmg
	}
	for name, chance := range f.HitChance {
		k, err := board.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("hit_chance: %w", err)
		}
		rs.HitChance[k] = chance
	}
	for i, o := range f.HitOverrides {
		def, err := board.ParseKind(o.Defender)
		if err != nil {
			return nil, fmt.Errorf("hit_overrides[%d]: %w", i, err)
		}
		ov := Override{Defender: def, Chance: o.Chance}
		for _, name := range o.Attackers {
			k, err := board.ParseKind(name)
			if err != nil {
				return nil, fmt.Errorf("hit_overrides[%d]: %w", i, err)
			}
			ov.Attackers = append(ov.Attackers, k)
		}
		rs.Overrides = append(rs.Overrides, ov)
	}
	return rs, nil
}

var (
	defaultOnce    sync.Once
	defaultRuleset *Ruleset
)

// DefaultRuleset returns the embedded ruleset. It panics if the embedded file
// is malformed, which the package tests guard against.
func DefaultRuleset() *Ruleset {
	defaultOnce.Do(func() {
		rs, err := ParseRuleset(defaultRules)
		if err != nil {
			panic(err)
		}
		defaultRuleset = rs
	})
	return defaultRuleset
}
