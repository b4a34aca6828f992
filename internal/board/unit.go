// Package board holds the 8x8 grid, its units and terrain, and the wire
// snapshot sent to clients.
package board

import (
	"fmt"
	"strings"
)

// Side is one of the two competing players.
type Side uint8

const (
	SideNone Side = iota
	SideA
	SideB
)

// Sides lists both playable sides in turn order.
var Sides = [2]Side{SideA, SideB}

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return ""
	}
}

// Other returns the opposing side.
func (s Side) Other() Side {
	switch s {
	case SideA:
		return SideB
	case SideB:
		return SideA
	default:
		return SideNone
	}
}

// Index maps A to 0 and B to 1, for per-side arrays.
func (s Side) Index() int {
	if s == SideB {
		return 1
	}
	return 0
}

func (s Side) wirePrefix() string {
	if s == SideB {
		return "P2"
	}
	return "P1"
}

// ParseSide accepts "A"/"B" and the protocol forms "P1"/"P2".
func ParseSide(v string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "A", "P1":
		return SideA, nil
	case "B", "P2":
		return SideB, nil
	}
	return SideNone, fmt.Errorf("unknown side %q", v)
}

// Kind is a unit type.
type Kind uint8

const (
	KindNone Kind = iota
	Warrior
	Horse
	Archer
	Mage
	GeneralWarrior
	GeneralHorse
	GeneralArcher
	GeneralMage
	Barbarian
	Paladin
	Orc
	Robinhood
	Voldemort
	Tower
)

var kindNames = [...]struct{ name, code string }{
	KindNone:       {"", ""},
	Warrior:        {"Warrior", "W"},
	Horse:          {"Horse", "H"},
	Archer:         {"Archer", "A"},
	Mage:           {"Mage", "M"},
	GeneralWarrior: {"GeneralWarrior", "GW"},
	GeneralHorse:   {"GeneralHorse", "GH"},
	GeneralArcher:  {"GeneralArcher", "GA"},
	GeneralMage:    {"GeneralMage", "GM"},
	Barbarian:      {"Barbarian", "Barbarian"},
	Paladin:        {"Paladin", "Paladin"},
	Orc:            {"Orc", "Orc"},
	Robinhood:      {"Robinhood", "Robinhood"},
	Voldemort:      {"Voldemort", "Voldemort"},
	Tower:          {"Tower", "T"},
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k].name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Code is the short form used in wire tags, e.g. "GW".
func (k Kind) Code() string {
	if int(k) < len(kindNames) {
		return kindNames[k].code
	}
	return ""
}

// ParseKind accepts a kind's name or its wire code, case-insensitively.
func ParseKind(v string) (Kind, error) {
	v = strings.TrimSpace(v)
	for k := Warrior; k <= Tower; k++ {
		if strings.EqualFold(v, kindNames[k].name) || strings.EqualFold(v, kindNames[k].code) {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown unit kind %q", v)
}

// Generals are the kinds a player may pick as their general.
func Generals() []Kind {
	return []Kind{GeneralWarrior, GeneralHorse, GeneralArcher, GeneralMage, Barbarian, Paladin, Orc, Voldemort, Robinhood}
}

func (k Kind) IsGeneral() bool {
	for _, g := range Generals() {
		if g == k {
			return true
		}
	}
	return false
}

func (k Kind) IsTower() bool { return k == Tower }

func (k Kind) IsHorse() bool { return k == Horse || k == GeneralHorse }

// IsMageFamily covers the attackers whose spells ignore avoidance.
func (k Kind) IsMageFamily() bool {
	return k == Mage || k == GeneralMage || k == Voldemort
}

// IsRanged covers the kinds whose attack reaches beyond adjacent cells.
func (k Kind) IsRanged() bool {
	switch k {
	case Archer, GeneralArcher, Robinhood, Mage, GeneralMage, Voldemort:
		return true
	}
	return false
}

// Unit is a side-tagged unit kind. The zero Unit is an empty cell.
type Unit struct {
	Side Side
	Kind Kind
}

// Empty reports whether u represents no unit.
func (u Unit) Empty() bool { return u.Kind == KindNone }

// Tag renders the protocol tag, e.g. "P1_GW" or "P2_T".
func (u Unit) Tag() string {
	if u.Empty() {
		return ""
	}
	return u.Side.wirePrefix() + "_" + u.Kind.Code()
}

func (u Unit) String() string { return u.Tag() }

// ParseTag is the inverse of Tag.
func ParseTag(tag string) (Unit, error) {
	prefix, code, ok := strings.Cut(strings.TrimSpace(tag), "_")
	if !ok {
		return Unit{}, fmt.Errorf("malformed unit tag %q", tag)
	}
	side, err := ParseSide(prefix)
	if err != nil {
		return Unit{}, err
	}
	kind, err := ParseKind(code)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Side: side, Kind: kind}, nil
}
