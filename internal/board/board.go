package board

import "fmt"

// Size is the board's edge length.
const Size = 8

// Terrain is a cell's ground type.
type Terrain uint8

const (
	Normal Terrain = iota
	Water
	RedZone
)

func (t Terrain) String() string {
	switch t {
	case Water:
		return "water"
	case RedZone:
		return "red"
	default:
		return "normal"
	}
}

// Pos addresses one cell.
type Pos struct {
	Row int `json:"row" msgpack:"row"`
	Col int `json:"col" msgpack:"col"`
}

// OnBoard reports whether p lies inside the grid.
func (p Pos) OnBoard() bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

func (p Pos) String() string { return fmt.Sprintf("%d,%d", p.Row, p.Col) }

// Cell is one square of the board. HP is only meaningful for a live tower.
// Ruin marks the home cell of a destroyed tower.
type Cell struct {
	Terrain Terrain
	Unit    Unit
	HP      int
	Ruin    bool
}

// Vacant reports whether a unit could move into the cell, terrain aside.
func (c Cell) Vacant() bool { return c.Unit.Empty() && !c.Ruin }

// Board is the authoritative grid of a session. It is not safe for
// concurrent use; the owning session serializes access.
type Board struct {
	cells [Size][Size]Cell
}

// At returns the cell at p. p must be on the board.
func (b *Board) At(p Pos) *Cell { return &b.cells[p.Row][p.Col] }

// Place puts u on p, replacing whatever was there.
func (b *Board) Place(p Pos, u Unit) {
	c := b.At(p)
	c.Unit = u
	c.HP = 0
	c.Ruin = false
}

// Clear empties p.
func (b *Board) Clear(p Pos) {
	c := b.At(p)
	c.Unit = Unit{}
	c.HP = 0
}

// Move relocates the occupant of from to to, leaving from empty.
func (b *Board) Move(from, to Pos) {
	src := b.At(from)
	dst := b.At(to)
	dst.Unit, dst.HP = src.Unit, src.HP
	src.Unit, src.HP = Unit{}, 0
}

// Destroy turns a tower's cell into a ruin.
func (b *Board) Destroy(p Pos) {
	c := b.At(p)
	c.Unit = Unit{}
	c.HP = 0
	c.Ruin = true
}

// Each visits every cell in row-major order.
func (b *Board) Each(fn func(p Pos, c *Cell)) {
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			fn(Pos{Row: r, Col: col}, &b.cells[r][col])
		}
	}
}

// Clone returns an independent copy.
func (b *Board) Clone() *Board {
	cp := *b
	return &cp
}

// HomeTower is the fixed cell of a side's tower.
func HomeTower(s Side) Pos {
	if s == SideB {
		return Pos{Row: 7, Col: 5}
	}
	return Pos{Row: 0, Col: 2}
}

// TowerHP returns the HP of s's home tower and whether it still stands.
func (b *Board) TowerHP(s Side) (int, bool) {
	c := b.At(HomeTower(s))
	if c.Unit.Kind == Tower && c.Unit.Side == s {
		return c.HP, true
	}
	return 0, false
}

// Count returns how many towers and non-tower units s has on the board.
func (b *Board) Count(s Side) (towers, units int) {
	b.Each(func(_ Pos, c *Cell) {
		if c.Unit.Empty() || c.Unit.Side != s {
			return
		}
		if c.Unit.Kind.IsTower() {
			towers++
		} else {
			units++
		}
	})
	return towers, units
}
