package board

// Transient impact markers shown in a cell between a hit and its clear.
const (
	MarkerExplosion      = "explosion"
	MarkerMageHit        = "magehit"
	MarkerArcherHit      = "archerhit"
	MarkerPaladinHit     = "paladinhit"
	MarkerGeneralArchHit = "gahit"
	MarkerMiss           = "miss"
	MarkerCounterAttack  = "counterattack"
	MarkerTowerDestroyed = "towerdestroyed"
)

// CellView is the wire form of one cell.
type CellView struct {
	Terrain string `json:"terrain" msgpack:"terrain"`
	Unit    string `json:"unit" msgpack:"unit"`
	HP      *int   `json:"hp,omitempty" msgpack:"hp,omitempty"`
}

// Snapshot is the row-major wire form of a board.
type Snapshot [Size][Size]CellView

// Snapshot renders the board for clients. A ruin renders as the
// towerdestroyed marker.
func (b *Board) Snapshot() Snapshot {
	var s Snapshot
	b.Each(func(p Pos, c *Cell) {
		v := CellView{Terrain: c.Terrain.String(), Unit: c.Unit.Tag()}
		switch {
		case c.Ruin:
			v.Unit = MarkerTowerDestroyed
		case c.Unit.Kind.IsTower():
			hp := c.HP
			v.HP = &hp
		}
		s[p.Row][p.Col] = v
	})
	return s
}

// WithMarker returns a copy of s whose cell p shows marker instead of its unit.
func (s Snapshot) WithMarker(p Pos, marker string) Snapshot {
	s[p.Row][p.Col].Unit = marker
	s[p.Row][p.Col].HP = nil
	return s
}
