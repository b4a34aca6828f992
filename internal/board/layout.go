package board

// Rand is the randomness the layout needs.
type Rand interface {
	Intn(n int) int
}

// Setup parameterises the starting layout of one match.
type Setup struct {
	Generals [2]Kind // by Side.Index
	TowerHP  [2]int
	// ExtraWarrior places an additional Warrior for a side (Army Boost card).
	ExtraWarrior [2]bool
}

// DefaultTowerHP is the starting tower HP for sides A and B.
var DefaultTowerHP = [2]int{26, 28}

// New builds the starting board: fixed unit placements on the home rows and
// randomized water and red-zone cells in the middle band.
func New(rng Rand, setup Setup) *Board {
	b := &Board{}
	placeTerrain(b, rng)

	for _, s := range Sides {
		home, front := 0, 1
		if s == SideB {
			home, front = 7, 6
		}
		for col := 1; col <= 6; col++ {
			b.Place(Pos{front, col}, Unit{s, Warrior})
		}
		b.Place(Pos{home, 0}, Unit{s, Archer})
		b.Place(Pos{home, 7}, Unit{s, Archer})

		general := setup.Generals[s.Index()]
		if !general.IsGeneral() {
			general = GeneralWarrior
		}
		hp := setup.TowerHP[s.Index()]
		if hp <= 0 {
			hp = DefaultTowerHP[s.Index()]
		}

		if s == SideA {
			b.Place(Pos{0, 1}, Unit{s, Horse})
			b.Place(Pos{0, 5}, Unit{s, Horse})
			b.Place(Pos{0, 3}, Unit{s, general})
			b.Place(Pos{0, 4}, Unit{s, Mage})
			if setup.ExtraWarrior[0] {
				b.Place(Pos{0, 6}, Unit{s, Warrior})
			}
		} else {
			b.Place(Pos{7, 2}, Unit{s, Horse})
			b.Place(Pos{7, 6}, Unit{s, Horse})
			b.Place(Pos{7, 3}, Unit{s, Mage})
			b.Place(Pos{7, 4}, Unit{s, general})
			if setup.ExtraWarrior[1] {
				b.Place(Pos{7, 1}, Unit{s, Warrior})
			}
		}
		tower := HomeTower(s)
		b.Place(tower, Unit{s, Tower})
		b.At(tower).HP = hp
	}
	return b
}

// placeTerrain gives each middle row 1-3 water cells and 0-1 red zone in
// distinct columns.
func placeTerrain(b *Board, rng Rand) {
	for row := 2; row <= 5; row++ {
		cols := perm(rng, Size)
		water := 1 + rng.Intn(3)
		red := rng.Intn(2)
		for i, col := range cols {
			switch {
			case i < water:
				b.cells[row][col].Terrain = Water
			case i < water+red:
				b.cells[row][col].Terrain = RedZone
			}
		}
	}
}

func perm(rng Rand, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
