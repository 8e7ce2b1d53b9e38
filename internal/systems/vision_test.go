package systems

import (
	"testing"

	"github.com/mikkokallio/goblin-tactics/internal/domain"
)

// testUnit создает юнита с типовыми боевыми параметрами и радиусом обзора 3.
func testUnit(id int, f domain.Faction, x, y int) *domain.Unit {
	return domain.NewUnit(id, f, domain.Position{X: x, Y: y}, 10, 1, 2, 5, 3)
}

func mustAdd(t *testing.T, bf *domain.Battlefield, u *domain.Unit) {
	t.Helper()
	if err := bf.AddUnit(u); err != nil {
		t.Fatalf("AddUnit(%d): %v", u.ID, err)
	}
}

func TestComputeSnapshot_Radius(t *testing.T) {
	g := openGrid(9, 9)
	bf := domain.NewBattlefield(g)
	u := testUnit(1, domain.FactionKnights, 4, 4)
	mustAdd(t, bf, u)

	snap := ComputeSnapshot(bf, u)

	tests := []struct {
		name string
		x, y int
		want bool
	}{
		{"own cell", 4, 4, true},
		{"orthogonal at radius", 7, 4, true},  // d=3
		{"orthogonal beyond", 8, 4, false},    // d=4
		{"knight-move beyond", 7, 5, false},   // 9+1=10 > 9
		{"diagonal corner beyond", 7, 7, false}, // 9+9=18 > 9
		{"diagonal inside", 6, 6, true},       // 4+4=8 <= 9
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snap.Sees(g.Index(tt.x, tt.y)); got != tt.want {
				t.Errorf("Sees(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestComputeSnapshot_Occlusion(t *testing.T) {
	// . . . . .
	// . . . . .
	// u # x . .   стена (2,2); x=(3,2) за ней
	// . . . . .
	g := openGrid(5, 5)
	g.SetTile(2, 2, domain.TileWall)
	bf := domain.NewBattlefield(g)
	u := testUnit(1, domain.FactionKnights, 0, 2)
	mustAdd(t, bf, u)

	snap := ComputeSnapshot(bf, u)

	if snap.Sees(g.Index(2, 2)) {
		t.Error("blocking cell itself must be invisible")
	}
	if snap.Sees(g.Index(3, 2)) {
		t.Error("cell behind a wall must be invisible")
	}
	if !snap.Sees(g.Index(1, 2)) {
		t.Error("cell before the wall must be visible")
	}
}

func TestComputeSnapshot_UnitsMarked(t *testing.T) {
	g := openGrid(9, 3)
	bf := domain.NewBattlefield(g)
	u := testUnit(1, domain.FactionKnights, 2, 1)
	ally := testUnit(2, domain.FactionKnights, 4, 1)
	enemy := testUnit(3, domain.FactionGoblins, 0, 1)
	far := testUnit(4, domain.FactionGoblins, 8, 1)
	mustAdd(t, bf, u)
	mustAdd(t, bf, ally)
	mustAdd(t, bf, enemy)
	mustAdd(t, bf, far)

	snap := ComputeSnapshot(bf, u)

	if !snap.Allies[ally.ID] {
		t.Error("ally within radius must be directly seen")
	}
	if !snap.Enemies[enemy.ID] {
		t.Error("enemy within radius must be directly seen")
	}
	if snap.Enemies[far.ID] {
		t.Error("enemy beyond radius must not be seen")
	}
	if snap.Allies[u.ID] || snap.Enemies[u.ID] {
		t.Error("unit must not see itself in unit sets")
	}
}

// Мертвые юниты исключаются из обзора с хода смерти.
func TestComputeSnapshot_IgnoresDead(t *testing.T) {
	g := openGrid(5, 5)
	bf := domain.NewBattlefield(g)
	u := testUnit(1, domain.FactionKnights, 2, 2)
	enemy := testUnit(2, domain.FactionGoblins, 3, 2)
	mustAdd(t, bf, u)
	mustAdd(t, bf, enemy)

	enemy.TakeDamage(999)
	bf.ReleaseCell(enemy)

	snap := ComputeSnapshot(bf, u)
	if snap.Enemies[enemy.ID] {
		t.Error("dead enemy must not appear in snapshot")
	}
}

// Цепочка A-B-C: A видит B, B видит C, A до C не достает. Враг в поле
// зрения C обязан дойти до A через сеть знаний.
func TestResolveNetworks_Transitive(t *testing.T) {
	g := openGrid(13, 1)
	bf := domain.NewBattlefield(g)
	a := testUnit(1, domain.FactionKnights, 0, 0)
	b := testUnit(2, domain.FactionKnights, 3, 0)
	c := testUnit(3, domain.FactionKnights, 6, 0)
	enemy := testUnit(4, domain.FactionGoblins, 9, 0)
	mustAdd(t, bf, a)
	mustAdd(t, bf, b)
	mustAdd(t, bf, c)
	mustAdd(t, bf, enemy)

	snaps := ComputeAllSnapshots(bf)

	// Санити: A не видит C напрямую
	if snaps[a.ID].Allies[c.ID] {
		t.Fatal("test layout broken: A must not see C directly")
	}

	nets := ResolveNetworks(bf, snaps)

	netA := nets[a.ID]
	if len(netA.Members) != 3 {
		t.Fatalf("expected component of 3, got %d", len(netA.Members))
	}
	if !netA.Enemies[enemy.ID] {
		t.Error("enemy seen by C must propagate to A through the chain")
	}
	if !netA.Tiles[g.Index(9, 0)] {
		t.Error("C's visible tiles must be in A's network")
	}
	if netA.Allies[a.ID] {
		t.Error("unit must not list itself among network allies")
	}
	if !netA.Allies[c.ID] {
		t.Error("C must be a network ally of A")
	}

	// Сеть не пересекает границу фракций
	netE := nets[enemy.ID]
	if len(netE.Members) != 1 {
		t.Errorf("enemy component must be alone, got %d members", len(netE.Members))
	}
	if netE.Tiles[g.Index(0, 0)] {
		t.Error("enemy network must not absorb knight vision")
	}
}

// Юнит без видимых союзников получает сеть, равную собственному снимку.
func TestResolveNetworks_Isolated(t *testing.T) {
	g := openGrid(9, 9)
	bf := domain.NewBattlefield(g)
	u := testUnit(1, domain.FactionKnights, 4, 4)
	lone := testUnit(2, domain.FactionKnights, 8, 8) // вне радиуса
	mustAdd(t, bf, u)
	mustAdd(t, bf, lone)

	snaps := ComputeAllSnapshots(bf)
	nets := ResolveNetworks(bf, snaps)

	net := nets[u.ID]
	if len(net.Members) != 1 {
		t.Fatalf("expected singleton component, got %d", len(net.Members))
	}
	if len(net.Tiles) != len(snaps[u.ID].Tiles) {
		t.Errorf("network tiles %d != own snapshot %d", len(net.Tiles), len(snaps[u.ID].Tiles))
	}
}

func TestMergeMemory(t *testing.T) {
	g := openGrid(9, 1)
	bf := domain.NewBattlefield(g)
	u := testUnit(1, domain.FactionKnights, 0, 0)
	enemy := testUnit(2, domain.FactionGoblins, 3, 0)
	mustAdd(t, bf, u)
	mustAdd(t, bf, enemy)

	snaps := ComputeAllSnapshots(bf)
	nets := ResolveNetworks(bf, snaps)

	discovered := MergeMemory(bf, u, nets[u.ID], 1)
	if discovered != len(nets[u.ID].Tiles) {
		t.Errorf("first merge: discovered %d, want %d", discovered, len(nets[u.ID].Tiles))
	}
	if s, ok := u.Memory.Staleness(enemy.ID, 1); !ok || s != 0 {
		t.Errorf("fresh sighting: staleness=%d ok=%v, want 0 true", s, ok)
	}

	// Повторное слияние без движения не открывает ничего нового,
	// но запись о все еще видимом враге освежается ходом 2
	if again := MergeMemory(bf, u, nets[u.ID], 2); again != 0 {
		t.Errorf("second merge discovered %d, want 0", again)
	}

	// Память монотонна: после ухода врага из обзора запись остается
	if err := bf.MoveUnit(enemy, domain.Position{X: 8, Y: 0}); err != nil {
		t.Fatalf("MoveUnit: %v", err)
	}
	snaps = ComputeAllSnapshots(bf)
	nets = ResolveNetworks(bf, snaps)
	MergeMemory(bf, u, nets[u.ID], 5)

	sighting, ok := u.Memory.Enemies[enemy.ID]
	if !ok {
		t.Fatal("enemy memory entry must never be deleted")
	}
	if sighting.Pos != (domain.Position{X: 3, Y: 0}) {
		t.Errorf("stale entry must keep last seen position, got %v", sighting.Pos)
	}
	if s, _ := u.Memory.Staleness(enemy.ID, 5); s != 3 {
		t.Errorf("staleness = %d, want 3: last contact was on turn 2", s)
	}
}

func TestKnownTiles_UnionOfMemoryAndSnapshot(t *testing.T) {
	g := openGrid(9, 1)
	bf := domain.NewBattlefield(g)
	u := testUnit(1, domain.FactionKnights, 0, 0)
	mustAdd(t, bf, u)

	// Память от прежней позиции, снимок от текущей
	u.Memory.RememberTiles(map[int]bool{g.Index(8, 0): true})
	snap := ComputeSnapshot(bf, u)

	known := KnownTiles(u, snap)
	if !known[g.Index(8, 0)] {
		t.Error("remembered tile must be known")
	}
	if !known[g.Index(1, 0)] {
		t.Error("currently visible tile must be known")
	}
	if known[g.Index(5, 0)] {
		t.Error("never-seen tile must not be known")
	}
}

// У погибшего юнита память уже сброшена; область поиска обязана
// собираться и без памяти, и без снимка.
func TestKnownTiles_NilMemoryAndSnapshot(t *testing.T) {
	g := openGrid(5, 1)
	bf := domain.NewBattlefield(g)
	u := testUnit(1, domain.FactionKnights, 0, 0)
	mustAdd(t, bf, u)
	u.Memory = nil

	if known := KnownTiles(u, nil); len(known) != 0 {
		t.Errorf("known = %v, want empty", known)
	}

	snap := ComputeSnapshot(bf, u)
	known := KnownTiles(u, snap)
	if !known[g.Index(1, 0)] {
		t.Error("snapshot tiles must survive a nil memory")
	}
}
