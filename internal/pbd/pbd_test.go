package pbd

import (
	"math"
	"testing"
	"unsafe"
)

const eps = 1e-5

func TestGroupLayout(t *testing.T) {
	var g Group
	if got := unsafe.Sizeof(g); got != GroupBytes {
		t.Fatalf("sizeof(Group) = %d, want %d", got, GroupBytes)
	}

	offsets := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Radius", unsafe.Offsetof(g.Radius), 16},
		{"Mass", unsafe.Offsetof(g.Mass), 48},
		{"Pos", unsafe.Offsetof(g.Pos), 80},
		{"Prev", unsafe.Offsetof(g.Prev), 144},
		{"Next", unsafe.Offsetof(g.Next), 208},
		{"Corrected", unsafe.Offsetof(g.Corrected), 272},
		{"Vel", unsafe.Offsetof(g.Vel), 336},
	}
	for _, o := range offsets {
		if o.got != o.want {
			t.Errorf("offset of %s = %d, want %d", o.name, o.got, o.want)
		}
	}
}

func TestPhaseNames(t *testing.T) {
	want := []string{"predict", "project", "resolve_collisions", "commit"}
	for i, p := range Phases {
		if p.String() != want[i] {
			t.Errorf("phase %d name = %q, want %q", i, p.String(), want[i])
		}
	}
	if Phase(9).String() != "unknown" {
		t.Error("out of range phase should be unknown")
	}
}

func TestVec2Normalize_Zero(t *testing.T) {
	n := Vec2{}.Normalize()
	if !n.IsValid() || !n.IsZero() {
		t.Errorf("normalize(0) = %v, want zero vector", n)
	}

	n = V(3, 4).Normalize()
	if math.Abs(float64(n.Len())-1) > eps {
		t.Errorf("normalize(3,4) has length %f", n.Len())
	}
}

func TestInitialize(t *testing.T) {
	opts := DefaultInitOptions()
	groups := NewGroups(3, opts)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	for gi, g := range groups {
		if g.Wire.Radius != DefaultWireRadius || !g.Wire.Center.IsZero() {
			t.Errorf("group %d: unexpected wire %+v", gi, g.Wire)
		}
		if g.Radius[0] != DefaultFirstRadius {
			t.Errorf("group %d: first radius %f, want %f", gi, g.Radius[0], float32(DefaultFirstRadius))
		}
		for j := 0; j < BeadCount; j++ {
			r := g.Radius[j]
			if j > 0 && (r < DefaultMinRadius || r >= DefaultMaxRadius) {
				t.Errorf("group %d bead %d: radius %f outside [0.05, 0.15)", gi, j, r)
			}
			if g.Mass[j] != float32(math.Pi)*r*r {
				t.Errorf("group %d bead %d: mass %f != pi*r^2", gi, j, g.Mass[j])
			}
			if !g.Vel[j].IsZero() {
				t.Errorf("group %d bead %d: non-zero initial velocity", gi, j)
			}
			if g.Prev[j] != g.Pos[j] || g.Next[j] != g.Pos[j] {
				t.Errorf("group %d bead %d: prev/next differ from pos", gi, j)
			}

			angle := g.Pos[j].Angle()
			want := float64(j) * math.Pi / BeadCount
			if math.Abs(angle-want) > 1e-5 {
				t.Errorf("group %d bead %d: angle %f, want %f", gi, j, angle, want)
			}
		}
		if g.WireError() > eps {
			t.Errorf("group %d: initial bead off wire by %g", gi, g.WireError())
		}
	}

	if groups[0].Radius == groups[1].Radius {
		t.Error("groups share radii; generator should advance across groups")
	}
}

func TestInitialize_Deterministic(t *testing.T) {
	a := NewGroups(5, DefaultInitOptions())
	b := NewGroups(5, DefaultInitOptions())
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("group %d differs between identical seeds", i)
		}
	}

	opts := DefaultInitOptions()
	opts.Seed = 7
	c := NewGroups(5, opts)
	if c[0].Radius == a[0].Radius {
		t.Error("different seeds produced identical radii")
	}
}

func TestNewGroups_Empty(t *testing.T) {
	if g := NewGroups(0, DefaultInitOptions()); g != nil {
		t.Errorf("expected nil, got %d groups", len(g))
	}
}

func TestInitOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InitOptions)
	}{
		{"zero wire radius", func(o *InitOptions) { o.WireRadius = 0 }},
		{"negative first radius", func(o *InitOptions) { o.FirstRadius = -1 }},
		{"inverted range", func(o *InitOptions) { o.MinRadius, o.MaxRadius = 0.2, 0.1 }},
		{"nan center", func(o *InitOptions) { o.WireCenter.X = float32(math.NaN()) }},
	}

	if err := DefaultInitOptions().Validate(); err != nil {
		t.Fatalf("default options invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultInitOptions()
			tt.mutate(&o)
			if err := o.Validate(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParamsValidate(t *testing.T) {
	if err := (Params{Dt: 0.001}).Validate(); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}
	if err := (Params{Dt: 0}).Validate(); err == nil {
		t.Error("zero dt accepted")
	}
	if err := (Params{Dt: 0.1, Gravity: V(float32(math.Inf(1)), 0)}).Validate(); err == nil {
		t.Error("infinite gravity accepted")
	}
}

func TestProjectOntoWire(t *testing.T) {
	w := Wire{Center: V(1, 2), Radius: 0.5}

	tests := []struct {
		name string
		in   Vec2
		want Vec2
	}{
		{"outside", V(3, 2), V(1.5, 2)},
		{"inside", V(1, 2.1), V(1, 2.5)},
		{"on wire", V(1, 1.5), V(1, 1.5)},
		{"center", V(1, 2), V(1, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectOntoWire(w, tt.in)
			if !got.IsValid() {
				t.Fatalf("projection produced %v", got)
			}
			if got.Sub(tt.want).Len() > eps {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// spreadGroup places small beads evenly around the full circle so none of
// them touch.
func spreadGroup() Group {
	var g Group
	g.Wire = Wire{Radius: 0.8}
	for i := 0; i < BeadCount; i++ {
		a := 2 * math.Pi * float64(i) / BeadCount
		p := V(0.8*float32(math.Cos(a)), 0.8*float32(math.Sin(a)))
		g.Pos[i], g.Prev[i], g.Next[i], g.Corrected[i] = p, p, p, p
		g.Radius[i] = 0.05
		g.Mass[i] = float32(math.Pi) * 0.05 * 0.05
	}
	return g
}

func place(g *Group, i int, angle float64, r float32) {
	p := V(g.Wire.Radius*float32(math.Cos(angle)), g.Wire.Radius*float32(math.Sin(angle)))
	g.Pos[i], g.Prev[i], g.Next[i], g.Corrected[i] = p, p, p, p
	g.Radius[i] = r
	g.Mass[i] = float32(math.Pi) * r * r
}

func TestResolve_EqualMassSplitsEvenly(t *testing.T) {
	g := spreadGroup()
	place(&g, 0, 0.0, 0.1)
	place(&g, 1, 0.1, 0.1)

	Resolve(&g, 0, Params{})
	Resolve(&g, 1, Params{})

	a0 := g.Corrected[0].Angle()
	a1 := g.Corrected[1].Angle()
	if !(a0 < 0 && a1 > 0.1) {
		t.Fatalf("beads did not separate: angles %f, %f", a0, a1)
	}
	if math.Abs(-a0-(a1-0.1)) > 1e-4 {
		t.Errorf("uneven split for equal masses: %f vs %f", -a0, a1-0.1)
	}
	for _, i := range []int{0, 1} {
		d := g.Corrected[i].Len() - g.Wire.Radius
		if math.Abs(float64(d)) > eps {
			t.Errorf("bead %d left the wire by %g", i, d)
		}
	}
	for i := 2; i < BeadCount; i++ {
		if g.Corrected[i] != g.Next[i] {
			t.Errorf("non-overlapping bead %d moved", i)
		}
	}
}

func TestResolve_HeavierMovesLess(t *testing.T) {
	g := spreadGroup()
	place(&g, 0, 0.0, 0.14)
	place(&g, 1, 0.15, 0.06)

	Resolve(&g, 0, Params{})
	Resolve(&g, 1, Params{})

	heavy := g.Corrected[0].Sub(g.Next[0]).Len()
	light := g.Corrected[1].Sub(g.Next[1]).Len()
	if !(heavy < light) {
		t.Errorf("heavy bead moved %f, light bead moved %f", heavy, light)
	}
}

func TestResolve_CoincidentBeadsStayFinite(t *testing.T) {
	g := spreadGroup()
	place(&g, 0, 0.3, 0.1)
	place(&g, 1, 0.3, 0.1)

	Resolve(&g, 0, Params{})
	Resolve(&g, 1, Params{})
	if !g.Corrected[0].IsValid() || !g.Corrected[1].IsValid() {
		t.Fatal("coincident beads produced NaN")
	}
}

func TestPredictCommit_VelocityRoundTrip(t *testing.T) {
	g := spreadGroup()
	p := Params{Dt: 0.01}
	g.Vel[0] = V(0, 1)

	Predict(&g, 0, p)
	if g.Prev[0] != g.Pos[0] {
		t.Fatal("predict did not record previous position")
	}
	want := g.Pos[0].Add(V(0, 0.01))
	if g.Next[0].Sub(want).Len() > eps {
		t.Fatalf("predicted %v, want %v", g.Next[0], want)
	}

	g.Corrected[0] = g.Next[0]
	Commit(&g, 0, p)
	if g.Vel[0].Sub(V(0, 1)).Len() > 1e-3 {
		t.Errorf("reconstructed velocity %v, want (0, 1)", g.Vel[0])
	}
}

func TestPredict_Gravity(t *testing.T) {
	g := spreadGroup()
	p := Params{Dt: 0.1, Gravity: V(0, -10)}
	Predict(&g, 2, p)
	if g.Vel[2].Sub(V(0, -1)).Len() > eps {
		t.Errorf("velocity after gravity %v, want (0, -1)", g.Vel[2])
	}
}

func TestSubstep_ReferenceScenario(t *testing.T) {
	groups := NewGroups(1, DefaultInitOptions())
	start := Clone(groups)
	p := Params{Dt: 1.0 / (60 * 100)}

	for i := 0; i < 100; i++ {
		Substep(groups, p)
	}

	g := groups[0]
	if g.WireError() > eps {
		t.Errorf("bead off wire by %g", g.WireError())
	}
	for i := 0; i < BeadCount; i++ {
		if d := g.Pos[i].Sub(start[0].Pos[i]).Len(); d > eps {
			t.Errorf("bead %d drifted %g without contact or force", i, d)
		}
		if g.Mass[i] != start[0].Mass[i] || g.Radius[i] != start[0].Radius[i] {
			t.Errorf("bead %d mass or radius changed", i)
		}
	}
}

func TestSubstep_OverlapRelaxes(t *testing.T) {
	groups := []Group{spreadGroup()}
	g := &groups[0]
	place(g, 0, 0.0, 0.12)
	place(g, 1, 0.12, 0.09)
	p := Params{Dt: 1.0 / 6000}

	contact := g.Radius[0] + g.Radius[1]
	sep := func() float32 { return ArcSeparation(g.Wire, g.Pos[0], g.Pos[1]) }

	separated := false
	for i := 0; i < 100; i++ {
		before := sep()
		if before >= contact {
			separated = true
			break
		}
		Substep(groups, p)
		if after := sep(); after < before-eps {
			t.Fatalf("substep %d: separation shrank from %f to %f", i, before, after)
		}
		if g.WireError() > eps {
			t.Fatalf("substep %d: off wire by %g", i, g.WireError())
		}
	}
	if !separated {
		t.Errorf("beads still overlap after 100 substeps: %f < %f", sep(), contact)
	}
}

func TestArcSeparation(t *testing.T) {
	w := Wire{Radius: 2}
	at := func(angle float64) Vec2 {
		return V(2*float32(math.Cos(angle)), 2*float32(math.Sin(angle)))
	}
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{"same point", 0.4, 0.4, 0},
		{"quarter", 0, math.Pi / 2, math.Pi},
		{"small angle", 0.1, 0.15, 0.1},
		{"opposite", 0, math.Pi, 2 * math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ArcSeparation(w, at(tt.a), at(tt.b))
			if math.Abs(float64(got)-tt.want) > 1e-4 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}

	// arc is longer than the chord, so beads touching along the chord still
	// overlap along the wire
	a, b := at(0), at(0.5)
	if !(ArcSeparation(w, a, b) > b.Sub(a).Len()) {
		t.Error("arc not longer than chord")
	}
	if got := ArcSeparation(Wire{}, V(0, 0), V(3, 4)); got != 5 {
		t.Errorf("degenerate wire separation = %f, want chord 5", got)
	}
}

func TestResolve_DetectsOverlapAlongWire(t *testing.T) {
	g := spreadGroup()
	// chord 2R·sin(0.125) ≈ 0.19948 and arc 0.2 straddle the radius sum
	place(&g, 0, 0.0, 0.09987)
	place(&g, 1, 0.25, 0.09987)
	chord := g.Next[1].Sub(g.Next[0]).Len()
	if chord < g.Radius[0]+g.Radius[1] {
		t.Fatalf("setup overlaps by chord: %f", chord)
	}

	Resolve(&g, 0, Params{})
	Resolve(&g, 1, Params{})
	if g.Corrected[0] == g.Next[0] || g.Corrected[1] == g.Next[1] {
		t.Error("overlap along the wire was not resolved")
	}
}
