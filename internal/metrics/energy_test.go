package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/pbdsim/internal/pbd"
)

func movingGroup() []pbd.Group {
	groups := pbd.NewGroups(1, pbd.DefaultInitOptions())
	groups[0].Vel[0] = pbd.V(2, 0)
	return groups
}

func TestKineticEnergy(t *testing.T) {
	groups := movingGroup()
	expected := 0.5 * float64(groups[0].Mass[0]) * 4

	if got := KineticEnergy(groups); math.Abs(got-expected) > 1e-6 {
		t.Errorf("expected energy %f, got %f", expected, got)
	}
	if got := KineticEnergy(nil); got != 0 {
		t.Errorf("expected zero energy for no groups, got %f", got)
	}
}

func TestEnergyReset(t *testing.T) {
	m := NewEnergy()

	m.Observe(0, movingGroup())
	if m.Value() == 0 {
		t.Error("expected non-zero energy")
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestEnergyDrift(t *testing.T) {
	m := NewEnergyDrift()
	groups := movingGroup()

	m.Observe(0, groups)
	if m.Value() != 0 {
		t.Errorf("expected zero drift after one frame, got %f", m.Value())
	}

	groups[0].Vel[0] = pbd.V(1, 0)
	m.Observe(1, groups)
	if math.Abs(m.Value()-0.75) > 1e-6 {
		t.Errorf("expected drift 0.75, got %f", m.Value())
	}
}

func TestWireDriftAndStability(t *testing.T) {
	groups := pbd.NewGroups(2, pbd.DefaultInitOptions())
	drift := NewWireDrift()
	stab := NewStability(1e-3)

	drift.Observe(0, groups)
	stab.Observe(0, groups)
	if drift.Value() > 1e-6 {
		t.Errorf("initial beads off wire by %g", drift.Value())
	}

	groups[1].Pos[3] = groups[1].Pos[3].Scale(1.5)
	drift.Observe(1, groups)
	stab.Observe(1, groups)
	if math.Abs(drift.Value()-0.4) > 1e-5 {
		t.Errorf("expected drift 0.4, got %g", drift.Value())
	}
	if stab.Value() != 0.5 {
		t.Errorf("expected stability 0.5, got %f", stab.Value())
	}
}

func TestPenetration(t *testing.T) {
	groups := pbd.NewGroups(1, pbd.DefaultInitOptions())
	g := &groups[0]
	g.Pos[1] = g.Pos[0]

	p := NewPenetration()
	p.Observe(0, groups)
	want := float64(g.Radius[0] + g.Radius[1])
	if math.Abs(p.Value()-want) > 1e-6 {
		t.Errorf("expected depth %f, got %f", want, p.Value())
	}
	p.Reset()
	if p.Value() != 0 {
		t.Error("expected zero depth after reset")
	}
}
