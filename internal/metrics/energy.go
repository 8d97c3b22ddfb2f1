package metrics

import (
	"math"

	"github.com/san-kum/pbdsim/internal/pbd"
)

// KineticEnergy returns the summed bead kinetic energy of every group.
func KineticEnergy(groups []pbd.Group) float64 {
	var total float64
	for gi := range groups {
		g := &groups[gi]
		for i := 0; i < pbd.BeadCount; i++ {
			v := g.Vel[i]
			total += 0.5 * float64(g.Mass[i]) * float64(v.Dot(v))
		}
	}
	return total
}

type Energy struct {
	name        string
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy {
	return &Energy{name: "kinetic_energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(frame int, groups []pbd.Group) {
	e.totalEnergy += KineticEnergy(groups)
	e.samples++
}

// Value is the mean kinetic energy over the observed frames.
func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift tracks the largest change of total kinetic energy relative to
// the first observed frame. When the first frame is at rest the drift is
// absolute.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(frame int, groups []pbd.Group) {
	energy := KineticEnergy(groups)

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.samples++

	drift := math.Abs(energy - e.initialEnergy)
	if e.initialEnergy != 0 {
		drift /= math.Abs(e.initialEnergy)
	}
	e.maxDrift = math.Max(e.maxDrift, drift)
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
