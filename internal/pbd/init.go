package pbd

import (
	"fmt"
	"math"
	"math/rand"
)

// Reference layout of a freshly seeded group.
const (
	DefaultSeed        = 100
	DefaultWireRadius  = 0.8
	DefaultFirstRadius = 0.1
	DefaultMinRadius   = 0.05
	DefaultMaxRadius   = 0.15
)

// InitOptions describe how groups are seeded.
type InitOptions struct {
	Seed        int64
	WireCenter  Vec2
	WireRadius  float32
	FirstRadius float32
	MinRadius   float32
	MaxRadius   float32
}

func DefaultInitOptions() InitOptions {
	return InitOptions{
		Seed:        DefaultSeed,
		WireRadius:  DefaultWireRadius,
		FirstRadius: DefaultFirstRadius,
		MinRadius:   DefaultMinRadius,
		MaxRadius:   DefaultMaxRadius,
	}
}

func (o InitOptions) Validate() error {
	if !(o.WireRadius > 0) {
		return fmt.Errorf("%w: wire radius %g", ErrInvalidOptions, o.WireRadius)
	}
	if !(o.FirstRadius > 0) {
		return fmt.Errorf("%w: first bead radius %g", ErrInvalidOptions, o.FirstRadius)
	}
	if !(o.MinRadius > 0) || o.MaxRadius < o.MinRadius {
		return fmt.Errorf("%w: bead radius range [%g, %g)", ErrInvalidOptions, o.MinRadius, o.MaxRadius)
	}
	if !o.WireCenter.IsValid() {
		return fmt.Errorf("%w: wire center %v", ErrInvalidOptions, o.WireCenter)
	}
	return nil
}

// NewGroups allocates n groups and seeds them with Initialize.
func NewGroups(n int, opts InitOptions) []Group {
	if n <= 0 {
		return nil
	}
	groups := make([]Group, n)
	Initialize(groups, opts)
	return groups
}

// Initialize seeds every group in place. One generator is shared by all
// groups, so group k's radii depend on how many groups precede it.
//
// Beads step by π/BeadCount around the wire starting at angle zero, which
// covers just under half the circle.
func Initialize(groups []Group, opts InitOptions) {
	rng := rand.New(rand.NewSource(opts.Seed))
	span := float64(opts.MaxRadius - opts.MinRadius)
	step := float32(math.Pi) / BeadCount

	for i := range groups {
		g := &groups[i]
		*g = Group{}
		g.Wire = Wire{Center: opts.WireCenter, Radius: opts.WireRadius}

		r := opts.FirstRadius
		var rot float32
		for j := 0; j < BeadCount; j++ {
			g.Radius[j] = r
			g.Mass[j] = float32(math.Pi) * r * r

			sin, cos := math.Sincos(float64(rot))
			p := Vec2{
				X: g.Wire.Center.X + g.Wire.Radius*float32(cos),
				Y: g.Wire.Center.Y + g.Wire.Radius*float32(sin),
			}
			g.Pos[j] = p
			g.Prev[j] = p
			g.Next[j] = p
			g.Corrected[j] = p

			rot += step
			r = opts.MinRadius + float32(rng.Float64()*span)
		}
	}
}
