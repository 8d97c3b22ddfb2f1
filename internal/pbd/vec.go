package pbd

import "math"

// Vec2 is a float32 2D vector laid out like an OpenCL float2.
type Vec2 struct {
	X, Y float32
}

func V(x, y float32) Vec2 { return Vec2{X: x, Y: y} }

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Y + b.Y} }

func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }

func (a Vec2) Scale(s float32) Vec2 { return Vec2{a.X * s, a.Y * s} }

func (a Vec2) Dot(b Vec2) float32 { return a.X*b.X + a.Y*b.Y }

func (a Vec2) Len() float32 {
	return float32(math.Sqrt(float64(a.X*a.X + a.Y*a.Y)))
}

// Normalize returns the unit vector of a. The zero vector stays zero.
func (a Vec2) Normalize() Vec2 {
	l := a.Len()
	if l == 0 {
		return Vec2{}
	}
	return a.Scale(1 / l)
}

func (a Vec2) IsZero() bool { return a.X == 0 && a.Y == 0 }

// IsValid reports whether both components are finite.
func (a Vec2) IsValid() bool {
	for _, v := range [2]float32{a.X, a.Y} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Angle returns the polar angle of a in radians.
func (a Vec2) Angle() float64 {
	return math.Atan2(float64(a.Y), float64(a.X))
}
