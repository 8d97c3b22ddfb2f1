package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pbdsim/internal/compute"
	"github.com/san-kum/pbdsim/internal/pbd"
	"github.com/san-kum/pbdsim/internal/sim"
)

// recorder keeps a copy of every observed frame.
type recorder struct {
	frames []int
	states [][]pbd.Group
}

func (r *recorder) Observe(frame int, groups []pbd.Group) error {
	r.frames = append(r.frames, frame)
	r.states = append(r.states, pbd.Clone(groups))
	return nil
}

func (r *recorder) last() []pbd.Group { return r.states[len(r.states)-1] }

func run(cfg sim.Config, groups []pbd.Group) *recorder {
	e, err := sim.New(cfg, compute.NewCPUBackendWorkers(4), groups)
	Expect(err).NotTo(HaveOccurred())
	defer e.Close()

	rec := &recorder{}
	_, err = e.Run(context.Background(), rec)
	Expect(err).NotTo(HaveOccurred())
	return rec
}

func crowdedGroups(n int) []pbd.Group {
	opts := pbd.DefaultInitOptions()
	opts.MinRadius, opts.MaxRadius = 0.15, 0.25
	return pbd.NewGroups(n, opts)
}

func shortConfig(mode sim.Mode) sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Frames = 4
	cfg.Substeps = 25
	cfg.Mode = mode
	return cfg
}

var _ = Describe("Engine", func() {
	Describe("the reference scenario", func() {
		It("keeps a single group on its wire after one frame of 100 substeps", func() {
			groups := pbd.NewGroups(1, pbd.DefaultInitOptions())
			cfg := sim.DefaultConfig()
			cfg.Frames = 1

			rec := run(cfg, groups)
			Expect(rec.frames).To(Equal([]int{0, 1}))

			final := rec.last()[0]
			for i := 0; i < pbd.BeadCount; i++ {
				dist := final.Pos[i].Sub(final.Wire.Center).Len()
				Expect(float64(dist)).To(BeNumerically("~", 0.8, 1e-5))
				moved := final.Pos[i].Sub(groups[0].Pos[i]).Len()
				Expect(float64(moved)).To(BeNumerically("<", 1e-4))
			}
		})
	})

	Describe("invariants", func() {
		var rec *recorder
		var initial []pbd.Group

		BeforeEach(func() {
			initial = crowdedGroups(20)
			rec = run(shortConfig(sim.FullTrace), initial)
		})

		It("observes the initial state and every frame", func() {
			Expect(rec.frames).To(Equal([]int{0, 1, 2, 3, 4}))
			Expect(rec.states[0]).To(Equal(initial))
		})

		It("keeps every bead on its wire", func() {
			for _, state := range rec.states {
				for gi := range state {
					Expect(float64(state[gi].WireError())).To(BeNumerically("<", 1e-5))
				}
			}
		})

		It("never changes mass or radius", func() {
			for _, state := range rec.states {
				for gi := range state {
					Expect(state[gi].Mass).To(Equal(initial[gi].Mass))
					Expect(state[gi].Radius).To(Equal(initial[gi].Radius))
					for i := 0; i < pbd.BeadCount; i++ {
						Expect(state[gi].Mass[i]).To(BeNumerically(">", 0))
					}
				}
			}
		})

		It("keeps every value finite", func() {
			for _, state := range rec.states {
				for gi := range state {
					Expect(state[gi].IsValid()).To(BeTrue())
				}
			}
		})
	})

	It("evolves each group independently of the others", func() {
		pair := crowdedGroups(2)
		together := run(shortConfig(sim.FullTrace), pair).last()

		for gi := range pair {
			alone := run(shortConfig(sim.FullTrace), pair[gi:gi+1]).last()
			Expect(alone[0]).To(Equal(together[gi]))
		}
	})

	It("is deterministic for a fixed seed", func() {
		a := run(shortConfig(sim.FullTrace), crowdedGroups(32)).last()
		b := run(shortConfig(sim.FullTrace), crowdedGroups(32)).last()
		Expect(a).To(Equal(b))
	})

	It("produces the same final state in ends-only and full-trace mode", func() {
		full := run(shortConfig(sim.FullTrace), crowdedGroups(24))
		ends := run(shortConfig(sim.EndsOnly), crowdedGroups(24))

		Expect(ends.frames).To(Equal([]int{0, 1}))
		Expect(ends.states[0]).To(Equal(full.states[0]))
		Expect(ends.last()).To(Equal(full.last()))
	})

	It("pushes overlapping beads apart", func() {
		groups := pbd.NewGroups(1, pbd.DefaultInitOptions())
		g := &groups[0]
		angle := g.Pos[0].Angle() + 0.05
		g.Pos[1] = pbd.V(0.8*float32(math.Cos(angle)), 0.8*float32(math.Sin(angle)))
		g.Prev[1], g.Next[1], g.Corrected[1] = g.Pos[1], g.Pos[1], g.Pos[1]
		overlap := func(g pbd.Group) float32 {
			return g.Radius[0] + g.Radius[1] - pbd.ArcSeparation(g.Wire, g.Pos[0], g.Pos[1])
		}
		Expect(overlap(*g)).To(BeNumerically(">", 0))

		cfg := sim.DefaultConfig()
		cfg.Frames = 1
		cfg.Substeps = 1
		final := run(cfg, groups).last()[0]
		Expect(overlap(final)).To(BeNumerically("<", overlap(*g)))
	})

	It("reports timing for every dispatch", func() {
		e, err := sim.New(shortConfig(sim.EndsOnly), compute.NewCPUBackend(), crowdedGroups(3))
		Expect(err).NotTo(HaveOccurred())
		defer e.Close()

		res, err := e.Run(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.FramesRun).To(Equal(4))
		Expect(res.SubstepsRun).To(Equal(100))
		Expect(res.ObservedFrames).To(Equal(2))
		Expect(res.Timing.Phases).To(HaveLen(len(pbd.Phases)))
		Expect(res.Timing.Mean).To(Equal(res.Timing.Total / 3))
		Expect(res.Backend).To(Equal("cpu"))
	})
})
