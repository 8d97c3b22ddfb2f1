package compute

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/san-kum/pbdsim/internal/pbd"
)

//go:embed kernels.cl
var kernelSource string

// KernelSource returns the OpenCL C source of the substep kernels. A
// non-empty path replaces the embedded copy.
func KernelSource(path string) (string, error) {
	if path == "" {
		return kernelSource, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading kernel source: %w", err)
	}
	return string(data), nil
}

// BuildOptions returns the compiler defines that bake p into the kernels.
func BuildOptions(p pbd.Params) string {
	return fmt.Sprintf("-DN_BEADS=%d -DPBD_DT=%.9ef -DPBD_GRAVITY_X=%.9ef -DPBD_GRAVITY_Y=%.9ef",
		pbd.BeadCount, p.Dt, p.Gravity.X, p.Gravity.Y)
}
