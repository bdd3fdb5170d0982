// Package surface holds the post-processing transforms applied to a terrain
// mesh: Gaussian smoothing of the elevation channel, edge-collapse
// simplification and vertex compaction. Each transform returns a new mesh.
package surface

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxError is the simplification error ceiling in metres. Terrain
// tolerates far more deviation than survey noise.
const DefaultMaxError = 5.0

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid post-process parameters")

// Params controls smoothing and simplification.
type Params struct {
	CompressionFactor float64 `yaml:"compression_factor"` // 0..1, 1 = no reduction requested
	BlurRadius        float64 `yaml:"blur_radius"`        // metres
	BlurSigma         float64 `yaml:"blur_sigma"`
	BlurPasses        int     `yaml:"blur_passes"`
	MaxError          float64 `yaml:"max_error"` // metres
}

// DefaultParams returns the defaults used by the terrain generator.
func DefaultParams() Params {
	return Params{
		CompressionFactor: 0.5,
		BlurRadius:        1.0,
		BlurSigma:         0.5,
		BlurPasses:        2,
		MaxError:          DefaultMaxError,
	}
}

// RadiusPixels converts the blur radius to grid cells: ceil(radius / resolution).
func (p Params) RadiusPixels(resolution float64) int {
	if resolution <= 0 || p.BlurRadius <= 0 {
		return 0
	}
	return int(math.Ceil(p.BlurRadius / resolution))
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.CompressionFactor < 0 || p.CompressionFactor > 1 || math.IsNaN(p.CompressionFactor):
		return fmt.Errorf("%w: compression_factor %v not in [0, 1]", ErrInvalidParams, p.CompressionFactor)
	case p.BlurRadius < 0:
		return fmt.Errorf("%w: blur_radius %v is negative", ErrInvalidParams, p.BlurRadius)
	case p.BlurPasses < 0:
		return fmt.Errorf("%w: blur_passes %d is negative", ErrInvalidParams, p.BlurPasses)
	case p.BlurPasses > 0 && p.BlurRadius > 0 && p.BlurSigma <= 0:
		return fmt.Errorf("%w: blur_sigma must be positive", ErrInvalidParams)
	case p.MaxError < 0:
		return fmt.Errorf("%w: max_error %v is negative", ErrInvalidParams, p.MaxError)
	}
	return nil
}
