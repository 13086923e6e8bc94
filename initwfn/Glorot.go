package initwfn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// GlorotUConfig implements a configuration of the Glorot Uniform
// initialization algorithm.
type GlorotUConfig struct {
	Gain float64
}

// NewGlorotU returns a new Glorot Uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	config := GlorotUConfig{
		Gain: gain,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GlorotUConfig) Type() Type {
	return GlorotU
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn. Weights are drawn from U(-l, l) with
// l = gain * sqrt(6 / (fanIn + fanOut)).
func (g GlorotUConfig) Create(seed uint64) G.InitWFn {
	return fromRander(seed, func(src rand.Source, in, out float64) distuv.Rander {
		limit := g.Gain * math.Sqrt(6.0/(in+out))
		return distuv.Uniform{Min: -limit, Max: limit, Src: src}
	})
}

// GlorotNConfig implements a configuration of the Glorot Normal
// initialization algorithm.
type GlorotNConfig struct {
	Gain float64
}

// NewGlorotN returns a new Glorot Normal weight initializer.
func NewGlorotN(gain float64) (*InitWFn, error) {
	config := GlorotNConfig{
		Gain: gain,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by the
// configuration.
func (g GlorotNConfig) Type() Type {
	return GlorotN
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (g GlorotNConfig) Create(seed uint64) G.InitWFn {
	return fromRander(seed, func(src rand.Source, in, out float64) distuv.Rander {
		std := g.Gain * math.Sqrt(2.0/(in+out))
		return distuv.Normal{Mu: 0, Sigma: std, Src: src}
	})
}
