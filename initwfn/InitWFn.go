// Package initwfn implements seeded weight initializers that satisfy
// Gorgonia's InitWFn and can be JSON serialized into configuration
// files.
package initwfn

import (
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Type describes different types of InitWFn that are available.
// Type is used to implement a basic type system of InitWFn's.
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Zeroes   Type = "Zeroes"
	Ones     Type = "Ones"
	Constant Type = "Constant"
	Uniform  Type = "Uniform"
	Gaussian Type = "Gaussian"
)

var registeredConfigs = map[string]reflect.Type{
	string(GlorotU):  reflect.TypeOf(GlorotUConfig{}),
	string(GlorotN):  reflect.TypeOf(GlorotNConfig{}),
	string(HeU):      reflect.TypeOf(HeUConfig{}),
	string(HeN):      reflect.TypeOf(HeNConfig{}),
	string(Zeroes):   reflect.TypeOf(ZeroesConfig{}),
	string(Ones):     reflect.TypeOf(OnesConfig{}),
	string(Constant): reflect.TypeOf(ConstantConfig{}),
	string(Uniform):  reflect.TypeOf(UniformConfig{}),
	string(Gaussian): reflect.TypeOf(GaussianConfig{}),
}

// InitWFn wraps a weight initializer configuration so that it can be
// JSON marshalled and unmarshalled. Each call to InitWFn returns a
// Gorgonia InitWFn drawing from its own seeded stream.
type InitWFn struct {
	Type
	Config
}

// newInitWFn returns a new InitWFn
func newInitWFn(c Config) (*InitWFn, error) {
	return &InitWFn{Type: c.Type(), Config: c}, nil
}

// InitWFn returns the Gorgonia InitWFn described by the configuration,
// seeded with seed.
func (i *InitWFn) InitWFn(seed uint64) G.InitWFn {
	return i.Config.Create(seed)
}

// String implements the fmt.Stringer interface
func (i *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", i.Type, i.Config)
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (i *InitWFn) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(data, "Type", "Config",
		registeredConfigs)
	if err != nil {
		return err
	}

	i.Type = typeName
	i.Config = config
	return nil
}

// lookup returns the value in m stored at key, comparing keys case
// insensitively on the first character only so that both "Type" and
// "type" are accepted.
func lookup(m map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	lower := string(key[0]+('a'-'A')) + key[1:]
	v, ok := m[lower]
	return v, ok
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField, valueJsonField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	rawType, ok := lookup(m, typeJsonField)
	if !ok {
		return nil, "", fmt.Errorf("unmarshalConfig: missing field %v",
			typeJsonField)
	}
	typeName, ok := rawType.(string)
	if !ok {
		return nil, "", fmt.Errorf("unmarshalConfig: field %v must be a "+
			"string", typeJsonField)
	}

	ty, found := customTypes[typeName]
	if !found {
		return nil, "", fmt.Errorf("unmarshalConfig: no such initializer "+
			"%v", typeName)
	}
	value := reflect.New(ty).Interface()

	if rawValue, ok := lookup(m, valueJsonField); ok && rawValue != nil {
		valueBytes, err := json.Marshal(rawValue)
		if err != nil {
			return nil, "", err
		}

		if err = json.Unmarshal(valueBytes, value); err != nil {
			return nil, "", err
		}
	}
	concreteValue := reflect.ValueOf(value).Elem().Interface().(Config)

	return concreteValue, Type(typeName), nil
}

// Config implements a weight initializer configuration and can be used
// to create the described Gorgonia InitWFn's.
type Config interface {
	// Create returns the Gorgonia InitWFn that the Config describes
	Create(seed uint64) G.InitWFn

	// Type returns the type of Gorgonia InitWFn that is returned
	Type() Type
}

// fans returns the fan in and fan out of a weight shape
func fans(s ...int) (float64, float64) {
	switch len(s) {
	case 0:
		return 1, 1
	case 1:
		return float64(s[0]), float64(s[0])
	}
	receptive := 1
	for _, d := range s[2:] {
		receptive *= d
	}
	return float64(s[0] * receptive), float64(s[1] * receptive)
}

// fromRander returns a Gorgonia InitWFn which fills float64 weights
// with samples from the distribution built by newDist. The seed fixes
// the random stream of the returned InitWFn.
func fromRander(seed uint64,
	newDist func(src rand.Source, fanIn, fanOut float64) distuv.Rander) G.InitWFn {
	src := rand.NewSource(seed)

	return func(dt tensor.Dtype, s ...int) interface{} {
		if dt != tensor.Float64 {
			panic(fmt.Sprintf("initwfn: dtype %v not supported", dt))
		}

		size := tensor.Shape(s).TotalSize()
		fanIn, fanOut := fans(s...)
		dist := newDist(src, fanIn, fanOut)

		weights := make([]float64, size)
		for i := range weights {
			weights[i] = dist.Rand()
		}
		return weights
	}
}

// filled returns a Gorgonia InitWFn which sets all float64 weights to
// value
func filled(value float64) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		if dt != tensor.Float64 {
			panic(fmt.Sprintf("initwfn: dtype %v not supported", dt))
		}

		weights := make([]float64, tensor.Shape(s).TotalSize())
		for i := range weights {
			weights[i] = value
		}
		return weights
	}
}
