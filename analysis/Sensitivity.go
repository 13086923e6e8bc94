package analysis

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/qrclearn/utils/floatutils"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat"
)

// Sentinels replacing the outcome of hyperparameter settings whose
// performance is NaN, so that diverged settings plot off the chart
const (
	NaNValue  = 100000.0
	NaNStderr = 0.000001
)

// stderrBounds bounds the standard errors drawn as confidence
// intervals
var stderrBounds = r1.Interval{Min: 0, Max: 1}

// ErrNotImplemented is returned for reducers and metrics which do not
// exist
var ErrNotImplemented = errors.New("not implemented")

// Reducer determines how the results for each value of a swept
// hyperparameter are chosen
type Reducer string

const (
	// Best chooses the best setting of all other hyperparameters
	// separately for each value of the swept hyperparameter
	Best Reducer = "best"

	// Slice fixes all other hyperparameters at their values in the
	// overall best setting
	Slice Reducer = "slice"
)

// Metric summarizes a learning curve by a single number
type Metric string

const (
	// End is the mean of the final 10% of the curve
	End Metric = "end"

	// AUC is the mean of the whole curve
	AUC Metric = "auc"
)

// Prefer determines whether smaller or larger performance is better
type Prefer string

const (
	PreferSmall Prefer = "small"
	PreferLarge Prefer = "large"
)

// Options configures SensitivityData. The zero value selects the best
// reducer over the whole curve with the End metric, preferring small
// values.
type Options struct {
	// StepsPercent is the fraction of the final steps of each curve
	// used to choose the best setting
	StepsPercent float64
	Reducer      Reducer
	BestBy       Metric
	Prefer       Prefer

	// OverStream, if not nil, chooses the best settings from these
	// results, and reports the matching settings from the analysed
	// results
	OverStream []Result
}

func (o Options) withDefaults() Options {
	if o.StepsPercent == 0 {
		o.StepsPercent = 1
	}
	if o.Reducer == "" {
		o.Reducer = Best
	}
	if o.BestBy == "" {
		o.BestBy = End
	}
	if o.Prefer == "" {
		o.Prefer = PreferSmall
	}
	return o
}

// SensitivityData returns the sensitivity of the performance in
// results to the hyperparameter param. For each value x[i] of param,
// y[i] is the performance of the chosen setting and e[i] is its
// standard error, both summarized by the BestBy metric.
//
// Settings with NaN performance have y[i] = NaNValue and
// e[i] = NaNStderr.
func SensitivityData(results []Result, param string, o Options) (x, y,
	e []float64, err error) {
	o = o.withDefaults()
	metric, err := metricFunc(o.BestBy)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "sensitivityData")
	}

	stream := results
	if o.OverStream != nil {
		stream = o.OverStream
	}

	var chosen map[float64]Result
	switch o.Reducer {
	case Best:
		split, err := splitOverParameter(stream, param)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "sensitivityData")
		}
		chosen = make(map[float64]Result, len(split))
		for k, group := range split {
			chosen[k] = getBest(group, o.StepsPercent, o.Prefer)
		}

	case Slice:
		if len(stream) == 0 {
			return nil, nil, nil, errors.New("sensitivityData: no results")
		}
		best := getBest(stream, o.StepsPercent, o.Prefer)
		chosen, err = sliceOverParameter(stream, best, param)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "sensitivityData")
		}

	default:
		return nil, nil, nil, errors.Wrapf(ErrNotImplemented,
			"sensitivityData: reducer %v", o.Reducer)
	}

	x = sortedKeys(chosen)
	y = make([]float64, len(x))
	e = make([]float64, len(x))
	for i, k := range x {
		r := chosen[k]
		if o.OverStream != nil {
			if r, err = find(results, r); err != nil {
				return nil, nil, nil, errors.Wrap(err, "sensitivityData")
			}
		}

		y[i] = metric(r.Mean)
		e[i] = metric(r.Stderr)
		if math.IsNaN(y[i]) {
			y[i] = NaNValue
			e[i] = NaNStderr
		}
	}
	return x, y, e, nil
}

// metricFunc returns the function computing metric m of a curve
func metricFunc(m Metric) (func([]float64) float64, error) {
	switch m {
	case End:
		return func(curve []float64) float64 {
			return stat.Mean(tail(curve, 0.1), nil)
		}, nil
	case AUC:
		return func(curve []float64) float64 {
			return stat.Mean(curve, nil)
		}, nil
	}
	return nil, errors.Wrapf(ErrNotImplemented, "bestBy %v", m)
}

// tail returns the final fraction percent of curve, or all of curve if
// that fraction has no elements
func tail(curve []float64, percent float64) []float64 {
	n := int(float64(len(curve)) * percent)
	if n == 0 {
		return curve
	}
	return curve[len(curve)-n:]
}

// getBest returns the result with the best mean performance over the
// final fraction percent of its curve. Results with NaN performance
// are chosen only if every result has NaN performance.
func getBest(results []Result, percent float64, prefer Prefer) Result {
	best := results[0]
	bestScore := math.NaN()
	for _, r := range results {
		score := stat.Mean(tail(r.Mean, percent), nil)
		if math.IsNaN(score) {
			continue
		}

		better := score < bestScore
		if prefer == PreferLarge {
			better = score > bestScore
		}
		if math.IsNaN(bestScore) || better {
			best, bestScore = r, score
		}
	}
	return best
}

// ConfidenceInterval returns mean ± stderr, with stderr clipped to
// [0, 1]
func ConfidenceInterval(mean, stderr []float64) (low, high []float64) {
	low = make([]float64, len(mean))
	high = make([]float64, len(mean))
	for i := range mean {
		s := floatutils.ClipInterval(stderr[i], stderrBounds)
		low[i] = mean[i] - s
		high[i] = mean[i] + s
	}
	return low, high
}
