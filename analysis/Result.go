// Package analysis computes hyperparameter sensitivity data from the
// learning curves of completed experiments and renders sensitivity
// curves as HTML charts
package analysis

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/samuelfneumann/qrclearn/experiment/tracker"
	"gonum.org/v1/gonum/stat"
)

// Result is the learning curve of a single hyperparameter setting,
// summarized over independent runs
type Result struct {
	Params map[string]float64
	Mean   []float64
	Stderr []float64 // Standard error of Mean at each point
}

// NewResult summarizes the learning curves of runs of the
// hyperparameter setting params. Runs are truncated to the length of
// the shortest run.
func NewResult(params map[string]float64, runs [][]float64) (Result, error) {
	if len(runs) == 0 {
		return Result{}, errors.New("newResult: no runs")
	}

	length := len(runs[0])
	for _, run := range runs[1:] {
		if len(run) < length {
			length = len(run)
		}
	}
	if length == 0 {
		return Result{}, errors.New("newResult: empty run")
	}

	r := Result{
		Params: params,
		Mean:   make([]float64, length),
		Stderr: make([]float64, length),
	}

	column := make([]float64, len(runs))
	for i := 0; i < length; i++ {
		for j, run := range runs {
			column[j] = run[i]
		}

		if len(runs) == 1 {
			r.Mean[i] = column[0]
			continue
		}
		mean, std := stat.MeanStdDev(column, nil)
		r.Mean[i] = mean
		r.Stderr[i] = std / math.Sqrt(float64(len(runs)))
	}
	return r, nil
}

// LoadResult loads the data saved by a tracker.Tracker for each run of
// the hyperparameter setting params and summarizes it
func LoadResult(params map[string]float64, filenames ...string) (Result,
	error) {
	runs := make([][]float64, len(filenames))
	for i, filename := range filenames {
		data, err := tracker.LoadData(filename)
		if err != nil {
			return Result{}, errors.Wrap(err, "loadResult")
		}
		runs[i] = data
	}
	return NewResult(params, runs)
}

// param returns the value of the hyperparameter name of the Result
func (r Result) param(name string) (float64, error) {
	v, ok := r.Params[name]
	if !ok {
		return 0, errors.Errorf("result has no hyperparameter %v", name)
	}
	return v, nil
}

// sameExcept returns whether r and other have the same
// hyperparameters, ignoring the hyperparameter name
func (r Result) sameExcept(other Result, name string) bool {
	if len(r.Params) != len(other.Params) {
		return false
	}
	for k, v := range r.Params {
		if k == name {
			continue
		}
		if w, ok := other.Params[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// splitOverParameter groups results by their value of the
// hyperparameter name
func splitOverParameter(results []Result, name string) (
	map[float64][]Result, error) {
	split := make(map[float64][]Result)
	for _, r := range results {
		v, err := r.param(name)
		if err != nil {
			return nil, err
		}
		split[v] = append(split[v], r)
	}
	return split, nil
}

// sliceOverParameter returns, for each value of the hyperparameter
// name, the result whose other hyperparameters match those of best
func sliceOverParameter(results []Result, best Result, name string) (
	map[float64]Result, error) {
	slice := make(map[float64]Result)
	for _, r := range results {
		if !r.sameExcept(best, name) {
			continue
		}
		v, err := r.param(name)
		if err != nil {
			return nil, err
		}
		slice[v] = r
	}
	return slice, nil
}

// find returns the result in results with the same hyperparameters as
// target
func find(results []Result, target Result) (Result, error) {
	for _, r := range results {
		if len(r.Params) == len(target.Params) && r.sameExcept(target, "") {
			return r, nil
		}
	}
	return Result{}, errors.Errorf("no result with hyperparameters %v",
		target.Params)
}

// sortedKeys returns the keys of m in increasing order
func sortedKeys[V any](m map[float64]V) []float64 {
	keys := make([]float64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}
