// Package collector implements sinks for the scalar diagnostics that
// agents report after each completed update.
package collector

import (
	"sync"

	"github.com/gammazero/deque"
	"gonum.org/v1/gonum/stat"
)

// Collector accepts named scalar values
type Collector interface {
	Collect(name string, value float64)
}

// Null is a Collector which discards all values
type Null struct{}

// Collect implements the Collector interface
func (Null) Collect(string, float64) {}

// Window is a Collector which keeps the last N values of each metric.
// Window is safe for concurrent use.
type Window struct {
	size    int
	mu      sync.Mutex
	metrics map[string]*deque.Deque[float64]
}

// NewWindow returns a new Window keeping the last size values of each
// metric. If size < 1, a window of a single value is kept.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:    size,
		metrics: make(map[string]*deque.Deque[float64]),
	}
}

// Collect implements the Collector interface
func (w *Window) Collect(name string, value float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	q, ok := w.metrics[name]
	if !ok {
		q = &deque.Deque[float64]{}
		w.metrics[name] = q
	}

	q.PushBack(value)
	for q.Len() > w.size {
		q.PopFront()
	}
}

// Values returns the values of the named metric in the window, oldest
// first
func (w *Window) Values(name string) []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	q, ok := w.metrics[name]
	if !ok {
		return nil
	}

	values := make([]float64, q.Len())
	for i := range values {
		values[i] = q.At(i)
	}
	return values
}

// Mean returns the mean of the named metric over the window. If the
// metric has not been collected, ok is false.
func (w *Window) Mean(name string) (mean float64, ok bool) {
	values := w.Values(name)
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// Names returns the names of all collected metrics
func (w *Window) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.metrics))
	for name := range w.metrics {
		names = append(names, name)
	}
	return names
}

// Multi fans each value out to several Collectors
type Multi []Collector

// Collect implements the Collector interface
func (m Multi) Collect(name string, value float64) {
	for _, c := range m {
		c.Collect(name, value)
	}
}
