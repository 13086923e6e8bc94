package analysis

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
)

// Curve is a sensitivity curve: performance Y with standard errors E
// at each value X of a hyperparameter
type Curve struct {
	Label  string
	X      []float64
	Y      []float64
	E      []float64 // Optional; no confidence band is drawn if nil
	Dashed bool
	Color  string // Optional CSS color of the band, e.g. "rgba(0,0,255,0.4)"
}

// NewCurve computes the sensitivity Curve of results to param
func NewCurve(label string, results []Result, param string,
	o Options) (Curve, error) {
	x, y, e, err := SensitivityData(results, param, o)
	if err != nil {
		return Curve{}, errors.Wrap(err, "newCurve")
	}
	return Curve{Label: label, X: x, Y: y, E: e}, nil
}

// RenderSensitivity renders the sensitivity curves, which must share
// the same hyperparameter values, as an HTML page written to w
func RenderSensitivity(w io.Writer, title, param string,
	curves ...Curve) error {
	if len(curves) == 0 {
		return errors.New("renderSensitivity: no curves")
	}

	xs := curves[0].X
	for _, c := range curves {
		if len(c.X) != len(xs) || len(c.Y) != len(xs) {
			return errors.Errorf("renderSensitivity: curve %v does not "+
				"match the hyperparameter values %v", c.Label, xs)
		}
		if c.E != nil && len(c.E) != len(xs) {
			return errors.Errorf("renderSensitivity: curve %v has %v "+
				"standard errors for %v points", c.Label, len(c.E), len(xs))
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
		charts.WithXAxisOpts(opts.XAxis{Name: param}),
	)

	labels := make([]string, len(xs))
	for i, x := range xs {
		labels[i] = fmt.Sprintf("%g", x)
	}
	line.SetXAxis(labels)

	for _, c := range curves {
		style := opts.LineStyle{Width: 2}
		if c.Dashed {
			style.Type = "dotted"
		}
		line.AddSeries(c.Label, lineData(c.Y),
			charts.WithLineStyleOpts(style))

		if c.E == nil {
			continue
		}

		// The band is the lower bound stacked with the interval width
		low, high := ConfidenceInterval(c.Y, c.E)
		width := make([]float64, len(low))
		for i := range low {
			width[i] = high[i] - low[i]
		}

		color := c.Color
		if color == "" {
			color = "rgba(128,128,128,0.4)"
		}
		stack := c.Label + " ci"
		line.AddSeries(stack, lineData(low),
			charts.WithLineChartOpts(opts.LineChart{Stack: stack}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: "transparent"}),
		)
		line.AddSeries(stack, lineData(width),
			charts.WithLineChartOpts(opts.LineChart{Stack: stack}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: "transparent"}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Color: color}),
		)
	}

	page := components.NewPage()
	page.AddCharts(line)
	if err := page.Render(w); err != nil {
		return errors.Wrap(err, "renderSensitivity")
	}
	return nil
}

func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, len(values))
	for i, v := range values {
		items[i] = opts.LineData{Value: v}
	}
	return items
}
