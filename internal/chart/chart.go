// Package chart renders karma history as a PNG line chart.
package chart

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"

	"telegram-karma-bot/internal/model"
)

const (
	Width  = 640
	Height = 480

	// maxTicks bounds the number of labelled points on the x axis.
	maxTicks   = 6
	tickFormat = "02/01 15:04"
)

// ErrInsufficientData is returned when fewer than two samples are available.
var ErrInsufficientData = errors.New("not enough samples to draw a chart")

// Render draws samples as a karma line and writes a PNG to w. Points are
// spaced by their position in the history and labelled with their time, so
// samples recorded within the same second still get distinct positions.
func Render(samples []model.Sample, w io.Writer) error {
	if len(samples) < 2 {
		return ErrInsufficientData
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	low, high := samples[0].Karma, samples[0].Karma
	for i, s := range samples {
		xs[i] = float64(i)
		ys[i] = float64(s.Karma)
		low = min(low, s.Karma)
		high = max(high, s.Karma)
	}

	yAxis := chart.YAxis{Name: "karma"}
	if low == high {
		yAxis.Range = &chart.ContinuousRange{Min: float64(low - 1), Max: float64(high + 1)}
	}

	graph := chart.Chart{
		Width:  Width,
		Height: Height,
		XAxis: chart.XAxis{
			Name:  "time",
			Ticks: timeTicks(samples),
		},
		YAxis: yAxis,
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "karma",
				XValues: xs,
				YValues: ys,
			},
		},
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// timeTicks labels at most maxTicks evenly spread sample positions. The first
// and the last sample are always labelled; a regular tick too close to the
// last one is skipped.
func timeTicks(samples []model.Sample) []chart.Tick {
	last := len(samples) - 1
	step := max(1, (last+maxTicks-2)/(maxTicks-1))

	var ticks []chart.Tick
	for i := 0; i < last && last-i >= (step+1)/2; i += step {
		ticks = append(ticks, tick(samples, i))
	}
	return append(ticks, tick(samples, last))
}

func tick(samples []model.Sample, i int) chart.Tick {
	return chart.Tick{
		Value: float64(i),
		Label: samples[i].Time().Format(tickFormat),
	}
}
