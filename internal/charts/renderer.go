package charts

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/richxcame/ridedemand/internal/analytics"
	"github.com/richxcame/ridedemand/internal/forecast"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	barColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	lineColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	nanColor  = color.RGBA{R: 230, G: 230, B: 230, A: 255}
)

const heatmapPalette = "YlGnBu"

// Renderer draws chart panels as PNG images
type Renderer struct {
	width  vg.Length
	height vg.Length
}

// NewRenderer creates a renderer producing images of the given pixel size
func NewRenderer(widthPx, heightPx int) *Renderer {
	return &Renderer{width: pixels(widthPx), height: pixels(heightPx)}
}

// PNG canvases are rasterised at 96 dpi
func pixels(px int) vg.Length {
	return vg.Length(px) * vg.Inch / 96
}

// TimeSeries draws demand over time as a line
func (r *Renderer) TimeSeries(points []analytics.TimePoint) ([]byte, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points")
	}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.Timestamp.Unix())
		xys[i].Y = pt.Count
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Width = vg.Points(1)
	line.LineStyle.Color = lineColor

	p := plot.New()
	p.Title.Text = "Ride Demand Trend"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Rides"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Add(plotter.NewGrid(), line)

	return encode(p, r.width, r.height)
}

// Hourly draws average demand by hour
func (r *Renderer) Hourly(buckets []analytics.Bucket) ([]byte, error) {
	return r.bars("Average Ride Demand by Hour", "Hour", buckets)
}

// Weekly draws average demand by day of week
func (r *Renderer) Weekly(buckets []analytics.Bucket) ([]byte, error) {
	return r.bars("Average Ride Demand by Day", "Day of week", buckets)
}

// Undefined buckets are drawn as empty bars
func (r *Renderer) bars(title, xLabel string, buckets []analytics.Bucket) ([]byte, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("no buckets")
	}

	values := make(plotter.Values, len(buckets))
	labels := make([]string, len(buckets))
	for i, b := range buckets {
		if b.Mean != nil {
			values[i] = *b.Mean
		}
		labels[i] = b.Label
	}

	chart, err := plotter.NewBarChart(values, r.barWidth(r.width, len(buckets)))
	if err != nil {
		return nil, err
	}
	chart.Color = barColor
	chart.LineStyle.Width = 0

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Average rides"
	p.Add(chart)
	p.NominalX(labels...)

	return encode(p, r.width, r.height)
}

// Importance draws ranked feature importances as horizontal bars, highest on top
func (r *Renderer) Importance(rows []forecast.FeatureImportance) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no features")
	}

	n := len(rows)
	values := make(plotter.Values, n)
	names := make([]string, n)
	for i, row := range rows {
		values[n-1-i] = row.Weight
		names[n-1-i] = row.Name
	}

	chart, err := plotter.NewBarChart(values, r.barWidth(r.height, n))
	if err != nil {
		return nil, err
	}
	chart.Horizontal = true
	chart.Color = barColor
	chart.LineStyle.Width = 0

	p := plot.New()
	p.Title.Text = "Feature Importance"
	p.X.Label.Text = "Importance"
	p.X.Min = 0
	p.Add(chart)
	p.NominalY(names...)

	return encode(p, r.width, r.height)
}

// Heatmap draws mean demand by day (rows, Monday on top) and hour (columns)
func (r *Renderer) Heatmap(hm *analytics.Heatmap) ([]byte, error) {
	if hm == nil {
		return nil, fmt.Errorf("no heatmap")
	}

	pal, err := brewer.GetPalette(brewer.TypeSequential, heatmapPalette, 9)
	if err != nil {
		return nil, err
	}

	h := plotter.NewHeatMap(heatGrid{hm: hm}, pal)
	h.NaN = nanColor
	h.Min, h.Max = hm.Min, hm.Max
	if h.Max <= h.Min {
		h.Max = h.Min + 1
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Demand Heatmap (%.0f to %.0f rides)", hm.Min, hm.Max)
	p.X.Label.Text = "Hour"
	p.Y.Label.Text = "Day of week"
	p.Add(h)
	p.X.Tick.Marker = hourTicks()
	p.Y.Tick.Marker = dayTicks(hm.Days)

	return encode(p, r.width, r.height)
}

func (r *Renderer) barWidth(span vg.Length, n int) vg.Length {
	return span * 0.6 / vg.Length(n+2)
}

// heatGrid adapts a Heatmap to plotter.GridXYZ. Row 0 is Sunday so Monday is drawn on top.
type heatGrid struct {
	hm *analytics.Heatmap
}

func (g heatGrid) Dims() (c, r int) {
	return analytics.HoursPerDay, analytics.DaysPerWeek
}

func (g heatGrid) Z(c, r int) float64 {
	return g.hm.Value(analytics.DaysPerWeek-1-r, c)
}

func (g heatGrid) X(c int) float64 {
	return float64(c)
}

func (g heatGrid) Y(r int) float64 {
	return float64(r)
}

func hourTicks() plot.ConstantTicks {
	ticks := make([]plot.Tick, 0, analytics.HoursPerDay/3)
	for h := 0; h < analytics.HoursPerDay; h += 3 {
		ticks = append(ticks, plot.Tick{Value: float64(h), Label: fmt.Sprintf("%02d", h)})
	}
	return plot.ConstantTicks(ticks)
}

func dayTicks(days [analytics.DaysPerWeek]string) plot.ConstantTicks {
	ticks := make([]plot.Tick, analytics.DaysPerWeek)
	for d, name := range days {
		ticks[d] = plot.Tick{Value: float64(analytics.DaysPerWeek - 1 - d), Label: name}
	}
	return plot.ConstantTicks(ticks)
}

func encode(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
