package dashboard

import (
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/ridedemand/internal/analytics"
	"github.com/richxcame/ridedemand/internal/charts"
	"github.com/richxcame/ridedemand/internal/forecast"
	"github.com/richxcame/ridedemand/pkg/logger"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Control kinds rendered in the sidebar
const (
	controlRange  = "range"
	controlSelect = "select"
	controlNumber = "number"
)

type option struct {
	Value string
	Label string
}

type control struct {
	Name    string
	Label   string
	Kind    string
	Min     string
	Max     string
	Step    string
	Value   string
	Options []option
}

type chartPanel struct {
	Name  string
	Title string
	URL   string
}

type pageData struct {
	Title        string
	Controls     []control
	Charts       []chartPanel
	Summary      *analytics.Summary
	SummaryError string
	Suggested    string
	Source       string
	ModelVersion string
}

var chartTitles = map[string]string{
	charts.ChartTimeSeries: "Ride demand over time",
	charts.ChartHourly:     "Average demand by hour",
	charts.ChartWeekly:     "Average demand by day of week",
	charts.ChartHeatmap:    "Demand by day and hour",
	charts.ChartImportance: "Feature importance",
}

var binaryOptions = []option{{Value: "0", Label: "No"}, {Value: "1", Label: "Yes"}}

func parseTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

func staticFiles() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// controls lays out the sidebar widgets seeded from in
func controls(in forecast.FeatureInput) []control {
	days := make([]option, len(analytics.DayNames))
	for i, name := range analytics.DayNames {
		days[i] = option{Value: strconv.Itoa(i), Label: name}
	}

	return []control{
		{Name: "temperature", Label: "Temperature (°C)", Kind: controlRange, Min: "0", Max: "50", Step: "1", Value: formatFloat(in.Temperature)},
		{Name: "rain", Label: "Rain", Kind: controlSelect, Value: strconv.Itoa(in.Rain), Options: binaryOptions},
		{Name: "holiday", Label: "Holiday", Kind: controlSelect, Value: strconv.Itoa(in.Holiday), Options: binaryOptions},
		{Name: "hour", Label: "Hour", Kind: controlRange, Min: "0", Max: "23", Step: "1", Value: strconv.Itoa(in.Hour)},
		{Name: "day", Label: "Day", Kind: controlRange, Min: "1", Max: "31", Step: "1", Value: strconv.Itoa(in.Day)},
		{Name: "month", Label: "Month", Kind: controlRange, Min: "1", Max: "12", Step: "1", Value: strconv.Itoa(in.Month)},
		{Name: "day_of_week", Label: "Day of week", Kind: controlSelect, Value: strconv.Itoa(in.DayOfWeek), Options: days},
		{Name: "lag_1", Label: "Rides 1 hour ago", Kind: controlNumber, Step: "any", Value: formatFloat(in.Lag1)},
		{Name: "lag_24", Label: "Rides 24 hours ago", Kind: controlNumber, Step: "any", Value: formatFloat(in.Lag24)},
		{Name: "rolling_mean_24", Label: "24h rolling mean", Kind: controlNumber, Step: "any", Value: formatFloat(in.RollingMean24)},
		{Name: "rolling_std_24", Label: "24h rolling std", Kind: controlNumber, Step: "any", Value: formatFloat(in.RollingStd24)},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Index renders the dashboard page
// GET /
func (a *App) Index(c *gin.Context) {
	data := pageData{
		Title:        "Ola Ride Demand Forecast",
		Controls:     controls(forecast.DefaultInput()),
		Source:       a.Dataset.Source,
		ModelVersion: a.ModelVersion,
	}

	for _, name := range charts.Names {
		data.Charts = append(data.Charts, chartPanel{
			Name:  name,
			Title: chartTitles[name],
			URL:   "/charts/" + name + ".png",
		})
	}

	summary, err := a.Analytics.GetSummary(c.Request.Context())
	if err != nil {
		data.SummaryError = err.Error()
	} else {
		data.Summary = summary
	}

	if a.Suggested != nil {
		raw, err := json.Marshal(a.Suggested)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("Failed to encode suggested inputs", zap.Error(err))
		} else {
			data.Suggested = string(raw)
		}
	}

	c.HTML(http.StatusOK, "index.html", data)
}
