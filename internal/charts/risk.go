package charts

import (
	"fmt"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// RiskPoint places one stock on the risk/return plane.
type RiskPoint struct {
	Ticker         string
	RiskLevel      string
	ExpectedReturn float64
}

// SampleRiskPoints is used when an analysis has no usable predictions.
var SampleRiskPoints = []RiskPoint{
	{Ticker: "AAPL", RiskLevel: "Medium", ExpectedReturn: 12},
	{Ticker: "TSLA", RiskLevel: "High", ExpectedReturn: 20},
	{Ticker: "BRK.B", RiskLevel: "Low", ExpectedReturn: 8},
}

// RiskScore maps a risk level to its position on the x axis.
func RiskScore(level string) float64 {
	switch riskLevel(level) {
	case "High":
		return 8
	case "Low":
		return 2
	default:
		return 5
	}
}

func riskLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "high":
		return "High"
	case "low":
		return "Low"
	case "medium", "moderate":
		return "Medium"
	default:
		return "Unknown"
	}
}

func riskColor(level string) drawing.Color {
	switch riskLevel(level) {
	case "High":
		return colorHigh
	case "Medium":
		return colorMedium
	case "Low":
		return colorLow
	default:
		return chart.ColorBlue
	}
}

func riskPoints(ps []Prediction) []RiskPoint {
	var out []RiskPoint
	for _, p := range ps {
		ret := p.ExpectedReturn
		if ret == 0 && p.CurrentPrice > 0 && p.TargetPrice > 0 {
			ret = (p.TargetPrice - p.CurrentPrice) / p.CurrentPrice * 100
		}
		out = append(out, RiskPoint{Ticker: p.Ticker, RiskLevel: p.RiskLevel, ExpectedReturn: ret})
	}
	return out
}

// RiskReturn plots expected return against risk score, one colored series
// per risk level, with an illustrative efficient frontier.
func RiskReturn(points []RiskPoint) (Chart, error) {
	if len(points) == 0 {
		points = SampleRiskPoints
	}

	type group struct {
		xs, ys []float64
	}
	order := []string{"Low", "Medium", "High", "Unknown"}
	groups := map[string]*group{}
	var labels []chart.Value2
	for _, p := range points {
		lvl := riskLevel(p.RiskLevel)
		g, ok := groups[lvl]
		if !ok {
			g = &group{}
			groups[lvl] = g
		}
		x := RiskScore(p.RiskLevel)
		g.xs = append(g.xs, x)
		g.ys = append(g.ys, p.ExpectedReturn)
		labels = append(labels, chart.Value2{XValue: x, YValue: p.ExpectedReturn, Label: p.Ticker})
	}

	fx := make([]float64, 0, 10)
	fy := make([]float64, 0, 10)
	for r := 1; r <= 10; r++ {
		fx = append(fx, float64(r))
		fy = append(fy, 15*math.Log(float64(r))-5)
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Efficient Frontier (Illustrative)",
			Style:   chart.Style{StrokeColor: chart.ColorAlternateGray, StrokeWidth: 2, StrokeDashArray: []float64{5, 5}},
			XValues: fx,
			YValues: fy,
		},
	}
	for _, lvl := range order {
		g, ok := groups[lvl]
		if !ok {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name: lvl + " Risk",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    10,
				DotColor:    riskColor(lvl),
			},
			XValues: g.xs,
			YValues: g.ys,
		})
	}
	series = append(series, chart.AnnotationSeries{Annotations: labels})

	c := chart.Chart{
		Title:  "Risk vs Expected Return Analysis",
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Risk Level (1=Low, 10=High)",
			Range: &chart.ContinuousRange{Min: 0, Max: 10},
		},
		YAxis: chart.YAxis{
			Name:           "Expected Return (%)",
			ValueFormatter: percentFormatter,
		},
		Series: series,
	}
	c.Elements = []chart.Renderable{chart.LegendThin(&c)}

	png, err := encode(c)
	if err != nil {
		return Chart{}, fmt.Errorf("risk return: %w", err)
	}
	return Chart{
		Type:        TypeRiskReturn,
		Title:       c.Title,
		Description: fmt.Sprintf("Risk score against expected return for %d stocks.", len(points)),
		PNGBase64:   png,
	}, nil
}

func percentFormatter(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f%%", f)
	}
	return ""
}
