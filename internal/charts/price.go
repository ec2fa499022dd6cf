package charts

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/wcharczuk/go-chart/v2"
)

const (
	historyDays     = 365
	dailyVolatility = 0.02
	predictNoise    = 0.01
	bandWidth       = 0.10
)

// PricePrediction plots a simulated year of history ending at current and a
// noisy path to target over months, with a ±10% band.
func PricePrediction(ticker string, current, target float64, months int, rng *rand.Rand) (Chart, error) {
	if current <= 0 || target <= 0 {
		return Chart{}, fmt.Errorf("price prediction %s: prices must be positive", ticker)
	}
	months = monthsOrDefault(months)
	now := time.Now().Truncate(24 * time.Hour)

	histX, histY := simulateHistory(now, current, rng)
	predX, predY := predictPath(now, current, target, months*30, rng)
	upper := scale(predY, 1+bandWidth)
	lower := scale(predY, 1-bandWidth)

	span := []time.Time{histX[0], predX[len(predX)-1]}
	c := chart.Chart{
		Title:  fmt.Sprintf("%s Stock Price Prediction Analysis", ticker),
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01"),
		},
		YAxis: chart.YAxis{
			Name:           "Price ($)",
			ValueFormatter: dollarFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Historical Price",
				Style:   chart.Style{StrokeColor: colorHistory, StrokeWidth: 2},
				XValues: histX,
				YValues: histY,
			},
			chart.TimeSeries{
				Name:    fmt.Sprintf("Predicted Price (Target: $%.2f)", target),
				Style:   chart.Style{StrokeColor: colorPredict, StrokeWidth: 3, StrokeDashArray: []float64{6, 4}},
				XValues: predX,
				YValues: predY,
			},
			chart.TimeSeries{
				Name:    "Prediction Range (+10%)",
				Style:   chart.Style{StrokeColor: colorPredict.WithAlpha(90), StrokeWidth: 1},
				XValues: predX,
				YValues: upper,
			},
			chart.TimeSeries{
				Name:    "Prediction Range (-10%)",
				Style:   chart.Style{StrokeColor: colorPredict.WithAlpha(90), StrokeWidth: 1},
				XValues: predX,
				YValues: lower,
			},
			chart.TimeSeries{
				Name:    fmt.Sprintf("Current: $%.2f", current),
				Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 1, StrokeDashArray: []float64{2, 3}},
				XValues: span,
				YValues: []float64{current, current},
			},
			chart.TimeSeries{
				Name:    fmt.Sprintf("Target: $%.2f", target),
				Style:   chart.Style{StrokeColor: chart.ColorGreen, StrokeWidth: 1, StrokeDashArray: []float64{2, 3}},
				XValues: span,
				YValues: []float64{target, target},
			},
		},
	}
	c.Elements = []chart.Renderable{chart.LegendThin(&c)}

	png, err := encode(c)
	if err != nil {
		return Chart{}, fmt.Errorf("price prediction %s: %w", ticker, err)
	}
	return Chart{
		Type:        TypePricePrediction,
		Title:       c.Title,
		Description: fmt.Sprintf("Simulated 12-month history and %d-month path from $%.2f to $%.2f with a ±10%% range.", months, current, target),
		PNGBase64:   png,
	}, nil
}

// simulateHistory walks from 80% of current with 2% daily volatility and
// pins the last point to current.
func simulateHistory(now time.Time, current float64, rng *rand.Rand) ([]time.Time, []float64) {
	xs := make([]time.Time, historyDays)
	ys := make([]float64, historyDays)
	start := now.AddDate(0, 0, -historyDays)
	price := current * 0.8
	for i := range historyDays {
		price += rng.NormFloat64() * dailyVolatility * price
		if price <= 0 {
			price = current * 0.01
		}
		xs[i] = start.AddDate(0, 0, i)
		ys[i] = price
	}
	ys[historyDays-1] = current
	return xs, ys
}

func predictPath(now time.Time, current, target float64, days int, rng *rand.Rand) ([]time.Time, []float64) {
	if days < 2 {
		days = 2
	}
	xs := make([]time.Time, days)
	ys := make([]float64, days)
	for i := range days {
		frac := float64(i) / float64(days-1)
		p := current + (target-current)*frac
		xs[i] = now.AddDate(0, 0, i)
		ys[i] = p + p*rng.NormFloat64()*predictNoise
	}
	return xs, ys
}

func scale(vs []float64, f float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v * f
	}
	return out
}

func dollarFormatter(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("$%.0f", f)
	}
	return ""
}
