package charts

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	dashboardDays = 30
	overbought    = 70
	oversold      = 30
	support       = 85
	resistance    = 115
)

// TechnicalDashboard renders a simulated RSI panel and a price panel with
// 5 and 10 day moving averages plus support and resistance.
func TechnicalDashboard(ticker string, rng *rand.Rand) ([]Chart, error) {
	now := time.Now().Truncate(24 * time.Hour)
	days := make([]time.Time, dashboardDays)
	rsi := make([]float64, dashboardDays)
	prices := make([]float64, dashboardDays)
	for i := range dashboardDays {
		days[i] = now.AddDate(0, 0, i-dashboardDays+1)
		rsi[i] = min(max(50+rng.NormFloat64()*15, 0), 100)
		prices[i] = 100 + rng.NormFloat64()*10
	}
	span := []time.Time{days[0], days[len(days)-1]}

	var out []Chart
	var errs []error

	rsiChart := chart.Chart{
		Title:  fmt.Sprintf("%s Technical Analysis Dashboard: RSI", ticker),
		Width:  width,
		Height: height / 2,
		XAxis:  chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis: chart.YAxis{
			Name:  "RSI",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "RSI",
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2},
				XValues: days,
				YValues: rsi,
			},
			horizontal("Overbought (70)", span, overbought, chart.ColorRed),
			horizontal("Oversold (30)", span, oversold, chart.ColorGreen),
		},
	}
	rsiChart.Elements = []chart.Renderable{chart.LegendThin(&rsiChart)}
	if png, err := encode(rsiChart); err != nil {
		errs = append(errs, fmt.Errorf("rsi: %w", err))
	} else {
		out = append(out, Chart{
			Type:        TypeTechnical,
			Title:       rsiChart.Title,
			Description: fmt.Sprintf("Simulated %d-day RSI with overbought and oversold bands.", dashboardDays),
			PNGBase64:   png,
		})
	}

	priceSeries := chart.TimeSeries{
		Name:    "Price",
		Style:   chart.Style{StrokeColor: chart.ColorBlack, StrokeWidth: 2},
		XValues: days,
		YValues: prices,
	}
	priceChart := chart.Chart{
		Title:  fmt.Sprintf("%s Technical Analysis Dashboard: Moving Averages", ticker),
		Width:  width,
		Height: height / 2,
		XAxis:  chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:  chart.YAxis{Name: "Price ($)", ValueFormatter: dollarFormatter},
		Series: []chart.Series{
			priceSeries,
			chart.SMASeries{
				Name:        "MA5",
				Style:       chart.Style{StrokeColor: chart.ColorOrange, StrokeWidth: 1},
				Period:      5,
				InnerSeries: priceSeries,
			},
			chart.SMASeries{
				Name:        "MA10",
				Style:       chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 1},
				Period:      10,
				InnerSeries: priceSeries,
			},
			horizontal("Support", span, support, chart.ColorGreen),
			horizontal("Resistance", span, resistance, chart.ColorRed),
		},
	}
	priceChart.Elements = []chart.Renderable{chart.LegendThin(&priceChart)}
	if png, err := encode(priceChart); err != nil {
		errs = append(errs, fmt.Errorf("moving averages: %w", err))
	} else {
		out = append(out, Chart{
			Type:        TypeTechnical,
			Title:       priceChart.Title,
			Description: "Simulated closing prices with 5 and 10 day moving averages, support and resistance.",
			PNGBase64:   png,
		})
	}

	return out, errors.Join(errs...)
}

func horizontal(name string, span []time.Time, y float64, color drawing.Color) chart.TimeSeries {
	return chart.TimeSeries{
		Name:    name,
		Style:   chart.Style{StrokeColor: color, StrokeWidth: 1, StrokeDashArray: []float64{4, 4}},
		XValues: span,
		YValues: []float64{y, y},
	}
}
