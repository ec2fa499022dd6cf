package charts

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/wcharczuk/go-chart/v2"
)

var sampleSectorNames = []string{"Technology", "Healthcare", "Finance", "Energy", "Consumer", "Industrial"}

// SampleSectors simulates one-month and year-to-date sector moves.
func SampleSectors(rng *rand.Rand) []Sector {
	out := make([]Sector, len(sampleSectorNames))
	for i, name := range sampleSectorNames {
		out[i] = Sector{
			Name:     name,
			OneMonth: 2 + rng.NormFloat64()*5,
			YTD:      8 + rng.NormFloat64()*15,
		}
	}
	return out
}

// SectorPerformance renders the one-month and year-to-date bar charts.
func SectorPerformance(sectors []Sector) ([]Chart, error) {
	if len(sectors) == 0 {
		return nil, fmt.Errorf("sector performance: no sectors")
	}
	oneMonth := make([]float64, len(sectors))
	ytd := make([]float64, len(sectors))
	for i, s := range sectors {
		oneMonth[i] = s.OneMonth
		ytd[i] = s.YTD
	}

	panels := []struct {
		title  string
		values []float64
	}{
		{"1-Month Sector Performance", oneMonth},
		{"Year-to-Date Sector Performance", ytd},
	}
	out := make([]Chart, 0, len(panels))
	for _, p := range panels {
		bc := chart.BarChart{
			Title:        p.title,
			Width:        width,
			Height:       height / 2,
			BarWidth:     barWidth(len(sectors)),
			UseBaseValue: true,
			BaseValue:    0,
			Background: chart.Style{
				Padding: chart.Box{Top: 40},
			},
			YAxis: chart.YAxis{
				ValueFormatter: percentFormatter,
				Range:          barRange(p.values),
			},
		}
		for i, s := range sectors {
			color := colorLow
			if p.values[i] <= 0 {
				color = colorHigh
			}
			bc.Bars = append(bc.Bars, chart.Value{
				Label: fmt.Sprintf("%s %+.1f%%", s.Name, p.values[i]),
				Value: p.values[i],
				Style: chart.Style{FillColor: color, StrokeColor: color, StrokeWidth: 1},
			})
		}
		png, err := encode(bc)
		if err != nil {
			return out, fmt.Errorf("%s: %w", p.title, err)
		}
		out = append(out, Chart{
			Type:        TypeSectorPerformance,
			Title:       p.title,
			Description: fmt.Sprintf("Performance across %d sectors; green bars gained, red bars lost.", len(sectors)),
			PNGBase64:   png,
		})
	}
	return out, nil
}

// barRange always includes zero and pads both ends so equal values still
// yield a non-empty domain.
func barRange(vs []float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := math.Max((hi-lo)*0.1, 1)
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func barWidth(n int) int {
	return max(20, min(120, (width-200)/max(n, 1)-20))
}
