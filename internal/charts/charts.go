// Package charts renders the stock analysis visuals as base64 PNG images
// that can be embedded in reports and e-mails.
package charts

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dotcommander/deepresearch/internal/logging"
)

// Chart types.
const (
	TypePricePrediction   = "price_prediction"
	TypeRiskReturn        = "risk_analysis"
	TypeTechnical         = "technical_indicators"
	TypeSectorPerformance = "sector_comparison"
)

const (
	width  = 1200
	height = 800
)

var (
	colorHistory = drawing.ColorFromHex("2E86AB")
	colorPredict = drawing.ColorFromHex("A23B72")
	colorHigh    = drawing.ColorFromHex("E74C3C")
	colorMedium  = drawing.ColorFromHex("F39C12")
	colorLow     = drawing.ColorFromHex("27AE60")
)

// Chart is one rendered image.
type Chart struct {
	Type        string `json:"chart_type"`
	Title       string `json:"title"`
	Description string `json:"data_description"`
	PNGBase64   string `json:"chart_base64"`
}

// DataURI returns the image as an inline data URI.
func (c Chart) DataURI() string {
	return "data:image/png;base64," + c.PNGBase64
}

// Package is the full set of charts for one analysis.
type Package struct {
	Charts          []Chart  `json:"charts"`
	Summary         string   `json:"chart_summary"`
	Recommendations []string `json:"recommendations"`
}

// Prediction is the per-stock input to the price and risk charts.
type Prediction struct {
	Ticker         string
	CurrentPrice   float64
	TargetPrice    float64
	Months         int
	RiskLevel      string
	ExpectedReturn float64
}

// Sector is one bar pair in the sector chart.
type Sector struct {
	Name     string  `json:"name"`
	OneMonth float64 `json:"performance_1m"`
	YTD      float64 `json:"performance_ytd"`
}

// Input is everything Build needs.
type Input struct {
	Predictions []Prediction
	Sectors     []Sector
	// MaxPriceCharts caps the number of price prediction charts.
	MaxPriceCharts int
}

// NewRand returns a seeded random source for the simulated series.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Build renders the chart package. Charts that cannot be drawn for a given
// prediction are skipped; an error is returned only when nothing rendered.
func Build(in Input, rng *rand.Rand) (Package, error) {
	var pkg Package
	limit := in.MaxPriceCharts
	if limit <= 0 {
		limit = 3
	}

	drawn := 0
	for _, p := range in.Predictions {
		if drawn >= limit {
			break
		}
		c, err := PricePrediction(p.Ticker, p.CurrentPrice, p.TargetPrice, p.Months, rng)
		if err != nil {
			logging.L.Debug("skip price chart", "ticker", p.Ticker, "err", err)
			continue
		}
		pkg.Charts = append(pkg.Charts, c)
		drawn++
	}

	if c, err := RiskReturn(riskPoints(in.Predictions)); err == nil {
		pkg.Charts = append(pkg.Charts, c)
	} else {
		logging.L.Warn("risk chart failed", "err", err)
	}

	if ticker := firstTicker(in.Predictions); ticker != "" {
		cs, err := TechnicalDashboard(ticker, rng)
		if err != nil {
			logging.L.Warn("technical chart failed", "ticker", ticker, "err", err)
		}
		pkg.Charts = append(pkg.Charts, cs...)
	}

	sectors := in.Sectors
	if len(sectors) == 0 {
		sectors = SampleSectors(rng)
	}
	if cs, err := SectorPerformance(sectors); err == nil {
		pkg.Charts = append(pkg.Charts, cs...)
	} else {
		logging.L.Warn("sector chart failed", "err", err)
	}

	if len(pkg.Charts) == 0 {
		return Package{}, fmt.Errorf("charts: nothing rendered")
	}
	pkg.Summary = summarize(pkg.Charts)
	pkg.Recommendations = recommendations(in.Predictions)
	return pkg, nil
}

type renderer interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func encode(r renderer) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(chart.PNG, &buf); err != nil {
		return "", fmt.Errorf("render png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func firstTicker(ps []Prediction) string {
	for _, p := range ps {
		if p.Ticker != "" {
			return p.Ticker
		}
	}
	return ""
}

func summarize(cs []Chart) string {
	titles := make([]string, 0, len(cs))
	for _, c := range cs {
		titles = append(titles, c.Title)
	}
	return fmt.Sprintf("Generated %d charts: %s.", len(cs), strings.Join(titles, "; "))
}

func recommendations(ps []Prediction) []string {
	var out []string
	for _, p := range ps {
		if p.CurrentPrice <= 0 || p.TargetPrice <= 0 {
			continue
		}
		change := (p.TargetPrice - p.CurrentPrice) / p.CurrentPrice * 100
		direction := "upside"
		if change < 0 {
			direction = "downside"
		}
		out = append(out, fmt.Sprintf(
			"%s: target $%.2f implies %.1f%% %s over %d months (%s risk).",
			p.Ticker, p.TargetPrice, change, direction, monthsOrDefault(p.Months), strings.ToLower(riskLevel(p.RiskLevel)),
		))
	}
	return out
}

func monthsOrDefault(m int) int {
	if m <= 0 {
		return 6
	}
	return m
}
