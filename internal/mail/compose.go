// Package mail turns a research report into a styled HTML e-mail and
// delivers it.
package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/dotcommander/deepresearch/internal/charts"
)

// NoChartsText is shown in the chart section when there is nothing to embed.
const NoChartsText = "No charts found in the analysis content."

//go:embed report.html.tmpl
var reportTemplate string

var (
	tmpl = template.Must(template.New("report").Parse(reportTemplate))
	md   = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	embeddedPNG = regexp.MustCompile(`data:image/png;base64,([A-Za-z0-9+/=]+)`)
)

// Content is what gets mailed.
type Content struct {
	// Query becomes the subject line.
	Query    string
	Markdown string
	Charts   []charts.Chart
	// Summary is shown above the charts.
	Summary string
}

// Message is a composed e-mail.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

type templateData struct {
	Title     string
	Generated string
	Body      template.HTML
	Summary   string
	Charts    []chartData
	NoCharts  string
}

type chartData struct {
	Title       string
	Description string
	Src         template.URL
}

// Compose renders c as HTML. Charts already embedded in the markdown are
// pulled out and shown in the chart section together with c.Charts.
func Compose(c Content, now time.Time) (Message, error) {
	subject := "Stock Research & Analysis Report"
	if q := strings.TrimSpace(c.Query); q != "" {
		subject = "Stock Research Report: " + q
	}

	body, found := ExtractCharts(c.Markdown)
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return Message{}, fmt.Errorf("render markdown: %w", err)
	}

	data := templateData{
		Title:     "Stock Research & Analysis Report",
		Generated: now.Format("January 02, 2006 at 03:04 PM"),
		Body:      template.HTML(buf.String()), //nolint:gosec
		Summary:   strings.TrimSpace(c.Summary),
		NoCharts:  NoChartsText,
	}
	seen := map[string]bool{}
	for _, ch := range c.Charts {
		seen[ch.PNGBase64] = true
		data.Charts = append(data.Charts, chartData{
			Title:       ch.Title,
			Description: ch.Description,
			Src:         template.URL(ch.DataURI()), //nolint:gosec
		})
	}
	for i, b64 := range found {
		if seen[b64] {
			continue
		}
		seen[b64] = true
		data.Charts = append(data.Charts, chartData{
			Title: fmt.Sprintf("Chart %d", i+1),
			Src:   template.URL("data:image/png;base64," + b64), //nolint:gosec
		})
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return Message{}, fmt.Errorf("render email: %w", err)
	}
	return Message{
		Subject: subject,
		HTML:    out.String(),
		Text:    body,
	}, nil
}

// ExtractCharts removes inline base64 PNG images from markdown and returns
// the cleaned text plus the image payloads in order of appearance.
func ExtractCharts(markdown string) (string, []string) {
	var found []string
	for _, m := range embeddedPNG.FindAllStringSubmatch(markdown, -1) {
		found = append(found, m[1])
	}
	if len(found) == 0 {
		return markdown, nil
	}
	cleaned := imageRef.ReplaceAllString(markdown, "")
	cleaned = embeddedPNG.ReplaceAllString(cleaned, "")
	return cleaned, found
}

var imageRef = regexp.MustCompile(`!\[[^\]]*\]\(data:image/png;base64,[A-Za-z0-9+/=]+\)`)
