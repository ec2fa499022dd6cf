package research

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotcommander/deepresearch/internal/mail"
	"github.com/dotcommander/deepresearch/internal/storage"
)

// Markdown renders the whole report: the written report, the stock
// analysis, the chart notes and the follow-up questions.
func (r Report) Markdown() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(r.Report.MarkdownReport))
	sb.WriteString("\n")

	if a := r.Analysis; a != nil {
		writeAnalysis(&sb, a)
	}

	if c := r.Charts; c != nil && (c.Summary != "" || len(c.Recommendations) > 0) {
		sb.WriteString("\n## Chart Notes\n\n")
		if c.Summary != "" {
			sb.WriteString(c.Summary + "\n")
		}
		if len(c.Recommendations) > 0 {
			sb.WriteString("\n")
			for _, rec := range c.Recommendations {
				sb.WriteString("- " + rec + "\n")
			}
		}
	}

	if qs := r.Report.FollowUpQuestions; len(qs) > 0 {
		sb.WriteString("\n## Follow-up Questions\n\n")
		for _, q := range qs {
			sb.WriteString("- " + q + "\n")
		}
	}
	return sb.String()
}

func writeAnalysis(sb *strings.Builder, a *StockAnalysis) {
	sb.WriteString("\n## Stock Analysis\n\n")
	if a.AnalysisSummary != "" {
		sb.WriteString(a.AnalysisSummary + "\n")
	}

	if len(a.StockPredictions) > 0 {
		sb.WriteString("\n### Predictions\n\n")
		sb.WriteString("| Ticker | Company | Sentiment | Price Target | Confidence |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, p := range a.StockPredictions {
			fmt.Fprintf(sb, "| %s | %s | %s | %s | %d/10 |\n",
				cell(p.TickerSymbol), cell(p.CompanyName), cell(p.CurrentSentiment), cell(p.PriceTarget), p.ConfidenceLevel)
		}
		sb.WriteString("\n")
		for _, p := range a.StockPredictions {
			if p.Reasoning != "" {
				fmt.Fprintf(sb, "- **%s**: %s\n", p.TickerSymbol, p.Reasoning)
			}
		}
	}

	if len(a.TechnicalIndicators) > 0 {
		sb.WriteString("\n### Technical Indicators\n\n")
		for _, t := range a.TechnicalIndicators {
			fmt.Fprintf(sb, "- **%s** (%s): %s\n", t.IndicatorName, t.CurrentValue, t.Interpretation)
		}
	}

	if len(a.MarketFactors) > 0 {
		sb.WriteString("\n### Market Factors\n\n")
		for _, f := range a.MarketFactors {
			fmt.Fprintf(sb, "- **%s** (%s, %s): %s\n", f.FactorName, f.FactorType, f.Impact, f.Explanation)
		}
	}

	ra := a.RiskAssessment
	if ra.RiskLevel != "" || len(ra.KeyRisks) > 0 {
		sb.WriteString("\n### Risk Assessment\n\n")
		if ra.RiskLevel != "" {
			fmt.Fprintf(sb, "**Overall risk:** %s\n", ra.RiskLevel)
		}
		writeList(sb, "Key risks", ra.KeyRisks)
		writeList(sb, "Mitigation", ra.RiskMitigation)
	}

	if a.InvestmentThesis != "" {
		sb.WriteString("\n### Investment Thesis\n\n" + a.InvestmentThesis + "\n")
	}

	if len(a.ActionRecommendations) > 0 {
		sb.WriteString("\n### Recommendations\n\n")
		for i, rec := range a.ActionRecommendations {
			fmt.Fprintf(sb, "%d. %s\n", i+1, rec)
		}
	}
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n\n", title)
	for _, it := range items {
		sb.WriteString("- " + it + "\n")
	}
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// Export writes the report to dir as markdown and HTML, plus one PNG per
// chart. It returns the written paths.
func (r Report) Export(dir string, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("export: %w", err)
	}
	base := "report-" + storage.Short(r.ID)
	var written []string

	md := r.Markdown()
	if r.Charts != nil && len(r.Charts.Charts) > 0 {
		var refs strings.Builder
		refs.WriteString("\n## Charts\n\n")
		for i, c := range r.Charts.Charts {
			bts, err := base64.StdEncoding.DecodeString(c.PNGBase64)
			if err != nil {
				return written, fmt.Errorf("export chart %d: %w", i+1, err)
			}
			name := fmt.Sprintf("%s-chart-%d.png", base, i+1)
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, bts, 0o644); err != nil { //nolint:gosec
				return written, fmt.Errorf("export chart %d: %w", i+1, err)
			}
			written = append(written, path)
			fmt.Fprintf(&refs, "![%s](%s)\n\n", c.Title, name)
		}
		md += refs.String()
	}

	mdPath := filepath.Join(dir, base+".md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil { //nolint:gosec
		return written, fmt.Errorf("export markdown: %w", err)
	}
	written = append(written, mdPath)

	msg, err := mail.Compose(MailContent(r), now)
	if err != nil {
		return written, fmt.Errorf("export html: %w", err)
	}
	htmlPath := filepath.Join(dir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(msg.HTML), 0o644); err != nil { //nolint:gosec
		return written, fmt.Errorf("export html: %w", err)
	}
	return append(written, htmlPath), nil
}
