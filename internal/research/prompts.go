package research

import (
	"context"
	"fmt"

	"github.com/dotcommander/deepresearch/internal/config"
)

const plannerInstructions = `You are a research planner for stock market analysis. Given a query,
come up with a set of web searches that best answer it, with an emphasis on
what the topic means for listed companies, sectors, share prices and market
conditions. Prefer recent news, earnings, analyst commentary and macro data.
Output at most %d searches.`

const stockFocusNote = `The previous plan did not focus on the stock market. Reframe every search
around its implications for stocks, sectors, earnings or market sentiment.`

const searchInstructions = `You are a research assistant. Given a search term and the web results
for it, write a concise summary of the results. The summary must be 2-3
paragraphs and less than 300 words. Capture the main points, figures and
dates; skip filler. Write in plain prose, no headings. This will be read by
someone writing a report, so keep the substance and drop the style.`

const writerInstructions = `You are a senior financial researcher writing a cohesive report for a
research query. You are given the original query and summaries of the web
research done for it.

Plan the structure of the report first, then write it in markdown. The report
should be detailed and thorough: aim for 5-10 pages of content and at least
1000 words. Cover the market implications, affected companies and sectors,
and open uncertainties.`

const analystInstructions = `You are a senior quantitative stock analyst and portfolio strategist.
Analyze the research report and produce stock theories, predictions and
investment strategies.

1. Identify every stock, company and sector mentioned.
2. Analyze how the findings affect them fundamentally.
3. Give specific price targets with timeframes of 3-12 months. Fill in the
   numeric current_price and target_price fields whenever you can estimate them.
4. Assess technical indicators and market sentiment.
5. Evaluate risks and mitigation strategies.
6. Finish with actionable recommendations, including entry and exit ideas,
   position sizing and portfolio allocation.

Rate confidence by strength of evidence and consider both upside and downside.`

type prompts struct {
	planner, search, writer, analyst string
}

// loadPrompts resolves configured overrides; empty settings keep the
// built-in instructions.
func loadPrompts(ctx context.Context, s config.ResearchSettings) (prompts, error) {
	p := prompts{
		planner: fmt.Sprintf(plannerInstructions, maxSearches(s)),
		search:  searchInstructions,
		writer:  writerInstructions,
		analyst: analystInstructions,
	}
	overrides := []struct {
		name string
		src  string
		dst  *string
	}{
		{"planner", s.PlannerPrompt, &p.planner},
		{"search", s.SearchPrompt, &p.search},
		{"writer", s.WriterPrompt, &p.writer},
		{"analyst", s.AnalystPrompt, &p.analyst},
	}
	for _, o := range overrides {
		if o.src == "" {
			continue
		}
		msg, err := config.LoadMsg(ctx, o.src)
		if err != nil {
			return p, fmt.Errorf("load %s prompt: %w", o.name, err)
		}
		*o.dst = msg
	}
	return p, nil
}
