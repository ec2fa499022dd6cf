package research

import (
	"time"

	"github.com/dotcommander/deepresearch/internal/charts"
	"github.com/dotcommander/deepresearch/internal/websearch"
)

// SearchItem is one planned web search.
type SearchItem struct {
	Reason string `json:"reason" jsonschema_description:"Your reasoning for why this search is important to the query."`
	Query  string `json:"query" jsonschema_description:"The search term to use for the web search."`
}

// SearchPlan is the planner's output.
type SearchPlan struct {
	Searches []SearchItem `json:"searches" jsonschema_description:"A list of web searches to perform to best answer the query."`
}

// SearchSummary is the outcome of one planned search.
type SearchSummary struct {
	Item    SearchItem         `json:"item"`
	Summary string             `json:"summary,omitempty"`
	Sources []websearch.Result `json:"sources,omitempty"`
	Err     string             `json:"error,omitempty"`
}

// OK reports whether the search produced a summary.
func (s SearchSummary) OK() bool { return s.Err == "" && s.Summary != "" }

// ReportData is the writer's output.
type ReportData struct {
	ShortSummary      string   `json:"short_summary" jsonschema_description:"A short 2-3 sentence summary of the findings."`
	MarkdownReport    string   `json:"markdown_report" jsonschema_description:"The final report in markdown."`
	FollowUpQuestions []string `json:"follow_up_questions" jsonschema_description:"Suggested topics to research further."`
}

// StockPrediction is one stock call from the analyst.
type StockPrediction struct {
	TickerSymbol     string  `json:"ticker_symbol" jsonschema_description:"Stock ticker symbol, e.g. AAPL."`
	CompanyName      string  `json:"company_name" jsonschema_description:"Full company name."`
	CurrentSentiment string  `json:"current_sentiment" jsonschema:"enum=Bullish,enum=Bearish,enum=Neutral" jsonschema_description:"Current market sentiment."`
	PriceTarget      string  `json:"price_target" jsonschema_description:"Predicted price target with timeframe, e.g. $150 in 6 months."`
	CurrentPrice     float64 `json:"current_price" jsonschema_description:"Approximate current share price in USD, 0 if unknown."`
	TargetPrice      float64 `json:"target_price" jsonschema_description:"Numeric price target in USD, 0 if unknown."`
	TimeframeMonths  int     `json:"timeframe_months" jsonschema_description:"Months until the price target, between 3 and 12."`
	ConfidenceLevel  int     `json:"confidence_level" jsonschema:"minimum=1,maximum=10" jsonschema_description:"Confidence level from 1 to 10."`
	RiskLevel        string  `json:"risk_level,omitempty" jsonschema:"enum=Low,enum=Medium,enum=High" jsonschema_description:"Risk of holding this stock."`
	Reasoning        string  `json:"reasoning" jsonschema_description:"Detailed reasoning for the prediction."`
}

// TechnicalIndicator is one technical reading.
type TechnicalIndicator struct {
	IndicatorName  string `json:"indicator_name" jsonschema_description:"Name of the technical indicator, e.g. RSI."`
	CurrentValue   string `json:"current_value" jsonschema_description:"Current value or status."`
	Interpretation string `json:"interpretation" jsonschema_description:"What this indicator suggests."`
}

// MarketFactor is a force acting on the analyzed stocks.
type MarketFactor struct {
	FactorType  string `json:"factor_type" jsonschema:"enum=Economic,enum=Political,enum=Industry,enum=Company-specific" jsonschema_description:"Type of factor."`
	FactorName  string `json:"factor_name" jsonschema_description:"Name of the market factor."`
	Impact      string `json:"impact" jsonschema:"enum=Positive,enum=Negative,enum=Neutral" jsonschema_description:"Impact on the stock."`
	Explanation string `json:"explanation" jsonschema_description:"How this factor affects the stock."`
}

// RiskAssessment is the overall risk view.
type RiskAssessment struct {
	RiskLevel      string   `json:"risk_level" jsonschema:"enum=Low,enum=Medium,enum=High" jsonschema_description:"Overall risk level."`
	KeyRisks       []string `json:"key_risks" jsonschema_description:"List of key risks."`
	RiskMitigation []string `json:"risk_mitigation" jsonschema_description:"Risk mitigation strategies."`
}

// StockAnalysis is the analyst's output.
type StockAnalysis struct {
	AnalysisSummary       string               `json:"analysis_summary" jsonschema_description:"Executive summary of the stock analysis."`
	StockPredictions      []StockPrediction    `json:"stock_predictions" jsonschema_description:"Predictions for the stocks identified in the research."`
	TechnicalIndicators   []TechnicalIndicator `json:"technical_indicators" jsonschema_description:"Relevant technical indicators."`
	MarketFactors         []MarketFactor       `json:"market_factors" jsonschema_description:"Key market factors affecting the stocks."`
	RiskAssessment        RiskAssessment       `json:"risk_assessment" jsonschema_description:"Overall risk assessment."`
	InvestmentThesis      string               `json:"investment_thesis" jsonschema_description:"Overall investment thesis and strategy."`
	ActionRecommendations []string             `json:"action_recommendations" jsonschema_description:"Specific actionable recommendations."`
}

// Report is the full result of a research run.
type Report struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	CreatedAt time.Time       `json:"created_at"`
	API       string          `json:"api"`
	Model     string          `json:"model"`
	Plan      SearchPlan      `json:"plan"`
	Searches  []SearchSummary `json:"searches"`
	Report    ReportData      `json:"report"`
	Analysis  *StockAnalysis  `json:"analysis,omitempty"`
	Charts    *charts.Package `json:"charts,omitempty"`
	Emailed   bool            `json:"emailed"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// Title is the label used in listings.
func (r Report) Title() string {
	return r.Query
}
