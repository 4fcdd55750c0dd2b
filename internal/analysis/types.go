// Package analysis defines the five AI analysis artifacts: their payloads,
// prompts, defaults, validation and relational persistence.
package analysis

// Artifact kinds, as used in URLs and events.
const (
	KindBullish      = "bullish"
	KindBearish      = "bearish"
	KindInstitutions = "institutions"
	KindAdvice       = "advice"
	KindSummary      = "summary"
)

// Factor types stored in market_factors.factor_type
const (
	FactorBullish = "bullish"
	FactorBearish = "bearish"
)

// Impact levels accepted on a factor.
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// Ratings accepted on an institutional view.
const (
	RatingBullish = "bullish"
	RatingBearish = "bearish"
	RatingNeutral = "neutral"
)

// Factor is one market driver.
type Factor struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Description string   `json:"description"`
	Details     []string `json:"details"`
	Impact      string   `json:"impact"`
}

// BullishPayload is the bullish_factors artifact.
type BullishPayload struct {
	Factors         []Factor `json:"bullish_factors"`
	AnalysisSummary string   `json:"analysis_summary"`
	LastUpdated     string   `json:"last_updated"`
}

// BearishPayload is the bearish_factors artifact.
type BearishPayload struct {
	Factors         []Factor `json:"bearish_factors"`
	AnalysisSummary string   `json:"analysis_summary"`
	LastUpdated     string   `json:"last_updated"`
}

// Institution is one institutional price forecast.
type Institution struct {
	Name        string   `json:"name"`
	Logo        string   `json:"logo"`
	Rating      string   `json:"rating"`
	TargetPrice float64  `json:"target_price"`
	Timeframe   string   `json:"timeframe"`
	Reasoning   string   `json:"reasoning"`
	KeyPoints   []string `json:"key_points"`
}

// InstitutionsPayload is the institution_predictions artifact.
type InstitutionsPayload struct {
	Institutions    []Institution `json:"institutions"`
	AnalysisSummary string        `json:"analysis_summary"`
	LastUpdated     string        `json:"last_updated"`
}

// MarketAssessment heads the investment advice.
type MarketAssessment struct {
	CurrentPosition     string   `json:"current_position"`
	RiskLevel           string   `json:"risk_level"`
	RecommendedApproach string   `json:"recommended_approach"`
	KeyConsiderations   []string `json:"key_considerations"`
}

type EntryStrategy struct {
	CurrentPriceAssessment string `json:"current_price_assessment"`
	RecommendedEntryRange  string `json:"recommended_entry_range"`
	EntryTiming            string `json:"entry_timing"`
	PositionBuilding       string `json:"position_building"`
}

type ExitStrategy struct {
	ProfitTarget       string `json:"profit_target"`
	StopLoss           string `json:"stop_loss"`
	RebalancingTrigger string `json:"rebalancing_trigger"`
}

// Strategy is one allocation profile (conservative, balanced, opportunistic).
type Strategy struct {
	Type           string        `json:"type"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Allocation     string        `json:"allocation"`
	Timeframe      string        `json:"timeframe"`
	RiskLevel      string        `json:"risk_level"`
	EntryStrategy  EntryStrategy `json:"entry_strategy"`
	ExitStrategy   ExitStrategy  `json:"exit_strategy"`
	Pros           []string      `json:"pros"`
	Cons           []string      `json:"cons"`
	SuitableFor    []string      `json:"suitable_for"`
	ExecutionSteps []string      `json:"execution_steps"`
}

type Principle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AdvicePayload is the investment_advice artifact.
type AdvicePayload struct {
	MarketAssessment MarketAssessment `json:"market_assessment"`
	Strategies       []Strategy       `json:"strategies"`
	CorePrinciples   []Principle      `json:"core_principles"`
	RiskWarning      string           `json:"risk_warning"`
	Disclaimer       string           `json:"disclaimer"`
}

type InstitutionTarget struct {
	Institution string  `json:"institution"`
	Target      float64 `json:"target"`
	Probability string  `json:"probability"`
	Timeframe   string  `json:"timeframe"`
}

type Judgment struct {
	BullishSummary string `json:"bullish_summary"`
	BearishSummary string `json:"bearish_summary"`
	NeutralSummary string `json:"neutral_summary"`
}

// SummaryPayload is the market_summary artifact.
type SummaryPayload struct {
	CoreBullishLogic         []string            `json:"core_bullish_logic"`
	MainRisks                []string            `json:"main_risks"`
	MarketConsensus          []string            `json:"market_consensus"`
	InstitutionTargets       []InstitutionTarget `json:"institution_targets"`
	CurrentPrice             float64             `json:"current_price"`
	ComprehensiveJudgment    Judgment            `json:"comprehensive_judgment"`
	CoreView                 string              `json:"core_view"`
	InvestmentRecommendation string              `json:"investment_recommendation"`
	ConfidenceLevel          string              `json:"confidence_level"`
	TimeHorizon              string              `json:"time_horizon"`
}
