package entities

// Analysis is the business report generated from a business and its consultations
type Analysis struct {
	BusinessName string       `json:"businessName"`
	SWOT         SWOT         `json:"swot"`
	Financial    Financial    `json:"financial"`
	Market       Market       `json:"market"`
	Competitors  []Competitor `json:"competitors"`
	Licenses     []License    `json:"licenses"`
	ActionItems  []ActionItem `json:"actionItems"`
}

type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

type Financial struct {
	WeeklyExpenses map[string]float64 `json:"weeklyExpenses"`
	WeeklyRevenue  WeeklyRevenue      `json:"weeklyRevenue"`
}

type WeeklyRevenue struct {
	ProjectedLow     float64  `json:"projectedLow"`
	ProjectedHigh    float64  `json:"projectedHigh"`
	AverageProjected float64  `json:"averageProjected"`
	RevenueStreams   []string `json:"revenueStreams"`
}

type Market struct {
	Size            string   `json:"size"`
	GrowthRate      string   `json:"growthRate"`
	TargetCustomers []string `json:"targetCustomers"`
	MarketTrends    []string `json:"marketTrends"`
	Barriers        []string `json:"barriers"`
}

type Competitor struct {
	Name          string   `json:"name"`
	AnnualRevenue string   `json:"annualRevenue"`
	MarketShare   string   `json:"marketShare"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
}

type License struct {
	Name         string `json:"name"`
	Cost         string `json:"cost"`
	TimeToObtain string `json:"timeToObtain"`
	Authority    string `json:"authority"`
	Required     bool   `json:"required"`
}

type ActionItem struct {
	Priority string `json:"priority"`
	Task     string `json:"task"`
	Timeline string `json:"timeline"`
	Cost     string `json:"cost"`
}

// TotalWeeklyExpenses sums the weekly expense lines
func (f Financial) TotalWeeklyExpenses() float64 {
	var total float64
	for _, v := range f.WeeklyExpenses {
		total += v
	}
	return total
}
