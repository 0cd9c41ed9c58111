package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/domain/repositories"
)

// maxTranscriptChars bounds how much consultation text goes into one analysis prompt
const maxTranscriptChars = 20000

const analysisInstructions = `You are an expert business analyst. Using the business description and the consultation
transcripts below, produce a business analysis. Respond with a single JSON object and nothing else, using exactly
this structure:
{
  "businessName": string,
  "swot": {"strengths": [string], "weaknesses": [string], "opportunities": [string], "threats": [string]},
  "financial": {
    "weeklyExpenses": {"<category>": number},
    "weeklyRevenue": {"projectedLow": number, "projectedHigh": number, "averageProjected": number, "revenueStreams": [string]}
  },
  "market": {"size": string, "growthRate": string, "targetCustomers": [string], "marketTrends": [string], "barriers": [string]},
  "competitors": [{"name": string, "annualRevenue": string, "marketShare": string, "strengths": [string], "weaknesses": [string]}],
  "licenses": [{"name": string, "cost": string, "timeToObtain": string, "authority": string, "required": boolean}],
  "actionItems": [{"priority": "high" | "medium" | "low", "task": string, "timeline": string, "cost": string}]
}
All money amounts are US dollars per week.`

// AnalysisService generates business reports from past consultations
type AnalysisService struct {
	businesses *BusinessService
	generator  repositories.TextGenerator
	logger     *zap.Logger
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(businesses *BusinessService, generator repositories.TextGenerator, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{businesses: businesses, generator: generator, logger: logger}
}

// Analyze produces the analysis of one of the user's businesses
func (s *AnalysisService) Analyze(ctx context.Context, userID, businessID string) (*entities.Analysis, error) {
	business, err := s.businesses.Get(ctx, userID, businessID)
	if err != nil {
		return nil, err
	}

	conversations, err := s.businesses.Conversations(ctx, userID, businessID)
	if err != nil {
		return nil, err
	}

	prompt := buildAnalysisPrompt(business, conversations)
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate analysis: %w", ErrUpstream, err)
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		s.logger.Warn("Malformed analysis response",
			zap.String("businessID", businessID),
			zap.Int("responseLength", len(raw)),
			zap.Error(err))
		return nil, err
	}
	analysis.BusinessName = business.Name

	s.logger.Info("Analysis generated",
		zap.String("businessID", businessID),
		zap.Int("conversations", len(conversations)))
	return analysis, nil
}

func buildAnalysisPrompt(business *entities.Business, conversations []*entities.ConversationDetail) string {
	var b strings.Builder
	b.WriteString(analysisInstructions)
	b.WriteString("\n\nBUSINESS\n")
	fmt.Fprintf(&b, "Name: %s\nType: %s\nIndustry: %s\n", business.Name, business.Type, business.Industry)
	if business.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", business.Description)
	}

	b.WriteString("\nCONSULTATIONS\n")
	remaining := maxTranscriptChars
	included := 0
	for _, conv := range conversations {
		if conv.Status != entities.ConversationStatusCompleted || strings.TrimSpace(conv.Transcript) == "" {
			continue
		}
		if remaining <= 0 {
			break
		}
		text := conv.Transcript
		if len(text) > remaining {
			text = text[:remaining]
		}
		remaining -= len(text)
		included++
		fmt.Fprintf(&b, "\n--- %s consultation on %s ---\n%s\n", conv.Type, conv.CreatedAt.Format("2006-01-02"), text)
	}
	if included == 0 {
		b.WriteString("No consultations recorded yet. Base the analysis on the business description.\n")
	}

	return b.String()
}

// parseAnalysis extracts the JSON object from a model response, tolerating
// code fences and surrounding prose
func parseAnalysis(raw string) (*entities.Analysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrAnalysisMalformed
	}

	var analysis entities.Analysis
	if err := json.Unmarshal([]byte(raw[start:end+1]), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisMalformed, err)
	}

	normalizeAnalysis(&analysis)
	return &analysis, nil
}

func normalizeAnalysis(a *entities.Analysis) {
	nonNil := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	a.SWOT.Strengths = nonNil(a.SWOT.Strengths)
	a.SWOT.Weaknesses = nonNil(a.SWOT.Weaknesses)
	a.SWOT.Opportunities = nonNil(a.SWOT.Opportunities)
	a.SWOT.Threats = nonNil(a.SWOT.Threats)
	a.Financial.WeeklyRevenue.RevenueStreams = nonNil(a.Financial.WeeklyRevenue.RevenueStreams)
	a.Market.TargetCustomers = nonNil(a.Market.TargetCustomers)
	a.Market.MarketTrends = nonNil(a.Market.MarketTrends)
	a.Market.Barriers = nonNil(a.Market.Barriers)
	if a.Financial.WeeklyExpenses == nil {
		a.Financial.WeeklyExpenses = map[string]float64{}
	}
	if a.Competitors == nil {
		a.Competitors = []entities.Competitor{}
	}
	if a.Licenses == nil {
		a.Licenses = []entities.License{}
	}
	if a.ActionItems == nil {
		a.ActionItems = []entities.ActionItem{}
	}
}
