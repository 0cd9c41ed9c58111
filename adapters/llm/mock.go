package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/businessboom/server/domain/repositories"
)

// MockLLM answers without calling a provider. It is used for local runs and
// demos where no API key is configured.
type MockLLM struct{}

var (
	_ repositories.ChatCompletion = MockLLM{}
	_ repositories.TextGenerator  = MockLLM{}
)

// Complete implements repositories.ChatCompletion
func (MockLLM) Complete(ctx context.Context, systemPrompt string, history []repositories.ChatMessage) (string, error) {
	if len(history) == 0 {
		return "Welcome! Tell me about the business you want to build.", nil
	}
	last := strings.TrimSpace(history[len(history)-1].Content)
	return fmt.Sprintf("Thanks for sharing that. You said: %q. What is your biggest obstacle right now?", last), nil
}

// Generate implements repositories.TextGenerator with a minimal valid report
func (MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return `{"swot":{"strengths":["Clear concept"],"weaknesses":["Limited data"],"opportunities":["Local demand"],"threats":["Competition"]},` +
		`"financial":{"weeklyExpenses":{"rent":500},"weeklyRevenue":{"projectedLow":800,"projectedHigh":1500,"averageProjected":1150,"revenueStreams":["Sales"]}},` +
		`"market":{"size":"Unknown","growthRate":"Unknown","targetCustomers":[],"marketTrends":[],"barriers":[]},` +
		`"competitors":[],"licenses":[],"actionItems":[{"priority":"high","task":"Validate demand","timeline":"2 weeks","cost":"$0"}]}`, nil
}
