package usecase

import "github.com/businessboom/server/domain/repositories"

// ConsultantSystemPrompt is the system instruction for chat-mode completions
const ConsultantSystemPrompt = "You are an expert business consultant AI. Help entrepreneurs with business planning, " +
	"SWOT analysis, market research, startup costs, financial projections, and strategic recommendations. " +
	"Be conversational, ask follow-up questions, and provide specific actionable advice."

// ConsultationVideoConfig is sent to the video provider when a video session starts
var ConsultationVideoConfig = repositories.VideoSessionConfig{
	Name: "Business Consultation",
	Context: "You are a business consultant helping an entrepreneur analyze their business idea. " +
		"Provide expert advice on business planning, market analysis, and strategic recommendations.",
	Greeting: "Hello! I'm your AI business consultant. What business idea would you like to discuss today?",
}

// Status lines pushed to the user while a session moves through its lifecycle
const (
	StatusCreating       = "Creating conversation..."
	StatusVideoRecording = "Conversation active - you can now talk (Recording in progress)"
	StatusVideoActive    = "Conversation active - you can now talk"
	StatusChatActive     = "Text chat mode active"
	StatusStartFailed    = "Failed to start conversation"
	StatusEnding         = "Ending conversation..."
	StatusEndFailed      = "Error ending conversation"
	StatusReady          = "Ready to start conversation"
)
