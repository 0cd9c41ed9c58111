package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/businessboom/server/internal/auth"
	"github.com/businessboom/server/internal/websocket"
	"github.com/businessboom/server/usecase"
)

// Dependencies are the services exposed over HTTP
type Dependencies struct {
	Auth       *usecase.AuthService
	Tokens     *auth.TokenIssuer
	Businesses *usecase.BusinessService
	Context    *usecase.ContextResolver
	Analysis   *usecase.AnalysisService
	Sessions   *usecase.SessionRegistry
	Hub        *websocket.Hub
}

type server struct {
	deps   Dependencies
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	s := &server{deps: deps, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "business-boom-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/register", s.register)
	v1.POST("/auth/login", s.login)

	authed := v1.Group("", requireUser(deps.Tokens, logger))

	authed.GET("/businesses", s.listBusinesses)
	authed.POST("/businesses/find-or-create", s.findOrCreateBusiness)
	authed.POST("/businesses/create-confirmed", s.createConfirmedBusiness)
	authed.POST("/businesses/:id/select", s.selectBusiness)
	authed.GET("/businesses/:id/conversations", s.businessConversations)
	authed.POST("/businesses/:id/analysis", s.analyzeBusiness)

	authed.GET("/session", s.getSession)
	authed.POST("/session/start", s.startSession)
	authed.POST("/session/messages", s.sendMessage)
	authed.POST("/session/end", s.endSession)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", s.handleWebSocket, requireUser(deps.Tokens, logger))
}
