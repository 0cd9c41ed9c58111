package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
)

func (s *server) register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	result, err := s.deps.Auth.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return respondError(c, err, s.logger)
	}
	return c.JSON(http.StatusCreated, result)
}

func (s *server) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	result, err := s.deps.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err, s.logger)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *server) listBusinesses(c echo.Context) error {
	businesses, err := s.deps.Businesses.List(c.Request().Context(), userID(c))
	if err != nil {
		return respondError(c, err, s.logger)
	}
	if businesses == nil {
		businesses = []*entities.BusinessSummary{}
	}
	return c.JSON(http.StatusOK, BusinessListResponse{Businesses: businesses})
}

// findOrCreateBusiness creates the proposed business, or returns the similar
// ones for confirmation. A created business becomes the current context.
func (s *server) findOrCreateBusiness(c echo.Context) error {
	var proposal entities.BusinessContext
	if err := c.Bind(&proposal); err != nil {
		return badRequest(c, "Invalid request format")
	}

	result, err := s.deps.Businesses.FindOrCreate(c.Request().Context(), userID(c), proposal)
	if err != nil {
		return respondError(c, err, s.logger)
	}
	if result.Business != nil {
		s.deps.Context.Select(userID(c), result.Business)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *server) createConfirmedBusiness(c echo.Context) error {
	var proposal entities.BusinessContext
	if err := c.Bind(&proposal); err != nil {
		return badRequest(c, "Invalid request format")
	}

	uid := userID(c)
	business, err := s.deps.Businesses.CreateConfirmed(c.Request().Context(), uid, proposal)
	if err != nil {
		return respondError(c, err, s.logger)
	}
	s.deps.Context.Select(uid, business)

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"action":   "created",
		"business": business,
	})
}

func (s *server) selectBusiness(c echo.Context) error {
	business, err := s.deps.Context.SelectByID(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return respondError(c, err, s.logger)
	}
	return c.JSON(http.StatusOK, BusinessResponse{Business: business})
}

func (s *server) businessConversations(c echo.Context) error {
	conversations, err := s.deps.Businesses.Conversations(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return respondError(c, err, s.logger)
	}
	if conversations == nil {
		conversations = []*entities.ConversationDetail{}
	}
	return c.JSON(http.StatusOK, ConversationListResponse{Conversations: conversations})
}

func (s *server) analyzeBusiness(c echo.Context) error {
	analysis, err := s.deps.Analysis.Analyze(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return respondError(c, err, s.logger)
	}
	return c.JSON(http.StatusOK, AnalysisResponse{Analysis: analysis})
}

func (s *server) getSession(c echo.Context) error {
	view := s.deps.Sessions.Get(userID(c)).Snapshot()
	return c.JSON(http.StatusOK, SessionResponse{Session: view})
}

func (s *server) startSession(c echo.Context) error {
	var req StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	view, err := s.deps.Sessions.Get(userID(c)).Start(c.Request().Context(), req.Mode)
	if err != nil {
		return respondError(c, err, s.logger)
	}
	return c.JSON(http.StatusCreated, SessionResponse{Session: view})
}

func (s *server) sendMessage(c echo.Context) error {
	var req ChatMessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	turn, err := s.deps.Sessions.Get(userID(c)).SendChatMessage(c.Request().Context(), req.Text)
	if err != nil {
		return respondError(c, err, s.logger)
	}
	return c.JSON(http.StatusOK, ChatMessageResponse{Reply: turn})
}

// endSession answers 200 with a warning when the session closed but a
// teardown step failed
func (s *server) endSession(c echo.Context) error {
	result, err := s.deps.Sessions.Get(userID(c)).End(c.Request().Context())
	if result == nil {
		return respondError(c, err, s.logger)
	}

	resp := EndSessionResponse{EndResult: result}
	if err != nil {
		s.logger.Warn("Session closed with teardown errors", zap.String("sessionID", result.SessionID), zap.Error(err))
		resp.Warning = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *server) handleWebSocket(c echo.Context) error {
	uid := userID(c)
	s.logger.Info("WebSocket connection authenticated", zap.String("userID", uid))
	return s.deps.Hub.HandleWebSocket(c, uid)
}
