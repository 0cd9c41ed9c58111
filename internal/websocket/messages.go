package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Messages sent by the client
const (
	MessageTypeStartSession    MessageType = "start_session"
	MessageTypeEndSession      MessageType = "end_session"
	MessageTypeChatMessage     MessageType = "chat_message"
	MessageTypeSelectMode      MessageType = "select_mode"
	MessageTypeBusinessContext MessageType = "business_context"
	MessageTypeBusinessConfirm MessageType = "business_confirm"
	MessageTypePing            MessageType = "ping"
)

// Messages sent by the server
const (
	MessageTypeStatus                  MessageType = "status"
	MessageTypeSessionStarted          MessageType = "session_started"
	MessageTypeSessionEnded            MessageType = "session_ended"
	MessageTypeChatReply               MessageType = "chat_reply"
	MessageTypeModeSelected            MessageType = "mode_selected"
	MessageTypeBusinessContextRequired MessageType = "business_context_required"
	MessageTypeBusinessConfirmRequired MessageType = "business_confirm_required"
	MessageTypePong                    MessageType = "pong"
	MessageTypeError                   MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// InboundMessage is any control message sent by the client. Only the fields
// relevant to Type are set.
type InboundMessage struct {
	BaseMessage
	Mode       entities.SessionMode      `json:"mode,omitempty"`
	Text       string                    `json:"text,omitempty"`
	Business   *entities.BusinessContext `json:"business,omitempty"`
	BusinessID string                    `json:"business_id,omitempty"`
	CreateNew  bool                      `json:"create_new,omitempty"`
	Cancelled  bool                      `json:"cancelled,omitempty"`
	Data       string                    `json:"data,omitempty"`
}

type StatusMessage struct {
	BaseMessage
	Status string `json:"status"`
}

type SessionStartedMessage struct {
	BaseMessage
	Session *usecase.SessionView `json:"session"`
}

type SessionEndedMessage struct {
	BaseMessage
	Result *usecase.EndResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

type ModeSelectedMessage struct {
	BaseMessage
	Mode entities.SessionMode `json:"mode"`
}

type ChatReplyMessage struct {
	BaseMessage
	Turn entities.ChatTurn `json:"turn"`
}

// BusinessContextRequiredMessage asks the client to show the business form
type BusinessContextRequiredMessage struct {
	BaseMessage
	BusinessTypes []string `json:"business_types"`
	Industries    []string `json:"industries"`
}

// BusinessConfirmRequiredMessage asks the client to pick a similar business
// or confirm creating the proposed one
type BusinessConfirmRequiredMessage struct {
	BaseMessage
	Proposed entities.BusinessContext    `json:"proposed_business"`
	Similar  []*entities.SimilarBusiness `json:"similar_businesses"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ParseInbound decodes and validates a control message
func ParseInbound(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	if msg.Timestamp == "" {
		msg.Timestamp = now()
	}

	switch msg.Type {
	case MessageTypeStartSession:
		if msg.Mode != "" {
			if err := msg.Mode.Validate(); err != nil {
				return nil, err
			}
		}
	case MessageTypeSelectMode:
		if err := msg.Mode.Validate(); err != nil {
			return nil, err
		}
	case MessageTypeChatMessage:
		if strings.TrimSpace(msg.Text) == "" {
			return nil, fmt.Errorf("text is required")
		}
	case MessageTypeBusinessContext:
		if !msg.Cancelled && msg.Business == nil {
			return nil, fmt.Errorf("business is required")
		}
	case MessageTypeBusinessConfirm:
		if !msg.Cancelled && msg.BusinessID == "" && !msg.CreateNew {
			return nil, fmt.Errorf("business_id or create_new is required")
		}
	case MessageTypeEndSession, MessageTypePing:
	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}

	return &msg, nil
}

func base(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: now()}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: base(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: base(MessageTypePong), Data: data}
}

func CreateStatusMessage(status string) *StatusMessage {
	return &StatusMessage{BaseMessage: base(MessageTypeStatus), Status: status}
}

// errorFromUsecase maps a usecase failure to an error message
func errorFromUsecase(err error) *ErrorMessage {
	return CreateErrorMessage(ErrorCode(err), err.Error(), "")
}

// ErrorCode names the failure class of err for clients
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, usecase.ErrSessionActive):
		return "session_active"
	case errors.Is(err, usecase.ErrSessionBusy):
		return "session_busy"
	case errors.Is(err, usecase.ErrNoActiveSession):
		return "no_active_session"
	case errors.Is(err, usecase.ErrWrongMode):
		return "wrong_mode"
	case errors.Is(err, usecase.ErrEmptyMessage), errors.Is(err, usecase.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, usecase.ErrBusinessContextRequired):
		return "business_context_required"
	case errors.Is(err, usecase.ErrVideoUnavailable):
		return "video_unavailable"
	case errors.Is(err, entities.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, usecase.ErrUpstream):
		return "upstream_failed"
	default:
		return "internal_error"
	}
}
