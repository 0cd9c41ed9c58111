package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	chatTimeout = 2 * time.Minute

	// Chat messages waiting for the exchange in progress.
	chatQueueSize = 32
)

// ErrClientGone is returned to a pending prompt when the connection closes
var ErrClientGone = errors.New("client disconnected")

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the user's
// session controller. It also serves as the controller's notifier and
// business context prompter.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Chat messages in arrival order, drained by chatPump.
	chatQueue chan string

	userID     string
	controller *usecase.SessionController
	logger     *zap.Logger

	// ctx is cancelled when the connection goes away
	ctx    context.Context
	cancel context.CancelFunc

	closeMu sync.RWMutex
	closed  bool

	modeMu sync.Mutex
	mode   entities.SessionMode

	waitMu  sync.Mutex
	waiters map[MessageType]chan *InboundMessage
}

var (
	_ usecase.Notifier                = (*Client)(nil)
	_ usecase.BusinessContextPrompter = (*Client)(nil)
)

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan WriteData, 256),
		chatQueue:  make(chan string, chatQueueSize),
		userID:     userID,
		controller: hub.sessions.Get(userID),
		logger:     hub.logger.With(zap.String("userID", userID)),
		ctx:        ctx,
		cancel:     cancel,
		waiters:    make(map[MessageType]chan *InboundMessage),
		mode:       entities.SessionModeVideo,
	}
}

// readPump pumps messages from the websocket connection to the controller.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the send channel to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// chatPump runs chat exchanges one at a time in the order they arrived. It
// stays off the read loop so prompts can be answered meanwhile.
func (c *Client) chatPump() {
	for {
		select {
		case text := <-c.chatQueue:
			c.handleChat(text)
		case <-c.ctx.Done():
			return
		}
	}
}

// processMessage dispatches a control message. Lifecycle requests run in
// their own goroutine so prompts can be answered meanwhile.
func (c *Client) processMessage(message []byte) {
	msg, err := ParseInbound(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "message rejected", err.Error()))
		return
	}

	switch msg.Type {
	case MessageTypeStartSession:
		mode := msg.Mode
		if mode == "" {
			mode = c.selectedMode()
		}
		go c.handleStart(mode)
	case MessageTypeSelectMode:
		c.handleSelectMode(msg.Mode)
	case MessageTypeEndSession:
		go c.handleEnd()
	case MessageTypeChatMessage:
		select {
		case c.chatQueue <- msg.Text:
		default:
			c.sendJSON(CreateErrorMessage("chat_queue_full", "too many chat messages waiting for a reply", ""))
		}
	case MessageTypeBusinessContext, MessageTypeBusinessConfirm:
		if !c.deliver(msg) {
			c.sendJSON(CreateErrorMessage("no_prompt_pending", "no prompt is waiting for this answer", string(msg.Type)))
		}
	case MessageTypePing:
		c.sendJSON(CreatePongMessage(msg.Data))
	}
}

// processBinaryAudioChunk feeds the live recording
func (c *Client) processBinaryAudioChunk(data []byte) {
	err := c.controller.WriteAudio(data)
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrNoRecording), errors.Is(err, usecase.ErrNoActiveSession):
		c.logger.Debug("Dropping audio chunk", zap.Int("size", len(data)), zap.Error(err))
	case errors.Is(err, usecase.ErrRecordingLimit):
		c.sendJSON(CreateErrorMessage("audio_capture_limit", "recording limit reached, the audio so far is kept", err.Error()))
	default:
		c.logger.Warn("Audio capture stopped", zap.Error(err))
		c.sendJSON(CreateErrorMessage("audio_capture_failed", "recording stopped, the session continues without audio", err.Error()))
	}
}

func (c *Client) handleStart(mode entities.SessionMode) {
	view, err := c.controller.Start(c.ctx, mode)
	if err != nil {
		c.sendJSON(errorFromUsecase(err))
		return
	}
	c.sendJSON(&SessionStartedMessage{BaseMessage: base(MessageTypeSessionStarted), Session: view})
}

// handleSelectMode changes the mode used by the next start_session. The mode
// of a running session cannot change.
func (c *Client) handleSelectMode(mode entities.SessionMode) {
	if state := c.controller.State(); state != usecase.StateIdle {
		c.sendJSON(errorFromUsecase(usecase.ErrSessionActive))
		return
	}

	c.modeMu.Lock()
	c.mode = mode
	c.modeMu.Unlock()
	c.sendJSON(&ModeSelectedMessage{BaseMessage: base(MessageTypeModeSelected), Mode: mode})
	go c.handlePrepare()
}

// handlePrepare collects the business context ahead of start_session. A start
// arriving while the prompt is open waits for the same answer.
func (c *Client) handlePrepare() {
	if _, err := c.controller.EnsureBusinessContext(c.ctx); err != nil {
		c.logger.Info("Business context not collected", zap.Error(err))
		c.sendJSON(errorFromUsecase(err))
	}
}

func (c *Client) selectedMode() entities.SessionMode {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()
	return c.mode
}

func (c *Client) handleEnd() {
	result, err := c.controller.End(c.ctx)
	if result == nil && err != nil {
		c.sendJSON(errorFromUsecase(err))
		return
	}

	msg := &SessionEndedMessage{BaseMessage: base(MessageTypeSessionEnded), Result: result}
	if err != nil {
		msg.Error = err.Error()
	}
	c.sendJSON(msg)
}

func (c *Client) handleChat(text string) {
	ctx, cancel := context.WithTimeout(c.ctx, chatTimeout)
	defer cancel()

	turn, err := c.controller.SendChatMessage(ctx, text)
	if err != nil {
		c.sendJSON(errorFromUsecase(err))
		return
	}
	c.sendJSON(&ChatReplyMessage{BaseMessage: base(MessageTypeChatReply), Turn: turn})
}

// Notify implements usecase.Notifier
func (c *Client) Notify(status string) {
	c.sendJSON(CreateStatusMessage(status))
}

// PromptBusinessContext implements usecase.BusinessContextPrompter
func (c *Client) PromptBusinessContext(ctx context.Context) (entities.BusinessContext, error) {
	reply, err := c.await(ctx, MessageTypeBusinessContext, &BusinessContextRequiredMessage{
		BaseMessage:   base(MessageTypeBusinessContextRequired),
		BusinessTypes: entities.BusinessTypes,
		Industries:    entities.Industries,
	})
	if err != nil {
		return entities.BusinessContext{}, err
	}
	if reply.Cancelled || reply.Business == nil {
		return entities.BusinessContext{}, usecase.ErrPromptCancelled
	}
	return *reply.Business, nil
}

// ConfirmBusiness implements usecase.BusinessContextPrompter
func (c *Client) ConfirmBusiness(ctx context.Context, proposed entities.BusinessContext, similar []*entities.SimilarBusiness) (usecase.BusinessChoice, error) {
	reply, err := c.await(ctx, MessageTypeBusinessConfirm, &BusinessConfirmRequiredMessage{
		BaseMessage: base(MessageTypeBusinessConfirmRequired),
		Proposed:    proposed,
		Similar:     similar,
	})
	if err != nil {
		return usecase.BusinessChoice{}, err
	}
	if reply.Cancelled {
		return usecase.BusinessChoice{}, usecase.ErrPromptCancelled
	}
	return usecase.BusinessChoice{BusinessID: reply.BusinessID, CreateNew: reply.CreateNew}, nil
}

// await sends request and waits for the client's answer of the given type
func (c *Client) await(ctx context.Context, answer MessageType, request interface{}) (*InboundMessage, error) {
	ch := make(chan *InboundMessage, 1)

	c.waitMu.Lock()
	c.waiters[answer] = ch
	c.waitMu.Unlock()

	defer func() {
		c.waitMu.Lock()
		if c.waiters[answer] == ch {
			delete(c.waiters, answer)
		}
		c.waitMu.Unlock()
	}()

	c.sendJSON(request)

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrClientGone
	}
}

// deliver hands an answer to the prompt waiting for it
func (c *Client) deliver(msg *InboundMessage) bool {
	c.waitMu.Lock()
	ch, ok := c.waiters[msg.Type]
	delete(c.waiters, msg.Type)
	c.waitMu.Unlock()

	if !ok {
		return false
	}
	ch <- msg
	return true
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) enqueue(data WriteData) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()

	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

// close stops the write pump and fails pending prompts. Safe to call twice.
func (c *Client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
}
