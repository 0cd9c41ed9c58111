// Command wsclient runs one consultation against a running server: it signs
// in, opens the WebSocket, answers the business prompts, exchanges chat
// messages or streams an audio file, and prints the final transcript.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/businessboom/server/domain/entities"
	"github.com/businessboom/server/internal/logger"
	ws "github.com/businessboom/server/internal/websocket"
)

const audioChunkSize = 32 * 1024

type options struct {
	server   string
	email    string
	password string
	mode     string
	messages []string
	audio    string
	business entities.BusinessContext
	timeout  time.Duration
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "wsclient",
		Short: "Run a consultation session against a Business Boom server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("", false)
			defer log.Sync()
			return run(opts, log)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.server, "server", "s", "http://localhost:8080", "Server base URL")
	flags.StringVar(&opts.email, "email", "demo@example.com", "Account email, registered when unknown")
	flags.StringVar(&opts.password, "password", "demo-password", "Account password")
	flags.StringVarP(&opts.mode, "mode", "m", string(entities.SessionModeChat), "Session mode (chat or video)")
	flags.StringArrayVar(&opts.messages, "message", []string{"How should I price my product?"}, "Chat message to send, repeatable")
	flags.StringVar(&opts.audio, "audio", "", "Audio file streamed as the session recording")
	flags.StringVar(&opts.business.Name, "business-name", "Campus Coffee", "Business name sent when the server asks")
	flags.StringVar(&opts.business.Type, "business-type", "startup", "Business type sent when the server asks")
	flags.StringVar(&opts.business.Industry, "industry", "food_beverage", "Industry sent when the server asks")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Maximum time to wait for a server message")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts options, log *zap.Logger) error {
	token, err := signIn(opts)
	if err != nil {
		return err
	}
	log.Info("Signed in", zap.String("email", opts.email))

	wsURL, err := url.Parse(opts.server)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	wsURL.Path = "/ws"
	wsURL.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()
	log.Info("WebSocket connected", zap.String("host", wsURL.Host))

	s := &session{conn: conn, opts: opts, log: log}
	if err := s.send(ws.InboundMessage{BaseMessage: ws.BaseMessage{Type: ws.MessageTypePing}, Data: "wsclient"}); err != nil {
		return err
	}
	if err := s.send(ws.InboundMessage{
		BaseMessage: ws.BaseMessage{Type: ws.MessageTypeStartSession},
		Mode:        entities.SessionMode(opts.mode),
	}); err != nil {
		return err
	}
	return s.loop()
}

type session struct {
	conn    *websocket.Conn
	opts    options
	log     *zap.Logger
	pending []string
}

func (s *session) send(msg ws.InboundMessage) error {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	return nil
}

func (s *session) loop() error {
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.timeout)); err != nil {
			return err
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid server message: %w", err)
		}
		var msgType ws.MessageType
		_ = json.Unmarshal(raw["type"], &msgType)

		done, err := s.handle(msgType, data)
		if err != nil || done {
			return err
		}
	}
}

func (s *session) handle(msgType ws.MessageType, data []byte) (bool, error) {
	switch msgType {
	case ws.MessageTypePong:
		s.log.Debug("Received pong")

	case ws.MessageTypeStatus:
		var msg ws.StatusMessage
		_ = json.Unmarshal(data, &msg)
		s.log.Info("Status", zap.String("status", msg.Status))

	case ws.MessageTypeBusinessContextRequired:
		business := s.opts.business
		s.log.Info("Sending business context", zap.String("businessName", business.Name))
		return false, s.send(ws.InboundMessage{
			BaseMessage: ws.BaseMessage{Type: ws.MessageTypeBusinessContext},
			Business:    &business,
		})

	case ws.MessageTypeBusinessConfirmRequired:
		var msg ws.BusinessConfirmRequiredMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return false, err
		}
		answer := ws.InboundMessage{BaseMessage: ws.BaseMessage{Type: ws.MessageTypeBusinessConfirm}}
		if len(msg.Similar) > 0 {
			answer.BusinessID = msg.Similar[0].ID
			s.log.Info("Reusing existing business", zap.String("businessName", msg.Similar[0].Name))
		} else {
			answer.CreateNew = true
		}
		return false, s.send(answer)

	case ws.MessageTypeSessionStarted:
		if s.opts.mode == string(entities.SessionModeVideo) && s.opts.audio != "" {
			if err := s.streamAudio(); err != nil {
				return false, err
			}
		}
		s.pending = append([]string(nil), s.opts.messages...)
		if s.opts.mode == string(entities.SessionModeVideo) {
			s.pending = nil
		}
		return false, s.next()

	case ws.MessageTypeChatReply:
		var msg ws.ChatReplyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return false, err
		}
		fmt.Printf("AI: %s\n\n", msg.Turn.Text)
		return false, s.next()

	case ws.MessageTypeSessionEnded:
		var msg ws.SessionEndedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return false, err
		}
		if msg.Result != nil {
			fmt.Println(msg.Result.Transcript)
			s.log.Info("Session ended",
				zap.Int("durationSeconds", msg.Result.DurationSeconds),
				zap.String("audio", msg.Result.Audio.Stored))
		}
		if msg.Error != "" {
			return true, errors.New(msg.Error)
		}
		return true, nil

	case ws.MessageTypeError:
		var msg ws.ErrorMessage
		_ = json.Unmarshal(data, &msg)
		if msg.Code == "audio_capture_limit" || msg.Code == "audio_capture_failed" {
			s.log.Warn("Audio capture stopped", zap.String("code", msg.Code), zap.String("message", msg.Message))
			return false, nil
		}
		return true, fmt.Errorf("server error %s: %s", msg.Code, msg.Message)

	default:
		s.log.Debug("Ignoring message", zap.String("type", string(msgType)))
	}
	return false, nil
}

// next sends the following chat message, or ends the session when none is left
func (s *session) next() error {
	if len(s.pending) == 0 {
		return s.send(ws.InboundMessage{BaseMessage: ws.BaseMessage{Type: ws.MessageTypeEndSession}})
	}
	text := s.pending[0]
	s.pending = s.pending[1:]
	fmt.Printf("YOU: %s\n", text)
	return s.send(ws.InboundMessage{BaseMessage: ws.BaseMessage{Type: ws.MessageTypeChatMessage}, Text: text})
}

func (s *session) streamAudio() error {
	f, err := os.Open(s.opts.audio)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, audioChunkSize)
	chunks := 0
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if werr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return fmt.Errorf("failed to send audio chunk: %w", werr)
			}
			chunks++
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read audio file: %w", err)
		}
	}
	s.log.Info("Audio streamed", zap.Int("chunks", chunks))
	return nil
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// signIn logs in, registering the account on first use
func signIn(opts options) (string, error) {
	req := authRequest{Email: opts.email, Password: opts.password}
	token, status, err := postAuth(opts.server+"/api/v1/auth/login", req)
	if err == nil {
		return token, nil
	}
	if status != http.StatusUnauthorized {
		return "", err
	}

	req.Name = strings.Split(opts.email, "@")[0]
	token, _, err = postAuth(opts.server+"/api/v1/auth/register", req)
	return token, err
}

func postAuth(endpoint string, req authRequest) (string, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", 0, err
	}

	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if resp.StatusCode >= 300 || out.Token == "" {
		return "", resp.StatusCode, fmt.Errorf("auth failed with status %d: %s", resp.StatusCode, out.Message)
	}
	return out.Token, resp.StatusCode, nil
}
