// Package voice relays browser WebSocket connections to an upstream
// realtime speech API. The relay injects the session persona, forwards
// audio in both directions, and executes web_search function calls on the
// server so the browser never holds API credentials.
package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/tools"
)

// Persona selects the instruction set injected at session start.
type Persona string

const (
	PersonaStudent Persona = "student"
	PersonaTeacher Persona = "teacher"
)

// Client message types.
const (
	msgStartSession       = "start_session"
	msgStopSession        = "stop_session"
	msgAudioChunk         = "audio_chunk"
	msgFunctionCallOutput = "function_call_output"
)

// webSearchFunction is the function name the upstream model calls for
// fresh information.
const webSearchFunction = "web_search"

const dialTimeout = 15 * time.Second

// forwardedEvents are the upstream event types passed through to the
// client.
var forwardedEvents = map[string]bool{
	"session.created":                   true,
	"response.audio.delta":              true,
	"response.audio.done":               true,
	"conversation.item.create":          true,
	"input_audio_buffer.speech_started": true,
	"input_audio_buffer.speech_stopped": true,
	"response.error":                    true,
	"response.completed":                true,
	"response.done":                     true,
	"session.terminated":                true,
	"error":                             true,

	"conversation.item.input_audio_transcription.completed": true,
}

// Searcher answers the model's web_search function calls.
// *tools.WebSearcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) (*tools.Answer, error)
}

// Config holds the dependencies for a Relay.
type Config struct {
	UpstreamURL string // wss URL of the realtime API, including the model parameter
	APIKey      string
	Searcher    Searcher            // optional, web_search degrades without it
	Dialer      *websocket.Dialer   // optional
	Upgrader    *websocket.Upgrader // optional
	Logger      log.Logger
}

func (c Config) validate() error {
	if c.UpstreamURL == "" {
		return errors.New("upstream URL is required")
	}
	if c.APIKey == "" {
		return errors.New("API key is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Relay bridges client WebSocket connections to the realtime API.
type Relay struct {
	upstreamURL string
	apiKey      string
	searcher    Searcher
	dialer      *websocket.Dialer
	upgrader    websocket.Upgrader
	logger      log.Logger
}

// NewRelay creates a Relay.
func NewRelay(cfg Config) (*Relay, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}
	upgrader := websocket.Upgrader{ReadBufferSize: 1 << 16, WriteBufferSize: 1 << 16}
	if cfg.Upgrader != nil {
		upgrader = *cfg.Upgrader
	}
	return &Relay{
		upstreamURL: cfg.UpstreamURL,
		apiKey:      cfg.APIKey,
		searcher:    cfg.Searcher,
		dialer:      dialer,
		upgrader:    upgrader,
		logger:      cfg.Logger,
	}, nil
}

// StudentHandler serves voice sessions with the study buddy persona.
func (r *Relay) StudentHandler() http.HandlerFunc {
	return r.handler(PersonaStudent)
}

// TeacherHandler serves voice sessions with the teaching assistant persona.
func (r *Relay) TeacherHandler() http.HandlerFunc {
	return r.handler(PersonaTeacher)
}

func (r *Relay) handler(persona Persona) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		client, err := r.upgrader.Upgrade(w, req, nil)
		if err != nil {
			r.logger.Warn("websocket upgrade failed", "persona", persona, "error", err)
			return
		}
		defer client.Close()

		s := &session{relay: r, persona: persona, client: client,
			logger: r.logger.With("persona", string(persona))}
		s.run(req.Context())
	}
}

// clientMessage is one JSON frame from the browser.
type clientMessage struct {
	Type        string         `json:"type"`
	StudentData map[string]any `json:"student_data,omitempty"`
	TeacherData map[string]any `json:"teacher_data,omitempty"`
	Audio       string         `json:"audio,omitempty"`
	CallID      string         `json:"call_id,omitempty"`
	Output      string         `json:"output,omitempty"`
}

// session is one live relay: a client connection, at most one upstream
// connection, and the pump goroutine forwarding upstream events.
type session struct {
	relay   *Relay
	persona Persona
	client  *websocket.Conn
	logger  log.Logger

	clientMu   sync.Mutex
	upstreamMu sync.Mutex
	upstream   *websocket.Conn
	closing    atomic.Bool
	wg         sync.WaitGroup
}

func (s *session) run(ctx context.Context) {
	// The upstream must close before the wait so pumpUpstream's read
	// unblocks and the goroutine can finish.
	defer s.wg.Wait()
	defer s.closeUpstream()

	for {
		var msg clientMessage
		if err := s.client.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("client read ended", "error", err)
			}
			return
		}

		switch msg.Type {
		case msgStartSession:
			if err := s.startUpstream(ctx, msg); err != nil {
				s.logger.Warn("voice session start failed", "error", err)
				s.sendClient(map[string]any{
					"type":    "error",
					"message": fmt.Sprintf("Failed to start voice session: %v", err),
				})
			}

		case msgStopSession:
			return

		case msgAudioChunk:
			s.sendUpstream(map[string]any{
				"type":  "input_audio_buffer.append",
				"audio": msg.Audio,
			})

		case msgFunctionCallOutput:
			s.sendUpstream(map[string]any{
				"type": "conversation.item.create",
				"item": map[string]any{
					"type":    "function_call_output",
					"call_id": msg.CallID,
					"output":  msg.Output,
				},
			})

		default:
			s.logger.Debug("ignoring unknown client message", "type", msg.Type)
		}
	}
}

// startUpstream dials the realtime API and configures the session with the
// persona instructions. Idempotent per session: a second start_session is
// rejected.
func (s *session) startUpstream(ctx context.Context, msg clientMessage) error {
	s.upstreamMu.Lock()
	already := s.upstream != nil
	s.upstreamMu.Unlock()
	if already {
		return errors.New("session already started")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.relay.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := s.relay.dialer.DialContext(dialCtx, s.relay.upstreamURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dialing realtime API (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dialing realtime API: %w", err)
	}

	instructions := studentInstructions(msg.StudentData)
	if s.persona == PersonaTeacher {
		instructions = teacherInstructions(msg.TeacherData)
	}
	if err := conn.WriteJSON(newSessionUpdate(instructions)); err != nil {
		conn.Close()
		return fmt.Errorf("configuring realtime session: %w", err)
	}

	s.upstreamMu.Lock()
	s.upstream = conn
	s.upstreamMu.Unlock()

	s.sendClient(map[string]any{
		"type":    "session_started",
		"message": "Real-time voice session started",
	})
	s.logger.Info("voice session started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pumpUpstream(ctx, conn)
	}()
	return nil
}

// pumpUpstream forwards upstream events to the client and executes
// web_search function calls server-side. When the upstream closes, the
// client connection is closed too so run's read loop unblocks.
func (s *session) pumpUpstream(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		s.clientMu.Lock()
		s.client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.clientMu.Unlock()
		s.client.Close()
	}()

	for {
		var event map[string]any
		if err := conn.ReadJSON(&event); err != nil {
			if !s.closing.Load() &&
				!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("upstream connection lost", "error", err)
				s.sendClient(map[string]any{"type": "error", "message": "realtime connection lost"})
			}
			return
		}

		eventType, _ := event["type"].(string)
		switch {
		case eventType == "response.audio.delta":
			// Re-key delta to audio for the client player.
			s.sendClient(map[string]any{
				"type":          eventType,
				"audio":         event["delta"],
				"response_id":   event["response_id"],
				"item_id":       event["item_id"],
				"output_index":  event["output_index"],
				"content_index": event["content_index"],
			})
		case forwardedEvents[eventType]:
			s.sendClient(event)
		}

		if eventType == "response.output_item.added" {
			s.handleFunctionCall(ctx, event)
		}
		if eventType == "session.terminated" || eventType == "error" {
			return
		}
	}
}

// handleFunctionCall executes a web_search function call and returns the
// result to the upstream conversation.
func (s *session) handleFunctionCall(ctx context.Context, event map[string]any) {
	item, _ := event["item"].(map[string]any)
	if item == nil {
		return
	}
	itemType, _ := item["type"].(string)
	name, _ := item["name"].(string)
	if itemType != "function_call" || name != webSearchFunction {
		return
	}

	var args struct {
		Query string `json:"query"`
	}
	if raw, _ := item["arguments"].(string); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			s.logger.Warn("malformed function call arguments", "error", err)
		}
	}

	s.logger.Info("executing voice web search", "query", args.Query)
	callID, _ := item["call_id"].(string)
	s.sendUpstream(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  s.search(ctx, args.Query),
		},
	})
}

func (s *session) search(ctx context.Context, query string) string {
	if s.relay.searcher == nil {
		return "Web search is not available at the moment."
	}
	answer, err := s.relay.searcher.Search(ctx, query)
	if err != nil {
		s.logger.Warn("voice web search failed", "query", query, "error", err)
		return fmt.Sprintf("Error performing search: %v", err)
	}
	return tools.FormatAnswer(answer)
}

func (s *session) sendClient(payload map[string]any) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	if err := s.client.WriteJSON(payload); err != nil {
		s.logger.Debug("client write failed", "error", err)
	}
}

func (s *session) sendUpstream(payload map[string]any) {
	s.upstreamMu.Lock()
	defer s.upstreamMu.Unlock()
	if s.upstream == nil {
		s.logger.Debug("dropping message, session not started")
		return
	}
	if err := s.upstream.WriteJSON(payload); err != nil {
		s.logger.Debug("upstream write failed", "error", err)
	}
}

func (s *session) closeUpstream() {
	s.closing.Store(true)
	s.upstreamMu.Lock()
	defer s.upstreamMu.Unlock()
	if s.upstream != nil {
		s.upstream.Close()
		s.upstream = nil
	}
}

// newSessionUpdate builds the realtime session configuration frame.
func newSessionUpdate(instructions string) map[string]any {
	return map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":   []string{"audio", "text"},
			"instructions": instructions,
			"voice":        "cedar",
			"turn_detection": map[string]any{
				"type":                "server_vad",
				"threshold":           0.5,
				"prefix_padding_ms":   300,
				"silence_duration_ms": 500,
			},
			"input_audio_transcription":   map[string]any{"model": "gpt-4o-transcribe"},
			"input_audio_noise_reduction": map[string]any{"type": "near_field"},
			"tools": []map[string]any{
				{
					"type":        "function",
					"name":        webSearchFunction,
					"description": "Search the web for fresh information and examples.",
					"parameters": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"query": map[string]any{
								"type":        "string",
								"description": "Natural language search query",
							},
						},
						"required": []string{"query"},
					},
				},
			},
			"tool_choice": "auto",
		},
	}
}
