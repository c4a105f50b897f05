package hass

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tickship/tickship/internal/domain"
	"github.com/tickship/tickship/internal/metrics"
	"github.com/tickship/tickship/internal/ports"
	"github.com/tickship/tickship/pkg/log"
)

// Subscription ids for the two event streams.
const (
	subStateChanged = 1
	subLogbookEntry = 2
)

// Config holds the Home Assistant websocket settings.
type Config struct {
	// URL is the websocket endpoint, e.g.
	// ws://homeassistant.local:8123/api/websocket.
	URL string

	// Token is a long-lived access token.
	Token string

	// HandshakeTimeout bounds the websocket dial. Zero means the gorilla
	// default.
	HandshakeTimeout time.Duration
}

// Source subscribes to a Home Assistant instance's event bus over its
// websocket API and feeds state_changed and logbook_entry events to a sink.
// Connection loss is handled internally with backoff; only authentication
// rejection is fatal.
type Source struct {
	cfg    Config
	logger log.Logger
	dialer *websocket.Dialer
}

// NewSource creates a source; Run does the connecting.
func NewSource(cfg Config, logger log.Logger) *Source {
	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	return &Source{cfg: cfg, logger: logger, dialer: dialer}
}

// Run connects, authenticates, subscribes, and pumps events into sink until
// the context is canceled. Lost connections reconnect with exponential
// backoff.
func (s *Source) Run(ctx context.Context, sink ports.EventSink) error {
	back := newBackoff(time.Second, 30*time.Second)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.session(ctx, sink, back)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errAuth(err) {
			return err
		}

		metrics.SourceReconnects.Inc()
		delay := back.Next()
		s.logger.Warn("event source disconnected, reconnecting",
			log.Err(err),
			log.Duration("backoff", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// authFailed marks authentication rejections; retrying cannot fix a bad
// token.
type authFailed struct{ reason string }

func (e authFailed) Error() string { return "authentication failed: " + e.reason }

func errAuth(err error) bool {
	_, ok := err.(authFailed)
	return ok
}

// wsMessage is the host's generic websocket envelope.
type wsMessage struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Event   *wsEvent        `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

type wsEvent struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type wsState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

type stateChangedData struct {
	EntityID string   `json:"entity_id"`
	NewState *wsState `json:"new_state"`
}

type logbookData struct {
	Name     string `json:"name"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id"`
	Domain   string `json:"domain"`
}

// session runs one websocket connection to completion.
func (s *Source) session(ctx context.Context, sink ports.EventSink, back *backoff) error {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := s.authenticate(conn); err != nil {
		return err
	}
	if err := s.subscribe(conn, subStateChanged, "state_changed"); err != nil {
		return err
	}
	if err := s.subscribe(conn, subLogbookEntry, "logbook_entry"); err != nil {
		return err
	}

	back.Reset()
	s.logger.Info("subscribed to host event bus", log.String("url", s.cfg.URL))

	for {
		var msg wsMessage
		if err := readJSON(conn, &msg); err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if msg.Type != "event" || msg.Event == nil {
			continue
		}
		s.dispatch(msg.Event, sink)
	}
}

// authenticate performs the auth_required/auth/auth_ok exchange.
func (s *Source) authenticate(conn *websocket.Conn) error {
	var hello wsMessage
	if err := readJSON(conn, &hello); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("unexpected first message %q", hello.Type)
	}

	auth := map[string]string{"type": "auth", "access_token": s.cfg.Token}
	if err := writeJSON(conn, auth); err != nil {
		return fmt.Errorf("write auth: %w", err)
	}

	var reply wsMessage
	if err := readJSON(conn, &reply); err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	switch reply.Type {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return authFailed{reason: reply.Message}
	default:
		return fmt.Errorf("unexpected auth reply %q", reply.Type)
	}
}

// subscribe requests one event type and waits for the result ack.
func (s *Source) subscribe(conn *websocket.Conn, id int64, eventType string) error {
	req := map[string]any{"id": id, "type": "subscribe_events", "event_type": eventType}
	if err := writeJSON(conn, req); err != nil {
		return fmt.Errorf("subscribe %s: %w", eventType, err)
	}
	for {
		var reply wsMessage
		if err := readJSON(conn, &reply); err != nil {
			return fmt.Errorf("subscribe %s ack: %w", eventType, err)
		}
		if reply.Type != "result" || reply.ID != id {
			continue
		}
		if reply.Success == nil || !*reply.Success {
			return fmt.Errorf("subscribe %s rejected: %s", eventType, reply.Error)
		}
		return nil
	}
}

func (s *Source) dispatch(ev *wsEvent, sink ports.EventSink) {
	switch ev.EventType {
	case "state_changed":
		var data stateChangedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			s.logger.Warn("undecodable state_changed event", log.Err(err))
			return
		}
		if data.NewState == nil {
			// entity removed
			return
		}
		dom, object := SplitEntityID(data.NewState.EntityID)
		sink.OnStateChange(domain.StateChange{
			Domain:     dom,
			ObjectID:   object,
			Attributes: data.NewState.Attributes,
			RawValue:   data.NewState.State,
		})
	case "logbook_entry":
		var data logbookData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			s.logger.Warn("undecodable logbook_entry event", log.Err(err))
			return
		}
		sink.OnLogbookEntry(domain.LogbookEntry{
			Name:     data.Name,
			Message:  data.Message,
			EntityID: data.EntityID,
			Domain:   data.Domain,
		})
	}
}

// SplitEntityID splits "sensor.temperature" into its domain and object id.
func SplitEntityID(entityID string) (string, string) {
	if i := strings.IndexByte(entityID, '.'); i >= 0 {
		return entityID[:i], entityID[i+1:]
	}
	return "", entityID
}

// readJSON decodes one websocket text message with goccy/go-json rather than
// gorilla's encoding/json path.
func readJSON(conn *websocket.Conn, v any) error {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
