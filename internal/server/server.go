package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lotas/tabheinzel/internal/applog"
	"nhooyr.io/websocket"
)

// DefaultPort is the loopback port the extension connects to.
const DefaultPort = 19192

// DefaultCallTimeout bounds a single browser API call.
const DefaultCallTimeout = 10 * time.Second

// ErrNotConnected is returned when no extension is connected.
var ErrNotConnected = errors.New("extension not connected")

// Message types sent by the extension.
const (
	TypeEvent    = "event"
	TypeCommand  = "command"
	TypeResponse = "response"
)

// IncomingMsg is a message from the extension: a tab lifecycle event, a
// command from the popup, or the response to a browser call.
type IncomingMsg struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// Event fields
	Event    string `json:"event,omitempty"`
	TabID    int    `json:"tabId,omitempty"`
	WindowID int    `json:"windowId,omitempty"`
	Status   string `json:"status,omitempty"`
	URL      string `json:"url,omitempty"`

	// Command fields
	Action  string `json:"action,omitempty"`
	Content string `json:"content,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`
	GroupID int             `json:"groupId,omitempty"`
	Tab     json.RawMessage `json:"tab,omitempty"`
	Tabs    json.RawMessage `json:"tabs,omitempty"`
	Groups  json.RawMessage `json:"groups,omitempty"`
	Windows json.RawMessage `json:"windows,omitempty"`
}

// OutgoingMsg is a browser call or a command result sent to the extension.
type OutgoingMsg struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	TabID     int    `json:"tabId,omitempty"`
	TabIDs    []int  `json:"tabIds,omitempty"`
	GroupID   int    `json:"groupId,omitempty"`
	WindowID  int    `json:"windowId,omitempty"`
	Index     *int   `json:"index,omitempty"`
	Title     string `json:"title,omitempty"`
	Color     string `json:"color,omitempty"`
	Collapsed *bool  `json:"collapsed,omitempty"`
	Text      string `json:"text,omitempty"`
	// Command result fields
	Status  string `json:"status,omitempty"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
	Content string `json:"content,omitempty"`
}

// Server manages the WebSocket connection to the extension. Events and
// commands are delivered on Messages; responses are routed to Call.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	seq     atomic.Uint64
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	gone    chan struct{} // closed when conn goes away
	pending map[string]chan IncomingMsg
	onConn  func(connected bool)
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:    port,
		msgs:    make(chan IncomingMsg, 256),
		pending: make(map[string]chan IncomingMsg),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of events and commands from the extension.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// OnConnChange registers fn to be called whenever the extension connects
// or disconnects. It must be set before the server starts.
func (s *Server) OnConnChange(fn func(connected bool)) {
	s.onConn = fn
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send writes msg to the connected extension.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Call sends msg with a fresh ID and waits for the matching response. A
// response with ok=false is returned as an error carrying the extension's
// message.
func (s *Server) Call(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	msg.ID = "rpc-" + strconv.FormatUint(s.seq.Add(1), 10)
	ch := make(chan IncomingMsg, 1)

	s.mu.Lock()
	gone := s.gone
	if s.conn == nil {
		s.mu.Unlock()
		return IncomingMsg{}, ErrNotConnected
	}
	s.pending[msg.ID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	}()

	if err := s.Send(msg); err != nil {
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, err)
	}

	select {
	case resp := <-ch:
		if resp.OK != nil && !*resp.OK {
			return resp, fmt.Errorf("%s: %s", msg.Action, resp.Error)
		}
		return resp, nil
	case <-gone:
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, ErrNotConnected)
	case <-ctx.Done():
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}

func (s *Server) resolve(msg IncomingMsg) {
	s.mu.Lock()
	ch, ok := s.pending[msg.ID]
	s.mu.Unlock()
	if !ok {
		applog.Warn("ws.orphan_response", "id", msg.ID)
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // windows with thousands of tabs

		ctx := r.Context()
		gone := make(chan struct{})
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.gone = gone
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)
		s.notify(true)

		defer func() {
			s.mu.Lock()
			current := s.conn == conn
			if current {
				s.conn = nil
				s.connCtx = nil
				s.gone = nil
			}
			s.mu.Unlock()
			close(gone)
			conn.CloseNow()
			applog.Info("ws.disconnected")
			if current {
				s.notify(false)
			}
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			if msg.Type == TypeResponse {
				s.resolve(msg)
				continue
			}
			applog.Info("ws.recv", "type", msg.Type, "event", msg.Event, "action", msg.Action)
			select {
			case s.msgs <- msg:
			default:
				applog.Warn("ws.dropped", "type", msg.Type)
			}
		}
	})
}

func (s *Server) notify(connected bool) {
	if s.onConn != nil {
		s.onConn(connected)
	}
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
