// Package gatewaytest runs a scripted in-process Gateway over a loopback
// WebSocket for client tests: challenge on attach, credential verification,
// per-method scripted replies, pushed events, and server-side drops.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danmuck/gatectl/internal/auth"
	"github.com/danmuck/gatectl/internal/protocol"
)

// Response scripts the server's reaction to one request.
type Response struct {
	Payload any
	Code    string
	Message string
	Legacy  bool
	Silent  bool
}

// Handler produces the scripted response for one request.
type Handler func(req protocol.RequestFrame) Response

// Reply scripts a fixed successful response.
func Reply(payload any) Handler {
	return func(protocol.RequestFrame) Response { return Response{Payload: payload} }
}

// Fail scripts a fixed error response.
func Fail(code, message string) Handler {
	return func(protocol.RequestFrame) Response { return Response{Code: code, Message: message} }
}

// Silence scripts no response at all.
func Silence() Handler {
	return func(protocol.RequestFrame) Response { return Response{Silent: true} }
}

// ReplyLegacy scripts a successful response in the legacy untyped shape.
func ReplyLegacy(result any) Handler {
	return func(protocol.RequestFrame) Response { return Response{Payload: result, Legacy: true} }
}

// FailLegacy scripts an error response in the legacy untyped shape.
func FailLegacy(message string) Handler {
	return func(protocol.RequestFrame) Response { return Response{Message: message, Legacy: true} }
}

// Script configures one test server. Token is the credential the handshake
// accepts; methods without a handler get a method-not-found error.
type Script struct {
	Token           string
	RejectAuth      bool
	RejectMessage   string
	SkipChallenge   bool
	LegacyAuthReply bool
	Handlers        map[string]Handler
}

type serverConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *serverConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Server is one scripted Gateway instance.
type Server struct {
	t      *testing.T
	script Script
	hs     *httptest.Server

	mu          sync.Mutex
	conns       []*serverConn
	upgrades    int
	handshakes  int
	queryTokens []string
	requests    []protocol.RequestFrame
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Start launches the server and registers cleanup on t.
func Start(t *testing.T, script Script) *Server {
	t.Helper()
	s := &Server{t: t, script: script}
	s.hs = httptest.NewServer(http.HandlerFunc(s.serveWS))
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// endpoint of this server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.hs.URL, "http")
}

func (s *Server) Close() {
	s.DropConnections()
	s.hs.Close()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &serverConn{ws: ws}

	s.mu.Lock()
	s.upgrades++
	s.conns = append(s.conns, conn)
	s.queryTokens = append(s.queryTokens, r.URL.Query().Get("token"))
	s.mu.Unlock()

	defer ws.Close()
	if !s.script.SkipChallenge {
		challenge, _ := protocol.EncodeEvent(protocol.EventChallenge, nil)
		if err := conn.write(challenge); err != nil {
			return
		}
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req protocol.RequestFrame
		if err := json.Unmarshal(data, &req); err != nil || req.Type != protocol.FrameTypeRequest {
			continue
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		s.handleRequest(conn, req)
	}
}

func (s *Server) handleRequest(conn *serverConn, req protocol.RequestFrame) {
	if req.Method == protocol.MethodConnect {
		s.handleConnect(conn, req)
		return
	}

	handler, ok := s.script.Handlers[req.Method]
	if !ok {
		reply, _ := protocol.EncodeErrorResponse(req.ID, "not_found", "method not found: "+req.Method)
		_ = conn.write(reply)
		return
	}
	res := handler(req)
	if res.Silent {
		return
	}
	if data := s.buildResponse(req.ID, res); data != nil {
		_ = conn.write(data)
	}
}

func (s *Server) handleConnect(conn *serverConn, req protocol.RequestFrame) {
	var params protocol.ConnectParams
	_ = json.Unmarshal(req.Params, &params)

	verdict := auth.StaticToken{Token: s.script.Token}.Validate(params.Auth.Token)
	if s.script.RejectAuth || verdict != nil {
		msg := s.script.RejectMessage
		if msg == "" {
			msg = "invalid token"
		}
		res := Response{Code: "unauthorized", Message: msg, Legacy: s.script.LegacyAuthReply}
		if data := s.buildResponse(req.ID, res); data != nil {
			_ = conn.write(data)
		}
		return
	}

	s.mu.Lock()
	s.handshakes++
	s.mu.Unlock()

	hello := map[string]any{"type": "hello-ok", "protocol": protocol.ProtocolVersion}
	if data := s.buildResponse(req.ID, Response{Payload: hello, Legacy: s.script.LegacyAuthReply}); data != nil {
		_ = conn.write(data)
	}
}

// buildResponse runs on connection goroutines, so failures go through
// Errorf rather than Fatalf.
func (s *Server) buildResponse(id string, res Response) []byte {
	if res.Legacy {
		frame := map[string]any{"id": id}
		if res.Message != "" {
			frame["error"] = map[string]any{"code": res.Code, "message": res.Message}
		} else {
			frame["result"] = res.Payload
		}
		data, err := json.Marshal(frame)
		if err != nil {
			s.t.Errorf("gatewaytest: marshal legacy frame: %v", err)
			return nil
		}
		return data
	}
	if res.Message != "" {
		data, err := protocol.EncodeErrorResponse(id, res.Code, res.Message)
		if err != nil {
			s.t.Errorf("gatewaytest: encode error frame: %v", err)
			return nil
		}
		return data
	}
	data, err := protocol.EncodeOKResponse(id, res.Payload)
	if err != nil {
		s.t.Errorf("gatewaytest: encode ok frame: %v", err)
		return nil
	}
	return data
}

// PushEvent sends one event frame on the newest connection.
func (s *Server) PushEvent(event string, payload any) {
	data, err := protocol.EncodeEvent(event, payload)
	if err != nil {
		s.t.Fatalf("gatewaytest: encode event: %v", err)
	}
	s.SendRaw(data)
}

// SendRaw writes an arbitrary frame on the newest connection.
func (s *Server) SendRaw(data []byte) {
	s.mu.Lock()
	var conn *serverConn
	if len(s.conns) > 0 {
		conn = s.conns[len(s.conns)-1]
	}
	s.mu.Unlock()
	if conn == nil {
		s.t.Fatalf("gatewaytest: no connection to send on")
	}
	if err := conn.write(data); err != nil {
		s.t.Fatalf("gatewaytest: send: %v", err)
	}
}

// DropConnections abruptly closes every live connection.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

// Upgrades returns how many sockets were ever accepted.
func (s *Server) Upgrades() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upgrades
}

// Handshakes returns how many connect handshakes succeeded.
func (s *Server) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// QueryTokens returns the token query parameter of each accepted socket.
func (s *Server) QueryTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queryTokens))
	copy(out, s.queryTokens)
	return out
}

// Requests returns every recorded request for method, or all requests when
// method is empty.
func (s *Server) Requests(method string) []protocol.RequestFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.RequestFrame, 0, len(s.requests))
	for _, req := range s.requests {
		if method == "" || req.Method == method {
			out = append(out, req)
		}
	}
	return out
}

// WaitRequests polls until n requests for method arrived or timeout passed.
func (s *Server) WaitRequests(method string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(s.Requests(method)) >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return len(s.Requests(method)) >= n
}

// WaitUpgrades polls until n sockets were accepted or timeout passed.
func (s *Server) WaitUpgrades(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Upgrades() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s.Upgrades() >= n
}
