package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// OBSRequestHandler answers one obs-websocket request. A non-empty comment with
// ok=false produces a failed requestStatus.
type OBSRequestHandler func(data json.RawMessage) (resp any, ok bool, code int, comment string)

// MockOBSServer speaks the server side of obs-websocket v5 (Hello, Identify,
// Request/RequestResponse) over httptest.
type MockOBSServer struct {
	*httptest.Server
	Password string

	mu       sync.Mutex
	handlers map[string]OBSRequestHandler
	calls    []string
}

type obsMessage struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

const (
	mockSalt      = "bW9ja3NhbHQ="
	mockChallenge = "bW9ja2NoYWxsZW5nZQ=="
)

// NewMockOBSServer starts a fake OBS. An empty password disables authentication.
func NewMockOBSServer(t *testing.T, password string) *MockOBSServer {
	t.Helper()
	m := &MockOBSServer{
		Password: password,
		handlers: make(map[string]OBSRequestHandler),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

// URL returns the ws:// address of the server.
func (m *MockOBSServer) URL() string {
	return "ws" + strings.TrimPrefix(m.Server.URL, "http")
}

// Handle registers the response for a request type.
func (m *MockOBSServer) Handle(requestType string, h OBSRequestHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[requestType] = h
}

// Calls returns the request types received so far, in order.
func (m *MockOBSServer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockScenes installs a GetSceneList handler returning names and a
// SetCurrentProgramScene handler that rejects unknown names like OBS does.
func (m *MockOBSServer) MockScenes(names ...string) {
	m.Handle("GetSceneList", func(json.RawMessage) (any, bool, int, string) {
		scenes := make([]map[string]any, 0, len(names))
		for i, n := range names {
			scenes = append(scenes, map[string]any{"sceneName": n, "sceneIndex": len(names) - 1 - i})
		}
		return map[string]any{"scenes": scenes}, true, 100, ""
	})
	m.Handle("SetCurrentProgramScene", func(data json.RawMessage) (any, bool, int, string) {
		var req struct {
			SceneName string `json:"sceneName"`
		}
		_ = json.Unmarshal(data, &req) //nolint:errcheck // test mock
		for _, n := range names {
			if n == req.SceneName {
				return nil, true, 100, ""
			}
		}
		return nil, false, 600, "No source was found by the name of `" + req.SceneName + "`."
	})
}

// MockStream installs stream status/start/stop handlers backed by a flag.
func (m *MockOBSServer) MockStream(active bool) {
	var mu sync.Mutex
	m.Handle("GetStreamStatus", func(json.RawMessage) (any, bool, int, string) {
		mu.Lock()
		defer mu.Unlock()
		return map[string]any{"outputActive": active}, true, 100, ""
	})
	m.Handle("StartStream", func(json.RawMessage) (any, bool, int, string) {
		mu.Lock()
		defer mu.Unlock()
		if active {
			return nil, false, 500, "Stream output is already active."
		}
		active = true
		return nil, true, 100, ""
	})
	m.Handle("StopStream", func(json.RawMessage) (any, bool, int, string) {
		mu.Lock()
		defer mu.Unlock()
		if !active {
			return nil, false, 501, "Stream output is not active."
		}
		active = false
		return nil, true, 100, ""
	})
}

func (m *MockOBSServer) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"obswebsocket.json"}})
	if err != nil {
		return
	}
	defer func() { _ = conn.CloseNow() }() //nolint:errcheck // test mock
	ctx := r.Context()

	hello := map[string]any{"obsWebSocketVersion": "5.5.0", "rpcVersion": 1}
	if m.Password != "" {
		hello["authentication"] = map[string]string{"challenge": mockChallenge, "salt": mockSalt}
	}
	if err := send(ctx, conn, 0, hello); err != nil {
		return
	}

	var msg obsMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil || msg.Op != 1 {
		return
	}
	var ident struct {
		Authentication string `json:"authentication"`
	}
	_ = json.Unmarshal(msg.D, &ident) //nolint:errcheck // test mock
	if m.Password != "" && ident.Authentication != expectedAuth(m.Password) {
		_ = conn.Close(4009, "Authentication failed.") //nolint:errcheck // test mock
		return
	}
	if err := send(ctx, conn, 2, map[string]int{"negotiatedRpcVersion": 1}); err != nil {
		return
	}

	for {
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		if msg.Op != 6 {
			continue
		}
		var req struct {
			RequestType string          `json:"requestType"`
			RequestID   string          `json:"requestId"`
			RequestData json.RawMessage `json:"requestData"`
		}
		_ = json.Unmarshal(msg.D, &req) //nolint:errcheck // test mock

		m.mu.Lock()
		m.calls = append(m.calls, req.RequestType)
		h, ok := m.handlers[req.RequestType]
		m.mu.Unlock()

		status := map[string]any{"result": false, "code": 204, "comment": "Your request type is not valid."}
		var data any
		if ok {
			var good bool
			var code int
			var comment string
			data, good, code, comment = h(req.RequestData)
			status = map[string]any{"result": good, "code": code}
			if comment != "" {
				status["comment"] = comment
			}
		}
		resp := map[string]any{"requestType": req.RequestType, "requestId": req.RequestID, "requestStatus": status}
		if data != nil {
			resp["responseData"] = data
		}
		if err := send(ctx, conn, 7, resp); err != nil {
			return
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, op int, payload any) error {
	d, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, obsMessage{Op: op, D: d})
}

func expectedAuth(password string) string {
	secret := sha256.Sum256([]byte(password + mockSalt))
	auth := sha256.Sum256([]byte(base64.StdEncoding.EncodeToString(secret[:]) + mockChallenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}
