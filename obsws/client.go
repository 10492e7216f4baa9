// Package obsws is a minimal obs-websocket v5 client implementing control.Client.
//
// Each call opens its own connection, performs the Hello/Identify handshake
// (with challenge authentication when a password is configured), sends one
// request and closes. There is no long-lived session to reconnect.
package obsws

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/onnwee/streamcast/control"
)

// Subprotocol is the JSON flavour of obs-websocket.
const Subprotocol = "obswebsocket.json"

// RPCVersion is the obs-websocket RPC version this client speaks.
const RPCVersion = 1

// Opcodes used by the client.
const (
	OpHello           = 0
	OpIdentify        = 1
	OpIdentified      = 2
	OpRequest         = 6
	OpRequestResponse = 7
)

// CloseAuthenticationFailed is the close code OBS sends on a bad password.
const CloseAuthenticationFailed websocket.StatusCode = 4009

// ErrAuthentication is returned when OBS rejects the configured password.
var ErrAuthentication = errors.New("obs-websocket authentication failed")

// Message is the envelope of every obs-websocket frame.
type Message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

// Hello is sent by the server on connect.
type Hello struct {
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

// Identify answers Hello.
type Identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

// Request is an op 6 payload.
type Request struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

// RequestResponse is an op 7 payload.
type RequestResponse struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment,omitempty"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData,omitempty"`
}

// Config holds connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	// Timeout bounds a whole call (dial, handshake, request). Default 5s.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements control.Client.
type Client struct {
	url        string
	password   string
	timeout    time.Duration
	httpClient *http.Client
}

var _ control.Client = (*Client)(nil)

// New returns a client for ws://host:port.
func New(cfg Config) *Client {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 4455
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        "ws://" + net.JoinHostPort(host, strconv.Itoa(port)),
		password:   cfg.Password,
		timeout:    timeout,
		httpClient: cfg.HTTPClient,
	}
}

// NewWithURL returns a client for an explicit websocket URL (used by tests).
func NewWithURL(url, password string, timeout time.Duration) *Client {
	c := New(Config{Password: password, Timeout: timeout})
	c.url = url
	return c
}

// AuthResponse computes the Identify authentication string:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func AuthResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", control.ErrUnavailable, op, err)
}

// Call performs one request on a fresh connection and decodes responseData into out
// (which may be nil).
func (c *Client) Call(ctx context.Context, requestType string, data any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
		HTTPClient:   c.httpClient,
	})
	if err != nil {
		return unavailable("dial", err)
	}
	defer func() { _ = conn.CloseNow() }()

	if err := c.identify(ctx, conn); err != nil {
		return err
	}

	id := uuid.NewString()
	if err := write(ctx, conn, OpRequest, Request{RequestType: requestType, RequestID: id, RequestData: data}); err != nil {
		return unavailable("send "+requestType, err)
	}

	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return unavailable("read "+requestType+" response", err)
		}
		if msg.Op != OpRequestResponse {
			continue
		}
		var resp RequestResponse
		if err := json.Unmarshal(msg.D, &resp); err != nil {
			return unavailable("decode "+requestType+" response", err)
		}
		if resp.RequestID != id {
			continue
		}
		if !resp.RequestStatus.Result {
			return &control.RejectedError{Request: requestType, Code: resp.RequestStatus.Code, Comment: resp.RequestStatus.Comment}
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return fmt.Errorf("decode %s response data: %w", requestType, err)
			}
		}
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return nil
	}
}

func (c *Client) identify(ctx context.Context, conn *websocket.Conn) error {
	var msg Message
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		return unavailable("read hello", err)
	}
	if msg.Op != OpHello {
		return unavailable("handshake", fmt.Errorf("expected hello (op 0), got op %d", msg.Op))
	}
	var hello Hello
	if err := json.Unmarshal(msg.D, &hello); err != nil {
		return unavailable("decode hello", err)
	}

	ident := Identify{RPCVersion: RPCVersion}
	if hello.Authentication != nil {
		ident.Authentication = AuthResponse(c.password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := write(ctx, conn, OpIdentify, ident); err != nil {
		return unavailable("send identify", err)
	}

	for {
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == CloseAuthenticationFailed {
				return fmt.Errorf("%w: %w", control.ErrUnavailable, ErrAuthentication)
			}
			return unavailable("read identified", err)
		}
		if msg.Op == OpIdentified {
			slog.Debug("obs-websocket identified", slog.String("server_version", hello.ObsWebSocketVersion), slog.String("component", "obsws"))
			return nil
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, op int, payload any) error {
	d, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, Message{Op: op, D: d})
}

// GetScenes returns scene names in the order OBS reports them.
func (c *Client) GetScenes(ctx context.Context) ([]string, error) {
	var resp struct {
		Scenes []struct {
			SceneName  string `json:"sceneName"`
			SceneIndex int    `json:"sceneIndex"`
		} `json:"scenes"`
	}
	if err := c.Call(ctx, "GetSceneList", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Scenes))
	for _, s := range resp.Scenes {
		names = append(names, s.SceneName)
	}
	return names, nil
}

// SetActiveScene switches the program scene.
func (c *Client) SetActiveScene(ctx context.Context, name string) error {
	return c.Call(ctx, "SetCurrentProgramScene", map[string]string{"sceneName": name}, nil)
}

// GetStreamStatus reports whether the stream output is active.
func (c *Client) GetStreamStatus(ctx context.Context) (control.StreamStatus, error) {
	var resp struct {
		OutputActive bool `json:"outputActive"`
	}
	if err := c.Call(ctx, "GetStreamStatus", nil, &resp); err != nil {
		return control.StreamStatus{}, err
	}
	return control.StreamStatus{Active: resp.OutputActive}, nil
}

// StartStream starts the stream output.
func (c *Client) StartStream(ctx context.Context) error {
	return c.Call(ctx, "StartStream", nil, nil)
}

// StopStream stops the stream output.
func (c *Client) StopStream(ctx context.Context) error {
	return c.Call(ctx, "StopStream", nil, nil)
}
