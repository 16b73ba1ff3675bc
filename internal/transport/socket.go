package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duochat/duochat/internal/types"
)

const (
	// HandshakeTimeout bounds the channel open.
	HandshakeTimeout = 10 * time.Second

	// frameBuffer absorbs bursts between reads of the frame channel.
	frameBuffer = 64

	abnormalClosure = websocket.CloseAbnormalClosure
)

// Server policy close codes. The backend rejects bad or unauthorized channel
// requests with these; retrying cannot help within the same selection.
const (
	closeBadRequest      = 4400
	closeUnauthenticated = 4401
	closeForbidden       = 4403
)

func unrecoverableClose(code int) bool {
	switch code {
	case websocket.ClosePolicyViolation, closeBadRequest, closeUnauthenticated, closeForbidden:
		return true
	}
	return false
}

// CloseEvent reports why the read pump stopped.
type CloseEvent struct {
	Code int
	Err  error
}

// Conn wraps one push channel. Frames surface on a buffered channel so the
// cooperative loop can drain them one message at a time; the pump goroutine
// never touches shared state.
type Conn struct {
	ws     *websocket.Conn
	frames chan []byte
	closed chan CloseEvent

	closeOnce sync.Once
}

// Dial opens the push channel and starts the read pump.
func Dial(ctx context.Context, rawurl string, header http.Header) (*Conn, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: HandshakeTimeout,
	}

	ws, resp, err := dialer.DialContext(ctx, rawurl, header)
	if err != nil {
		netErr := &types.NetworkError{Op: "dial", URL: rawurl, Err: err}
		if resp != nil {
			netErr.Status = resp.StatusCode
		}
		return nil, netErr
	}

	c := &Conn{
		ws:     ws,
		frames: make(chan []byte, frameBuffer),
		closed: make(chan CloseEvent, 1),
	}
	go c.readPump()
	return c, nil
}

// Frames returns the inbound frame channel. It is closed when the pump
// stops.
func (c *Conn) Frames() <-chan []byte { return c.frames }

// Closed delivers exactly one close event when the channel dies for any
// reason other than a local Close.
func (c *Conn) Closed() <-chan CloseEvent { return c.closed }

// Close tears the channel down locally. Idempotent; closing an
// already-closed channel is a no-op.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.ws.Close()
	})
}

func (c *Conn) readPump() {
	defer close(c.frames)
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			code := abnormalClosure
			if closeErr, ok := err.(*websocket.CloseError); ok {
				code = closeErr.Code
			}
			c.closed <- CloseEvent{Code: code, Err: err}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.frames <- data
	}
}

// ParseEnvelope decodes one realtime frame. Frames that fail to parse or
// carry an unrecognized event yield ProtocolError and must be dropped
// silently by the caller.
func ParseEnvelope(raw []byte) (*types.Envelope, error) {
	var env types.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &types.ProtocolError{Reason: "malformed JSON", Err: err}
	}
	if env.Event != types.EventMessage {
		return nil, &types.ProtocolError{Reason: "unrecognized event " + env.Event}
	}
	return &env, nil
}
