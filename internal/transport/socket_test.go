package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duochat/duochat/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDial_DeliversFrames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		payload := `{"event":"message","message":{"id":5,"conversation_id":1,"text":"hi","display_text":"hi","created_at":"2026-03-01T12:00:00Z"}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			return
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	conn, err := Dial(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	select {
	case raw := <-conn.Frames():
		env, err := ParseEnvelope(raw)
		if err != nil {
			t.Fatalf("frame should parse: %v", err)
		}
		if env.Message == nil || env.Message.ID != 5 {
			t.Errorf("unexpected envelope: %+v", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestDial_FailureIsNetworkError(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws/chat/1/", nil)
	var netErr *types.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if netErr.Op != "dial" {
		t.Errorf("expected dial op, got %q", netErr.Op)
	}
}

func TestConn_CloseEventCarriesCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(4403, "forbidden")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	}))
	defer server.Close()

	conn, err := Dial(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	select {
	case ev := <-conn.Closed():
		if ev.Code != 4403 {
			t.Errorf("expected close code 4403, got %d", ev.Code)
		}
		if !unrecoverableClose(ev.Code) {
			t.Error("4403 should be classified unrecoverable")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close event")
	}
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	conn, err := Dial(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	conn.Close()
	conn.Close() // second close must be a no-op, not a panic
}

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"message event", `{"event":"message","message":{"id":1,"conversation_id":2,"created_at":"2026-03-01T12:00:00Z"}}`, false},
		{"conversation only", `{"event":"message","conversation":{"id":2,"partner":{"id":1,"name":"Ana","handle":"@ana"}}}`, false},
		{"unknown event", `{"event":"typing"}`, true},
		{"empty event", `{}`, true},
		{"malformed", `{not json`, true},
		{"wrong type", `[1,2,3]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.raw))
			if tt.wantErr {
				var protoErr *types.ProtocolError
				if !errors.As(err, &protoErr) {
					t.Errorf("expected ProtocolError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Event != types.EventMessage {
				t.Errorf("unexpected event %q", env.Event)
			}
		})
	}
}
