// Package api implements the HTTP client for the chat endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/duochat/duochat/internal/logger"
	"github.com/duochat/duochat/internal/types"
)

const (
	// RequestTimeout bounds every API round trip.
	RequestTimeout = 15 * time.Second

	csrfCookieName = "csrftoken"
)

// Client talks to the chat API. All state-changing requests carry the
// session cookie plus the anti-forgery token header.
type Client struct {
	base *url.URL
	http *http.Client

	// group collapses overlapping conversation-list refreshes into a single
	// round trip; the background ticker and a visibility resume can race.
	group singleflight.Group
}

// New builds a client for the given server base URL. Cookies seeds the jar
// (session + csrf cookies persisted from a previous login).
func New(serverURL string, cookies map[string]string) (*Client, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL scheme %q", base.Scheme)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if len(cookies) > 0 {
		stored := make([]*http.Cookie, 0, len(cookies))
		for name, value := range cookies {
			stored = append(stored, &http.Cookie{Name: name, Value: value, Path: "/"})
		}
		jar.SetCookies(base, stored)
	}

	return &Client{
		base: base,
		http: &http.Client{
			Jar:     jar,
			Timeout: RequestTimeout,
		},
	}, nil
}

// SocketURL returns the realtime channel URL for a conversation.
func (c *Client) SocketURL(conversationID int64) string {
	scheme := "ws"
	if c.base.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws/chat/%d/", scheme, c.base.Host, conversationID)
}

// SocketHeader returns the headers (cookies included) a channel dial must
// carry so the server associates it with the same session.
func (c *Client) SocketHeader() http.Header {
	header := http.Header{}
	pairs := make([]string, 0, 2)
	for _, ck := range c.http.Jar.Cookies(c.base) {
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	if len(pairs) > 0 {
		header.Set("Cookie", strings.Join(pairs, "; "))
	}
	return header
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = path
	return u.String()
}

func (c *Client) csrfToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

// do performs one request and decodes the JSON response into out. Non-2xx
// responses become NetworkError carrying the server's detail message.
func (c *Client) do(ctx context.Context, op, method, rawurl string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawurl, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Cache-Control", "no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-CSRFToken", c.csrfToken())
	}

	logger.Debug("api %s %s %s", method, rawurl, op)
	resp, err := c.http.Do(req)
	if err != nil {
		return &types.NetworkError{Op: op, URL: rawurl, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.NetworkError{Op: op, URL: rawurl, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := errorDetail(data)
		logger.Debug("api error %d %s: %s", resp.StatusCode, rawurl, detail)
		return &types.NetworkError{Op: op, URL: rawurl, Status: resp.StatusCode, Detail: detail}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &types.NetworkError{Op: op, URL: rawurl, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}
	return nil
}

func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return "the request could not be completed"
}

// ListConversations fetches the full conversation list. Overlapping calls
// share one round trip.
func (c *Client) ListConversations(ctx context.Context) ([]types.Conversation, error) {
	v, err, _ := c.group.Do("conversations", func() (interface{}, error) {
		var payload struct {
			Conversations []types.Conversation `json:"conversations"`
		}
		rawurl := c.endpoint("/chat/api/conversations/")
		if err := c.do(ctx, "list conversations", http.MethodGet, rawurl, nil, &payload); err != nil {
			return nil, err
		}
		return payload.Conversations, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Conversation), nil
}

// ListMessages fetches the ordered message list for one conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]types.Message, error) {
	var payload struct {
		Messages []types.Message `json:"messages"`
	}
	rawurl := c.endpoint(fmt.Sprintf("/chat/api/conversations/%d/messages/", conversationID))
	err := c.do(ctx, "list messages", http.MethodGet, rawurl, nil, &payload)
	if err != nil {
		if netErr, ok := err.(*types.NetworkError); ok && netErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", &types.NotFoundError{ConversationID: conversationID}, err)
		}
		return nil, err
	}
	return payload.Messages, nil
}

// SendMessage posts a new message and returns the canonical server copy.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, text string) (*types.Message, error) {
	var payload struct {
		Message *types.Message `json:"message"`
	}
	rawurl := c.endpoint(fmt.Sprintf("/chat/api/conversations/%d/messages/send/", conversationID))
	body := map[string]string{"text": text}
	if err := c.do(ctx, "send message", http.MethodPost, rawurl, body, &payload); err != nil {
		return nil, err
	}
	if payload.Message == nil {
		return nil, &types.NetworkError{Op: "send message", URL: rawurl, Detail: "server returned no message"}
	}
	return payload.Message, nil
}

// DeleteMessage deletes a message for the given scope. The server may return
// the refreshed conversation for preview updates.
func (c *Client) DeleteMessage(ctx context.Context, messageID int64, scope types.DeleteScope) (*types.Conversation, error) {
	var payload struct {
		Conversation *types.Conversation `json:"conversation"`
	}
	rawurl := c.endpoint(fmt.Sprintf("/chat/api/messages/%d/delete/", messageID))
	body := map[string]string{"scope": string(scope)}
	if err := c.do(ctx, "delete message", http.MethodPost, rawurl, body, &payload); err != nil {
		return nil, err
	}
	return payload.Conversation, nil
}

// StartConversation opens (or returns) the conversation with a user handle.
func (c *Client) StartConversation(ctx context.Context, username string) (*types.Conversation, error) {
	var payload struct {
		Conversation *types.Conversation `json:"conversation"`
	}
	rawurl := c.endpoint("/chat/api/conversations/start/")
	body := map[string]string{"username": username}
	if err := c.do(ctx, "start conversation", http.MethodPost, rawurl, body, &payload); err != nil {
		return nil, err
	}
	if payload.Conversation == nil {
		return nil, &types.NetworkError{Op: "start conversation", URL: rawurl, Detail: "server returned no conversation"}
	}
	return payload.Conversation, nil
}

// SearchUsers queries the user directory.
func (c *Client) SearchUsers(ctx context.Context, term string) ([]types.User, error) {
	var payload struct {
		Results []types.User `json:"results"`
	}
	u := *c.base
	u.Path = "/chat/api/search/"
	u.RawQuery = url.Values{"q": []string{term}}.Encode()
	if err := c.do(ctx, "search users", http.MethodGet, u.String(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}
