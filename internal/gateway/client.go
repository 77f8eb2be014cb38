// Package gateway talks to the chat backend: a REST client for request
// paths and a websocket consumer for the push channel. Everything it
// receives is normalized to model.Event before the rest of the daemon
// sees it.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/quillchat/quill/internal/backend"
	"github.com/quillchat/quill/internal/model"
)

// Client implements backend.Client against the gateway's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ backend.Client = (*Client)(nil)

// NewClient creates a REST client for the gateway at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	ConversationKey string     `json:"conversationKey"`
	Text            string     `json:"text,omitempty"`
	Media           *wireMedia `json:"media,omitempty"`
	ReplyToID       string     `json:"replyToId,omitempty"`
	CorrelationID   string     `json:"correlationId,omitempty"`
}

type markReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// SendMessage posts a message and returns the server's confirmed copy.
func (c *Client) SendMessage(ctx context.Context, key string, content backend.Content) (*model.Message, error) {
	req := sendRequest{
		ConversationKey: key,
		Text:            content.Text,
		ReplyToID:       content.ReplyToID,
		CorrelationID:   content.CorrelationID,
	}
	if content.Media != nil {
		req.Media = &wireMedia{
			URL:      content.Media.URL,
			Type:     content.Media.Type,
			Filename: content.Media.Filename,
			Size:     content.Media.Size,
		}
	}

	var resp wireMessage
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", req, &resp); err != nil {
		return nil, &backend.SendError{ConversationKey: key, Err: err}
	}
	return resp.toModel(), nil
}

// FetchMessages returns the conversation's recent messages, oldest first.
func (c *Client) FetchMessages(ctx context.Context, key string) ([]model.Message, error) {
	var resp struct {
		Messages []wireMessage `json:"messages"`
	}
	path := "/api/v1/conversations/" + url.PathEscape(key) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &backend.FetchError{ConversationKey: key, Err: err}
	}
	out := make([]model.Message, 0, len(resp.Messages))
	for i := range resp.Messages {
		out = append(out, *resp.Messages[i].toModel())
	}
	return out, nil
}

// MarkRead marks the given messages as read in one batch.
func (c *Client) MarkRead(ctx context.Context, key string, ids []string) error {
	path := "/api/v1/conversations/" + url.PathEscape(key) + "/read"
	if err := c.do(ctx, http.MethodPost, path, markReadRequest{MessageIDs: ids}, nil); err != nil {
		return &backend.MarkReadError{ConversationKey: key, Err: err}
	}
	return nil
}

// DeleteMessage deletes a message server-side.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/messages/"+url.PathEscape(id), nil, nil)
}

// FetchPresenceBaseline returns the roster's last-known online set.
func (c *Client) FetchPresenceBaseline(ctx context.Context) ([]string, error) {
	var resp struct {
		Online []string `json:"online"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/presence", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Online, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a little of the body for the error message, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
