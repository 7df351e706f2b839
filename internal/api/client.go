// Package api provides the REST client for the clinic backend: the
// request/response half of the mutation protocol. Channel events arrive
// separately through the connection manager.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/drheny/cab-sub000/internal/metrics"
	"github.com/drheny/cab-sub000/internal/models"
)

// Client is a clinic backend API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new backend client with a bounded request timeout.
// The timeout guarantees a failed send eventually rolls its optimistic
// entry back instead of leaving it stuck.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// doRequest performs an HTTP request against the backend.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.Must(uuid.NewV7()).String())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, &Error{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	return respBody, nil
}

// MessagesResponse is the response from the bulk message fetch.
type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

// FetchMessages retrieves the full ordered committed message list. Used
// for initial load and as the recovery path when the channel is down.
func (c *Client) FetchMessages(ctx context.Context) ([]models.Message, error) {
	respBody, err := c.doRequest(ctx, "fetch_messages", "GET", "/api/messages", nil)
	if err != nil {
		return nil, err
	}

	var resp MessagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// CreateMessageRequest is the request body for sending a chat message.
// CorrelationID carries the client's temporary id so the server can echo
// it back in the new_message event.
type CreateMessageRequest struct {
	Content       string      `json:"content"`
	ReplyTo       string      `json:"reply_to,omitempty"`
	ReplyPreview  string      `json:"reply_preview,omitempty"`
	SenderRole    models.Role `json:"sender_role"`
	SenderName    string      `json:"sender_display_name"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// CreateMessage creates a committed message and returns the authoritative
// representation.
func (c *Client) CreateMessage(ctx context.Context, req CreateMessageRequest) (*models.Message, error) {
	body, _ := json.Marshal(req)
	respBody, err := c.doRequest(ctx, "create_message", "POST", "/api/messages", body)
	if err != nil {
		return nil, err
	}

	var msg models.Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessageRequest is the request body for editing a message.
type UpdateMessageRequest struct {
	Content    string      `json:"content"`
	SenderRole models.Role `json:"sender_role"`
	SenderName string      `json:"sender_display_name"`
}

// UpdateMessage edits a message's content. The server rejects the edit
// with 403 when the caller is not the original sender.
func (c *Client) UpdateMessage(ctx context.Context, id string, req UpdateMessageRequest) (*models.Message, error) {
	body, _ := json.Marshal(req)
	respBody, err := c.doRequest(ctx, "update_message", "PUT", "/api/messages/"+id, body)
	if err != nil {
		return nil, err
	}

	var msg models.Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage deletes a single message.
func (c *Client) DeleteMessage(ctx context.Context, id string, caller models.Identity) error {
	path := fmt.Sprintf("/api/messages/%s?sender_role=%s", id, caller.Role)
	_, err := c.doRequest(ctx, "delete_message", "DELETE", path, nil)
	return err
}

// MarkRead flags a message as read. The transition is one-way on the
// server as well.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, "mark_read", "PUT", "/api/messages/"+id+"/read", nil)
	return err
}

// ClearAllResponse is the response from the bulk delete.
type ClearAllResponse struct {
	Count int `json:"count"`
}

// ClearAll deletes every committed message and returns how many were
// removed.
func (c *Client) ClearAll(ctx context.Context) (int, error) {
	respBody, err := c.doRequest(ctx, "clear_all", "DELETE", "/api/messages", nil)
	if err != nil {
		return 0, err
	}

	var resp ClearAllResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
