package api

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/drheny/cab-sub000/internal/models"
)

// PhoneFilter narrows ListPhoneMessages. Zero values mean "any".
type PhoneFilter struct {
	Status    models.PhoneStatus
	Priority  models.Priority
	Direction models.Direction
}

// PhoneListResponse is the response from listing phone messages.
type PhoneListResponse struct {
	PhoneMessages []models.PhoneMessage `json:"phone_messages"`
}

// ListPhoneMessages retrieves phone messages matching the filter.
func (c *Client) ListPhoneMessages(ctx context.Context, f PhoneFilter) ([]models.PhoneMessage, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	if f.Direction != "" {
		q.Set("direction", string(f.Direction))
	}
	path := "/api/phone-messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	respBody, err := c.doRequest(ctx, "list_phone", "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp PhoneListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.PhoneMessages, nil
}

// CreatePhoneRequest is the request body for creating a phone message.
type CreatePhoneRequest struct {
	Direction      models.Direction `json:"direction"`
	Priority       models.Priority  `json:"priority"`
	PatientRef     string           `json:"patient_ref,omitempty"`
	MessageContent string           `json:"message_content"`
	CallDate       string           `json:"call_date"`
	CallTime       string           `json:"call_time"`
}

// CreatePhoneMessage creates a phone message.
func (c *Client) CreatePhoneMessage(ctx context.Context, req CreatePhoneRequest) (*models.PhoneMessage, error) {
	body, _ := json.Marshal(req)
	respBody, err := c.doRequest(ctx, "create_phone", "POST", "/api/phone-messages", body)
	if err != nil {
		return nil, err
	}

	var pm models.PhoneMessage
	if err := json.Unmarshal(respBody, &pm); err != nil {
		return nil, err
	}
	return &pm, nil
}

// UpdatePhoneRequest is the request body for editing a phone message
// while it is still new. Direction and status are not editable.
type UpdatePhoneRequest struct {
	MessageContent string          `json:"message_content"`
	Priority       models.Priority `json:"priority"`
}

// UpdatePhoneMessage edits a new phone message in place.
func (c *Client) UpdatePhoneMessage(ctx context.Context, id string, req UpdatePhoneRequest) (*models.PhoneMessage, error) {
	body, _ := json.Marshal(req)
	respBody, err := c.doRequest(ctx, "update_phone", "PUT", "/api/phone-messages/"+id, body)
	if err != nil {
		return nil, err
	}

	var pm models.PhoneMessage
	if err := json.Unmarshal(respBody, &pm); err != nil {
		return nil, err
	}
	return &pm, nil
}

// RespondPhoneRequest is the request body for the terminal respond
// transition.
type RespondPhoneRequest struct {
	ResponseContent string `json:"response_content"`
	RespondedBy     string `json:"responded_by"`
}

// RespondPhoneMessage transitions a phone message to responded.
func (c *Client) RespondPhoneMessage(ctx context.Context, id string, req RespondPhoneRequest) (*models.PhoneMessage, error) {
	body, _ := json.Marshal(req)
	respBody, err := c.doRequest(ctx, "respond_phone", "PUT", "/api/phone-messages/"+id+"/respond", body)
	if err != nil {
		return nil, err
	}

	var pm models.PhoneMessage
	if err := json.Unmarshal(respBody, &pm); err != nil {
		return nil, err
	}
	return &pm, nil
}

// DeletePhoneMessage removes a phone message regardless of status.
func (c *Client) DeletePhoneMessage(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, "delete_phone", "DELETE", "/api/phone-messages/"+id, nil)
	return err
}

// DeleteAllPhoneMessages removes every phone message and returns the
// count.
func (c *Client) DeleteAllPhoneMessages(ctx context.Context) (int, error) {
	respBody, err := c.doRequest(ctx, "delete_all_phone", "DELETE", "/api/phone-messages", nil)
	if err != nil {
		return 0, err
	}

	var resp ClearAllResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
