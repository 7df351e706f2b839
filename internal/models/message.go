package models

import "time"

// Role identifies authorship by clinic function, not by identity.
type Role string

const (
	RoleDoctor    Role = "doctor"
	RoleSecretary Role = "secretary"
)

// Valid reports whether the role is one of the two known clinic roles.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RoleSecretary
}

// Identity is the local user of the sync core: a role plus the display
// name denormalized onto every message they author.
type Identity struct {
	Role Role   `json:"role"`
	Name string `json:"display_name"`
}

// Message represents one entry of the shared conversation log.
type Message struct {
	ID              string    `json:"id"` // server-assigned, or temporary while optimistic
	SenderRole      Role      `json:"sender_role"`
	SenderName      string    `json:"sender_display_name"` // denormalized at creation time
	Content         string    `json:"content"`
	OriginalContent string    `json:"original_content,omitempty"` // populated on first edit only
	ReplyTo         string    `json:"reply_to,omitempty"`         // weak reference, may dangle
	ReplyPreview    string    `json:"reply_preview,omitempty"`    // snapshot of the replied-to content
	IsRead          bool      `json:"is_read"`
	IsEdited        bool      `json:"is_edited"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Mine reports whether the message was authored by the given identity.
func (m *Message) Mine(id Identity) bool {
	return m.SenderRole == id.Role && m.SenderName == id.Name
}

// Draft is the user input that becomes an optimistic message.
type Draft struct {
	Content      string
	ReplyTo      string
	ReplyPreview string
}
