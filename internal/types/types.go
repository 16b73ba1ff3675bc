package types

import "time"

// User is a directory entry returned by the user search endpoint.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Conversation is one two-party thread with its cached preview metadata.
type Conversation struct {
	ID            int64      `json:"id"`
	Partner       *User      `json:"partner"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

// PartnerLabel returns the best display name for the partner.
func (c *Conversation) PartnerLabel() string {
	if c.Partner == nil {
		return "Unknown"
	}
	if c.Partner.Name != "" {
		return c.Partner.Name
	}
	if c.Partner.Handle != "" {
		return c.Partner.Handle
	}
	return "Unknown"
}

// LastMessageTime returns the preview timestamp, or the zero time when the
// thread has no messages. Used for descending list order.
func (c *Conversation) LastMessageTime() time.Time {
	if c.LastMessageAt == nil {
		return time.Time{}
	}
	return *c.LastMessageAt
}

// Message is one unit of conversation content.
type Message struct {
	ID               int64     `json:"id"`
	ConversationID   int64     `json:"conversation_id"`
	Text             string    `json:"text"`
	DisplayText      string    `json:"display_text"`
	CreatedAt        time.Time `json:"created_at"`
	Author           *User     `json:"author,omitempty"`
	IsSelf           bool      `json:"is_self"`
	IsDeletedForAll  bool      `json:"is_deleted_for_all"`
	DeletedLabel     string    `json:"deleted_label,omitempty"`
	CanDeleteForSelf bool      `json:"can_delete_for_self"`
	CanDeleteForAll  bool      `json:"can_delete_for_all"`
}

// Body returns the text to render for this message, honoring tombstones.
func (m *Message) Body() string {
	if m.IsDeletedForAll {
		if m.DeletedLabel != "" {
			return m.DeletedLabel
		}
		return "Message deleted."
	}
	if m.DisplayText != "" {
		return m.DisplayText
	}
	return m.Text
}

// AuthorName returns the sender's display name, empty when unknown.
func (m *Message) AuthorName() string {
	if m.Author == nil {
		return ""
	}
	return m.Author.Name
}

// DeleteScope selects who a message deletion applies to.
type DeleteScope string

const (
	// DeleteForSelf hides the message for the current user only.
	DeleteForSelf DeleteScope = "self"
	// DeleteForAll tombstones the message for both participants.
	DeleteForAll DeleteScope = "all"
)

// Valid reports whether the scope is one of the two accepted values.
func (s DeleteScope) Valid() bool {
	return s == DeleteForSelf || s == DeleteForAll
}

// EventMessage is the only realtime event kind the client acts on.
const EventMessage = "message"

// Envelope is one realtime frame as delivered on the push channel.
type Envelope struct {
	Event        string        `json:"event"`
	Conversation *Conversation `json:"conversation,omitempty"`
	Message      *Message      `json:"message,omitempty"`
}
