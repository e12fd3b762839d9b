package models

import "time"

type ChatType string

const (
	ChatTypePersonal ChatType = "personal"
	ChatTypeGroup    ChatType = "group"
)

// Chat is a conversation entity. Personal chats hold exactly two members and
// carry no name of their own; group chats have a mutable name and an open
// member set.
type Chat struct {
	ID        int64     `json:"id"`
	Type      ChatType  `json:"type"`
	Name      string    `json:"name,omitempty"`
	CreatedBy int64     `json:"created_by,omitempty"`
	Members   []Member  `json:"members,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// DisplayName resolves the name shown to a given viewer. A personal chat is
// titled after the other participant.
func (c *Chat) DisplayName(viewerID int64) string {
	if c.Type != ChatTypePersonal {
		return c.Name
	}
	for _, m := range c.Members {
		if m.UserID != viewerID {
			return m.Username
		}
	}
	return c.Name
}

func (c *Chat) HasMember(userID int64) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// CanManage reports whether a user may rename or delete the chat. Group
// chats are managed by their creator; a personal chat can be deleted by
// either of its two members.
func (c *Chat) CanManage(userID int64) bool {
	if c.Type == ChatTypeGroup {
		return c.CreatedBy == userID
	}
	return c.HasMember(userID)
}
