package room

import (
	"roomchat/internal/call"
	"roomchat/internal/media"
	"roomchat/internal/models"
)

// Info describes the joined room
type Info struct {
	Joined      bool            `json:"joined"`
	DisplayName string          `json:"displayName"`
	RoomID      string          `json:"roomId"`
	Mode        models.RoomMode `json:"mode"`
	Title       string          `json:"title"`
	Subtitle    string          `json:"subtitle"`
}

// VisibleMessage is a message as the conversation list renders it. ReplyLabel
// is empty when the message quotes nothing or quotes a deleted message.
type VisibleMessage struct {
	models.Message
	ReplyLabel string `json:"replyLabel,omitempty"`
}

// Composer is the state of the message input
type Composer struct {
	Draft      string              `json:"draft"`
	ReplyTo    *int64              `json:"replyTo,omitempty"`
	ReplyLabel string              `json:"replyLabel,omitempty"`
	EditingID  *int64              `json:"editingId,omitempty"`
	Pending    []models.Attachment `json:"pendingAttachments"`
}

// Snapshot is everything the UI needs to render one frame
type Snapshot struct {
	Room       Info             `json:"room"`
	Messages   []models.Message `json:"messages"`
	Visible    []VisibleMessage `json:"visibleMessages"`
	Composer   Composer         `json:"composer"`
	Search     string           `json:"search"`
	Typing     string           `json:"typing,omitempty"`
	Call       call.State       `json:"call"`
	LocalVideo *media.Handle    `json:"localVideo,omitempty"`
}
