package models

type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
)

// Rank orders delivery statuses so progressions can only move forward.
// Unknown statuses rank zero.
func (s DeliveryStatus) Rank() int {
	switch s {
	case DeliveryStatusSent:
		return 1
	case DeliveryStatusDelivered:
		return 2
	case DeliveryStatusRead:
		return 3
	default:
		return 0
	}
}

type Sender string

const (
	SenderSelf  Sender = "self"
	SenderOther Sender = "other"
)

// Attachment is a lightweight descriptor of a user-picked file. It is owned
// either by the pending batch of a composer or by exactly one Message.
type Attachment struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SizeLabel string `json:"sizeLabel"`
	Kind      string `json:"kind"`
}

// Message is a single entry of a room conversation
type Message struct {
	ID          int64          `json:"id"`
	Text        string         `json:"text"`
	Sender      Sender         `json:"sender"`
	SenderName  string         `json:"senderName"`
	Time        string         `json:"time"`
	Status      DeliveryStatus `json:"status,omitempty"`
	Edited      bool           `json:"edited,omitempty"`
	ReplyTo     *int64         `json:"replyTo,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Liked       bool           `json:"liked,omitempty"`
}

// IsSelf reports whether the message was sent by the local participant
func (m *Message) IsSelf() bool {
	return m.Sender == SenderSelf
}

// Clone returns a deep copy so callers can never alias store-owned slices.
func (m Message) Clone() Message {
	out := m
	if m.ReplyTo != nil {
		id := *m.ReplyTo
		out.ReplyTo = &id
	}
	if m.Attachments != nil {
		out.Attachments = make([]Attachment, len(m.Attachments))
		copy(out.Attachments, m.Attachments)
	}
	return out
}
