package store

import (
	"strings"
	"sync"
	"time"

	"roomchat/internal/constants"
	"roomchat/internal/models"

	"github.com/sirupsen/logrus"
)

// Store is the ordered message collection of one room session
type Store struct {
	mu       sync.RWMutex
	messages []models.Message
	lastID   int64
	now      func() time.Time
	logger   *logrus.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used to stamp messages
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store
func New(logger *logrus.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) stamp() string {
	return s.now().Format(constants.MessageTimeLayout)
}

func (s *Store) nextID() int64 {
	s.lastID++
	return s.lastID
}

// indexOf must be called with the lock held
func (s *Store) indexOf(id int64) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Compose appends a self-sent message. Blank text without attachments is
// rejected and leaves the store unchanged.
func (s *Store) Compose(senderName, text string, attachments []models.Attachment, replyTo *int64) (models.Message, bool) {
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		s.logger.Debug("Ignoring empty compose")
		return models.Message{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.Message{
		ID:         s.nextID(),
		Text:       text,
		Sender:     models.SenderSelf,
		SenderName: senderName,
		Time:       s.stamp(),
		Status:     models.DeliveryStatusSent,
	}
	if replyTo != nil {
		target := *replyTo
		msg.ReplyTo = &target
	}
	if len(attachments) > 0 {
		msg.Attachments = make([]models.Attachment, len(attachments))
		copy(msg.Attachments, attachments)
	}

	s.messages = append(s.messages, msg)

	s.logger.WithFields(logrus.Fields{
		"message_id":  msg.ID,
		"attachments": len(msg.Attachments),
		"reply":       msg.ReplyTo != nil,
	}).Debug("Message composed")

	return msg.Clone(), true
}

// AppendIncoming appends a message from the other side of the room
func (s *Store) AppendIncoming(senderName, text string) (models.Message, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.Message{
		ID:         s.nextID(),
		Text:       text,
		Sender:     models.SenderOther,
		SenderName: senderName,
		Time:       s.stamp(),
	}
	s.messages = append(s.messages, msg)
	return msg.Clone(), true
}

// Edit replaces the text of a self-sent message. Status and attachments are
// preserved.
func (s *Store) Edit(id int64, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || !s.messages[i].IsSelf() {
		s.logger.WithField("message_id", id).Debug("Ignoring edit of unknown or foreign message")
		return false
	}

	s.messages[i].Text = text
	s.messages[i].Edited = true
	s.messages[i].Time = s.stamp()
	return true
}

// Delete removes a message. Deleting an absent id is a no-op.
func (s *Store) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	return true
}

// ToggleLike flips the liked flag and returns the new value
func (s *Store) ToggleLike(id int64) (liked bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, false
	}
	s.messages[i].Liked = !s.messages[i].Liked
	return s.messages[i].Liked, true
}

// SetStatus advances the delivery status of a self-sent message. Statuses
// never move backwards.
func (s *Store) SetStatus(id int64, status models.DeliveryStatus) bool {
	if status.Rank() == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || !s.messages[i].IsSelf() {
		return false
	}
	if status.Rank() <= s.messages[i].Status.Rank() {
		return false
	}
	s.messages[i].Status = status
	return true
}

// Seed replaces the whole store with the canned history of a room mode
func (s *Store) Seed(mode models.RoomMode, displayName string) {
	seed := seedFor(mode, displayName)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = seed
	s.lastID = 0
	for _, m := range seed {
		if m.ID > s.lastID {
			s.lastID = m.ID
		}
	}

	s.logger.WithFields(logrus.Fields{
		"mode":     mode,
		"messages": len(seed),
	}).Debug("Message store seeded")
}

// Snapshot returns a deep copy of the messages in insertion order
func (s *Store) Snapshot() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Get returns a copy of a single message
func (s *Store) Get(id int64) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Message{}, false
	}
	return s.messages[i].Clone(), true
}

// Len returns the number of stored messages
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// ReplyLabel resolves the preview text for a reply target. Targets without
// text render as "Attachment"; deleted targets report ok=false.
func (s *Store) ReplyLabel(id int64) (string, bool) {
	msg, ok := s.Get(id)
	if !ok {
		return "", false
	}
	return LabelFor(msg), true
}

// LabelFor is the preview text of a message when quoted in a reply
func LabelFor(msg models.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return AttachmentLabel
}

// AttachmentLabel stands in for the text of attachment-only messages
const AttachmentLabel = "Attachment"
