package room

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"roomchat/internal/attachment"
	"roomchat/internal/call"
	"roomchat/internal/constants"
	"roomchat/internal/errors"
	"roomchat/internal/models"
	"roomchat/internal/privacy"
	"roomchat/internal/search"
	"roomchat/internal/store"

	"github.com/sirupsen/logrus"
)

// Session binds one participant to one room and owns every piece of state
// that a join resets.
type Session struct {
	mu      sync.Mutex
	store   *store.Store
	batch   *attachment.Batch
	machine *call.Machine
	logger  *logrus.Logger

	joined      bool
	displayName string
	roomID      string
	mode        models.RoomMode

	draft       string
	replyTo     *int64
	editing     *int64
	query       string
	otherTyping bool

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSub     int
}

// NewSession creates a session that has not joined any room yet. The store
// holds the default direct-room history until the first join.
func NewSession(machine *call.Machine, logger *logrus.Logger, storeOpts ...store.Option) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Session{
		store:       store.New(logger, storeOpts...),
		batch:       attachment.NewBatch(),
		machine:     machine,
		logger:      logger,
		displayName: constants.DefaultDisplayName,
		roomID:      constants.DefaultRoomID,
		mode:        models.RoomModeDirect,
		subscribers: make(map[int]func(Snapshot)),
	}
	s.store.Seed(s.mode, s.displayName)
	return s
}

// OnChange registers fn to receive a snapshot after every state change. The
// returned func unsubscribes.
func (s *Session) OnChange(fn func(Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Session) notify() {
	snap := s.Snapshot()

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// mutate runs fn under the session lock while joined and notifies
// subscribers when it reports a change
func (s *Session) mutate(fn func() bool) bool {
	s.mu.Lock()
	changed := s.joined && fn()
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return changed
}

// Join enters a room. Blank values fall back to the defaults. Everything
// from the previous room is discarded in one step: the call, the history, the
// composer and the search query.
func (s *Session) Join(displayName, roomID string, mode models.RoomMode) Info {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = constants.DefaultDisplayName
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		roomID = constants.DefaultRoomID
	}
	mode = models.ParseRoomMode(string(mode))

	s.mu.Lock()
	s.machine.EndCall()
	s.store.Seed(mode, displayName)
	s.batch.Clear()
	s.displayName = displayName
	s.roomID = roomID
	s.mode = mode
	s.draft = ""
	s.replyTo = nil
	s.editing = nil
	s.query = ""
	s.otherTyping = false
	s.joined = true
	info := s.infoLocked()
	s.mu.Unlock()

	s.logger.WithFields(privacy.MaskSensitiveFields(logrus.Fields{
		"room_id":      roomID,
		"mode":         mode,
		"display_name": displayName,
	})).Info("Joined room")

	s.notify()
	return info
}

// Leave ends any call and returns to the join form
func (s *Session) Leave() {
	s.mu.Lock()
	s.machine.EndCall()
	wasJoined := s.joined
	roomID := s.roomID
	s.joined = false
	s.mu.Unlock()

	if wasJoined {
		s.logger.WithField("room_id", roomID).Info("Left room")
	}
	s.notify()
}

// Joined reports whether a room is active
func (s *Session) Joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

// SetDraft replaces the composer text
func (s *Session) SetDraft(text string) bool {
	return s.mutate(func() bool {
		s.draft = text
		return true
	})
}

// Send submits the composer. While editing it rewrites the edited message,
// otherwise it composes a new one from the draft, the pending attachments and
// the reply target.
func (s *Session) Send() (models.Message, bool) {
	var sent models.Message
	ok := s.mutate(func() bool {
		var changed bool
		sent, changed = s.sendLocked()
		return changed
	})
	return sent, ok
}

// Compose sets the draft and sends it in one step. It reports whether a new
// message was added; in edit mode the draft rewrites the edited message.
func (s *Session) Compose(text string) (models.Message, bool) {
	var sent models.Message
	s.mutate(func() bool {
		s.draft = text
		sent, _ = s.sendLocked()
		return true
	})
	return sent, sent.ID != 0
}

// sendLocked returns the composed message, or the zero message when the send
// was an edit. The bool reports whether anything changed.
func (s *Session) sendLocked() (models.Message, bool) {
	if s.editing != nil {
		if strings.TrimSpace(s.draft) == "" {
			return models.Message{}, false
		}
		s.store.Edit(*s.editing, s.draft)
		s.draft = ""
		s.editing = nil
		return models.Message{}, true
	}

	if strings.TrimSpace(s.draft) == "" && s.batch.Len() == 0 {
		return models.Message{}, false
	}
	msg, ok := s.store.Compose(s.displayName, s.draft, s.batch.Take(), s.replyTo)
	if !ok {
		return models.Message{}, false
	}
	s.draft = ""
	s.replyTo = nil
	s.otherTyping = false
	return msg, true
}

// StartEdit loads a self-sent message into the composer for editing
func (s *Session) StartEdit(id int64) bool {
	return s.mutate(func() bool {
		msg, ok := s.store.Get(id)
		if !ok || !msg.IsSelf() {
			return false
		}
		target := id
		s.editing = &target
		s.draft = msg.Text
		s.replyTo = nil
		return true
	})
}

// CancelEdit leaves edit mode and clears the draft
func (s *Session) CancelEdit() bool {
	return s.mutate(func() bool {
		if s.editing == nil {
			return false
		}
		s.editing = nil
		s.draft = ""
		return true
	})
}

// Edit rewrites a self-sent message directly
func (s *Session) Edit(id int64, text string) bool {
	return s.mutate(func() bool {
		return s.store.Edit(id, text)
	})
}

// SetReplyTarget quotes an existing message in the next send
func (s *Session) SetReplyTarget(id int64) bool {
	return s.mutate(func() bool {
		if _, ok := s.store.Get(id); !ok {
			return false
		}
		target := id
		s.replyTo = &target
		return true
	})
}

// ClearReplyTarget drops the quoted message
func (s *Session) ClearReplyTarget() bool {
	return s.mutate(func() bool {
		if s.replyTo == nil {
			return false
		}
		s.replyTo = nil
		return true
	})
}

// Delete removes a message and any composer state pointing at it
func (s *Session) Delete(id int64) bool {
	return s.mutate(func() bool {
		if !s.store.Delete(id) {
			return false
		}
		if s.editing != nil && *s.editing == id {
			s.editing = nil
			s.draft = ""
		}
		if s.replyTo != nil && *s.replyTo == id {
			s.replyTo = nil
		}
		return true
	})
}

// ToggleLike flips the like on a message
func (s *Session) ToggleLike(id int64) bool {
	return s.mutate(func() bool {
		_, ok := s.store.ToggleLike(id)
		return ok
	})
}

// MarkDelivered advances a sent message to delivered
func (s *Session) MarkDelivered(id int64) bool {
	return s.mutate(func() bool {
		return s.store.SetStatus(id, models.DeliveryStatusDelivered)
	})
}

// MarkRead advances a sent message to read
func (s *Session) MarkRead(id int64) bool {
	return s.mutate(func() bool {
		return s.store.SetStatus(id, models.DeliveryStatusRead)
	})
}

// SetSearchQuery changes the conversation filter
func (s *Session) SetSearchQuery(query string) bool {
	return s.mutate(func() bool {
		s.query = query
		return true
	})
}

// PickFiles adds host files to the pending attachments
func (s *Session) PickFiles(files []attachment.FileHandle) []models.Attachment {
	var added []models.Attachment
	s.mutate(func() bool {
		added = s.batch.PickFiles(files)
		return len(added) > 0
	})
	return added
}

// RemovePendingAttachment drops a picked file before sending
func (s *Session) RemovePendingAttachment(id int64) bool {
	return s.mutate(func() bool {
		return s.batch.Remove(id)
	})
}

// SetOtherTyping shows or hides the remote typing indicator
func (s *Session) SetOtherTyping(typing bool) bool {
	return s.mutate(func() bool {
		s.otherTyping = typing
		return true
	})
}

// SimulateIncoming appends a canned message from the remote side
func (s *Session) SimulateIncoming() (models.Message, bool) {
	var msg models.Message
	ok := s.mutate(func() bool {
		text := "Quick event: Ping"
		if mode := s.machine.State().Mode; mode != models.CallModeIdle {
			text = fmt.Sprintf("Quick event: %s call active", mode)
		}
		var appended bool
		msg, appended = s.store.AppendIncoming(s.remoteNameLocked(), text)
		return appended
	})
	return msg, ok
}

func (s *Session) remoteNameLocked() string {
	if s.mode == models.RoomModeGroup {
		return constants.GroupHostName
	}
	return constants.ContactName
}

// StartAudio starts an audio call. The session lock is not held while the
// host prompts for devices.
func (s *Session) StartAudio(ctx context.Context) error {
	return s.startCall(ctx, models.CallModeAudio)
}

// StartVideo starts a video call
func (s *Session) StartVideo(ctx context.Context) error {
	return s.startCall(ctx, models.CallModeVideo)
}

// startCall registers the attempt while the join state is locked, so a Leave
// or Join that follows always cancels it.
func (s *Session) startCall(ctx context.Context, mode models.CallMode) error {
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidInput, "no room joined").
			WithUserMessage("Join a room first.")
	}
	attempt := s.machine.Begin(ctx, mode)
	s.mu.Unlock()

	err := attempt.Run()
	s.notify()
	return err
}

// EndCall hangs up
func (s *Session) EndCall() {
	s.machine.EndCall()
	s.notify()
}

// ToggleMute flips the microphone
func (s *Session) ToggleMute() bool {
	muted := s.machine.ToggleMute()
	s.notify()
	return muted
}

// ToggleCamera flips the camera
func (s *Session) ToggleCamera() bool {
	on := s.machine.ToggleCamera()
	s.notify()
	return on
}

func (s *Session) infoLocked() Info {
	info := Info{
		Joined:      s.joined,
		DisplayName: s.displayName,
		RoomID:      s.roomID,
		Mode:        s.mode,
	}
	if s.mode == models.RoomModeGroup {
		info.Title = "Group Room: " + s.roomID
		info.Subtitle = constants.GroupMembers
	} else {
		info.Title = "1:1 Room: " + s.roomID
		info.Subtitle = constants.ContactSubtitle
	}
	return info
}

// Snapshot returns the current outbound view
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.store.Snapshot()
	filtered := search.Filter(messages, s.query)

	visible := make([]VisibleMessage, 0, len(filtered))
	for _, m := range filtered {
		vm := VisibleMessage{Message: m}
		if m.ReplyTo != nil {
			vm.ReplyLabel, _ = s.store.ReplyLabel(*m.ReplyTo)
		}
		visible = append(visible, vm)
	}

	composer := Composer{
		Draft:   s.draft,
		Pending: s.batch.List(),
	}
	if s.replyTo != nil {
		target := *s.replyTo
		composer.ReplyTo = &target
		composer.ReplyLabel, _ = s.store.ReplyLabel(target)
	}
	if s.editing != nil {
		target := *s.editing
		composer.EditingID = &target
	}

	snap := Snapshot{
		Room:     s.infoLocked(),
		Messages: messages,
		Visible:  visible,
		Composer: composer,
		Search:   s.query,
		Call:     s.machine.State(),
	}
	if s.otherTyping {
		snap.Typing = s.remoteNameLocked() + " is typing..."
	}
	if handle, ok := s.machine.LocalVideo(); ok {
		snap.LocalVideo = &handle
	}
	return snap
}
