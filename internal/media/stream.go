package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Kind identifies the media carried by a track
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is one live capture track. Tracks start enabled.
type Track struct {
	ID    string
	Kind  Kind
	Local webrtc.TrackLocal // nil when the host has no WebRTC stack

	mu      sync.Mutex
	enabled bool
	stopped bool
	onStop  func()
}

// NewTrack creates an enabled track. onStop runs once, on the first Stop.
func NewTrack(id string, kind Kind, onStop func()) *Track {
	return &Track{
		ID:      id,
		Kind:    kind,
		enabled: true,
		onStop:  onStop,
	}
}

// Enabled reports whether the track is producing media
func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetEnabled toggles media production without releasing the device
func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Stop releases the underlying device. Further calls are no-ops.
func (t *Track) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	onStop := t.onStop
	t.mu.Unlock()

	if onStop != nil {
		onStop()
	}
}

// Stopped reports whether Stop has been called
func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Stream is an ordered set of tracks from a single capture request
type Stream struct {
	ID     string
	tracks []*Track
}

// NewStream groups tracks under one stream id
func NewStream(id string, tracks ...*Track) *Stream {
	return &Stream{ID: id, tracks: tracks}
}

// Tracks returns all tracks in capture order
func (s *Stream) Tracks() []*Track {
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Stream) tracksOf(kind Kind) []*Track {
	var out []*Track
	for _, t := range s.tracks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// AudioTracks returns the audio tracks in capture order
func (s *Stream) AudioTracks() []*Track {
	return s.tracksOf(KindAudio)
}

// VideoTracks returns the video tracks in capture order
func (s *Stream) VideoTracks() []*Track {
	return s.tracksOf(KindVideo)
}

// HasVideo reports whether the stream carries at least one video track
func (s *Stream) HasVideo() bool {
	return len(s.VideoTracks()) > 0
}

// Stop stops every track
func (s *Stream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

// TrackInfo describes a track for rendering
type TrackInfo struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Enabled bool   `json:"enabled"`
}

// Handle is a point-in-time description of the held stream. The UI binds it
// to whatever surface it renders video on.
type Handle struct {
	StreamID string      `json:"streamId"`
	Tracks   []TrackInfo `json:"tracks"`
}

// HandleFor captures the current state of a stream
func HandleFor(s *Stream) Handle {
	h := Handle{StreamID: s.ID, Tracks: make([]TrackInfo, 0, len(s.tracks))}
	for _, t := range s.tracks {
		h.Tracks = append(h.Tracks, TrackInfo{ID: t.ID, Kind: t.Kind, Enabled: t.Enabled()})
	}
	return h
}

// HasVideo reports whether the handle describes a video track
func (h Handle) HasVideo() bool {
	for _, t := range h.Tracks {
		if t.Kind == KindVideo {
			return true
		}
	}
	return false
}

// VideoEnabled reports whether the handle has an enabled video track
func (h Handle) VideoEnabled() bool {
	for _, t := range h.Tracks {
		if t.Kind == KindVideo && t.Enabled {
			return true
		}
	}
	return false
}
