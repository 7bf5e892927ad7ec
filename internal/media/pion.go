package media

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

const (
	opusClockRate = 48000
	opusChannels  = 2
	vp8ClockRate  = 90000
)

// PionDevices captures synthetic local tracks backed by pion WebRTC sample
// tracks. A transport can add Track.Local to a PeerConnection and write
// samples into it.
type PionDevices struct {
	logger   *logrus.Logger
	camera   bool
	newLocal func(codec webrtc.RTPCodecCapability, id, streamID string) (webrtc.TrackLocal, error)
}

// PionOption configures PionDevices
type PionOption func(*PionDevices)

// WithoutCamera makes video requests fail as if no camera were attached
func WithoutCamera() PionOption {
	return func(d *PionDevices) {
		d.camera = false
	}
}

// NewPionDevices creates a device set with a microphone and a camera
func NewPionDevices(logger *logrus.Logger, opts ...PionOption) *PionDevices {
	if logger == nil {
		logger = logrus.New()
	}
	d := &PionDevices{logger: logger, camera: true, newLocal: newSampleTrack}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetUserMedia implements Devices
func (d *PionDevices) GetUserMedia(ctx context.Context, constraints Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !constraints.Audio && !constraints.Video {
		return nil, fmt.Errorf("at least one of audio or video must be requested")
	}
	if constraints.Video && !d.camera {
		return nil, fmt.Errorf("video capture: %w", ErrNotFound)
	}

	streamID := uuid.NewString()
	var tracks []*Track

	if constraints.Audio {
		track, err := d.newTrack(streamID, KindAudio, webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: opusClockRate,
			Channels:  opusChannels,
		})
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if constraints.Video {
		track, err := d.newTrack(streamID, KindVideo, webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: vp8ClockRate,
		})
		if err != nil {
			for _, t := range tracks {
				t.Stop()
			}
			return nil, err
		}
		tracks = append(tracks, track)
	}

	d.logger.WithFields(logrus.Fields{
		"stream_id": streamID,
		"audio":     constraints.Audio,
		"video":     constraints.Video,
	}).Debug("Created local WebRTC tracks")

	return NewStream(streamID, tracks...), nil
}

func (d *PionDevices) newTrack(streamID string, kind Kind, codec webrtc.RTPCodecCapability) (*Track, error) {
	trackID := fmt.Sprintf("%s-%s", kind, uuid.NewString())

	local, err := d.newLocal(codec, trackID, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s track: %w", kind, err)
	}

	track := NewTrack(trackID, kind, func() {
		d.logger.WithFields(logrus.Fields{
			"stream_id": streamID,
			"track_id":  trackID,
		}).Debug("Local track stopped")
	})
	track.Local = local
	return track, nil
}

func newSampleTrack(codec webrtc.RTPCodecCapability, id, streamID string) (webrtc.TrackLocal, error) {
	return webrtc.NewTrackLocalStaticSample(codec, id, streamID)
}
