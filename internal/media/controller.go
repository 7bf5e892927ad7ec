package media

import (
	"context"
	"sync"

	"roomchat/internal/errors"

	"github.com/sirupsen/logrus"
)

// Controller owns the single local stream of a call session
type Controller struct {
	mu      sync.Mutex
	devices Devices
	stream  *Stream
	logger  *logrus.Logger
}

// NewController creates a controller. A nil devices means the host has no
// media API and every acquisition fails as unsupported.
func NewController(devices Devices, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{
		devices: devices,
		logger:  logger,
	}
}

// Acquire captures a new stream and makes it the held one, releasing the
// previous stream. It reports whether the new stream carries video.
func (c *Controller) Acquire(ctx context.Context, wantAudio, wantVideo bool) (bool, error) {
	handle, err := c.AcquireHandle(ctx, wantAudio, wantVideo)
	if err != nil {
		return false, err
	}
	return handle.HasVideo(), nil
}

// AcquireHandle is Acquire returning the render handle of the new stream. If
// ctx is cancelled before the capture completes, the fresh stream is stopped
// and an ACQUIRE_CANCELLED error is returned.
func (c *Controller) AcquireHandle(ctx context.Context, wantAudio, wantVideo bool) (Handle, error) {
	if c.devices == nil {
		return Handle{}, errors.NewUnsupportedError()
	}

	stream, err := c.devices.GetUserMedia(ctx, Constraints{Audio: wantAudio, Video: wantVideo})
	if err != nil {
		return Handle{}, Classify(err)
	}
	if stream == nil {
		return Handle{}, errors.NewDeviceError(nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		stream.Stop()
		c.logger.WithField("stream_id", stream.ID).Debug("Discarding stream acquired after teardown")
		return Handle{}, errors.NewAcquireCancelledError(ctxErr)
	}

	if c.stream != nil {
		c.logger.WithField("stream_id", c.stream.ID).Debug("Releasing previous stream")
		c.stream.Stop()
	}
	c.stream = stream

	c.logger.WithFields(logrus.Fields{
		"stream_id": stream.ID,
		"tracks":    len(stream.tracks),
		"video":     stream.HasVideo(),
	}).Info("Local media stream acquired")

	return HandleFor(stream), nil
}

// Release stops the held stream, if any
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return
	}
	c.stream.Stop()
	c.logger.WithField("stream_id", c.stream.ID).Info("Local media stream released")
	c.stream = nil
}

func (c *Controller) firstTrack(kind Kind) *Track {
	if c.stream == nil {
		return nil
	}
	tracks := c.stream.tracksOf(kind)
	if len(tracks) == 0 {
		return nil
	}
	return tracks[0]
}

// SetTrackEnabled sets the enabled flag of the first track of kind. It
// returns the resulting flag and whether such a track exists.
func (c *Controller) SetTrackEnabled(kind Kind, enabled bool) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	track := c.firstTrack(kind)
	if track == nil {
		return false, false
	}
	track.SetEnabled(enabled)
	return track.Enabled(), true
}

// ToggleTrack flips the first track of kind in one step, so a stream swapped
// in concurrently is never flipped from the old stream's state.
func (c *Controller) ToggleTrack(kind Kind) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	track := c.firstTrack(kind)
	if track == nil {
		return false, false
	}
	track.SetEnabled(!track.Enabled())
	return track.Enabled(), true
}

// TrackEnabled reports the enabled flag of the first track of kind
func (c *Controller) TrackEnabled(kind Kind) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	track := c.firstTrack(kind)
	if track == nil {
		return false, false
	}
	return track.Enabled(), true
}

// HasVideo reports whether the held stream carries video
func (c *Controller) HasVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil && c.stream.HasVideo()
}

// Holding reports whether a stream is held
func (c *Controller) Holding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Current returns a render handle for the held stream
func (c *Controller) Current() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return Handle{}, false
	}
	return HandleFor(c.stream), true
}
