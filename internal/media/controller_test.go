package media

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"roomchat/internal/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestController_AcquireWithoutDevices(t *testing.T) {
	c := NewController(nil, quietLogger())

	hasVideo, err := c.Acquire(context.Background(), true, false)
	require.Error(t, err)
	assert.False(t, hasVideo)
	assert.Equal(t, errors.ErrCodeUnsupported, errors.GetCode(err))
	assert.Equal(t, "Media devices are not supported on this host.", errors.GetUserMessage(err))
	assert.False(t, c.Holding())
}

func TestController_AcquireAudio(t *testing.T) {
	devices := &mockDevices{}
	stream := audioStream("s1")
	devices.On("GetUserMedia", mock.Anything, Constraints{Audio: true}).Return(stream, nil)

	c := NewController(devices, quietLogger())
	hasVideo, err := c.Acquire(context.Background(), true, false)

	require.NoError(t, err)
	assert.False(t, hasVideo)
	assert.True(t, c.Holding())
	assert.False(t, c.HasVideo())
	devices.AssertExpectations(t)
}

func TestController_AcquireReleasesPreviousStream(t *testing.T) {
	devices := &mockDevices{}
	first := audioStream("first")
	second := videoStream("second")
	devices.On("GetUserMedia", mock.Anything, Constraints{Audio: true}).Return(first, nil).Once()
	devices.On("GetUserMedia", mock.Anything, Constraints{Audio: true, Video: true}).Return(second, nil).Once()

	c := NewController(devices, quietLogger())
	_, err := c.Acquire(context.Background(), true, false)
	require.NoError(t, err)

	hasVideo, err := c.Acquire(context.Background(), true, true)
	require.NoError(t, err)
	assert.True(t, hasVideo)

	for _, track := range first.Tracks() {
		assert.True(t, track.Stopped())
	}
	for _, track := range second.Tracks() {
		assert.False(t, track.Stopped())
	}

	handle, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "second", handle.StreamID)
}

func TestController_AcquireClassifiesFailures(t *testing.T) {
	tests := []struct {
		name        string
		hostErr     error
		code        errors.ErrorCode
		userMessage string
	}{
		{
			name:        "permission denied",
			hostErr:     ErrNotAllowed,
			code:        errors.ErrCodePermissionDenied,
			userMessage: "Camera/mic permission denied.",
		},
		{
			name:        "no device",
			hostErr:     fmt.Errorf("camera: %w", ErrNotFound),
			code:        errors.ErrCodeDeviceNotFound,
			userMessage: "No camera or microphone found.",
		},
		{
			name:        "device busy",
			hostErr:     ErrNotReadable,
			code:        errors.ErrCodeDeviceBusy,
			userMessage: "Camera/mic is already in use by another app.",
		},
		{
			name:        "unsupported",
			hostErr:     ErrUnsupported,
			code:        errors.ErrCodeUnsupported,
			userMessage: "Media devices are not supported on this host.",
		},
		{
			name:        "other failure",
			hostErr:     stderrors.New("driver crashed"),
			code:        errors.ErrCodeDeviceError,
			userMessage: "driver crashed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices := &mockDevices{}
			devices.On("GetUserMedia", mock.Anything, mock.Anything).Return(nil, tt.hostErr)

			c := NewController(devices, quietLogger())
			_, err := c.Acquire(context.Background(), true, true)

			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.Equal(t, tt.userMessage, errors.GetUserMessage(err))
			assert.False(t, c.Holding())
		})
	}
}

func TestController_AcquireFailureKeepsHeldStream(t *testing.T) {
	devices := &mockDevices{}
	held := audioStream("held")
	devices.On("GetUserMedia", mock.Anything, Constraints{Audio: true}).Return(held, nil).Once()
	devices.On("GetUserMedia", mock.Anything, Constraints{Audio: true, Video: true}).Return(nil, ErrNotAllowed).Once()

	c := NewController(devices, quietLogger())
	_, err := c.Acquire(context.Background(), true, false)
	require.NoError(t, err)

	_, err = c.Acquire(context.Background(), true, true)
	require.Error(t, err)

	assert.True(t, c.Holding())
	assert.False(t, held.Tracks()[0].Stopped())
}

func TestController_AcquireAfterCancelStopsFreshStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fresh := videoStream("late")

	devices := &mockDevices{}
	devices.On("GetUserMedia", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(fresh, nil)

	c := NewController(devices, quietLogger())
	_, err := c.Acquire(ctx, true, true)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAcquireCancelled, errors.GetCode(err))
	assert.False(t, c.Holding())
	for _, track := range fresh.Tracks() {
		assert.True(t, track.Stopped())
	}
}

func TestController_AcquireNilStream(t *testing.T) {
	devices := &mockDevices{}
	devices.On("GetUserMedia", mock.Anything, mock.Anything).Return(nil, nil)

	c := NewController(devices, quietLogger())
	_, err := c.Acquire(context.Background(), true, false)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDeviceError, errors.GetCode(err))
	assert.Equal(t, "Could not access media devices.", errors.GetUserMessage(err))
}

func TestController_ReleaseIsIdempotent(t *testing.T) {
	devices := &mockDevices{}
	stream := videoStream("s")
	devices.On("GetUserMedia", mock.Anything, mock.Anything).Return(stream, nil)

	c := NewController(devices, quietLogger())
	c.Release()

	_, err := c.Acquire(context.Background(), true, true)
	require.NoError(t, err)

	c.Release()
	c.Release()

	assert.False(t, c.Holding())
	assert.False(t, c.HasVideo())
	_, ok := c.Current()
	assert.False(t, ok)
	for _, track := range stream.Tracks() {
		assert.True(t, track.Stopped())
	}
}

func TestController_SetTrackEnabled(t *testing.T) {
	devices := &mockDevices{}
	devices.On("GetUserMedia", mock.Anything, mock.Anything).Return(audioStream("s"), nil)

	c := NewController(devices, quietLogger())

	_, found := c.SetTrackEnabled(KindAudio, false)
	assert.False(t, found, "no stream held yet")

	_, err := c.Acquire(context.Background(), true, false)
	require.NoError(t, err)

	enabled, found := c.SetTrackEnabled(KindAudio, false)
	assert.True(t, found)
	assert.False(t, enabled)

	enabled, found = c.TrackEnabled(KindAudio)
	assert.True(t, found)
	assert.False(t, enabled)

	_, found = c.SetTrackEnabled(KindVideo, false)
	assert.False(t, found, "audio-only stream has no video track")
}

func TestController_CurrentReflectsTrackState(t *testing.T) {
	devices := &mockDevices{}
	devices.On("GetUserMedia", mock.Anything, mock.Anything).Return(videoStream("s"), nil)

	c := NewController(devices, quietLogger())
	_, err := c.Acquire(context.Background(), true, true)
	require.NoError(t, err)

	handle, ok := c.Current()
	require.True(t, ok)
	assert.True(t, handle.VideoEnabled())

	c.SetTrackEnabled(KindVideo, false)
	handle, _ = c.Current()
	assert.False(t, handle.VideoEnabled())
	require.Len(t, handle.Tracks, 2)
	assert.Equal(t, KindAudio, handle.Tracks[0].Kind)
}

func TestController_ToggleTrackFollowsHeldStream(t *testing.T) {
	first, second := audioStream("first"), audioStream("second")
	devices := &mockDevices{}
	devices.On("GetUserMedia", mock.Anything, mock.Anything).Return(first, nil).Once()
	devices.On("GetUserMedia", mock.Anything, mock.Anything).Return(second, nil).Once()

	c := NewController(devices, quietLogger())

	_, found := c.ToggleTrack(KindAudio)
	assert.False(t, found, "no stream held yet")

	_, err := c.Acquire(context.Background(), true, false)
	require.NoError(t, err)
	enabled, found := c.ToggleTrack(KindAudio)
	require.True(t, found)
	assert.False(t, enabled)

	_, err = c.Acquire(context.Background(), true, false)
	require.NoError(t, err)

	enabled, found = c.ToggleTrack(KindAudio)
	require.True(t, found)
	assert.False(t, enabled, "flips the new stream from its own enabled state")
	assert.False(t, second.AudioTracks()[0].Enabled())

	_, found = c.ToggleTrack(KindVideo)
	assert.False(t, found)
}
