package call

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"roomchat/internal/media"
	"roomchat/internal/metrics"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type mockDevices struct {
	mock.Mock
}

func (m *mockDevices) GetUserMedia(ctx context.Context, constraints media.Constraints) (*media.Stream, error) {
	args := m.Called(ctx, constraints)
	stream, _ := args.Get(0).(*media.Stream)
	return stream, args.Error(1)
}

// instantDevices grants every request immediately with fresh tracks
type instantDevices struct {
	mu      sync.Mutex
	streams []*media.Stream
}

func (d *instantDevices) GetUserMedia(_ context.Context, constraints media.Constraints) (*media.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := fmt.Sprintf("stream-%d", len(d.streams)+1)
	tracks := []*media.Track{media.NewTrack(id+"-audio", media.KindAudio, nil)}
	if constraints.Video {
		tracks = append(tracks, media.NewTrack(id+"-video", media.KindVideo, nil))
	}
	stream := media.NewStream(id, tracks...)
	d.streams = append(d.streams, stream)
	return stream, nil
}

func (d *instantDevices) last() *media.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

// gatedRequest is a capture request held until the test answers it
type gatedRequest struct {
	constraints media.Constraints
	reply       chan gatedReply
}

type gatedReply struct {
	stream *media.Stream
	err    error
}

// gatedDevices blocks every request until the test replies. It ignores ctx,
// like a permission prompt the user has not answered yet.
type gatedDevices struct {
	requests chan gatedRequest
}

func newGatedDevices() *gatedDevices {
	return &gatedDevices{requests: make(chan gatedRequest, 4)}
}

func (d *gatedDevices) GetUserMedia(_ context.Context, constraints media.Constraints) (*media.Stream, error) {
	req := gatedRequest{constraints: constraints, reply: make(chan gatedReply, 1)}
	d.requests <- req
	r := <-req.reply
	return r.stream, r.err
}

func (d *gatedDevices) next(t *testing.T) gatedRequest {
	t.Helper()
	select {
	case req := <-d.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a capture request")
		return gatedRequest{}
	}
}

func streamFor(id string, video bool) *media.Stream {
	tracks := []*media.Track{media.NewTrack(id+"-audio", media.KindAudio, nil)}
	if video {
		tracks = append(tracks, media.NewTrack(id+"-video", media.KindVideo, nil))
	}
	return media.NewStream(id, tracks...)
}

func allStopped(s *media.Stream) bool {
	for _, track := range s.Tracks() {
		if !track.Stopped() {
			return false
		}
	}
	return true
}

func newMachine(devices media.Devices) (*Machine, *media.Controller, *metrics.Registry) {
	logger := quietLogger()
	controller := media.NewController(devices, logger)
	registry := metrics.NewRegistry()
	return NewMachine(controller, logger, registry), controller, registry
}

func startAsync(m *Machine, video bool) <-chan error {
	done := make(chan error, 1)
	go func() {
		if video {
			done <- m.StartVideo(context.Background())
		} else {
			done <- m.StartAudio(context.Background())
		}
	}()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		require.FailNow(t, "start did not return")
		return nil
	}
}
