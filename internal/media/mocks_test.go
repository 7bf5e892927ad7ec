package media

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockDevices struct {
	mock.Mock
}

func (m *mockDevices) GetUserMedia(ctx context.Context, constraints Constraints) (*Stream, error) {
	args := m.Called(ctx, constraints)
	stream, _ := args.Get(0).(*Stream)
	return stream, args.Error(1)
}

func audioStream(id string) *Stream {
	return NewStream(id, NewTrack(id+"-a", KindAudio, nil))
}

func videoStream(id string) *Stream {
	return NewStream(id,
		NewTrack(id+"-a", KindAudio, nil),
		NewTrack(id+"-v", KindVideo, nil),
	)
}
