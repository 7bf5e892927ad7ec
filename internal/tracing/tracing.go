package tracing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const requestIDPrefix = "req_"

type requestKey struct{}

// request is what one HTTP request carries through its context
type request struct {
	id      string
	started time.Time
}

// GenerateRequestID returns a fresh "req_"-prefixed UUID
func GenerateRequestID() string {
	return requestIDPrefix + uuid.NewString()
}

// WithRequest stamps ctx with a request id and the current time. A blank id
// gets a generated one; a client-supplied id is kept as is.
func WithRequest(ctx context.Context, requestID string) context.Context {
	return withRequestAt(ctx, requestID, time.Now())
}

func withRequestAt(ctx context.Context, requestID string, started time.Time) context.Context {
	if requestID == "" {
		requestID = GenerateRequestID()
	}
	return context.WithValue(ctx, requestKey{}, request{id: requestID, started: started})
}

func requestFrom(ctx context.Context) (request, bool) {
	r, ok := ctx.Value(requestKey{}).(request)
	return r, ok
}

// GetRequestID returns the request id of ctx, or "" outside a request
func GetRequestID(ctx context.Context) string {
	r, _ := requestFrom(ctx)
	return r.id
}

// Duration is the time elapsed since WithRequest, zero outside a request
func Duration(ctx context.Context) time.Duration {
	r, ok := requestFrom(ctx)
	if !ok {
		return 0
	}
	return time.Since(r.started)
}
