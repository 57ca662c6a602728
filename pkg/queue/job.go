package queue

import "context"

// Job consumes one message type. Handle runs on queue workers and gets
// the payload in the shape ParsePayload accepts.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}
