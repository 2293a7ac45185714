package interfaces

import "context"

// TickSource streams live ticks into the engine until ctx is cancelled.
type TickSource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Subscribe(ctx context.Context, symbols []string) error
}
