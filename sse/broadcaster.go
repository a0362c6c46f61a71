package sse

import "context"

// Broadcaster lets publishers depend on an abstraction rather than a concrete Hub.
type Broadcaster interface {
	// Publish sends ev to every client whose ID matches pattern and returns
	// how many clients accepted it. Pattern uses glob matching, e.g. "feed:*".
	Publish(ctx context.Context, pattern string, ev Event) int
	// BroadcastToPattern queues ev for the hub loop without waiting.
	BroadcastToPattern(pattern string, ev Event)
}
