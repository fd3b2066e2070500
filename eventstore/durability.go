package eventstore

import "context"

// DurabilityLevel defines the durability requirements for append operations.
type DurabilityLevel int

const (
	// SyncDurability requires the write-ahead log to be fsynced before an
	// append returns. This is the safe default for event sourcing scenarios:
	// an acknowledged append survives a process crash or power loss.
	SyncDurability DurabilityLevel = iota

	// DeferredDurability lets the storage engine group-commit the write,
	// trading a small window of potential data loss on power failure for
	// significantly higher append throughput. Atomicity is unaffected: a
	// deferred batch still becomes visible all-or-nothing.
	DeferredDurability
)

// contextKey is a private type to prevent context key collisions.
type contextKey string

// DurabilityLevelKey is the context key used to store durability level preferences.
const DurabilityLevelKey contextKey = "eventstore.durability_level"

// WithSyncDurability returns a context that signals append operations must
// fsync before acknowledging, regardless of the engine's configured default.
func WithSyncDurability(ctx context.Context) context.Context {
	return context.WithValue(ctx, DurabilityLevelKey, SyncDurability)
}

// WithDeferredDurability returns a context that signals append operations may
// be group-committed, trading durability latency for throughput.
//
// Example usage:
//
//	ctx = eventstore.WithDeferredDurability(ctx)
//	assigned, err := stream.Append(ctx, events, conditions...)
func WithDeferredDurability(ctx context.Context) context.Context {
	return context.WithValue(ctx, DurabilityLevelKey, DeferredDurability)
}

// GetDurabilityLevel extracts the durability level from the context. If none
// is set, it returns SyncDurability as the safe default.
func GetDurabilityLevel(ctx context.Context) DurabilityLevel {
	if level, ok := ctx.Value(DurabilityLevelKey).(DurabilityLevel); ok {
		return level
	}

	return SyncDurability
}

// String provides a string representation of DurabilityLevel for logging and debugging.
func (d DurabilityLevel) String() string {
	switch d {
	case SyncDurability:
		return "sync"
	case DeferredDurability:
		return "deferred"
	default:
		return "unknown"
	}
}
