// Package pebbleengine provides an embedded implementation of the eventstore
// interface on top of Pebble, a persistent LSM key-value store.
//
// This package implements a single append-only event log with dynamic
// consistency boundaries: optimistic concurrency is expressed as queries over
// event content instead of per-aggregate version counters.
//
// Key features:
//   - Atomic batch appends with consistency boundary conflict detection
//   - Lazy cursors and materialized queries over committed events
//   - Crash recovery with checksum validation and torn-write truncation
//   - Persistent event type interning, consumer checkpoints, tail watching
//   - Projection snapshot persistence
//   - Per-call durability control (sync vs. group-committed writes)
//
// Usage examples:
//
//	// Basic usage
//	stream, _ := pebbleengine.NewStreamBuilder("/var/lib/myapp/events").Open()
//	defer stream.Close()
//
//	// With observability (production-safe)
//	stream, _ := pebbleengine.NewStreamBuilder("/var/lib/myapp/events").
//		WithLogger(logger).
//		WithMetrics(metricsCollector).
//		WithTracing(tracingCollector).
//		Open()
//
//	events, tail, _ := stream.Query(ctx, filter)
//	_, err := stream.Append(ctx, newEvents, eventstore.FailIfEventsMatchAfter(filter, tail))
package pebbleengine
