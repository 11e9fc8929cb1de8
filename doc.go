// Package canroute routes received Controller Area Network (CAN) frames to
// callbacks registered per identifier.
//
// A Bus delivers every frame on the wire through a single receive callback.
// The Router claims that callback slot once and multiplexes it: modules
// register an identifier and a handler, and the first registered route whose
// identifier matches an incoming frame receives it. Frames matching no route
// are dropped.
//
// It includes:
//   - A core Frame type with validation and binary marshaling helpers
//   - The Router with caller-owned Route handles (O(1) removal)
//   - An in-memory loopback bus for tests and simulations
//   - A Linux SocketCAN driver (linux-only) via raw syscalls
package canroute
