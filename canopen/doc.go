// Package canopen provides high-level helpers for building CANopen nodes
// on top of the core canroute primitives.
//
// This package focuses on small, well-factored building blocks that cover
// the most commonly used parts of CANopen:
//   - COB-ID helpers and function code mapping
//   - NMT commands and node state encoding/decoding
//   - Heartbeat (NMT error control) codec and a router-backed monitor
//   - Emergency (EMCY) frame encode/decode and watcher
//   - SYNC codec, a periodic producer and a router-backed watcher
//   - SDO expedited transfers (encode/decode) and a minimal synchronous client
//
// Consumers register through a canroute.Router so one receive callback serves
// every protocol service; each watcher owns the route handles it registers
// and retires them when stopped.
//
// The APIs here do not attempt to implement the full CANopen stack or
// object dictionary. Instead, they provide composable types and helpers that
// are easy to test and integrate into applications.
package canopen
