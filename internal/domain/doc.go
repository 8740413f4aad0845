// Package domain holds the core types and contracts shared across the
// pipeline: inbound viewer events, per-session response policy,
// personalities, queued requests, outbound frames, and the interfaces of
// the external generation services.
package domain
