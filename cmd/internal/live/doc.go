// Package live implements the live revocation channel.
//
// A Registry maps session token digests to open websocket clients in both
// directions, so a revocation finds its connection in O(1) and a closing
// connection drops its own entry without scanning. The Gateway accepts
// websocket connections, binds each to the token sent in its first message,
// and delivers logout events pushed through the Registry.
//
// The registry is process-local. Sessions survive a restart; registrations do not.
package live
