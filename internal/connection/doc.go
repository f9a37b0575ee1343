// Package connection keeps each subscription's websocket alive.
//
// The Manager runs one Session per subscription identity. A Session moves
// through Disconnected, Connecting, Connected and Reconnecting, resends
// its subscribe payload on every new connection, and backs off
// exponentially between attempts. After MaxRetries consecutive failures it
// reports retry exhaustion to the handler and waits for Restart or
// Unsubscribe. Stopped is terminal.
//
// Every frame read from a connection is dispatched synchronously on the
// session goroutine, so frames for one identity are never reordered.
package connection
