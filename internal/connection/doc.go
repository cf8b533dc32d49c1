// Package connection implements the feed's websocket client.
//
// One Client is one connection:
//   - A single read goroutine delivers frames in arrival order
//   - The frame channel is bounded; a full channel stalls the socket read
//     instead of dropping (backpressure to the feed)
//   - Server pings are answered, and a heartbeat closes the connection when
//     no ping or pong arrives within PingTimeout
//   - Reconnection is the caller's job: a Client is not reusable after its
//     stream ends
package connection
