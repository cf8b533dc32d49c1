// Package ingest drives feed frames from the socket to the store.
//
// A Loop owns one subscription. Its states:
//
//	Disconnected -> Connecting -> Streaming -> Draining -> Disconnected
//
// A single reader moves frames, in arrival order, from the websocket into a
// bounded Queue. When the Queue is full the reader stops reading and the
// socket backs up. A dispatcher takes frames in order and runs each through
// decode, normalize, and persist on its own goroutine, gated by a weighted
// semaphore of MaxConcurrency.
//
// Frame outcomes:
//   - inserted (new row or an existing row with the same key)
//   - filtered (open kline; optionally projected to Redis)
//   - dead-lettered (undecodable, constraint violation, retries exhausted)
//   - abandoned (shutdown deadline passed before the frame finished)
//   - fatal (schema mismatch; the loop drains and Run returns ErrFatal)
//
// Connection loss never ends Run. Only context cancellation or a fatal
// persistence error does.
package ingest
