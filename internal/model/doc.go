// Package model defines the canonical event types persisted by the ingestor.
//
// Conventions:
//   - Prices and volumes: shopspring/decimal, never float64
//   - Timestamps: time.Time in UTC, millisecond precision (feed resolution)
//   - IDs: ID (uint64), stored as NUMERIC(20,0) so the full unsigned range fits
//
// Events are write-once facts. They are built by the normalizer and handed by
// value to the writer; nothing mutates them afterwards.
package model
