// Package database provides the PostgreSQL store: pool management, schema,
// and the two idempotent upserts the ingestor writes with.
//
// Row keys:
//   - trade: (symbol, trade_id)
//   - kline: (symbol, interval, start_time), closed klines only
//
// Identifier columns are NUMERIC(20,0) so every uint64 fits; BIGINT would
// reject IDs above 2^63-1.
package database
