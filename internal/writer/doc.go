// Package writer implements the persistence sink: one event in, one
// idempotent upsert out.
//
// Each attempt acquires a pooled connection for its own duration only and
// runs under a write timeout that also bounds acquisition. Failures are
// classified as Transient (retried with exponential backoff), Constraint
// (the row is rejected, the caller dead-letters it), or Fatal (schema or
// type mismatch, the caller halts).
//
// A replayed event whose key already exists is a success. It is reported as
// Inserted and counted as a conflict.
package writer
