// Package codec decodes raw feed frames into wire events.
//
// Decoding is structural only: the "e" tag must name a known variant and every
// required field must be present with the right JSON type. No domain
// filtering happens here (see package normalize). A failed decode returns a
// *DecodeError that still carries the original bytes so the caller can
// dead-letter them.
package codec
