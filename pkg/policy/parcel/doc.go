// Package parcel implements the bit-exact wire codec used to move mixes
// across the process boundary.
//
// A Parcel is a flat little-endian buffer of 4-byte slots:
//
//   - int32/uint32 values take one slot
//   - booleans are int32 0 or 1
//   - String8 values are an int32 byte length, the bytes, a NUL terminator
//     and zero padding up to the next slot boundary
//
// Criterion layout: rule, value.
//
// Mix layout: type, sample rate, format, channel mask, route flags, device
// type, registration id (String8), callback flags, allow privileged playback
// capture, voice communication capture allowed, criteria count, criteria.
//
// Mix list layout: count, mixes.
//
// The owner token is process-local and is never written. Decoding rejects
// counts above mix.MaxCriteriaPerMix or mix.MaxMixesPerPolicy, negative
// lengths, missing terminators, reads past the end of the buffer and
// trailing bytes; all such failures match mix.ErrMalformedInput.
package parcel
