// Package snapshot dumps the mix registry to a deterministic CBOR document.
//
// A snapshot lists the registered mixes in registration order together
// with their owner tokens, and carries a keyed BLAKE3 digest of the parcel
// encoding of the same mixes. Two registries holding the same mixes in the
// same order produce the same digest regardless of who owns them, so the
// digest can be compared across processes. Marshal uses RFC 8949 core
// deterministic encoding, so equal snapshots encode to identical bytes.
package snapshot
