// Package permission provides the closed capability bitset used by every
// guildguard authorization decision, together with the preset sets the
// engine seeds new guilds with.
//
// # Closed enumeration
//
// Capabilities are a fixed, versioned enumeration of named bits on a 64-bit
// [Set]. Bits outside the known range are always treated as unset
// ([Set.Normalize]), so a value written by a newer release degrades to the
// capabilities this release understands instead of granting anything.
// Capability names resolve through [FromNames], which rejects unknown names
// rather than silently ignoring them.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import guildguard, registry, or elevation (no upward imports).
//   - Grow the enumeration without appending: bit positions are wire- and
//     storage-stable for the lifetime of the format.
package permission
