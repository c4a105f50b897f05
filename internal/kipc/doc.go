// Package kipc implements the kdb+ inter-process-communication wire format:
// type-tagged serialization of atoms, lists, and dictionaries, fixed-header
// message framing with optional IPC compression, and a connection type that
// performs the credential/capability handshake and synchronous or
// fire-and-forget sends.
//
// The numeric type tags, the handshake byte sequence, and the compression
// algorithm are compatibility contracts with the server; they mirror the
// published KX IPC specification exactly. Encoding is big-endian with the
// matching endianness marker in the header; decoding honors whichever
// endianness the peer declares.
package kipc
