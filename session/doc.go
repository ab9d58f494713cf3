// Package session provides Redis-backed persistence for local identity
// sessions with a compact binary encoding.
//
// # Binary encoding
//
// Records are stored as a version byte followed by length-prefixed strings
// and big-endian timestamps. Version 1 records carry no email; they decode
// with an empty Email and are rewritten on the next Save.
//
// # Keys
//
//	<prefix>:s:<sessionID>   encoded session, expires with the session
//	<prefix>:u:<userID>      set of session IDs for the user
//	<prefix>:count           number of live sessions
//
// # What this package must NOT do
//
//   - Import the root goSession package or any provider package.
//   - Issue or verify tokens.
package session
